// Package custody provides an in-memory asset registry for unique assets.
//
// It tracks the owner of every (contract, token ID) pair, per-asset approvals
// and operator approvals, and implements the marketplace's Custodian port:
// an approved owner hands an asset to the marketplace identity, and only the
// marketplace can hand it back out.
//
// Used by marketd in sandbox mode and by tests. Production deployments plug a
// chain-backed Custodian into the registry instead.
package custody
