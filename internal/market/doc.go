// Package market implements the Listing Registry, the marketplace's settlement core.
//
// The Listing Registry:
//   - Escrows an asset with the asset registry when a seller lists it
//   - Returns the asset when the seller removes the listing
//   - Settles purchases atomically: exact payment in, proceeds to the seller,
//     fee to the operator, asset to the buyer
//   - Emits an Event for every completed operation
//
// Every mutating operation runs under one registry-wide lock. Listing state is
// always cleared before the asset registry or payment rail is called, and a
// failed collaborator call unwinds every step already taken.
package market
