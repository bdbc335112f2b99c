package custody

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/nft-market/internal/model"
)

var (
	ErrUnknownAsset    = errors.New("unknown asset")
	ErrAlreadyMinted   = errors.New("asset already minted")
	ErrNotOwner        = errors.New("not the asset owner")
	ErrNotApproved     = errors.New("marketplace not approved")
	ErrNotInCustody    = errors.New("asset not in marketplace custody")
	ErrInvalidReceiver = errors.New("invalid receiver")
)

type operatorKey struct {
	contract model.Address
	owner    model.Address
}

// Registry is a thread-safe in-memory asset registry.
type Registry struct {
	marketplace model.Address
	logger      *slog.Logger

	mu        sync.RWMutex
	owners    map[model.AssetKey]model.Address
	approvals map[model.AssetKey]model.Address
	operators map[operatorKey]map[model.Address]struct{}
}

// NewRegistry creates an empty registry. marketplace is the identity that
// holds escrowed assets.
func NewRegistry(marketplace model.Address, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		marketplace: marketplace,
		logger:      logger,
		owners:      make(map[model.AssetKey]model.Address),
		approvals:   make(map[model.AssetKey]model.Address),
		operators:   make(map[operatorKey]map[model.Address]struct{}),
	}
}

// Marketplace returns the custody identity.
func (r *Registry) Marketplace() model.Address {
	return r.marketplace
}

// Mint creates a new asset owned by to.
func (r *Registry) Mint(ctx context.Context, key model.AssetKey, to model.Address) error {
	if to.IsZero() {
		return ErrInvalidReceiver
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyMinted, key)
	}
	r.owners[key] = to

	r.logger.Debug("asset minted", "asset", key.String(), "owner", to)
	return nil
}

// OwnerOf returns the current owner of an asset.
func (r *Registry) OwnerOf(key model.AssetKey) (model.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[key]
	if !ok {
		return model.ZeroAddress, fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	return owner, nil
}

// Approve lets operator take this one asset. Only the owner may approve.
// Approving the zero address clears the approval.
func (r *Registry) Approve(ctx context.Context, key model.AssetKey, owner, operator model.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOwnerLocked(key, owner); err != nil {
		return err
	}
	if operator.IsZero() {
		delete(r.approvals, key)
		return nil
	}
	r.approvals[key] = operator
	return nil
}

// SetApprovalForAll lets operator take every asset of owner in contract.
func (r *Registry) SetApprovalForAll(ctx context.Context, contract, owner, operator model.Address, approved bool) error {
	if owner.IsZero() || operator.IsZero() {
		return ErrInvalidReceiver
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := operatorKey{contract: contract, owner: owner}
	if !approved {
		delete(r.operators[k], operator)
		return nil
	}
	if r.operators[k] == nil {
		r.operators[k] = make(map[model.Address]struct{})
	}
	r.operators[k][operator] = struct{}{}
	return nil
}

// Transfer moves an asset between parties at the owner's request.
func (r *Registry) Transfer(ctx context.Context, key model.AssetKey, from, to model.Address) error {
	if to.IsZero() {
		return ErrInvalidReceiver
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOwnerLocked(key, from); err != nil {
		return err
	}
	r.moveLocked(key, to)
	return nil
}

// TakeCustody moves an approved asset from its owner to the marketplace.
func (r *Registry) TakeCustody(ctx context.Context, key model.AssetKey, from model.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOwnerLocked(key, from); err != nil {
		return err
	}
	if !r.isApprovedLocked(key, from, r.marketplace) {
		return fmt.Errorf("%w: %s", ErrNotApproved, key)
	}
	r.moveLocked(key, r.marketplace)

	r.logger.Debug("custody taken", "asset", key.String(), "from", from)
	return nil
}

// ReleaseCustody moves an escrowed asset to to.
func (r *Registry) ReleaseCustody(ctx context.Context, key model.AssetKey, to model.Address) error {
	if to.IsZero() {
		return ErrInvalidReceiver
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	if owner != r.marketplace {
		return fmt.Errorf("%w: %s", ErrNotInCustody, key)
	}
	r.moveLocked(key, to)

	r.logger.Debug("custody released", "asset", key.String(), "to", to)
	return nil
}

// checkOwnerLocked verifies owner holds key (caller must hold lock).
func (r *Registry) checkOwnerLocked(key model.AssetKey, owner model.Address) error {
	current, ok := r.owners[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	if current != owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, key)
	}
	return nil
}

func (r *Registry) isApprovedLocked(key model.AssetKey, owner, operator model.Address) bool {
	if r.approvals[key] == operator {
		return true
	}
	_, ok := r.operators[operatorKey{contract: key.Contract, owner: owner}][operator]
	return ok
}

// moveLocked transfers ownership and clears the per-asset approval.
func (r *Registry) moveLocked(key model.AssetKey, to model.Address) {
	r.owners[key] = to
	delete(r.approvals, key)
}
