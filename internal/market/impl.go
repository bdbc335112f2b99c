package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/model"
)

// registryImpl implements the Registry interface.
type registryImpl struct {
	cfg       Config
	custodian Custodian
	rail      PaymentRail
	logger    *slog.Logger

	state *registryState

	// opMu serialises mutating operations.
	opMu sync.Mutex
}

// NewRegistry creates a new Listing Registry.
func NewRegistry(cfg Config, custodian Custodian, rail PaymentRail, logger *slog.Logger) (Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry config: %w", err)
	}
	if custodian == nil || rail == nil {
		return nil, fmt.Errorf("custodian and payment rail are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &registryImpl{
		cfg:       cfg,
		custodian: custodian,
		rail:      rail,
		logger:    logger,
		state:     newState(cfg.EventBufferSize),
	}, nil
}

// CreateListing validates the price, escrows the asset and records the listing.
func (r *registryImpl) CreateListing(ctx context.Context, contract model.Address, assetID string, price decimal.Decimal, caller model.Address) (model.Listing, error) {
	ctx, exit := r.enter(ctx)
	defer exit()

	key, err := r.assetKey(contract, assetID, caller)
	if err != nil {
		return model.Listing{}, r.reject("create", key, caller, err)
	}
	if err := r.cfg.checkPrice(price); err != nil {
		return model.Listing{}, r.reject("create", key, caller, err)
	}
	if _, ok := r.state.getListing(key); ok {
		return model.Listing{}, r.reject("create", key, caller, ErrAlreadyListed)
	}

	if err := callOut(ctx, func() error { return r.custodian.TakeCustody(ctx, key, caller) }); err != nil {
		return model.Listing{}, r.reject("create", key, caller, fmt.Errorf("%w: %w", ErrTransferRejected, err))
	}

	listing := model.Listing{
		AssetContract: key.Contract,
		AssetID:       key.TokenID,
		Seller:        caller,
		Price:         price,
	}
	if !r.state.insertListing(listing) {
		// A reentrant create listed the asset while custody was being taken.
		if rerr := r.release(ctx, key, caller); rerr != nil {
			r.compensationFailed("create", key, "release custody", rerr)
		}
		return model.Listing{}, r.reject("create", key, caller, ErrAlreadyListed)
	}

	r.state.incr(&r.state.created)
	r.state.notify(model.NewEvent(model.EventListingCreated, listing))

	r.logger.Info("listing created",
		"asset", key.String(),
		"seller", caller,
		"price", price,
	)
	return listing, nil
}

// RemoveListing clears the listing, then returns custody to the seller.
func (r *registryImpl) RemoveListing(ctx context.Context, contract model.Address, assetID string, caller model.Address) error {
	ctx, exit := r.enter(ctx)
	defer exit()

	key, err := r.assetKey(contract, assetID, caller)
	if err != nil {
		return r.reject("remove", key, caller, err)
	}

	listing, ok := r.state.getListing(key)
	if !ok {
		return r.reject("remove", key, caller, ErrNotListed)
	}
	if listing.Seller != caller {
		return r.reject("remove", key, caller, ErrNotAuthorized)
	}

	// Clear before calling out so a reentrant call sees no listing.
	r.state.deleteListing(key)

	if err := r.release(ctx, key, listing.Seller); err != nil {
		r.restore(listing)
		return r.reject("remove", key, caller, fmt.Errorf("%w: %w", ErrTransferRejected, err))
	}

	r.state.incr(&r.state.removed)
	r.state.notify(model.NewEvent(model.EventListingRemoved, listing))

	r.logger.Info("listing removed",
		"asset", key.String(),
		"seller", listing.Seller,
	)
	return nil
}

// BuyListing settles a purchase. Either every transfer happens or none does.
func (r *registryImpl) BuyListing(ctx context.Context, contract model.Address, assetID string, payment decimal.Decimal, caller model.Address) (Sale, error) {
	ctx, exit := r.enter(ctx)
	defer exit()

	key, err := r.assetKey(contract, assetID, caller)
	if err != nil {
		return Sale{}, r.reject("buy", key, caller, err)
	}

	listing, ok := r.state.getListing(key)
	if !ok {
		return Sale{}, r.reject("buy", key, caller, ErrNotListed)
	}
	if !payment.Equal(listing.Price) {
		return Sale{}, r.reject("buy", key, caller, fmt.Errorf("%w: paid %s, price %s", ErrWrongAmount, payment, listing.Price))
	}

	fee, proceeds := r.cfg.SplitFee(listing.Price)
	u := &unwinder{r: r, key: key}

	// Clear before any call out so a reentrant call sees no listing.
	r.state.deleteListing(key)
	u.push("restore listing", func() error { r.restore(listing); return nil })

	if err := callOut(ctx, func() error { return r.rail.Collect(ctx, caller, payment) }); err != nil {
		u.run()
		return Sale{}, r.reject("buy", key, caller, fmt.Errorf("%w: collect payment: %w", ErrPaymentFailed, err))
	}
	u.push("refund buyer", func() error { return r.credit(ctx, caller, payment) })

	if err := r.credit(ctx, listing.Seller, proceeds); err != nil {
		u.run()
		return Sale{}, r.reject("buy", key, caller, fmt.Errorf("%w: credit seller: %w", ErrPaymentFailed, err))
	}
	u.push("debit seller", func() error { return r.debit(ctx, listing.Seller, proceeds) })

	if err := r.credit(ctx, r.cfg.FeeRecipient, fee); err != nil {
		u.run()
		return Sale{}, r.reject("buy", key, caller, fmt.Errorf("%w: credit fee: %w", ErrPaymentFailed, err))
	}
	u.push("debit fee", func() error { return r.debit(ctx, r.cfg.FeeRecipient, fee) })

	if err := r.release(ctx, key, caller); err != nil {
		u.run()
		return Sale{}, r.reject("buy", key, caller, fmt.Errorf("%w: %w", ErrTransferRejected, err))
	}

	r.state.recordSale(listing.Price, fee)

	event := model.NewEvent(model.EventListingSold, listing)
	event.Buyer = caller
	event.Fee = fee
	event.Proceeds = proceeds
	r.state.notify(event)

	r.logger.Info("listing sold",
		"asset", key.String(),
		"seller", listing.Seller,
		"buyer", caller,
		"price", listing.Price,
		"fee", fee,
	)

	return Sale{
		Listing:  listing,
		Buyer:    caller,
		Fee:      fee,
		Proceeds: proceeds,
	}, nil
}

// ListingOf returns the active listing or the empty sentinel.
func (r *registryImpl) ListingOf(contract model.Address, assetID string) model.Listing {
	key := model.NewAssetKey(contract, assetID)
	if l, ok := r.state.getListing(key); ok {
		return l
	}
	return model.EmptyListing(key)
}

// Listings returns all active listings.
func (r *registryImpl) Listings() []model.Listing {
	return r.state.snapshot()
}

// Events returns the channel of completed operations.
func (r *registryImpl) Events() <-chan model.Event {
	return r.state.events
}

// Stats returns operation counters.
func (r *registryImpl) Stats() Stats {
	return r.state.stats()
}

// Config returns the registry configuration.
func (r *registryImpl) Config() Config {
	return r.cfg
}

func (r *registryImpl) assetKey(contract model.Address, assetID string, caller model.Address) (model.AssetKey, error) {
	key := model.NewAssetKey(contract, assetID)
	if key.TokenID == "" {
		return key, ErrInvalidAssetID
	}
	if caller.IsZero() {
		return key, ErrInvalidCaller
	}
	return key, nil
}

func (r *registryImpl) credit(ctx context.Context, to model.Address, amount decimal.Decimal) error {
	return callOut(ctx, func() error { return r.rail.Credit(ctx, to, amount) })
}

func (r *registryImpl) debit(ctx context.Context, from model.Address, amount decimal.Decimal) error {
	return callOut(ctx, func() error { return r.rail.Debit(ctx, from, amount) })
}

func (r *registryImpl) release(ctx context.Context, key model.AssetKey, to model.Address) error {
	return callOut(ctx, func() error { return r.custodian.ReleaseCustody(ctx, key, to) })
}

// restore puts a cleared listing back after a failed collaborator call.
func (r *registryImpl) restore(l model.Listing) {
	if !r.state.insertListing(l) {
		r.compensationFailed("restore", l.Key(), "reinsert listing", ErrAlreadyListed)
	}
}

func (r *registryImpl) reject(op string, key model.AssetKey, caller model.Address, err error) error {
	r.state.incr(&r.state.rejected)
	r.logger.Debug("operation rejected",
		"op", op,
		"asset", key.String(),
		"caller", caller,
		"err", err,
	)
	return err
}

func (r *registryImpl) compensationFailed(op string, key model.AssetKey, step string, err error) {
	r.logger.Error("compensation failed",
		"op", op,
		"asset", key.String(),
		"step", step,
		"err", err,
	)
}

// unwinder records compensating actions and runs them newest first.
type unwinder struct {
	r     *registryImpl
	key   model.AssetKey
	steps []unwindStep
}

type unwindStep struct {
	name string
	fn   func() error
}

func (u *unwinder) push(name string, fn func() error) {
	u.steps = append(u.steps, unwindStep{name: name, fn: fn})
}

func (u *unwinder) run() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i].fn(); err != nil {
			u.r.compensationFailed("buy", u.key, u.steps[i].name, err)
		}
	}
	u.steps = nil
}
