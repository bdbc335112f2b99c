package market

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/model"
)

// DefaultEventBufferSize is the capacity of the Event channel.
const DefaultEventBufferSize = 1000

// Validation errors. Each is returned before any collaborator is called.
var (
	ErrPriceTooLow    = errors.New("price below minimum")
	ErrPriceTooHigh   = errors.New("price above maximum")
	ErrAlreadyListed  = errors.New("asset already listed")
	ErrNotListed      = errors.New("asset not listed")
	ErrNotAuthorized  = errors.New("caller is not the seller")
	ErrWrongAmount    = errors.New("payment does not match price")
	ErrInvalidCaller  = errors.New("caller is the zero address")
	ErrInvalidAssetID = errors.New("asset id is required")
)

// Collaborator errors. The underlying cause is wrapped alongside.
var (
	ErrTransferRejected = errors.New("asset transfer rejected")
	ErrPaymentFailed    = errors.New("payment failed")
)

// Registry manages listings and settles sales.
type Registry interface {
	// CreateListing takes custody of the asset from caller and lists it at price (wei).
	CreateListing(ctx context.Context, contract model.Address, assetID string, price decimal.Decimal, caller model.Address) (model.Listing, error)

	// RemoveListing clears the caller's listing and returns the asset to them.
	RemoveListing(ctx context.Context, contract model.Address, assetID string, caller model.Address) error

	// BuyListing settles a purchase paid with exactly the listing price.
	BuyListing(ctx context.Context, contract model.Address, assetID string, payment decimal.Decimal, caller model.Address) (Sale, error)

	// ListingOf returns the active listing or the empty sentinel.
	ListingOf(contract model.Address, assetID string) model.Listing

	// Listings returns a snapshot of all active listings.
	Listings() []model.Listing

	// Events returns a channel of completed operations.
	// Dispatcher uses this to feed the journal, publishers and live feed.
	Events() <-chan model.Event

	// Stats returns operation counters.
	Stats() Stats

	// Config returns the registry's fixed configuration.
	Config() Config
}

// Custodian is the asset registry port.
type Custodian interface {
	// TakeCustody moves the asset from owner into marketplace custody.
	// Fails unless from owns the asset and has approved the marketplace.
	TakeCustody(ctx context.Context, key model.AssetKey, from model.Address) error

	// ReleaseCustody moves the asset out of marketplace custody to to.
	ReleaseCustody(ctx context.Context, key model.AssetKey, to model.Address) error
}

// PaymentRail is the native currency port.
type PaymentRail interface {
	// Collect accepts an attached payment of amount from the buyer.
	Collect(ctx context.Context, from model.Address, amount decimal.Decimal) error

	// Credit increases to's spendable balance by amount.
	Credit(ctx context.Context, to model.Address, amount decimal.Decimal) error

	// Debit reverses an earlier credit.
	Debit(ctx context.Context, from model.Address, amount decimal.Decimal) error
}

// Sale is the settlement receipt of a purchase.
type Sale struct {
	Listing  model.Listing   `json:"listing"`
	Buyer    model.Address   `json:"buyer"`
	Fee      decimal.Decimal `json:"fee"`
	Proceeds decimal.Decimal `json:"proceeds"`
}

// Stats holds registry counters.
type Stats struct {
	Active        int             `json:"active"`
	Created       int64           `json:"created"`
	Removed       int64           `json:"removed"`
	Sold          int64           `json:"sold"`
	Rejected      int64           `json:"rejected"`
	Volume        decimal.Decimal `json:"volume"`
	FeesCollected decimal.Decimal `json:"fees_collected"`
	DroppedEvents int64           `json:"dropped_events"`
}
