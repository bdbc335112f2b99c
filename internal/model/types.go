package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Identities
// -----------------------------------------------------------------------------

// Address identifies a party or an asset contract.
type Address string

// ZeroAddress is the null identity. An empty listing carries it as seller.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ErrInvalidAddress is returned when an address is not 20 bytes of hex.
var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress validates and normalises an address to lowercase.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address("0x" + strings.ToLower(s[2:])), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is the null identity (or unset).
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

func (a Address) String() string {
	if a == "" {
		return string(ZeroAddress)
	}
	return string(a)
}

// AssetKey identifies one unique asset: a token ID within a contract.
type AssetKey struct {
	Contract Address `json:"asset_contract"`
	TokenID  string  `json:"asset_id"`
}

// NewAssetKey builds a key with the token ID trimmed of surrounding space.
func NewAssetKey(contract Address, tokenID string) AssetKey {
	return AssetKey{Contract: contract, TokenID: strings.TrimSpace(tokenID)}
}

func (k AssetKey) String() string {
	return k.Contract.String() + "/" + k.TokenID
}

// -----------------------------------------------------------------------------
// Listings
// -----------------------------------------------------------------------------

// Listing is an active fixed-price offer for one asset held in custody.
type Listing struct {
	AssetContract Address         `json:"asset_contract"`
	AssetID       string          `json:"asset_id"`
	Seller        Address         `json:"seller"`
	Price         decimal.Decimal `json:"price"` // wei
}

// EmptyListing is returned for keys with no active listing.
func EmptyListing(key AssetKey) Listing {
	return Listing{
		AssetContract: key.Contract,
		AssetID:       key.TokenID,
		Seller:        ZeroAddress,
		Price:         decimal.Zero,
	}
}

// Key returns the registry key of the listing.
func (l Listing) Key() AssetKey {
	return AssetKey{Contract: l.AssetContract, TokenID: l.AssetID}
}

// IsEmpty reports whether l is the "no listing" sentinel.
func (l Listing) IsEmpty() bool {
	return l.Seller.IsZero()
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

// EventType classifies a registry state transition.
type EventType string

const (
	EventListingCreated EventType = "listing_created"
	EventListingRemoved EventType = "listing_removed"
	EventListingSold    EventType = "listing_sold"
)

// Event records a completed marketplace operation.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       EventType       `json:"type"`
	Key        AssetKey        `json:"asset"`
	Seller     Address         `json:"seller"`
	Buyer      Address         `json:"buyer,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Fee        decimal.Decimal `json:"fee"`
	Proceeds   decimal.Decimal `json:"proceeds"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent stamps an event with a fresh ID and the current UTC time.
func NewEvent(typ EventType, l Listing) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		Key:        l.Key(),
		Seller:     l.Seller,
		Price:      l.Price,
		Fee:        decimal.Zero,
		Proceeds:   decimal.Zero,
		OccurredAt: time.Now().UTC(),
	}
}
