package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/market"
	"github.com/rickgao/nft-market/internal/model"
)

// ListingsResponse is the body of GET /v1/listings.
type ListingsResponse struct {
	Count    int             `json:"count"`
	Listings []model.Listing `json:"listings"`
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Registry market.Stats    `json:"registry"`
	Sinks    []SinkStats     `json:"sinks,omitempty"`
	Feed     *FeedStats      `json:"feed,omitempty"`
	Journal  *JournalMetrics `json:"journal,omitempty"`
}

// SinkStats mirrors the dispatcher's per-sink counters.
type SinkStats struct {
	Name      string `json:"name"`
	Delivered int64  `json:"delivered"`
	Failed    int64  `json:"failed"`
}

// FeedStats mirrors the feed hub counters.
type FeedStats struct {
	Clients    int   `json:"clients"`
	Broadcasts int64 `json:"broadcasts"`
	Evicted    int64 `json:"evicted"`
}

// JournalMetrics mirrors the journal writer counters.
type JournalMetrics struct {
	Inserts   int64 `json:"inserts"`
	Conflicts int64 `json:"conflicts"`
	Errors    int64 `json:"errors"`
	Flushes   int64 `json:"flushes"`
	Requeued  int64 `json:"requeued"`
	Dropped   int64 `json:"dropped"`
}

func listingPath(contract model.Address, assetID string) string {
	return "/v1/listings/" + contract.String() + "/" + url.PathEscape(assetID)
}

// CreateListing lists an asset the caller owns at price (wei).
func (c *Client) CreateListing(ctx context.Context, contract model.Address, assetID string, price decimal.Decimal) (model.Listing, error) {
	req := struct {
		AssetContract model.Address   `json:"asset_contract"`
		AssetID       string          `json:"asset_id"`
		Price         decimal.Decimal `json:"price"`
	}{contract, assetID, price}

	var l model.Listing
	err := c.send(ctx, http.MethodPost, "/v1/listings", req, &l)
	return l, err
}

// Listings returns every active listing.
func (c *Client) Listings(ctx context.Context) ([]model.Listing, error) {
	var resp ListingsResponse
	if err := c.get(ctx, "/v1/listings", &resp); err != nil {
		return nil, err
	}
	return resp.Listings, nil
}

// Listing returns the listing for an asset, or the empty listing.
func (c *Client) Listing(ctx context.Context, contract model.Address, assetID string) (model.Listing, error) {
	var l model.Listing
	err := c.get(ctx, listingPath(contract, assetID), &l)
	return l, err
}

// RemoveListing withdraws the caller's listing.
func (c *Client) RemoveListing(ctx context.Context, contract model.Address, assetID string) error {
	return c.send(ctx, http.MethodDelete, listingPath(contract, assetID), nil, nil)
}

// BuyListing buys a listing, attaching payment (wei).
func (c *Client) BuyListing(ctx context.Context, contract model.Address, assetID string, payment decimal.Decimal) (market.Sale, error) {
	req := struct {
		Payment decimal.Decimal `json:"payment"`
	}{payment}

	var sale market.Sale
	err := c.send(ctx, http.MethodPost, listingPath(contract, assetID)+"/buy", req, &sale)
	return sale, err
}

// Stats returns registry and pipeline counters.
func (c *Client) Stats(ctx context.Context) (StatsResponse, error) {
	var s StatsResponse
	err := c.get(ctx, "/v1/stats", &s)
	return s, err
}
