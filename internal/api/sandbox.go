package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/model"
)

// Balance is a sandbox ledger balance.
type Balance struct {
	Address model.Address   `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

type ownerResponse struct {
	Owner model.Address `json:"owner"`
}

func assetPath(contract model.Address, assetID string) string {
	return "/v1/sandbox/assets/" + contract.String() + "/" + url.PathEscape(assetID)
}

// Mint creates a sandbox asset owned by to.
func (c *Client) Mint(ctx context.Context, contract model.Address, assetID string, to model.Address) error {
	req := struct {
		To model.Address `json:"to"`
	}{to}
	return c.send(ctx, http.MethodPost, assetPath(contract, assetID)+"/mint", req, nil)
}

// Approve lets the marketplace take custody of one of the caller's assets.
func (c *Client) Approve(ctx context.Context, contract model.Address, assetID string) error {
	return c.send(ctx, http.MethodPost, assetPath(contract, assetID)+"/approve", struct{}{}, nil)
}

// Transfer gives one of the caller's sandbox assets to another party.
func (c *Client) Transfer(ctx context.Context, contract model.Address, assetID string, to model.Address) error {
	req := struct {
		To model.Address `json:"to"`
	}{to}
	return c.send(ctx, http.MethodPost, assetPath(contract, assetID)+"/transfer", req, nil)
}

// OwnerOf returns the current owner of a sandbox asset.
func (c *Client) OwnerOf(ctx context.Context, contract model.Address, assetID string) (model.Address, error) {
	var resp ownerResponse
	if err := c.get(ctx, assetPath(contract, assetID)+"/owner", &resp); err != nil {
		return "", err
	}
	return resp.Owner, nil
}

// Deposit funds addr in the sandbox ledger.
func (c *Client) Deposit(ctx context.Context, addr model.Address, amount decimal.Decimal) (Balance, error) {
	req := struct {
		Address model.Address   `json:"address"`
		Amount  decimal.Decimal `json:"amount"`
	}{addr, amount}

	var b Balance
	err := c.send(ctx, http.MethodPost, "/v1/sandbox/deposit", req, &b)
	return b, err
}

// BalanceOf returns addr's sandbox balance.
func (c *Client) BalanceOf(ctx context.Context, addr model.Address) (Balance, error) {
	var b Balance
	err := c.get(ctx, "/v1/sandbox/balances/"+addr.String(), &b)
	return b, err
}
