package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rickgao/nft-market/internal/auth"
	"github.com/rickgao/nft-market/internal/custody"
	"github.com/rickgao/nft-market/internal/ledger"
	"github.com/rickgao/nft-market/internal/market"
	"github.com/rickgao/nft-market/internal/model"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("bad request")

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{market.ErrPriceTooLow, http.StatusUnprocessableEntity, "price_too_low"},
	{market.ErrPriceTooHigh, http.StatusUnprocessableEntity, "price_too_high"},
	{market.ErrAlreadyListed, http.StatusConflict, "already_listed"},
	{market.ErrNotListed, http.StatusNotFound, "not_listed"},
	{market.ErrNotAuthorized, http.StatusForbidden, "not_authorized"},
	{market.ErrWrongAmount, http.StatusUnprocessableEntity, "wrong_amount"},
	{market.ErrInvalidCaller, http.StatusBadRequest, "invalid_caller"},
	{market.ErrInvalidAssetID, http.StatusBadRequest, "invalid_asset_id"},
	{ledger.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
	{market.ErrPaymentFailed, http.StatusBadGateway, "payment_failed"},
	{market.ErrTransferRejected, http.StatusConflict, "transfer_rejected"},
	{auth.ErrMissingCredentials, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrUnknownCaller, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrStaleTimestamp, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrBadSignature, http.StatusUnauthorized, "unauthenticated"},
	{custody.ErrAlreadyMinted, http.StatusConflict, "already_minted"},
	{custody.ErrUnknownAsset, http.StatusNotFound, "unknown_asset"},
	{custody.ErrNotOwner, http.StatusForbidden, "not_owner"},
	{custody.ErrInvalidReceiver, http.StatusBadRequest, "invalid_receiver"},
	{ledger.ErrInvalidParty, http.StatusBadRequest, "invalid_party"},
	{model.ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},
	{model.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{errBadRequest, http.StatusBadRequest, "bad_request"},
}

// classify maps err to a status code and stable error code.
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
