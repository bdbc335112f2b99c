package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/model"
)

type createListingRequest struct {
	AssetContract string          `json:"asset_contract"`
	AssetID       string          `json:"asset_id"`
	Price         decimal.Decimal `json:"price"`
}

type buyListingRequest struct {
	Payment decimal.Decimal `json:"payment"`
}

type listingsResponse struct {
	Count    int             `json:"count"`
	Listings []model.Listing `json:"listings"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := s.auth.Authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req createListingRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	contract, err := model.ParseAddress(req.AssetContract)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	listing, err := s.registry.CreateListing(r.Context(), contract, req.AssetID, req.Price, caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	listings := s.registry.Listings()
	writeJSON(w, http.StatusOK, listingsResponse{Count: len(listings), Listings: listings})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	contract, id, err := pathAsset(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.registry.ListingOf(contract, id))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	caller, err := s.auth.Authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contract, id, err := pathAsset(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.registry.RemoveListing(r.Context(), contract, id, caller); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	caller, err := s.auth.Authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contract, id, err := pathAsset(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req buyListingRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sale, err := s.registry.BuyListing(r.Context(), contract, id, req.Payment, caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// pathAsset extracts {contract} and {id} from the route.
// pathAsset reads the asset from the path. The id is normalised the same
// way the registry normalises it.
func pathAsset(r *http.Request) (model.Address, string, error) {
	contract, err := model.ParseAddress(r.PathValue("contract"))
	if err != nil {
		return "", "", err
	}
	key := model.NewAssetKey(contract, r.PathValue("id"))
	return key.Contract, key.TokenID, nil
}

// decodeBody reads a JSON body, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
