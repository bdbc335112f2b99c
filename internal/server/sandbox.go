package server

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/market"
	"github.com/rickgao/nft-market/internal/model"
)

type mintRequest struct {
	To string `json:"to"`
}

type transferRequest struct {
	To string `json:"to"`
}

type approveRequest struct {
	Operator string `json:"operator,omitempty"` // defaults to the marketplace
	All      bool   `json:"all,omitempty"`      // approve every asset of the contract
}

type depositRequest struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

type ownerResponse struct {
	AssetContract model.Address `json:"asset_contract"`
	AssetID       string        `json:"asset_id"`
	Owner         model.Address `json:"owner"`
}

type balanceResponse struct {
	Address model.Address   `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *Server) sandboxRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sandbox/assets/{contract}/{id}/mint", s.handleMint)
	mux.HandleFunc("POST /v1/sandbox/assets/{contract}/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /v1/sandbox/assets/{contract}/{id}/transfer", s.handleTransfer)
	mux.HandleFunc("GET /v1/sandbox/assets/{contract}/{id}/owner", s.handleOwner)
	mux.HandleFunc("POST /v1/sandbox/deposit", s.handleDeposit)
	mux.HandleFunc("GET /v1/sandbox/balances", s.handleBalances)
	mux.HandleFunc("GET /v1/sandbox/balances/{address}", s.handleBalance)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	contract, id, err := pathAsset(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req mintRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := model.ParseAddress(req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if id == "" {
		s.writeError(w, r, market.ErrInvalidAssetID)
		return
	}
	key := model.NewAssetKey(contract, id)
	if err := s.sandbox.Assets.Mint(r.Context(), key, to); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ownerResponse{AssetContract: contract, AssetID: id, Owner: to})
}

// handleApprove approves an operator on behalf of the authenticated owner.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	owner, err := s.auth.Authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contract, id, err := pathAsset(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req approveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	operator := s.sandbox.Assets.Marketplace()
	if req.Operator != "" {
		if operator, err = model.ParseAddress(req.Operator); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	if req.All {
		err = s.sandbox.Assets.SetApprovalForAll(r.Context(), contract, owner, operator, true)
	} else {
		err = s.sandbox.Assets.Approve(r.Context(), model.NewAssetKey(contract, id), owner, operator)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTransfer moves an asset from the authenticated owner to another party.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	owner, err := s.auth.Authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contract, id, err := pathAsset(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req transferRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := model.ParseAddress(req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.sandbox.Assets.Transfer(r.Context(), model.NewAssetKey(contract, id), owner, to); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ownerResponse{AssetContract: contract, AssetID: id, Owner: to})
}

func (s *Server) handleOwner(w http.ResponseWriter, r *http.Request) {
	contract, id, err := pathAsset(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	owner, err := s.sandbox.Assets.OwnerOf(model.NewAssetKey(contract, id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ownerResponse{AssetContract: contract, AssetID: id, Owner: owner})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	addr, err := model.ParseAddress(req.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sandbox.Ledger.Deposit(r.Context(), addr, req.Amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: s.sandbox.Ledger.BalanceOf(addr)})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sandbox.Ledger.Balances())
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := model.ParseAddress(r.PathValue("address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: s.sandbox.Ledger.BalanceOf(addr)})
}
