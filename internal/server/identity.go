package server

import (
	"fmt"
	"net/http"

	"github.com/rickgao/nft-market/internal/auth"
	"github.com/rickgao/nft-market/internal/model"
)

// Authenticator resolves the caller of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (model.Address, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(r *http.Request) (model.Address, error)

func (f AuthenticatorFunc) Authenticate(r *http.Request) (model.Address, error) { return f(r) }

// HeaderAuthenticator trusts the address header without a signature.
// It is meant for development and the sandbox.
var HeaderAuthenticator = AuthenticatorFunc(func(r *http.Request) (model.Address, error) {
	raw := r.Header.Get(auth.HeaderAddress)
	if raw == "" {
		return "", fmt.Errorf("%w: %s header required", auth.ErrMissingCredentials, auth.HeaderAddress)
	}
	return model.ParseAddress(raw)
})
