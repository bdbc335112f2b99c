package auth

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rickgao/nft-market/internal/model"
)

var (
	// ErrMissingCredentials is returned when a required header is absent.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrUnknownCaller is returned when no key is registered for the address.
	ErrUnknownCaller = errors.New("unknown caller")

	// ErrStaleTimestamp is returned when the timestamp is outside the skew window.
	ErrStaleTimestamp = errors.New("timestamp outside allowed window")

	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("bad signature")
)

// Verifier checks signed requests against registered public keys.
type Verifier struct {
	maxSkew time.Duration
	now     func() time.Time

	mu   sync.RWMutex
	keys map[model.Address]*rsa.PublicKey
}

// NewVerifier creates a verifier accepting timestamps within maxSkew of now.
func NewVerifier(maxSkew time.Duration) *Verifier {
	return &Verifier{
		maxSkew: maxSkew,
		now:     time.Now,
		keys:    make(map[model.Address]*rsa.PublicKey),
	}
}

// Register adds or replaces the key for addr.
func (v *Verifier) Register(addr model.Address, key *rsa.PublicKey) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[addr] = key
}

// RegisterFile loads a PEM public key for address.
func (v *Verifier) RegisterFile(address, path string) error {
	addr, err := model.ParseAddress(address)
	if err != nil {
		return err
	}
	key, err := LoadPublicKey(path)
	if err != nil {
		return fmt.Errorf("load key for %s: %w", addr, err)
	}
	v.Register(addr, key)
	return nil
}

// Verify authenticates r and returns the caller's address.
func (v *Verifier) Verify(r *http.Request) (model.Address, error) {
	rawAddr := r.Header.Get(HeaderAddress)
	rawTs := r.Header.Get(HeaderTimestamp)
	rawSig := r.Header.Get(HeaderSignature)
	if rawAddr == "" || rawTs == "" || rawSig == "" {
		return "", ErrMissingCredentials
	}

	addr, err := model.ParseAddress(rawAddr)
	if err != nil {
		return "", err
	}

	v.mu.RLock()
	key, ok := v.keys[addr]
	v.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCaller, addr)
	}

	timestampMs, err := strconv.ParseInt(rawTs, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad timestamp %q", ErrMissingCredentials, rawTs)
	}
	skew := v.now().Sub(time.UnixMilli(timestampMs))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return "", fmt.Errorf("%w: skew %s", ErrStaleTimestamp, skew)
	}

	sig, err := base64.StdEncoding.DecodeString(rawSig)
	if err != nil {
		return "", fmt.Errorf("%w: not base64", ErrBadSignature)
	}

	hashed := sha256.Sum256([]byte(signingMessage(timestampMs, r.Method, r.URL.Path)))
	err = rsa.VerifyPSS(key, crypto.SHA256, hashed[:], sig,
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	if err != nil {
		return "", ErrBadSignature
	}
	return addr, nil
}
