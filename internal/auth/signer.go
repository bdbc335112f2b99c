package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rickgao/nft-market/internal/model"
)

// Header names carried by signed requests.
const (
	HeaderAddress   = "MARKET-ACCESS-ADDRESS"
	HeaderTimestamp = "MARKET-ACCESS-TIMESTAMP"
	HeaderSignature = "MARKET-ACCESS-SIGNATURE"
)

// Credentials identify a caller and sign its requests.
type Credentials struct {
	Address    model.Address
	PrivateKey *rsa.PrivateKey
}

// LoadCredentials loads credentials from an address and private key file path.
func LoadCredentials(address, privateKeyPath string) (*Credentials, error) {
	if address == "" {
		return nil, fmt.Errorf("caller address is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	addr, err := model.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	privateKey, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Credentials{Address: addr, PrivateKey: privateKey}, nil
}

// SignRequest returns the authentication headers for method and path.
func (c *Credentials) SignRequest(method, path string) (http.Header, error) {
	return c.signAt(time.Now(), method, path)
}

// Apply signs req in place using its method and URL path.
func (c *Credentials) Apply(req *http.Request) error {
	headers, err := c.SignRequest(req.Method, req.URL.Path)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	return nil
}

func (c *Credentials) signAt(ts time.Time, method, path string) (http.Header, error) {
	timestampMs := ts.UnixMilli()

	hashed := sha256.Sum256([]byte(signingMessage(timestampMs, method, path)))
	signature, err := rsa.SignPSS(
		rand.Reader,
		c.PrivateKey,
		crypto.SHA256,
		hashed[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash},
	)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}

	h := http.Header{}
	h.Set(HeaderAddress, c.Address.String())
	h.Set(HeaderTimestamp, strconv.FormatInt(timestampMs, 10))
	h.Set(HeaderSignature, base64.StdEncoding.EncodeToString(signature))
	return h, nil
}

// signingMessage is timestamp_ms + METHOD + path.
func signingMessage(timestampMs int64, method, path string) string {
	return strconv.FormatInt(timestampMs, 10) + method + path
}
