package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/auth"
	"github.com/rickgao/nft-market/internal/model"
)

var (
	contract = model.MustParseAddress("0x0000000000000000000000000000000000000aaa")
	seller   = model.MustParseAddress("0x00000000000000000000000000000000000000a1")
)

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://market.example.com/")

		if c.baseURL != "https://market.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://market.example.com")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.retryBackoff != time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, time.Second)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with multiple options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		hc := &http.Client{}
		c := NewClient("https://market.example.com",
			WithHTTPClient(hc),
			WithTimeout(15*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithLogger(logger),
			WithCaller(seller),
		)
		if c.httpClient != hc {
			t.Error("custom HTTP client not set")
		}
		if c.httpClient.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 15*time.Second)
		}
		if c.maxRetries != 10 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 10)
		}
		if c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 500*time.Millisecond)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
		if c.caller != seller {
			t.Errorf("caller = %s, want %s", c.caller, seller)
		}
	})
}

func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		tests := []struct {
			err  *APIError
			want string
		}{
			{&APIError{StatusCode: 404, Code: "not_listed", Message: "asset not listed"}, "market api error 404 (not_listed): asset not listed"},
			{&APIError{StatusCode: 502, Message: "Bad Gateway"}, "market api error 502: Bad Gateway"},
		}
		for _, tt := range tests {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tests := []struct {
			code int
			want bool
		}{
			{400, false},
			{404, false},
			{409, false},
			{422, false},
			{429, true},
			{500, true},
			{502, true},
			{503, true},
		}
		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable(%d) = %v, want %v", tt.code, got, tt.want)
			}
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := error(&APIError{StatusCode: 409, Code: "already_listed"})
		if !IsCode(err, "already_listed") {
			t.Error("IsCode(already_listed) = false, want true")
		}
		if IsCode(err, "not_listed") {
			t.Error("IsCode(not_listed) = true, want false")
		}
		if IsCode(errors.New("plain"), "already_listed") {
			t.Error("IsCode(plain error) = true, want false")
		}
	})
}

func TestClient_ParsesErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"code":"wrong_amount","message":"payment does not match price"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, WithCaller(seller))
	_, err := c.BuyListing(context.Background(), contract, "1", decimal.NewFromInt(1))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 422 {
		t.Errorf("StatusCode = %d, want 422", apiErr.StatusCode)
	}
	if apiErr.Code != "wrong_amount" {
		t.Errorf("Code = %q, want wrong_amount", apiErr.Code)
	}
	if apiErr.Message != "payment does not match price" {
		t.Errorf("Message = %q, want server message", apiErr.Message)
	}
}

func TestClient_RetriesReads(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ListingsResponse{Count: 0, Listings: []model.Listing{}})
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(3, time.Millisecond))
	if _, err := c.Listings(context.Background()); err != nil {
		t.Fatalf("Listings() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(2, time.Millisecond))
	_, err := c.Stats(context.Background())
	if err == nil {
		t.Fatal("Stats() error = nil, want error")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 429 {
		t.Errorf("error = %v, want wrapped 429", err)
	}
}

func TestClient_DoesNotRetryMutations(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(5, time.Millisecond), WithCaller(seller))
	if _, err := c.BuyListing(context.Background(), contract, "1", decimal.NewFromInt(1)); err == nil {
		t.Fatal("BuyListing() error = nil, want error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(server.URL, WithRetries(5, time.Hour))
	_, err := c.Listings(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestClient_RequestShape(t *testing.T) {
	type captured struct {
		method, path, caller, contentType string
		body                              map[string]any
	}
	var got captured

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = captured{
			method:      r.Method,
			path:        r.URL.EscapedPath(),
			caller:      r.Header.Get(auth.HeaderAddress),
			contentType: r.Header.Get("Content-Type"),
		}
		data, _ := io.ReadAll(r.Body)
		got.body = nil
		if len(data) > 0 {
			json.Unmarshal(data, &got.body)
		}
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, WithCaller(seller))
	ctx := context.Background()
	price := model.FromWhole(decimal.NewFromInt(1000))

	if _, err := c.CreateListing(ctx, contract, "1", price); err != nil {
		t.Fatalf("CreateListing() error = %v", err)
	}
	if got.method != "POST" || got.path != "/v1/listings" {
		t.Errorf("request = %s %s, want POST /v1/listings", got.method, got.path)
	}
	if got.caller != seller.String() {
		t.Errorf("caller header = %q, want %q", got.caller, seller)
	}
	if got.contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got.contentType)
	}
	if got.body["price"] != price.String() {
		t.Errorf("body price = %v, want %s", got.body["price"], price)
	}

	if err := c.RemoveListing(ctx, contract, "a b"); err != nil {
		t.Fatalf("RemoveListing() error = %v", err)
	}
	if want := "/v1/listings/" + contract.String() + "/a%20b"; got.method != "DELETE" || got.path != want {
		t.Errorf("request = %s %s, want DELETE %s", got.method, got.path, want)
	}
	if got.body != nil {
		t.Errorf("DELETE body = %v, want none", got.body)
	}
}

func TestClient_SignsRequests(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	verifier := auth.NewVerifier(time.Minute)
	verifier.Register(seller, &key.PublicKey)

	var verified model.Address
	var verifyErr error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verified, verifyErr = verifier.Verify(r)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(server.URL, WithSigner(&auth.Credentials{Address: seller, PrivateKey: key}))
	if err := c.RemoveListing(context.Background(), contract, "1"); err != nil {
		t.Fatalf("RemoveListing() error = %v", err)
	}
	if verifyErr != nil {
		t.Fatalf("Verify() error = %v", verifyErr)
	}
	if verified != seller {
		t.Errorf("verified caller = %s, want %s", verified, seller)
	}
}
