package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/rickgao/nft-market/internal/config"
	"github.com/rickgao/nft-market/internal/model"
)

const testYAML = `
instance:
  id: test
server:
  sandbox: true
market:
  address: "0x00000000000000000000000000000000000000f0"
  fee_recipient: "0x00000000000000000000000000000000000000f9"
`

func testConfig(t *testing.T) *config.MarketdConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marketd.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	return cfg
}

func TestRegistryConfig(t *testing.T) {
	cfg := testConfig(t)

	got, err := registryConfig(cfg.Market)
	if err != nil {
		t.Fatalf("registryConfig() error = %v", err)
	}
	if got.MinPrice.String() != "1000000000000000000" {
		t.Errorf("MinPrice = %s, want 1e18", got.MinPrice)
	}
	if got.MaxPrice.String() != "100000000000000000000000000" {
		t.Errorf("MaxPrice = %s, want 1e26", got.MaxPrice)
	}
	if got.FeeNumerator != 5 || got.FeeDenominator != 1000 {
		t.Errorf("fee = %d/%d, want 5/1000", got.FeeNumerator, got.FeeDenominator)
	}
	if got.FeeRecipient != model.Address(cfg.Market.FeeRecipient) {
		t.Errorf("FeeRecipient = %s, want %s", got.FeeRecipient, cfg.Market.FeeRecipient)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record logged at warn level: %s", out)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, out)
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Errorf("record = %v, want msg=shown k=v", rec)
	}
}

func TestNewAuthenticator_Disabled(t *testing.T) {
	a, err := newAuthenticator(config.AuthConfig{}, slog.Default())
	if err != nil {
		t.Fatalf("newAuthenticator() error = %v", err)
	}

	r := httptest.NewRequest("GET", "/v1/listings", nil)
	r.Header.Set("MARKET-ACCESS-ADDRESS", "0x00000000000000000000000000000000000000A1")
	got, err := a.Authenticate(r)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got != "0x00000000000000000000000000000000000000a1" {
		t.Errorf("Authenticate() = %s, want lowercased address", got)
	}
}

func TestNewAuthenticator_MissingKey(t *testing.T) {
	_, err := newAuthenticator(config.AuthConfig{
		Enabled: true,
		Callers: []config.CallerConfig{{
			Address:       "0x00000000000000000000000000000000000000a1",
			PublicKeyPath: "/nonexistent.pem",
		}},
	}, slog.Default())
	if err == nil {
		t.Error("newAuthenticator() error = nil, want error for missing key file")
	}
}

func TestBuild_InMemory(t *testing.T) {
	cfg := testConfig(t)

	a, err := build(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	defer a.close()

	if len(a.sinks) != 1 {
		t.Errorf("len(sinks) = %d, want 1 (feed only)", len(a.sinks))
	}

	srv := httptest.NewServer(a.server.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET /v1/stats failed: %v", err)
	}
	defer resp.Body.Close()

	var stats map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	for _, key := range []string{"registry", "sinks", "feed"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("stats missing %q", key)
		}
	}
	if _, ok := stats["journal"]; ok {
		t.Error("stats has journal with database disabled")
	}
}

func TestBuild_RedisPurgesStaleListings(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("listing:0x0000000000000000000000000000000000000aaa:1", "seller", "0x00000000000000000000000000000000000000a1")

	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	a, err := build(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	defer a.close()

	if len(a.sinks) != 2 {
		t.Errorf("len(sinks) = %d, want 2 (feed and redis)", len(a.sinks))
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("keys after build = %v, want none", keys)
	}
}
