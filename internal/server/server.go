package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/rickgao/nft-market/internal/custody"
	"github.com/rickgao/nft-market/internal/ledger"
	"github.com/rickgao/nft-market/internal/market"
	"github.com/rickgao/nft-market/internal/version"
)

const maxBodyBytes = 1 << 20

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Sandbox exposes the in-memory collaborators for local testing.
type Sandbox struct {
	Assets *custody.Registry
	Ledger *ledger.Ledger
}

// Options configures a Server.
type Options struct {
	Registry market.Registry
	Auth     Authenticator // nil means HeaderAuthenticator
	Sandbox  *Sandbox      // nil disables /v1/sandbox
	Feed     http.Handler  // nil disables /v1/feed
	Checks   map[string]HealthCheck
	Extra    func() map[string]any // merged into /v1/stats
	Logger   *slog.Logger
}

// Server serves the marketplace HTTP API.
type Server struct {
	registry market.Registry
	auth     Authenticator
	sandbox  *Sandbox
	feed     http.Handler
	checks   map[string]HealthCheck
	extra    func() map[string]any
	logger   *slog.Logger
	started  time.Time
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Auth == nil {
		opts.Auth = HeaderAuthenticator
	}
	return &Server{
		registry: opts.Registry,
		auth:     opts.Auth,
		sandbox:  opts.Sandbox,
		feed:     opts.Feed,
		checks:   opts.Checks,
		extra:    opts.Extra,
		logger:   opts.Logger,
		started:  time.Now(),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/stats", s.handleStats)

	mux.HandleFunc("POST /v1/listings", s.handleCreate)
	mux.HandleFunc("GET /v1/listings", s.handleList)
	mux.HandleFunc("GET /v1/listings/{contract}/{id}", s.handleGet)
	mux.HandleFunc("DELETE /v1/listings/{contract}/{id}", s.handleRemove)
	mux.HandleFunc("POST /v1/listings/{contract}/{id}/buy", s.handleBuy)

	if s.feed != nil {
		mux.Handle("GET /v1/feed", s.feed)
	}
	if s.sandbox != nil {
		s.sandboxRoutes(mux)
	}

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes through to the underlying writer for WebSocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		Version    string         `json:"version"`
		Uptime     string         `json:"uptime"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Version:    version.Version,
		Uptime:     time.Since(s.started).Truncate(time.Second).String(),
		Components: make(map[string]any),
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			health.Status = "unhealthy"
			health.Components[name] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
			continue
		}
		health.Components[name] = "connected"
	}

	health.Components["registry"] = map[string]any{
		"listings": s.registry.Stats().Active,
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"registry": s.registry.Stats(),
	}
	if s.extra != nil {
		for k, v := range s.extra() {
			out[k] = v
		}
	}
	writeJSON(w, http.StatusOK, out)
}
