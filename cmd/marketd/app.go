package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/nft-market/internal/auth"
	"github.com/rickgao/nft-market/internal/config"
	"github.com/rickgao/nft-market/internal/custody"
	"github.com/rickgao/nft-market/internal/database"
	"github.com/rickgao/nft-market/internal/dispatch"
	"github.com/rickgao/nft-market/internal/feed"
	"github.com/rickgao/nft-market/internal/journal"
	"github.com/rickgao/nft-market/internal/ledger"
	"github.com/rickgao/nft-market/internal/market"
	"github.com/rickgao/nft-market/internal/model"
	"github.com/rickgao/nft-market/internal/publish"
	"github.com/rickgao/nft-market/internal/server"
)

// app holds every component marketd runs.
type app struct {
	registry   market.Registry
	assets     *custody.Registry
	ledger     *ledger.Ledger
	hub        *feed.Hub
	journal    *journal.Writer
	sinks      []dispatch.Sink
	dispatcher *dispatch.Dispatcher
	server     *server.Server

	pool  *pgxpool.Pool
	redis *redis.Client
}

// build wires the service from cfg. Optional sinks are connected and
// checked here so misconfiguration fails at startup.
func build(ctx context.Context, cfg *config.MarketdConfig, logger *slog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	marketCfg, err := registryConfig(cfg.Market)
	if err != nil {
		return nil, err
	}

	marketAddr := model.MustParseAddress(cfg.Market.Address)
	a.assets = custody.NewRegistry(marketAddr, logger.With("component", "custody"))
	a.ledger = ledger.New(logger.With("component", "ledger"))

	a.registry, err = market.NewRegistry(marketCfg, a.assets, a.ledger, logger.With("component", "registry"))
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}
	logger.Info("listing registry ready",
		"market", marketAddr,
		"fee_recipient", marketCfg.FeeRecipient,
		"fee", fmt.Sprintf("%d/%d", marketCfg.FeeNumerator, marketCfg.FeeDenominator),
		"min_price", marketCfg.MinPrice,
		"max_price", marketCfg.MaxPrice,
	)

	checks := make(map[string]server.HealthCheck)

	a.hub = feed.NewHub(feed.Config{
		PingInterval: cfg.Feed.PingInterval,
		WriteTimeout: cfg.Feed.WriteTimeout,
		ClientBuffer: cfg.Feed.ClientBuffer,
	}, logger.With("component", "feed"))
	a.sinks = append(a.sinks, a.hub)

	if cfg.Database.Enabled {
		pg := cfg.Database.Postgres
		logger.Info("connecting to database", "host", pg.Host, "port", pg.Port, "database", pg.Name)

		a.pool, err = database.Connect(ctx, pg, "marketd-"+cfg.Instance.ID)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := journal.EnsureSchema(ctx, a.pool); err != nil {
			return nil, err
		}
		a.journal = journal.NewWriter(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		}, a.pool, logger.With("component", "journal"))
		a.sinks = append(a.sinks, a.journal)
		checks["postgres"] = a.pool.Ping
		logger.Info("database connected")
	}

	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		pub := publish.NewRedisPublisher(a.redis, publish.RedisConfig{
			Channel:       cfg.Redis.Channel,
			ListingPrefix: cfg.Redis.ListingPrefix,
		}, logger.With("component", "redis"))
		if _, err := pub.PurgeListings(ctx); err != nil {
			return nil, err
		}
		a.sinks = append(a.sinks, pub)
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
		logger.Info("redis connected", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	if cfg.Kafka.Enabled {
		w := publish.NewKafkaWriter(publish.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		a.sinks = append(a.sinks, publish.NewKafkaPublisher(w, logger.With("component", "kafka")))
		logger.Info("kafka publisher configured", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	a.dispatcher = dispatch.New(dispatch.Config{
		MaxQueueSize: cfg.Journal.BufferSize,
	}, a.registry.Events(), a.sinks, logger.With("component", "dispatch"))

	authenticator, err := newAuthenticator(cfg.Auth, logger)
	if err != nil {
		return nil, err
	}

	opts := server.Options{
		Registry: a.registry,
		Auth:     authenticator,
		Feed:     a.hub,
		Checks:   checks,
		Extra:    a.stats,
		Logger:   logger.With("component", "http"),
	}
	if cfg.Server.Sandbox {
		logger.Warn("sandbox endpoints enabled")
		opts.Sandbox = &server.Sandbox{Assets: a.assets, Ledger: a.ledger}
	}
	a.server = server.New(opts)

	ok = true
	return a, nil
}

// stats adds pipeline counters to /v1/stats.
func (a *app) stats() map[string]any {
	out := map[string]any{
		"sinks": a.dispatcher.Stats(),
		"feed":  a.hub.Stats(),
	}
	if a.journal != nil {
		out["journal"] = a.journal.Stats()
	}
	return out
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// registryConfig converts the market section into registry settings.
func registryConfig(m config.MarketConfig) (market.Config, error) {
	minPrice, maxPrice, err := m.Prices()
	if err != nil {
		return market.Config{}, err
	}
	recipient, err := model.ParseAddress(m.FeeRecipient)
	if err != nil {
		return market.Config{}, fmt.Errorf("market.fee_recipient: %w", err)
	}
	return market.Config{
		MinPrice:        minPrice,
		MaxPrice:        maxPrice,
		FeeNumerator:    m.FeeNumerator,
		FeeDenominator:  m.FeeDenominator,
		FeeRecipient:    recipient,
		EventBufferSize: m.EventBufferSize,
	}, nil
}

func newAuthenticator(cfg config.AuthConfig, logger *slog.Logger) (server.Authenticator, error) {
	if !cfg.Enabled {
		logger.Warn("request signing disabled, trusting address header")
		return server.HeaderAuthenticator, nil
	}

	v := auth.NewVerifier(cfg.MaxSkew)
	for _, c := range cfg.Callers {
		if err := v.RegisterFile(c.Address, c.PublicKeyPath); err != nil {
			return nil, fmt.Errorf("register caller: %w", err)
		}
	}
	logger.Info("request signing enabled", "callers", len(cfg.Callers), "max_skew", cfg.MaxSkew)
	return server.AuthenticatorFunc(v.Verify), nil
}
