package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort             = 8080
	DefaultReadTimeout      = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultMinPrice         = "1"
	DefaultMaxPrice         = "100000000"
	DefaultFeeNumerator     = 5
	DefaultFeeDenominator   = 1000
	DefaultEventBufferSize  = 1000
	DefaultMaxSkew          = 30 * time.Second
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisChannel     = "market.events"
	DefaultListingPrefix    = "listing:"
	DefaultKafkaTopic       = "market-events"
	DefaultKafkaTimeout     = 10 * time.Second
	DefaultBatchSize        = 500
	DefaultFlushInterval    = 1 * time.Second
	DefaultBufferSize       = 10000
	DefaultPingInterval     = 15 * time.Second
	DefaultFeedWriteTimeout = 5 * time.Second
	DefaultClientBuffer     = 256
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

func (c *MarketdConfig) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Market defaults (fee recipient and address have none)
	if c.Market.MinPrice == "" {
		c.Market.MinPrice = DefaultMinPrice
	}
	if c.Market.MaxPrice == "" {
		c.Market.MaxPrice = DefaultMaxPrice
	}
	if c.Market.FeeDenominator == 0 {
		c.Market.FeeDenominator = DefaultFeeDenominator
		if c.Market.FeeNumerator == 0 {
			c.Market.FeeNumerator = DefaultFeeNumerator
		}
	}
	if c.Market.EventBufferSize == 0 {
		c.Market.EventBufferSize = DefaultEventBufferSize
	}

	// Auth defaults
	if c.Auth.MaxSkew == 0 {
		c.Auth.MaxSkew = DefaultMaxSkew
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = DefaultRedisChannel
	}
	if c.Redis.ListingPrefix == "" {
		c.Redis.ListingPrefix = DefaultListingPrefix
	}

	// Kafka defaults
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultKafkaTopic
	}
	if c.Kafka.WriteTimeout == 0 {
		c.Kafka.WriteTimeout = DefaultKafkaTimeout
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}

	// Feed defaults
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultFeedWriteTimeout
	}
	if c.Feed.ClientBuffer == 0 {
		c.Feed.ClientBuffer = DefaultClientBuffer
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
