package config

import "time"

// MarketdConfig is the root configuration for a marketd instance.
type MarketdConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Market   MarketConfig   `yaml:"market"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Journal  JournalConfig  `yaml:"journal"`
	Feed     FeedConfig     `yaml:"feed"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this marketd.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Sandbox         bool          `yaml:"sandbox"` // Expose mint/approve/deposit endpoints
}

// MarketConfig holds the fixed settlement parameters.
type MarketConfig struct {
	Address         string `yaml:"address"`   // Custody identity of the marketplace
	MinPrice        string `yaml:"min_price"` // Whole units, inclusive
	MaxPrice        string `yaml:"max_price"` // Whole units, inclusive
	FeeNumerator    int64  `yaml:"fee_numerator"`
	FeeDenominator  int64  `yaml:"fee_denominator"`
	FeeRecipient    string `yaml:"fee_recipient"`
	EventBufferSize int    `yaml:"event_buffer_size"`
}

// AuthConfig holds request signing settings.
type AuthConfig struct {
	Enabled bool           `yaml:"enabled"`
	MaxSkew time.Duration  `yaml:"max_skew"`
	Callers []CallerConfig `yaml:"callers"`
}

// CallerConfig registers a caller's RSA public key.
type CallerConfig struct {
	Address       string `yaml:"address"`
	PublicKeyPath string `yaml:"public_key_path"` // PEM, PKIX or PKCS#1
}

// DatabaseConfig holds the PostgreSQL connection for the event journal.
type DatabaseConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the event publisher settings.
type RedisConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	Channel       string `yaml:"channel"`
	ListingPrefix string `yaml:"listing_prefix"`
}

// KafkaConfig holds the event stream settings.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// JournalConfig holds batch writer settings.
type JournalConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// FeedConfig holds WebSocket feed settings.
type FeedConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ClientBuffer int           `yaml:"client_buffer"`
}

// LogConfig holds slog settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
