package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (e.g. CATALOGSYNC_DATABASE_PASSWORD).
const EnvPrefix = "CATALOGSYNC"

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Idempotency IdempotencyConfig
	Log         LogConfig
	Sync        SyncConfig
	Feed        FeedConfig
	Connector   ConnectorConfig
	AWS         AWSConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Task string // stage or forward
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// IdempotencyConfig selects the trigger token store
type IdempotencyConfig struct {
	Backend string // redis, database, memory
	TTL     time.Duration
}

// SyncConfig holds scheduler settings
type SyncConfig struct {
	MaxHandoffs         int
	SpendFactor         int
	ForwardTarget       string // function invoked once staging completes
	FailureTopic        string // topic receiving run failures
	DefaultAttributeSet string
	DefaultDecode       string
}

// FeedConfig holds feed retrieval settings
type FeedConfig struct {
	HTTPTimeout time.Duration
	UserAgent   string
}

// ConnectorConfig holds destination connector settings
type ConnectorConfig struct {
	BaseURL       string
	Token         string // static token, local runs only
	TokenSecretID string // secret holding the token
	StoreCode     string
	RateLimit     float64 // requests per second
	Burst         int
	Timeout       time.Duration
	Tunnel        TunnelConfig
}

// TunnelConfig holds the optional SSH tunnel to the destination
type TunnelConfig struct {
	Enabled            bool
	Host               string
	Port               int
	User               string
	PrivateKeySecretID string
	RemoteAddr         string // destination address as seen from the bastion
	HostKey            string // authorized_keys line; empty accepts any key
}

// AWSConfig holds AWS client settings
type AWSConfig struct {
	Region          string
	Endpoint        string // override for local stacks
	AccessKeyID     string // static credentials for local stacks; empty uses the default chain
	SecretAccessKey string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	LogsEnabled       bool    // Export logs through the otelzap bridge
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CATALOGSYNC_ prefix (e.g., CATALOGSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/var/task")
	v.AddConfigPath("/etc/catalogsync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Task: v.GetString("app.task"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Idempotency: IdempotencyConfig{
			Backend: v.GetString("idempotency.backend"),
			TTL:     v.GetDuration("idempotency.ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Sync: SyncConfig{
			MaxHandoffs:         v.GetInt("sync.max_handoffs"),
			SpendFactor:         v.GetInt("sync.spend_factor"),
			ForwardTarget:       v.GetString("sync.forward_target"),
			FailureTopic:        v.GetString("sync.failure_topic"),
			DefaultAttributeSet: v.GetString("sync.default_attribute_set"),
			DefaultDecode:       v.GetString("sync.default_decode"),
		},
		Feed: FeedConfig{
			HTTPTimeout: v.GetDuration("feed.http_timeout"),
			UserAgent:   v.GetString("feed.user_agent"),
		},
		Connector: ConnectorConfig{
			BaseURL:       v.GetString("connector.base_url"),
			Token:         v.GetString("connector.token"),
			TokenSecretID: v.GetString("connector.token_secret_id"),
			StoreCode:     v.GetString("connector.store_code"),
			RateLimit:     v.GetFloat64("connector.rate_limit"),
			Burst:         v.GetInt("connector.burst"),
			Timeout:       v.GetDuration("connector.timeout"),
			Tunnel: TunnelConfig{
				Enabled:            v.GetBool("connector.tunnel.enabled"),
				Host:               v.GetString("connector.tunnel.host"),
				Port:               v.GetInt("connector.tunnel.port"),
				User:               v.GetString("connector.tunnel.user"),
				PrivateKeySecretID: v.GetString("connector.tunnel.private_key_secret_id"),
				RemoteAddr:         v.GetString("connector.tunnel.remote_addr"),
				HostKey:            v.GetString("connector.tunnel.host_key"),
			},
		},
		AWS: AWSConfig{
			Region:          v.GetString("aws.region"),
			Endpoint:        v.GetString("aws.endpoint"),
			AccessKeyID:     v.GetString("aws.access_key_id"),
			SecretAccessKey: v.GetString("aws.secret_access_key"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "catalogsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Task == "" {
		cfg.App.Task = "stage"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "catalogsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	// a function instance holds few connections
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 4
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 15
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 5
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Idempotency.Backend == "" {
		cfg.Idempotency.Backend = "database"
	}
	if cfg.Idempotency.TTL == 0 {
		cfg.Idempotency.TTL = 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Sync.MaxHandoffs == 0 {
		cfg.Sync.MaxHandoffs = 100
	}
	if cfg.Sync.SpendFactor == 0 {
		cfg.Sync.SpendFactor = 5
	}
	if cfg.Sync.DefaultAttributeSet == "" {
		cfg.Sync.DefaultAttributeSet = "Default"
	}
	if cfg.Sync.DefaultDecode == "" {
		cfg.Sync.DefaultDecode = "utf-8"
	}
	if cfg.Feed.HTTPTimeout == 0 {
		cfg.Feed.HTTPTimeout = 60 * time.Second
	}
	if cfg.Feed.UserAgent == "" {
		cfg.Feed.UserAgent = "catalogsync/1.0"
	}
	if cfg.Connector.StoreCode == "" {
		cfg.Connector.StoreCode = "all"
	}
	if cfg.Connector.RateLimit == 0 {
		cfg.Connector.RateLimit = 10
	}
	if cfg.Connector.Burst == 0 {
		cfg.Connector.Burst = 5
	}
	if cfg.Connector.Timeout == 0 {
		cfg.Connector.Timeout = 30 * time.Second
	}
	if cfg.Connector.Tunnel.Port == 0 {
		cfg.Connector.Tunnel.Port = 22
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "catalogsync"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.App.Task {
	case "stage", "forward":
	default:
		return fmt.Errorf("app.task must be stage or forward, got %q", c.App.Task)
	}
	switch c.Idempotency.Backend {
	case "redis", "database", "memory":
	default:
		return fmt.Errorf("idempotency.backend must be redis, database or memory, got %q", c.Idempotency.Backend)
	}
	if c.Sync.MaxHandoffs < 0 {
		return fmt.Errorf("sync.max_handoffs cannot be negative")
	}
	if c.Sync.SpendFactor < 0 {
		return fmt.Errorf("sync.spend_factor cannot be negative")
	}
	if c.Connector.RateLimit < 0 {
		return fmt.Errorf("connector.rate_limit cannot be negative")
	}
	if c.Connector.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Connector.BaseURL); err != nil {
			return fmt.Errorf("connector.base_url is invalid: %w", err)
		}
	}
	if c.Connector.Tunnel.Enabled {
		if c.Connector.Tunnel.Host == "" || c.Connector.Tunnel.User == "" {
			return fmt.Errorf("connector.tunnel requires host and user when enabled")
		}
		if c.Connector.Tunnel.RemoteAddr == "" {
			return fmt.Errorf("connector.tunnel.remote_addr is required when the tunnel is enabled")
		}
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Idempotency.Backend == "memory" {
			return fmt.Errorf("idempotency.backend cannot be memory in production (tokens must survive restarts)")
		}
		if c.Sync.FailureTopic == "" {
			return fmt.Errorf("sync.failure_topic is required in production")
		}
		if c.App.Task == "stage" && c.Sync.ForwardTarget == "" {
			return fmt.Errorf("sync.forward_target is required for the stage task in production")
		}
		if c.Connector.Token != "" {
			return fmt.Errorf("connector.token must not be set in production (use connector.token_secret_id)")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IsProduction reports whether the app runs in production
func (a *AppConfig) IsProduction() bool {
	return a.Env == "production"
}
