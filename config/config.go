package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	Security       SecurityConfig       `mapstructure:"security"`
	Log            LogConfig            `mapstructure:"log"`
	Storage        StorageConfig        `mapstructure:"storage"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	Campaigns      CampaignsConfig      `mapstructure:"campaigns"`
	Promotions     PromotionsConfig     `mapstructure:"promotions"`
	Sweeper        SweeperConfig        `mapstructure:"sweeper"`
	Withdrawal     WithdrawalConfig     `mapstructure:"withdrawal"`
	Gateway        GatewayConfig        `mapstructure:"gateway"`
	ProofValidator ProofValidatorConfig `mapstructure:"proof_validator"`
	Notifications  NotificationsConfig  `mapstructure:"notifications"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type SecurityConfig struct {
	// EncryptionKey is a 32-byte hex key sealing bank account numbers at rest.
	// Empty stores them in plaintext.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int64         `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type CampaignsConfig struct {
	RequireApproval bool `mapstructure:"require_approval"`
}

type PromotionsConfig struct {
	SubmissionWindow       time.Duration `mapstructure:"submission_window"`
	StrictSubmissionWindow bool          `mapstructure:"strict_submission_window"`
	StrictWindowLength     time.Duration `mapstructure:"strict_window_length"`
	UPIAttempts            int           `mapstructure:"upi_attempts"`
}

type SweeperConfig struct {
	HourlyInterval time.Duration `mapstructure:"hourly_interval"`
	DailyInterval  time.Duration `mapstructure:"daily_interval"`
	HourlyLookback time.Duration `mapstructure:"hourly_lookback"`
	CleanupAge     time.Duration `mapstructure:"cleanup_age"`
	BatchSize      int           `mapstructure:"batch_size"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	RunOnStart     bool          `mapstructure:"run_on_start"`
	// Embedded runs the scheduler inside the API process instead of cmd/worker.
	Embedded bool `mapstructure:"embedded"`
}

type WithdrawalConfig struct {
	FeeRate        string        `mapstructure:"fee_rate"` // decimal string, e.g. "0.015"
	MinFee         int64         `mapstructure:"min_fee"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ProofValidatorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type NotificationsConfig struct {
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	RedisPubSub   bool   `mapstructure:"redis_pubsub"`

	// Timeout bounds one webhook delivery attempt.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded into the environment first.
// Environment variables override file values. Prefix: SPM_ (Status Promo Marketplace).
// Nested keys use underscore: SPM_DATABASE_HOST, SPM_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "status_promo")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "status-promo-auth")
	v.SetDefault("security.encryption_key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("storage.driver", StoragePostgres)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 120)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("campaigns.require_approval", false)
	v.SetDefault("promotions.submission_window", "24h")
	v.SetDefault("promotions.strict_submission_window", false)
	v.SetDefault("promotions.strict_window_length", "30m")
	v.SetDefault("promotions.upi_attempts", 10)
	v.SetDefault("sweeper.hourly_interval", "1h")
	v.SetDefault("sweeper.daily_interval", "24h")
	v.SetDefault("sweeper.hourly_lookback", "25h")
	v.SetDefault("sweeper.cleanup_age", "48h")
	v.SetDefault("sweeper.batch_size", 500)
	v.SetDefault("sweeper.lock_ttl", "10m")
	v.SetDefault("sweeper.run_on_start", true)
	v.SetDefault("sweeper.embedded", false)
	v.SetDefault("withdrawal.fee_rate", "0.015")
	v.SetDefault("withdrawal.min_fee", 100)
	v.SetDefault("withdrawal.idempotency_ttl", "24h")
	v.SetDefault("gateway.base_url", "http://localhost:9100")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.timeout", "30s")
	v.SetDefault("proof_validator.enabled", false)
	v.SetDefault("proof_validator.base_url", "")
	v.SetDefault("proof_validator.api_key", "")
	v.SetDefault("proof_validator.timeout", "20s")
	v.SetDefault("notifications.webhook_url", "")
	v.SetDefault("notifications.webhook_secret", "")
	v.SetDefault("notifications.redis_pubsub", true)
	v.SetDefault("notifications.timeout", "10s")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SPM_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SPM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the binaries cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	switch c.Storage.Driver {
	case StoragePostgres, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage.Driver))
	}
	if c.Security.EncryptionKey != "" && len(c.Security.EncryptionKey) != 64 {
		errs = append(errs, errors.New("security.encryption_key must be 64 hex characters"))
	}
	if c.ProofValidator.Enabled && c.ProofValidator.BaseURL == "" {
		errs = append(errs, errors.New("proof_validator.base_url is required when enabled"))
	}
	if c.Notifications.WebhookURL != "" && c.Notifications.WebhookSecret == "" {
		errs = append(errs, errors.New("notifications.webhook_secret is required with a webhook url"))
	}
	return errors.Join(errs...)
}
