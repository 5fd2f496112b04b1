// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/orochi-outreach/utils"
	"github.com/joho/godotenv"
)

// Config holds all configuration of the orchestrator host process
type Config struct {
	Database     DatabaseConfig     `json:"database"`
	Server       ServerConfig       `json:"server"`
	JWT          JWTConfig          `json:"jwt"`
	Operators    []OperatorConfig   `json:"-"`
	Logging      LoggingConfig      `json:"logging"`
	Metrics      MetricsConfig      `json:"metrics"`
	Cache        CacheConfig        `json:"cache"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	SMS          SMSConfig          `json:"sms"`
	Email        EmailConfig        `json:"email"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

// DSN is the libpq connection string shared by gorm and the migration runner
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

// OperatorConfig is one admin API user; PasswordHash is a bcrypt hash
type OperatorConfig struct {
	Username     string
	PasswordHash string
}

type LoggingConfig struct {
	Dir        string `json:"dir"`
	File       string `json:"file"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool   `json:"enabled"`
	RedisURL    string `json:"redis_url"`
	RedisDB     int    `json:"redis_db"`
	RedisPrefix string `json:"redis_prefix"`
}

type OrchestratorConfig struct {
	Enabled                bool          `json:"enabled"`
	OwnerID                string        `json:"owner_id"`
	ChannelProvider        string        `json:"channel_provider"` // proof, sms, email
	TickInterval           time.Duration `json:"tick_interval"`
	LeaseTTL               time.Duration `json:"lease_ttl"`
	TickTimeout            time.Duration `json:"tick_timeout"`
	SendTimeout            time.Duration `json:"send_timeout"`
	BatchSize              int           `json:"batch_size"`
	RetryBaseDelay         time.Duration `json:"retry_base_delay"`
	MaxRetries             int           `json:"max_retries"`
	MaxConcurrentCampaigns int           `json:"max_concurrent_campaigns"`
	DecisionSchedule       string        `json:"decision_schedule"`
	MinSampleSize          int           `json:"min_sample_size"`
	ReplyRateThreshold     float64       `json:"reply_rate_threshold"`
	MaxBounceRate          float64       `json:"max_bounce_rate"`
}

type SMSConfig struct {
	ProviderDomain string        `json:"provider_domain"`
	APIKey         string        `json:"api_key"`
	SourceNumber   string        `json:"source_number"`
	RetryCount     int           `json:"retry_count"`
	ValidityPeriod int           `json:"validity_period"`
	Timeout        time.Duration `json:"timeout"`
}

// Endpoint is the send URL; a domain without scheme is served over https
func (s SMSConfig) Endpoint() string {
	base := s.ProviderDomain
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/") + "/api/v3.0.1/send"
}

type EmailConfig struct {
	Region           string `json:"region"`
	FromEmail        string `json:"from_email"`
	ConfigurationSet string `json:"configuration_set"`
}

const (
	ChannelProviderProof = "proof"
	ChannelProviderSMS   = "sms"
	ChannelProviderEmail = "email"
)

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	operators, err := parseOperators(getEnvString("OPERATORS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "outreach"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", time.Second),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 8*1024*1024),
			AllowedOrigins:  getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", utils.OperatorTokenTTL),
			Issuer:         getEnvString("JWT_ISSUER", "orochi-outreach"),
			Audience:       getEnvString("JWT_AUDIENCE", "orochi-outreach-admin"),
		},
		Operators: operators,
		Logging: LoggingConfig{
			Dir:        getEnvString("LOG_DIR", "logs"),
			File:       getEnvString("LOG_FILE", "orchestrator.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", false),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "outreach"),
		},
		Orchestrator: OrchestratorConfig{
			Enabled:                getEnvBool("ORCH_ENABLED", true),
			OwnerID:                getEnvString("ORCH_OWNER_ID", ""),
			ChannelProvider:        getEnvString("ORCH_CHANNEL_PROVIDER", ChannelProviderProof),
			TickInterval:           getEnvDuration("ORCH_TICK_INTERVAL", utils.DefaultTickInterval),
			LeaseTTL:               getEnvDuration("ORCH_LEASE_TTL", utils.DefaultLeaseTTL),
			TickTimeout:            getEnvDuration("ORCH_TICK_TIMEOUT", utils.DefaultTickTimeout),
			SendTimeout:            getEnvDuration("ORCH_SEND_TIMEOUT", utils.DefaultSendTimeout),
			BatchSize:              getEnvInt("ORCH_BATCH_SIZE", utils.DefaultBatchSize),
			RetryBaseDelay:         getEnvDuration("ORCH_RETRY_BASE_DELAY", utils.DefaultRetryBase),
			MaxRetries:             getEnvInt("ORCH_MAX_RETRIES", utils.DefaultMaxRetries),
			MaxConcurrentCampaigns: getEnvInt("ORCH_MAX_CONCURRENT_CAMPAIGNS", 8),
			DecisionSchedule:       getEnvString("ORCH_DECISION_SCHEDULE", utils.DefaultDecisionCron),
			MinSampleSize:          getEnvInt("ORCH_MIN_SAMPLE_SIZE", utils.DefaultMinSampleSize),
			ReplyRateThreshold:     getEnvFloat("ORCH_REPLY_RATE_THRESHOLD", 0.01),
			MaxBounceRate:          getEnvFloat("ORCH_MAX_BOUNCE_RATE", 0.1),
		},
		SMS: SMSConfig{
			ProviderDomain: getEnvString("SMS_PROVIDER_DOMAIN", ""),
			APIKey:         getEnvString("SMS_API_KEY", ""),
			SourceNumber:   getEnvString("SMS_SOURCE_NUMBER", ""),
			RetryCount:     getEnvInt("SMS_RETRY_COUNT", 0),
			ValidityPeriod: getEnvInt("SMS_VALIDITY_PERIOD", 300),
			Timeout:        getEnvDuration("SMS_TIMEOUT", 30*time.Second),
		},
		Email: EmailConfig{
			Region:           getEnvString("SES_REGION", "us-east-1"),
			FromEmail:        getEnvString("SES_FROM_EMAIL", ""),
			ConfigurationSet: getEnvString("SES_CONFIGURATION_SET", ""),
		},
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile loads variables from path when it exists; variables already set win
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// parseOperators reads "user:bcrypt-hash" pairs separated by commas
func parseOperators(raw string) ([]OperatorConfig, error) {
	var out []OperatorConfig
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		username, hash, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(username) == "" || strings.TrimSpace(hash) == "" {
			return nil, fmt.Errorf("OPERATORS entry %q must be user:bcrypt-hash", item)
		}
		out = append(out, OperatorConfig{Username: strings.TrimSpace(username), PasswordHash: strings.TrimSpace(hash)})
	}
	return out, nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateConfig validates the configuration and reports every problem at once
func ValidateConfig(cfg *Config) error {
	var errs []string

	if cfg.Database.Host == "" {
		errs = append(errs, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errs = append(errs, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errs = append(errs, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errs = append(errs, "DB_USER is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}

	if len(cfg.Operators) > 0 {
		if len(cfg.JWT.SecretKey) < 32 {
			errs = append(errs, "JWT_SECRET_KEY must be at least 32 characters long when OPERATORS is set")
		}
		if cfg.JWT.AccessTokenTTL <= 0 {
			errs = append(errs, "JWT_ACCESS_TOKEN_TTL must be positive")
		}
	}

	o := cfg.Orchestrator
	if o.TickInterval <= 0 {
		errs = append(errs, "ORCH_TICK_INTERVAL must be positive")
	}
	if o.LeaseTTL <= 0 {
		errs = append(errs, "ORCH_LEASE_TTL must be positive")
	}
	if o.TickTimeout <= 0 || o.TickTimeout >= o.LeaseTTL {
		errs = append(errs, "ORCH_TICK_TIMEOUT must be positive and shorter than ORCH_LEASE_TTL")
	}
	if o.SendTimeout <= 0 {
		errs = append(errs, "ORCH_SEND_TIMEOUT must be positive")
	}
	if o.BatchSize <= 0 {
		errs = append(errs, "ORCH_BATCH_SIZE must be positive")
	}
	if o.RetryBaseDelay <= 0 {
		errs = append(errs, "ORCH_RETRY_BASE_DELAY must be positive")
	}
	if o.MaxRetries < 0 {
		errs = append(errs, "ORCH_MAX_RETRIES must not be negative")
	}
	if o.MaxConcurrentCampaigns <= 0 {
		errs = append(errs, "ORCH_MAX_CONCURRENT_CAMPAIGNS must be positive")
	}
	if o.MinSampleSize <= 0 {
		errs = append(errs, "ORCH_MIN_SAMPLE_SIZE must be positive")
	}
	if o.ReplyRateThreshold < 0 || o.ReplyRateThreshold > 1 {
		errs = append(errs, "ORCH_REPLY_RATE_THRESHOLD must be between 0 and 1")
	}
	if o.MaxBounceRate < 0 || o.MaxBounceRate > 1 {
		errs = append(errs, "ORCH_MAX_BOUNCE_RATE must be between 0 and 1")
	}

	switch o.ChannelProvider {
	case ChannelProviderProof:
	case ChannelProviderSMS:
		if cfg.SMS.ProviderDomain == "" {
			errs = append(errs, "SMS_PROVIDER_DOMAIN is required for the sms channel")
		}
		if cfg.SMS.APIKey == "" {
			errs = append(errs, "SMS_API_KEY is required for the sms channel")
		}
		if cfg.SMS.SourceNumber == "" {
			errs = append(errs, "SMS_SOURCE_NUMBER is required for the sms channel")
		}
	case ChannelProviderEmail:
		if cfg.Email.FromEmail == "" {
			errs = append(errs, "SES_FROM_EMAIL is required for the email channel")
		}
	default:
		errs = append(errs, fmt.Sprintf("ORCH_CHANNEL_PROVIDER must be one of: %v",
			[]string{ChannelProviderProof, ChannelProviderSMS, ChannelProviderEmail}))
	}

	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errs = append(errs, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
