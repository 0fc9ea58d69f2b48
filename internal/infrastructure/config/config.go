package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Supabase  SupabaseConfig
	PayFast   PayFastConfig
	Email     EmailConfig
	Cron      CronConfig
	Reset     ResetConfig
	N8N       N8NConfig
	Storage   StorageConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name      string
	Env       string
	Port      string
	PublicURL string // NEXT_PUBLIC_APP_URL, used in email links and PayFast return URLs
}

// IsProduction reports whether the app runs in production
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
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
	ConnMaxLifetime int // seconds
	ConnMaxIdleTime int // seconds
}

// RedisConfig holds Redis connection settings. An empty host disables Redis
// and in-memory stores are used instead.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SupabaseConfig holds the hosted backend settings
type SupabaseConfig struct {
	URL            string // NEXT_PUBLIC_SUPABASE_URL
	ServiceRoleKey string // SUPABASE_SERVICE_ROLE_KEY
	JWTSecret      string // verifies user access tokens (HS256)
}

// PayFastConfig holds PayFast merchant settings
type PayFastConfig struct {
	MerchantID    string
	MerchantKey   string // PAYFAST_MERCHANT_KEY
	Passphrase    string
	Sandbox       bool
	NotifyURL     string
	ReturnURL     string
	CancelURL     string
	PremiumPrice  string
	BusinessPrice string
}

// EmailConfig holds transactional email provider settings
type EmailConfig struct {
	ResendAPIKey   string // RESEND_API_KEY
	SendGridAPIKey string // SENDGRID_API_KEY
	FromAddress    string
	FromName       string
	Timeout        time.Duration
	// QueueInterval > 0 enables the in-process queue worker
	QueueInterval time.Duration
	QueueBatch    int
	RetryDelay    time.Duration
}

// CronConfig holds the shared secret for cron-triggered endpoints
type CronConfig struct {
	SecretToken string // CRON_SECRET_TOKEN
}

// ResetConfig holds free-tier content reset settings
type ResetConfig struct {
	Enabled      bool
	IntervalDays int
	RunAt        string // HH:MM, local time
	BulkDelay    time.Duration
	SessionTTL   time.Duration
}

// N8NConfig holds the campaign automation webhook settings
type N8NConfig struct {
	WebhookSecret string
	DueLimit      int
}

// StorageConfig holds object storage settings for gallery images.
// Supabase Storage exposes an S3-compatible endpoint.
type StorageConfig struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// TelemetryConfig holds OpenTelemetry and profiling configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	ProfilerEnabled   bool
	ProfilerAddress   string
}

// envBindings maps config keys to the environment variable names shared
// with the web frontend deployment. They are read without the A2Z_ prefix.
var envBindings = map[string]string{
	"supabase.url":              "NEXT_PUBLIC_SUPABASE_URL",
	"supabase.service_role_key": "SUPABASE_SERVICE_ROLE_KEY",
	"email.resend_api_key":      "RESEND_API_KEY",
	"email.sendgrid_api_key":    "SENDGRID_API_KEY",
	"payfast.merchant_key":      "PAYFAST_MERCHANT_KEY",
	"cron.secret_token":         "CRON_SECRET_TOKEN",
	"app.public_url":            "NEXT_PUBLIC_APP_URL",
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables (A2Z_ prefix, plus the unprefixed names in envBindings)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("A2Z")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "A2Z_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:      v.GetString("app.name"),
			Env:       v.GetString("app.env"),
			Port:      v.GetString("app.port"),
			PublicURL: v.GetString("app.public_url"),
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
		Supabase: SupabaseConfig{
			URL:            v.GetString("supabase.url"),
			ServiceRoleKey: v.GetString("supabase.service_role_key"),
			JWTSecret:      v.GetString("supabase.jwt_secret"),
		},
		PayFast: PayFastConfig{
			MerchantID:    v.GetString("payfast.merchant_id"),
			MerchantKey:   v.GetString("payfast.merchant_key"),
			Passphrase:    v.GetString("payfast.passphrase"),
			Sandbox:       v.GetBool("payfast.sandbox"),
			NotifyURL:     v.GetString("payfast.notify_url"),
			ReturnURL:     v.GetString("payfast.return_url"),
			CancelURL:     v.GetString("payfast.cancel_url"),
			PremiumPrice:  v.GetString("payfast.premium_price"),
			BusinessPrice: v.GetString("payfast.business_price"),
		},
		Email: EmailConfig{
			ResendAPIKey:   v.GetString("email.resend_api_key"),
			SendGridAPIKey: v.GetString("email.sendgrid_api_key"),
			FromAddress:    v.GetString("email.from_address"),
			FromName:       v.GetString("email.from_name"),
			Timeout:        v.GetDuration("email.timeout"),
			QueueInterval:  v.GetDuration("email.queue_interval"),
			QueueBatch:     v.GetInt("email.queue_batch"),
			RetryDelay:     v.GetDuration("email.retry_delay"),
		},
		Cron: CronConfig{
			SecretToken: v.GetString("cron.secret_token"),
		},
		Reset: ResetConfig{
			Enabled:      v.GetBool("reset.enabled"),
			IntervalDays: v.GetInt("reset.interval_days"),
			RunAt:        v.GetString("reset.run_at"),
			BulkDelay:    v.GetDuration("reset.bulk_delay"),
			SessionTTL:   v.GetDuration("reset.session_ttl"),
		},
		N8N: N8NConfig{
			WebhookSecret: v.GetString("n8n.webhook_secret"),
			DueLimit:      v.GetInt("n8n.due_limit"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Bucket:          v.GetString("storage.bucket"),
			Region:          v.GetString("storage.region"),
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			ProfilerEnabled:   v.GetBool("telemetry.profiler_enabled"),
			ProfilerAddress:   v.GetString("telemetry.profiler_address"),
		},
	}

	// reset.enabled defaults to true; viper cannot tell unset from false
	if !v.IsSet("reset.enabled") {
		cfg.Reset.Enabled = true
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
		cfg.App.Name = "a2z-sellr"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.PublicURL == "" {
		cfg.App.PublicURL = "http://localhost:3000"
	}
	cfg.App.PublicURL = strings.TrimRight(cfg.App.PublicURL, "/")
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
		cfg.Database.DBName = "postgres"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 60
	}
	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Email.FromAddress == "" {
		cfg.Email.FromAddress = "hello@a2zsellr.life"
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "A2Z Sellr"
	}
	if cfg.Email.Timeout == 0 {
		cfg.Email.Timeout = 15 * time.Second
	}
	if cfg.Email.QueueBatch == 0 {
		cfg.Email.QueueBatch = 50
	}
	if cfg.Email.RetryDelay == 0 {
		cfg.Email.RetryDelay = 5 * time.Minute
	}
	if cfg.PayFast.PremiumPrice == "" {
		cfg.PayFast.PremiumPrice = "149.00"
	}
	if cfg.PayFast.BusinessPrice == "" {
		cfg.PayFast.BusinessPrice = "299.00"
	}
	if cfg.PayFast.NotifyURL == "" {
		cfg.PayFast.NotifyURL = cfg.App.PublicURL + "/api/payfast/webhook"
	}
	if cfg.PayFast.ReturnURL == "" {
		cfg.PayFast.ReturnURL = cfg.App.PublicURL + "/payment/success"
	}
	if cfg.PayFast.CancelURL == "" {
		cfg.PayFast.CancelURL = cfg.App.PublicURL + "/payment/cancel"
	}
	if cfg.Reset.IntervalDays == 0 {
		cfg.Reset.IntervalDays = 7
	}
	if cfg.Reset.RunAt == "" {
		cfg.Reset.RunAt = "03:00"
	}
	if cfg.Reset.BulkDelay == 0 {
		cfg.Reset.BulkDelay = 100 * time.Millisecond
	}
	if cfg.Reset.SessionTTL == 0 {
		cfg.Reset.SessionTTL = 24 * time.Hour
	}
	if cfg.N8N.DueLimit == 0 {
		cfg.N8N.DueLimit = 20
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "gallery"
	}
	if cfg.Storage.Endpoint == "" && cfg.Supabase.URL != "" {
		cfg.Storage.Endpoint = strings.TrimRight(cfg.Supabase.URL, "/") + "/storage/v1/s3"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.App.IsProduction() {
			cfg.Log.Format = "json"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{cfg.App.PublicURL}
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Webhook-Secret"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Reset.IntervalDays < 1 {
		return fmt.Errorf("reset.interval_days must be at least 1")
	}
	if _, err := ParseClock(c.Reset.RunAt); err != nil {
		return fmt.Errorf("reset.run_at: %w", err)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.IsProduction() {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Supabase.JWTSecret == "" {
			return fmt.Errorf("supabase.jwt_secret is required in production")
		}
		if c.Cron.SecretToken == "" {
			return fmt.Errorf("CRON_SECRET_TOKEN is required in production")
		}
		if c.PayFast.MerchantID == "" || c.PayFast.MerchantKey == "" {
			return fmt.Errorf("payfast.merchant_id and PAYFAST_MERCHANT_KEY are required in production")
		}
		if c.PayFast.Sandbox {
			return fmt.Errorf("payfast.sandbox cannot be enabled in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
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

// ParseClock parses an HH:MM wall clock time into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
