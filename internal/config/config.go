// Package config loads and validates the booking backend configuration using
// Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the AROHA_ prefix (e.g.,
// AROHA_DATABASE_HOST overrides database.host in the YAML). This layering
// allows the same binary to run with a config.yaml in local development and
// with pure environment variables in containerized deployments.
//
// Two variables have no AROHA_ prefix because they may be injected by
// infrastructure tooling that does not know the application prefix:
// ENCRYPTION_KEY (OAuth token encryption at rest) and SUPERADMIN_EMAILS (the
// secondary superadmin allowlist, see internal/auth).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root of everything the server reads at startup.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Integrations  IntegrationsConfig  `mapstructure:"integrations"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Security      SecurityConfig      `mapstructure:"security"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
}

// ServerConfig controls the HTTP listener and the URLs advertised to
// browsers and webhook callers.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	PublicURL    string        `mapstructure:"public_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GetPublicURL returns the public-facing URL used for OAuth callbacks and
// external redirects. When server.public_url is set it is returned as-is;
// otherwise it falls back to server.base_url. The distinction matters in
// reverse-proxied deployments where the internal listen address differs from
// the URL registered with Google and Twilio.
func (s *ServerConfig) GetPublicURL() string {
	if s.PublicURL != "" {
		return s.PublicURL
	}
	return s.BaseURL
}

// GetAddress renders the listen address as host:port.
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig describes the PostgreSQL connection and pool sizing.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// GetDSN renders the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// AuthConfig groups session token and OIDC sign-in settings.
type AuthConfig struct {
	JWT  JWTConfig  `mapstructure:"jwt"`
	OIDC OIDCConfig `mapstructure:"oidc"`
}

// JWTConfig holds session token configuration. The signing secret itself is
// read from AROHA_JWT_SECRET directly (see internal/auth), not through Viper,
// so it never ends up in a YAML file.
type JWTConfig struct {
	SessionDuration time.Duration `mapstructure:"session_duration"`
}

// OIDCConfig holds OIDC sign-in configuration (Google in production).
type OIDCConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	IssuerURL    string   `mapstructure:"issuer_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// IntegrationsConfig holds per-provider integration credentials.
type IntegrationsConfig struct {
	Google GoogleIntegrationConfig `mapstructure:"google"`
	Twilio TwilioConfig            `mapstructure:"twilio"`
	AI     AIConfig                `mapstructure:"ai"`
}

// GoogleIntegrationConfig is the OAuth application used for per-organization
// Gmail and Google Calendar grants. This is distinct from auth.oidc: sign-in
// identifies a user, while these grants act on an organization's mailbox and
// calendar with offline (refresh token) access.
type GoogleIntegrationConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// TwilioConfig holds the Twilio account used for SMS forwarding and reminders.
type TwilioConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
}

// AIConfig holds the text-generation provider used to rewrite call summaries.
// Any OpenAI-compatible chat completion endpoint works.
type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds storage backend configuration for call recordings and
// report attachments.
type StorageConfig struct {
	DefaultBackend string             `mapstructure:"default_backend"`
	S3             S3StorageConfig    `mapstructure:"s3"`
	GCS            GCSStorageConfig   `mapstructure:"gcs"`
	Local          LocalStorageConfig `mapstructure:"local"`
}

// S3StorageConfig covers AWS S3 and compatible stores (MinIO, Spaces).
type S3StorageConfig struct {
	// Endpoint overrides the AWS endpoint for S3-compatible stores.
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`

	// AuthMethod selects how credentials are obtained: "default", "static",
	// "oidc", or "assume_role".
	AuthMethod string `mapstructure:"auth_method"`

	// Static keys, used when auth_method is "static" or unset.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// Role settings for the "assume_role" and "oidc" methods.
	RoleARN         string `mapstructure:"role_arn"`
	RoleSessionName string `mapstructure:"role_session_name"`
	ExternalID      string `mapstructure:"external_id"`

	// WebIdentityTokenFile points at the OIDC token the "oidc" method
	// exchanges for role credentials (EKS, GitHub Actions).
	WebIdentityTokenFile string `mapstructure:"web_identity_token_file"`
}

// GCSStorageConfig covers Google Cloud Storage.
type GCSStorageConfig struct {
	Bucket    string `mapstructure:"bucket"`
	ProjectID string `mapstructure:"project_id"`

	// AuthMethod is "default", "service_account", or "workload_identity".
	AuthMethod string `mapstructure:"auth_method"`

	// CredentialsFile points at a service account JSON key on disk.
	CredentialsFile string `mapstructure:"credentials_file"`
	// CredentialsJSON carries the key inline, for env-var injection.
	CredentialsJSON string `mapstructure:"credentials_json"`
	// Endpoint redirects the client at a GCS emulator when set.
	Endpoint string `mapstructure:"endpoint"`
}

// LocalStorageConfig keeps recordings on the server's own disk.
type LocalStorageConfig struct {
	BasePath      string `mapstructure:"base_path"`
	ServeDirectly bool   `mapstructure:"serve_directly"`
}

// SecurityConfig groups the request-hardening knobs.
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
	Audit        AuditConfig        `mapstructure:"audit"`
}

// AuditConfig controls what the audit middleware records and where entries
// are shipped beyond the database.
type AuditConfig struct {
	// LogReadOperations also records GET requests (default false, writes only).
	LogReadOperations bool `mapstructure:"log_read_operations"`
	// LogFailedRequests also records requests that ended in a 4xx/5xx status.
	LogFailedRequests bool `mapstructure:"log_failed_requests"`
	// ShipFile appends entries as JSON lines to this path when set.
	ShipFile string `mapstructure:"ship_file"`
	// ShipWebhookURL posts entries to this endpoint when set.
	ShipWebhookURL string `mapstructure:"ship_webhook_url"`
}

// CORSConfig lists the origins and methods the browser app may use.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig tunes the per-client token buckets.
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// TLSConfig enables serving HTTPS directly instead of behind a proxy.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig feeds telemetry.SetupLogger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TelemetryConfig switches the metrics and profiling listeners.
type TelemetryConfig struct {
	Enabled     bool            `mapstructure:"enabled"`
	ServiceName string          `mapstructure:"service_name"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Profiling   ProfilingConfig `mapstructure:"profiling"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// ProfilingConfig controls the internal pprof listener.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// NotificationsConfig controls appointment reminders and outbound mail.
type NotificationsConfig struct {
	// Enabled globally toggles outbound reminder notifications.
	Enabled bool `mapstructure:"enabled"`
	// SMTP is the fallback mail transport used when an organization has no
	// Gmail integration connected.
	SMTP SMTPConfig `mapstructure:"smtp"`
	// ReminderWindowHours is how far ahead of an appointment the reminder is
	// sent (default 24).
	ReminderWindowHours int `mapstructure:"reminder_window_hours"`
	// ReminderCheckIntervalMinutes determines how often the reminder job runs
	// (default 15).
	ReminderCheckIntervalMinutes int `mapstructure:"reminder_check_interval_minutes"`
}

// SMTPConfig is the fallback mail relay for reminder email.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// UseTLS enables STARTTLS (port 587) or implicit TLS (port 465)
	UseTLS bool `mapstructure:"use_tls"`
}

// JobsConfig controls background job scheduling.
type JobsConfig struct {
	ForwardQueue ForwardQueueJobConfig `mapstructure:"forward_queue"`
}

// ForwardQueueJobConfig controls the call-forward queue sweeper.
type ForwardQueueJobConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	BatchSize       int  `mapstructure:"batch_size"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested
// structs during Unmarshal. viper.BindEnv only errors when called with zero
// keys; since every key here is a non-empty hardcoded string, any error
// indicates a programming bug and is surfaced to the caller.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.public_url",
		"server.read_timeout",
		"server.write_timeout",

		// Auth
		"auth.jwt.session_duration",
		"auth.oidc.enabled",
		"auth.oidc.issuer_url",
		"auth.oidc.client_id",
		"auth.oidc.client_secret",
		"auth.oidc.redirect_url",
		"auth.oidc.scopes",

		// Integrations
		"integrations.google.client_id",
		"integrations.google.client_secret",
		"integrations.google.redirect_url",
		"integrations.twilio.enabled",
		"integrations.twilio.account_sid",
		"integrations.twilio.auth_token",
		"integrations.twilio.from_number",
		"integrations.ai.enabled",
		"integrations.ai.base_url",
		"integrations.ai.api_key",
		"integrations.ai.model",
		"integrations.ai.timeout",

		// Storage
		"storage.default_backend",
		"storage.s3.endpoint",
		"storage.s3.region",
		"storage.s3.bucket",
		"storage.s3.auth_method",
		"storage.s3.access_key_id",
		"storage.s3.secret_access_key",
		"storage.s3.role_arn",
		"storage.s3.role_session_name",
		"storage.s3.external_id",
		"storage.s3.web_identity_token_file",
		"storage.gcs.bucket",
		"storage.gcs.project_id",
		"storage.gcs.auth_method",
		"storage.gcs.credentials_file",
		"storage.gcs.credentials_json",
		"storage.gcs.endpoint",
		"storage.local.base_path",
		"storage.local.serve_directly",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",
		"security.audit.log_read_operations",
		"security.audit.log_failed_requests",

		// Logging
		"logging.level",
		"logging.format",
		"logging.output",

		// Telemetry
		"telemetry.enabled",
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
		"telemetry.profiling.enabled",
		"telemetry.profiling.port",

		// Notifications / SMTP
		"notifications.enabled",
		"notifications.smtp.host",
		"notifications.smtp.port",
		"notifications.smtp.username",
		"notifications.smtp.password",
		"notifications.smtp.from",
		"notifications.smtp.use_tls",
		"notifications.reminder_window_hours",
		"notifications.reminder_check_interval_minutes",

		// Jobs
		"jobs.forward_queue.enabled",
		"jobs.forward_queue.interval_seconds",
		"jobs.forward_queue.batch_size",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load reads configuration in layers: defaults, then the YAML file, then
// AROHA_-prefixed environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/aroha")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults plus env vars carry containers.
	}

	v.SetEnvPrefix("AROHA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Secrets may be written as ${VAR} references in YAML.
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Auth.OIDC.ClientSecret = expandEnv(cfg.Auth.OIDC.ClientSecret)
	cfg.Integrations.Google.ClientSecret = expandEnv(cfg.Integrations.Google.ClientSecret)
	cfg.Integrations.Twilio.AuthToken = expandEnv(cfg.Integrations.Twilio.AuthToken)
	cfg.Integrations.AI.APIKey = expandEnv(cfg.Integrations.AI.APIKey)
	cfg.Storage.S3.AccessKeyID = expandEnv(cfg.Storage.S3.AccessKeyID)
	cfg.Storage.S3.SecretAccessKey = expandEnv(cfg.Storage.S3.SecretAccessKey)
	cfg.Notifications.SMTP.Password = expandEnv(cfg.Notifications.SMTP.Password)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults seeds every key so a bare binary boots in dev.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "aroha")
	v.SetDefault("database.user", "aroha")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Auth defaults
	v.SetDefault("auth.jwt.session_duration", "12h")
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.issuer_url", "https://accounts.google.com")
	v.SetDefault("auth.oidc.scopes", []string{"openid", "email", "profile"})

	// Integration defaults
	v.SetDefault("integrations.twilio.enabled", false)
	v.SetDefault("integrations.ai.enabled", false)
	v.SetDefault("integrations.ai.model", "gpt-4o-mini")
	v.SetDefault("integrations.ai.timeout", "20s")

	// Storage defaults
	v.SetDefault("storage.default_backend", "local")
	v.SetDefault("storage.local.base_path", "./storage")
	v.SetDefault("storage.local.serve_directly", true)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 60)
	v.SetDefault("security.rate_limiting.burst", 10)
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "aroha-bookings")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.port", 6060)

	// Notifications defaults
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.smtp.port", 587)
	v.SetDefault("notifications.smtp.use_tls", true)
	v.SetDefault("notifications.reminder_window_hours", 24)
	v.SetDefault("notifications.reminder_check_interval_minutes", 15)

	// Jobs defaults
	v.SetDefault("jobs.forward_queue.enabled", true)
	v.SetDefault("jobs.forward_queue.interval_seconds", 30)
	v.SetDefault("jobs.forward_queue.batch_size", 20)
}

// expandEnv resolves ${VAR_NAME} references.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate rejects configurations that would fail at first use, so
// misconfiguration surfaces at boot rather than mid-request.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.DefaultBackend {
	case "s3", "gcs", "local":
	default:
		return fmt.Errorf("invalid storage backend: %s (must be s3, gcs, or local)", c.Storage.DefaultBackend)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	// Required strings, including those only required by the enabled feature
	// or selected backend.
	required := []struct {
		key   string
		value string
		when  bool
	}{
		{"server.base_url", c.Server.BaseURL, true},
		{"database.host", c.Database.Host, true},
		{"database.name", c.Database.Name, true},
		{"database.user", c.Database.User, true},
		{"storage.s3.bucket", c.Storage.S3.Bucket, c.Storage.DefaultBackend == "s3"},
		{"storage.s3.region", c.Storage.S3.Region, c.Storage.DefaultBackend == "s3"},
		{"storage.gcs.bucket", c.Storage.GCS.Bucket, c.Storage.DefaultBackend == "gcs"},
		{"storage.local.base_path", c.Storage.Local.BasePath, c.Storage.DefaultBackend == "local"},
		{"auth.oidc.issuer_url", c.Auth.OIDC.IssuerURL, c.Auth.OIDC.Enabled},
		{"auth.oidc.client_id", c.Auth.OIDC.ClientID, c.Auth.OIDC.Enabled},
		{"auth.oidc.client_secret", c.Auth.OIDC.ClientSecret, c.Auth.OIDC.Enabled},
		{"integrations.twilio.account_sid", c.Integrations.Twilio.AccountSID, c.Integrations.Twilio.Enabled},
		{"integrations.twilio.auth_token", c.Integrations.Twilio.AuthToken, c.Integrations.Twilio.Enabled},
		{"integrations.twilio.from_number", c.Integrations.Twilio.FromNumber, c.Integrations.Twilio.Enabled},
		{"integrations.ai.base_url", c.Integrations.AI.BaseURL, c.Integrations.AI.Enabled},
		{"integrations.ai.api_key", c.Integrations.AI.APIKey, c.Integrations.AI.Enabled},
		{"security.tls.cert_file", c.Security.TLS.CertFile, c.Security.TLS.Enabled},
		{"security.tls.key_file", c.Security.TLS.KeyFile, c.Security.TLS.Enabled},
	}
	for _, r := range required {
		if r.when && r.value == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}

	return nil
}
