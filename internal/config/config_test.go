package config

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "aroha",
				Password: "secret",
				Name:     "aroha",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=aroha password=secret dbname=aroha sslmode=require",
		},
		{
			name: "disable ssl mode",
			cfg: DatabaseConfig{
				Host:     "db.example.com",
				Port:     5433,
				User:     "admin",
				Password: "pass",
				Name:     "bookings",
				SSLMode:  "disable",
			},
			want: "host=db.example.com port=5433 user=admin password=pass dbname=bookings sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetDSN()
			if got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ServerConfig helpers
// ---------------------------------------------------------------------------

func TestGetAddress(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	if got := cfg.GetAddress(); got != "0.0.0.0:8080" {
		t.Errorf("GetAddress() = %q", got)
	}
}

func TestGetPublicURL(t *testing.T) {
	cfg := ServerConfig{BaseURL: "http://internal:8080"}
	if got := cfg.GetPublicURL(); got != "http://internal:8080" {
		t.Errorf("GetPublicURL() = %q, want base_url fallback", got)
	}

	cfg.PublicURL = "https://app.aroha.example"
	if got := cfg.GetPublicURL(); got != "https://app.aroha.example" {
		t.Errorf("GetPublicURL() = %q, want public_url", got)
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "aroha" {
		t.Errorf("database.name = %s, want aroha", cfg.Database.Name)
	}
	if cfg.Storage.DefaultBackend != "local" {
		t.Errorf("storage.default_backend = %s, want local", cfg.Storage.DefaultBackend)
	}
	if cfg.Notifications.ReminderWindowHours != 24 {
		t.Errorf("reminder_window_hours = %d, want 24", cfg.Notifications.ReminderWindowHours)
	}
	if !cfg.Jobs.ForwardQueue.Enabled {
		t.Error("jobs.forward_queue.enabled default should be true")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AROHA_DATABASE_HOST", "db.internal")
	t.Setenv("AROHA_SERVER_PORT", "9000")
	t.Setenv("AROHA_INTEGRATIONS_TWILIO_FROM_NUMBER", "+6495551234")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("database.host = %s, want db.internal", cfg.Database.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("server.port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Integrations.Twilio.FromNumber != "+6495551234" {
		t.Errorf("twilio.from_number = %s", cfg.Integrations.Twilio.FromNumber)
	}
}

func TestLoad_ExpandsSecretReferences(t *testing.T) {
	t.Setenv("MY_DB_SECRET", "hunter2")
	t.Setenv("AROHA_DATABASE_PASSWORD", "${MY_DB_SECRET}")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Password != "hunter2" {
		t.Errorf("database.password = %q, want expanded secret", cfg.Database.Password)
	}
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, BaseURL: "http://localhost:8080"},
		Database: DatabaseConfig{Host: "localhost", Name: "aroha", User: "aroha"},
		Storage:  StorageConfig{DefaultBackend: "local", Local: LocalStorageConfig{BasePath: "./storage"}},
		Logging:  LoggingConfig{Level: "info"},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server port"},
		{"missing base url", func(c *Config) { c.Server.BaseURL = "" }, "base_url"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"bad storage backend", func(c *Config) { c.Storage.DefaultBackend = "azure" }, "storage backend"},
		{"s3 without bucket", func(c *Config) { c.Storage.DefaultBackend = "s3" }, "s3.bucket"},
		{"gcs without bucket", func(c *Config) { c.Storage.DefaultBackend = "gcs" }, "gcs.bucket"},
		{"oidc without secret", func(c *Config) {
			c.Auth.OIDC.Enabled = true
			c.Auth.OIDC.IssuerURL = "https://accounts.google.com"
			c.Auth.OIDC.ClientID = "id"
		}, "client_secret"},
		{"twilio without sid", func(c *Config) { c.Integrations.Twilio.Enabled = true }, "account_sid"},
		{"ai without key", func(c *Config) {
			c.Integrations.AI.Enabled = true
			c.Integrations.AI.BaseURL = "https://api.openai.com/v1"
		}, "api_key"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}
