package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "itemkeeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
service:
  environment: "development"
database:
  path: "/tmp/test.db"
api:
  port: 8081
  cors:
    allowed_origins: ["http://localhost:5173"]
security:
  jwt:
    secret: "`+testSecret+`"
    ttl: "30m"
  registration:
    enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.API.Port != 8081 {
		t.Errorf("API.Port = %d, want 8081", cfg.API.Port)
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}
	if !cfg.Security.Registration.Enabled {
		t.Error("Security.Registration.Enabled = false, want true")
	}
	if len(cfg.API.CORS.AllowedOrigins) != 1 {
		t.Errorf("CORS.AllowedOrigins = %v, want one origin", cfg.API.CORS.AllowedOrigins)
	}

	ttl, err := cfg.TokenTTL()
	if err != nil {
		t.Fatalf("TokenTTL() error = %v", err)
	}
	if ttl != 30*time.Minute {
		t.Errorf("TokenTTL() = %v, want 30m", ttl)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("ITEMKEEPER_JWT_SECRET", testSecret)

	_, err := Load("/nonexistent/path/itemkeeper.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_NoFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("ITEMKEEPER_JWT_SECRET", testSecret)
	t.Setenv("ITEMKEEPER_API_PORT", "4000")
	t.Setenv("ITEMKEEPER_JWT_TTL", "7200")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 4000 {
		t.Errorf("API.Port = %d, want 4000", cfg.API.Port)
	}
	if cfg.Security.JWT.Secret != testSecret {
		t.Error("JWT secret was not taken from the environment")
	}
	ttl, err := cfg.TokenTTL()
	if err != nil {
		t.Fatalf("TokenTTL() error = %v", err)
	}
	if ttl != 2*time.Hour {
		t.Errorf("TokenTTL() = %v, want 2h", ttl)
	}

	if len(cfg.Security.SeedUsers) != 1 || cfg.Security.SeedUsers[0].Email != "user@demo.com" {
		t.Errorf("SeedUsers = %+v, want the demo user", cfg.Security.SeedUsers)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: yaml: content: [")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/from/file.db"
security:
  jwt:
    secret: "`+testSecret+`"
`)
	t.Setenv("ITEMKEEPER_DATABASE_PATH", "/from/env.db")
	t.Setenv("ITEMKEEPER_ENV", "development")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/from/env.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/from/env.db")
	}
	if cfg.Service.Environment != EnvDevelopment {
		t.Errorf("Service.Environment = %q, want %q", cfg.Service.Environment, EnvDevelopment)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults with secret",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: "security.jwt.secret is required",
		},
		{
			name:    "short secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "zero ttl",
			mutate:  func(c *Config) { c.Security.JWT.TTL = "0" },
			wantErr: "security.jwt.ttl must be positive",
		},
		{
			name:    "garbage ttl",
			mutate:  func(c *Config) { c.Security.JWT.TTL = "soon" },
			wantErr: "is not a duration",
		},
		{
			name:    "ttl seconds overflow duration",
			mutate:  func(c *Config) { c.Security.JWT.TTL = "9223372037" },
			wantErr: "is out of range",
		},
		{
			name:    "ttl seconds overflow int64",
			mutate:  func(c *Config) { c.Security.JWT.TTL = "99999999999999999999" },
			wantErr: "is out of range",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port must be between 1 and 65535",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Service.Environment = "staging" },
			wantErr: "service.environment",
		},
		{
			name:    "stream without ping interval",
			mutate:  func(c *Config) { c.API.Stream.PingInterval = 0 },
			wantErr: "api.stream",
		},
		{
			name:    "disabled stream ignores its settings",
			mutate:  func(c *Config) { c.API.Stream = StreamConfig{} },
			wantErr: "",
		},
		{
			name:    "bad qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name: "seed user without password",
			mutate: func(c *Config) {
				c.Security.SeedUsers = []SeedUser{{ID: "2", Email: "a@b.c", Role: "user"}}
			},
			wantErr: "needs password or password_hash",
		},
		{
			name: "seed user with unknown role",
			mutate: func(c *Config) {
				c.Security.SeedUsers = []SeedUser{{ID: "2", Email: "a@b.c", Password: "pw", Role: "root"}}
			},
			wantErr: "role must be user or admin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetTimeouts(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 30*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
}
