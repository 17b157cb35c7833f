package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "ITEMKEEPER_"

// Runtime environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// minJWTSecretLength is the shortest signing secret accepted at startup.
const minJWTSecretLength = 32

// Config is the root configuration structure for itemkeeper.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServiceConfig identifies the running instance.
type ServiceConfig struct {
	Name        string `yaml:"name" env:"SERVICE_NAME"`
	Environment string `yaml:"environment" env:"ENV"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path" env:"DATABASE_PATH"`
	WALMode     bool   `yaml:"wal_mode" env:"DATABASE_WAL_MODE"`
	BusyTimeout int    `yaml:"busy_timeout" env:"DATABASE_BUSY_TIMEOUT"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host" env:"API_HOST"`
	Port     int              `yaml:"port" env:"API_PORT"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Stream   StreamConfig     `yaml:"stream"`
}

// StreamConfig contains settings for the per-owner item event WebSocket.
type StreamConfig struct {
	// Enabled mounts GET /api/events.
	Enabled        bool `yaml:"enabled" env:"API_STREAM_ENABLED"`
	MaxMessageSize int  `yaml:"max_message_size"`
	PingInterval   int  `yaml:"ping_interval"` // seconds
	PongTimeout    int  `yaml:"pong_timeout"`  // seconds
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"API_CORS_ORIGINS" envSeparator:","`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
	Output string `yaml:"output"`
}

// SecurityConfig contains token and user directory settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`

	Registration RegistrationConfig `yaml:"registration"`

	// SeedUsers are inserted into the user directory at startup when absent.
	SeedUsers []SeedUser `yaml:"seed_users"`
}

// JWTConfig contains access token settings.
type JWTConfig struct {
	Secret string `yaml:"secret" env:"JWT_SECRET"`

	// TTL is a Go duration ("1h", "90m") or a bare number of seconds ("3600").
	TTL string `yaml:"ttl" env:"JWT_TTL"`
}

// RegistrationConfig controls self-service sign-up.
type RegistrationConfig struct {
	// Enabled mounts POST /api/auth/register.
	Enabled bool `yaml:"enabled" env:"REGISTRATION_ENABLED"`
}

// SeedUser describes a directory entry created at startup.
// Exactly one of Password or PasswordHash should be set.
type SeedUser struct {
	ID           string `yaml:"id"`
	Email        string `yaml:"email"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
}

// MQTTConfig contains MQTT broker connection settings for item events.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled" env:"MQTT_ENABLED"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos" env:"MQTT_QOS"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"MQTT_HOST"`
	Port     int    `yaml:"port" env:"MQTT_PORT"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id" env:"MQTT_CLIENT_ID"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"MQTT_USERNAME"`
	Password string `yaml:"password" env:"MQTT_PASSWORD"`
}

// MQTTReconnectConfig contains reconnection backoff settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ITEMKEEPER_SECTION_KEY
// For example: ITEMKEEPER_DATABASE_PATH, ITEMKEEPER_JWT_SECRET
//
// An empty path skips the file entirely. A non-empty path that does not
// exist is an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Exists reports whether a config file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "itemkeeper",
			Environment: EnvProduction,
		},
		Database: DatabaseConfig{
			Path:        "./data/itemkeeper.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Stream: StreamConfig{
				Enabled:        true,
				MaxMessageSize: 4096,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TTL: "1h",
			},
			SeedUsers: []SeedUser{
				{ID: "1", Email: "user@demo.com", Password: "user123", Role: "user"},
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "itemkeeper",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// applyEnvOverrides applies ITEMKEEPER_* environment variables on top of cfg.
// Fields whose variable is unset keep their current value. Seed users are
// file-only and are not part of the environment surface.
func applyEnvOverrides(cfg *Config) error {
	targets := []any{
		&cfg.Service,
		&cfg.Database,
		&cfg.API,
		&cfg.Logging,
		&cfg.Security.JWT,
		&cfg.Security.Registration,
		&cfg.MQTT,
		&cfg.Metrics,
	}
	for _, target := range targets {
		if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
			return fmt.Errorf("parsing environment overrides: %w", err)
		}
	}
	return nil
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.Environment != EnvDevelopment && c.Service.Environment != EnvProduction {
		errs = append(errs, "service.environment must be development or production")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Without a secret no token can be issued or verified; refuse to start.
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set ITEMKEEPER_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if _, err := c.TokenTTL(); err != nil {
		errs = append(errs, err.Error())
	}

	for i, u := range c.Security.SeedUsers {
		if u.ID == "" {
			errs = append(errs, fmt.Sprintf("security.seed_users[%d].id is required", i))
		}
		if _, err := mail.ParseAddress(u.Email); err != nil {
			errs = append(errs, fmt.Sprintf("security.seed_users[%d].email is invalid", i))
		}
		if u.Password == "" && u.PasswordHash == "" {
			errs = append(errs, fmt.Sprintf("security.seed_users[%d] needs password or password_hash", i))
		}
		if u.Role != "user" && u.Role != "admin" {
			errs = append(errs, fmt.Sprintf("security.seed_users[%d].role must be user or admin", i))
		}
	}

	if s := c.API.Stream; s.Enabled && (s.MaxMessageSize <= 0 || s.PingInterval <= 0 || s.PongTimeout <= 0) {
		errs = append(errs, "api.stream max_message_size, ping_interval and pong_timeout must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// maxTTLSeconds is the largest bare-second TTL that fits in a time.Duration.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// TokenTTL parses security.jwt.ttl.
// Accepts a Go duration string or a bare integer number of seconds.
func (c *Config) TokenTTL() (time.Duration, error) {
	raw := strings.TrimSpace(c.Security.JWT.TTL)
	if raw == "" {
		return 0, errors.New("security.jwt.ttl is required")
	}

	var ttl time.Duration
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs > maxTTLSeconds {
			return 0, fmt.Errorf("security.jwt.ttl %q is out of range", raw)
		}
		ttl = time.Duration(secs) * time.Second
	} else if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("security.jwt.ttl %q is out of range", raw)
	} else {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("security.jwt.ttl %q is not a duration", raw)
		}
		ttl = d
	}

	if ttl <= 0 {
		return 0, fmt.Errorf("security.jwt.ttl must be positive, got %q", raw)
	}
	return ttl, nil
}

// IsDevelopment reports whether diagnostic detail may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return c.Service.Environment == EnvDevelopment
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
