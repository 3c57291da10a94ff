// Package config loads the service configuration from an optional YAML file
// and environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// SCIM authentication modes
const (
	AuthModeNone   = "none"
	AuthModeBearer = "bearer"
	AuthModeCAC    = "cac"
)

// ServerSection configures the HTTP listener
type ServerSection struct {
	ListenAddr  string        `yaml:"listen_addr"`
	AppName     string        `yaml:"app_name"`
	BodyLimit   int           `yaml:"body_limit"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	CORSOrigins string        `yaml:"cors_origins"`
	BaseURL     string        `yaml:"base_url"`
}

// SCIMSection configures the provisioning endpoints
type SCIMSection struct {
	AuthMode     string `yaml:"auth_mode"`
	DefaultCount int    `yaml:"default_count"`
	MaxResults   int    `yaml:"max_results"`
	// StaticTokens are accepted as bearer tokens in addition to minted JWTs
	StaticTokens []string `yaml:"static_tokens"`
}

// AuthSection configures sessions and bearer tokens.
// An empty JWTSecret is replaced by a random one at startup, so minted tokens
// do not survive a restart.
type AuthSection struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

// MFASection configures TOTP enrollment
type MFASection struct {
	Issuer          string `yaml:"issuer"`
	BackupCodeCount int    `yaml:"backup_code_count"`
	Skew            uint   `yaml:"skew"`
	QRSize          int    `yaml:"qr_size"`
}

// KafkaSection configures the provisioning event stream.
// Events are only published when Brokers is not empty.
type KafkaSection struct {
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	APIKey    string   `yaml:"api_key"`
	APISecret string   `yaml:"api_secret"`
}

// LogSection configures the zap logger
type LogSection struct {
	Level string `yaml:"level"`
}

// AccountSection seeds a local login account.
// Either Password or PasswordHash (bcrypt) must be set.
type AccountSection struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password,omitempty"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

// Config is the complete service configuration
type Config struct {
	Server   ServerSection    `yaml:"server"`
	SCIM     SCIMSection      `yaml:"scim"`
	Auth     AuthSection      `yaml:"auth"`
	MFA      MFASection       `yaml:"mfa"`
	Kafka    KafkaSection     `yaml:"kafka"`
	Log      LogSection       `yaml:"log"`
	Accounts []AccountSection `yaml:"accounts"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerSection{
			ListenAddr:  ":8000",
			AppName:     "pdvd-idp",
			BodyLimit:   1024 * 1024,
			ReadTimeout: 60 * time.Second,
			CORSOrigins: "http://localhost:3000,http://127.0.0.1:3000",
		},
		SCIM: SCIMSection{
			AuthMode:     AuthModeBearer,
			DefaultCount: 10,
			MaxResults:   200,
		},
		Auth: AuthSection{
			TokenTTL:   24 * time.Hour,
			SessionTTL: 15 * time.Minute,
		},
		MFA: MFASection{
			Issuer:          "Demo MFA GG",
			BackupCodeCount: 3,
			Skew:            1,
			QRSize:          256,
		},
		Kafka: KafkaSection{
			Topic: "user-provisioning-events",
		},
		Log: LogSection{
			Level: "info",
		},
		Accounts: []AccountSection{
			{Username: "demo", Password: "changeme"},
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	switch c.SCIM.AuthMode {
	case AuthModeNone, AuthModeCAC, AuthModeBearer:
	default:
		return fmt.Errorf("unknown scim.auth_mode %q", c.SCIM.AuthMode)
	}

	if c.SCIM.DefaultCount < 0 {
		return fmt.Errorf("scim.default_count must not be negative")
	}
	if c.SCIM.MaxResults <= 0 {
		return fmt.Errorf("scim.max_results must be positive")
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.session_ttl and auth.token_ttl must be positive")
	}
	if c.MFA.BackupCodeCount < 0 {
		return fmt.Errorf("mfa.backup_code_count must not be negative")
	}
	if c.Kafka.Topic == "" && len(c.Kafka.Brokers) > 0 {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}

	seen := make(map[string]bool)
	for _, a := range c.Accounts {
		if a.Username == "" {
			return fmt.Errorf("account username is required")
		}
		if seen[a.Username] {
			return fmt.Errorf("duplicate account %s", a.Username)
		}
		seen[a.Username] = true
		if a.Password == "" && a.PasswordHash == "" {
			return fmt.Errorf("password or password_hash is required for account %s", a.Username)
		}
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables if set
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PDVD_IDP_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("PDVD_IDP_SCIM_AUTH_MODE"); v != "" {
		cfg.SCIM.AuthMode = strings.ToLower(v)
	}
	if v := os.Getenv("PDVD_IDP_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("PDVD_IDP_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PDVD_IDP_SESSION_TTL %q: %w", v, err)
		}
		cfg.Auth.SessionTTL = d
	}
	if v := os.Getenv("PDVD_IDP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("KAFKA_API_KEY"); v != "" {
		cfg.Kafka.APIKey = v
	}
	if v := os.Getenv("KAFKA_API_SECRET"); v != "" {
		cfg.Kafka.APISecret = v
	}
	return nil
}
