// Package common provides shared utilities for Tally
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Tally
type Config struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Auth        AuthConfig     `toml:"auth"`
	Balances    BalancesConfig `toml:"balances"`
	Budget      BudgetConfig   `toml:"budget"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects and configures the document store backend.
type StorageConfig struct {
	Backend   string          `toml:"backend"` // "memory", "sqlite" or "surrealdb"
	SQLite    SQLiteConfig    `toml:"sqlite"`
	SurrealDB SurrealDBConfig `toml:"surrealdb"`
}

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// SurrealDBConfig holds connection details for SurrealDB.
type SurrealDBConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// AuthConfig holds identity token settings. Tokens are minted by the external
// auth provider; Tally only validates them.
type AuthConfig struct {
	JWTSecret      string `toml:"jwt_secret"`
	Issuer         string `toml:"issuer"`
	TokenExpiry    string `toml:"token_expiry"`
	AllowDevHeader bool   `toml:"allow_dev_header"` // accept X-Tally-User-ID without a token
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// BalancesConfig tunes the balance mutation protocol.
type BalancesConfig struct {
	EnforceNonNegative bool   `toml:"enforce_non_negative"`
	MaxCASRetries      int    `toml:"max_cas_retries"`
	WriteRetries       int    `toml:"write_retries"`
	RetryInterval      string `toml:"retry_interval"`
}

// GetRetryInterval parses and returns the pause between write retries.
func (c *BalancesConfig) GetRetryInterval() time.Duration {
	d, err := time.ParseDuration(c.RetryInterval)
	if err != nil || d <= 0 {
		return 50 * time.Millisecond
	}
	return d
}

// BudgetConfig holds the 50/30/20 split and the category buckets.
type BudgetConfig struct {
	NeedsPct        int      `toml:"needs_pct"`
	WantsPct        int      `toml:"wants_pct"`
	SavingsPct      int      `toml:"savings_pct"`
	NeedsCategories []string `toml:"needs_categories"`
	WantsCategories []string `toml:"wants_categories"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			SQLite:  SQLiteConfig{Path: "data/tally.db"},
			SurrealDB: SurrealDBConfig{
				Address:   "ws://localhost:8000/rpc",
				Namespace: "tally",
				Database:  "tally",
				Username:  "root",
				Password:  "root",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Outputs:    []string{"console"},
			FilePath:   "./logs/tally.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			Issuer:      "tally",
			TokenExpiry: "24h",
		},
		Balances: BalancesConfig{
			MaxCASRetries: 5,
			WriteRetries:  3,
			RetryInterval: "50ms",
		},
		Budget: BudgetConfig{
			NeedsPct:   50,
			WantsPct:   30,
			SavingsPct: 20,
			NeedsCategories: []string{
				"Rent", "Groceries", "Utilities", "Bills", "Transport",
				"Fuel", "Medical", "Insurance", "Education", "Loan EMI",
			},
			WantsCategories: []string{
				"Food", "Dining", "Shopping", "Entertainment", "Travel",
				"Subscriptions", "Gifts", "Personal Care",
			},
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TALLY_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TALLY_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TALLY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TALLY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("TALLY_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("TALLY_SQLITE_PATH"); v != "" {
		config.Storage.SQLite.Path = v
	}
	if v := os.Getenv("TALLY_SURREALDB_ADDRESS"); v != "" {
		config.Storage.SurrealDB.Address = v
	}
	if v := os.Getenv("TALLY_SURREALDB_USERNAME"); v != "" {
		config.Storage.SurrealDB.Username = v
	}
	if v := os.Getenv("TALLY_SURREALDB_PASSWORD"); v != "" {
		config.Storage.SurrealDB.Password = v
	}

	if v := os.Getenv("TALLY_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("TALLY_AUTH_ISSUER"); v != "" {
		config.Auth.Issuer = v
	}

	if v := os.Getenv("TALLY_ENFORCE_NON_NEGATIVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Balances.EnforceNonNegative = b
		}
	}
}

// Validate checks cross-field constraints after files and env are merged.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "sqlite", "surrealdb":
	default:
		return fmt.Errorf("unknown storage backend %q (supported: memory, sqlite, surrealdb)", c.Storage.Backend)
	}
	if c.Budget.NeedsPct+c.Budget.WantsPct+c.Budget.SavingsPct != 100 {
		return fmt.Errorf("budget percentages must sum to 100, got %d",
			c.Budget.NeedsPct+c.Budget.WantsPct+c.Budget.SavingsPct)
	}
	if c.Balances.MaxCASRetries < 1 {
		c.Balances.MaxCASRetries = 1
	}
	if c.Balances.WriteRetries < 1 {
		c.Balances.WriteRetries = 1
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
