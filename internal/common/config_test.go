package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_DefaultPort(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8080)
	}
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("TALLY_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_StorageEnvOverride(t *testing.T) {
	t.Setenv("TALLY_STORAGE_BACKEND", "SurrealDB")
	t.Setenv("TALLY_SURREALDB_ADDRESS", "ws://db:8000/rpc")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Storage.Backend != "surrealdb" {
		t.Errorf("Storage.Backend = %q, want surrealdb", cfg.Storage.Backend)
	}
	if cfg.Storage.SurrealDB.Address != "ws://db:8000/rpc" {
		t.Errorf("SurrealDB.Address = %q", cfg.Storage.SurrealDB.Address)
	}
}

func TestConfig_EnforceNonNegativeEnv(t *testing.T) {
	t.Setenv("TALLY_ENFORCE_NON_NEGATIVE", "true")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if !cfg.Balances.EnforceNonNegative {
		t.Error("expected EnforceNonNegative to be true after env override")
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tally.toml")
	content := `
environment = "production"

[storage]
backend = "memory"

[balances]
enforce_non_negative = true
retry_interval = "10ms"

[budget]
needs_pct = 60
wants_pct = 20
savings_pct = 20
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("expected production environment")
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Storage.Backend)
	}
	if !cfg.Balances.EnforceNonNegative {
		t.Error("expected EnforceNonNegative from file")
	}
	if got := cfg.Balances.GetRetryInterval(); got != 10*time.Millisecond {
		t.Errorf("RetryInterval = %v, want 10ms", got)
	}
	if cfg.Budget.NeedsPct != 60 {
		t.Errorf("NeedsPct = %d, want 60", cfg.Budget.NeedsPct)
	}
	// Untouched defaults survive the merge
	if cfg.Balances.MaxCASRetries != 5 {
		t.Errorf("MaxCASRetries = %d, want default 5", cfg.Balances.MaxCASRetries)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Storage.Backend)
	}
}

func TestConfig_ValidateRejectsUnknownBackend(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Backend = "firestore"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestConfig_ValidateRejectsBadBudgetSplit(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Budget.NeedsPct = 70
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when budget percentages do not sum to 100")
	}
}

func TestAuthConfig_TokenExpiryFallback(t *testing.T) {
	c := AuthConfig{TokenExpiry: "not-a-duration"}
	if got := c.GetTokenExpiry(); got != 24*time.Hour {
		t.Errorf("GetTokenExpiry = %v, want 24h", got)
	}
}
