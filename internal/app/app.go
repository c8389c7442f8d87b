package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/services/engine"
	"github.com/bobmcallan/tally/internal/services/holders"
	"github.com/bobmcallan/tally/internal/services/ledger"
	"github.com/bobmcallan/tally/internal/services/registry"
	"github.com/bobmcallan/tally/internal/services/report"
	"github.com/bobmcallan/tally/internal/storage"
)

// App holds the document store and every initialized service.
// It is the shared core behind cmd/tally-server and the HTTP handlers.
type App struct {
	Config          *common.Config
	Logger          *common.Logger
	Store           interfaces.DocumentStore
	HolderService   interfaces.HolderService
	CardBillService interfaces.CardBillService
	LedgerService   interfaces.LedgerService
	RegistryService interfaces.RegistryService
	ReportService   interfaces.ReportService
	StartupTime     time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: explicit path, TALLY_CONFIG,
// tally.toml next to the binary, then config/tally.toml for development.
func resolveConfigPath(configPath, binDir string) string {
	if configPath == "" {
		configPath = os.Getenv("TALLY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "tally.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tally.toml"
		}
	}
	return configPath
}

// NewApp loads configuration, opens the document store and wires the services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()
	configPath = resolveConfigPath(configPath, binDir)

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative paths to binary directory
	if config.Storage.SQLite.Path != "" && !filepath.IsAbs(config.Storage.SQLite.Path) {
		config.Storage.SQLite.Path = filepath.Join(binDir, config.Storage.SQLite.Path)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.NewDocumentStore(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := NewAppWithStore(config, logger, store)
	a.StartupTime = startupStart

	logger.Info().
		Str("backend", config.Storage.Backend).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// NewAppWithStore wires the services over an already opened store.
func NewAppWithStore(config *common.Config, logger *common.Logger, store interfaces.DocumentStore) *App {
	holderService := holders.NewService(store, config.Balances, logger)
	eng := engine.NewEngine(holderService, logger)

	return &App{
		Config:          config,
		Logger:          logger,
		Store:           store,
		HolderService:   holderService,
		CardBillService: eng,
		LedgerService:   ledger.NewService(eng, logger),
		RegistryService: registry.NewService(store, logger),
		ReportService:   report.NewService(store, config.Budget, logger),
		StartupTime:     time.Now(),
	}
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close document store")
		}
		a.Store = nil
	}
}
