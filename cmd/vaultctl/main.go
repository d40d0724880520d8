// Command vaultctl drives the scan and organize pipelines against the
// backends declared in a vault.yaml configuration file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ao3vault/vault/internal/cache"
	"github.com/ao3vault/vault/internal/cachedb"
	"github.com/ao3vault/vault/internal/config"
	"github.com/ao3vault/vault/internal/logging"
	"github.com/ao3vault/vault/internal/storage"
)

// rootConfiguration stores configuration shared by every subcommand.
var rootConfiguration struct {
	// configPath is the path to vault.yaml.
	configPath string
}

var rootCommand = &cobra.Command{
	Use:   "vaultctl",
	Short: "vaultctl manages a content-addressed library of downloaded HTML documents",
	RunE: func(command *cobra.Command, arguments []string) error {
		return command.Help()
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCommand.PersistentFlags()
	flags.StringVarP(&rootConfiguration.configPath, "config", "c", "vault.yaml", "Path to the vault.yaml configuration file")

	rootCommand.AddCommand(scanCommand, organizeCommand, statsCommand, dedupCommand, doctorCommand)
}

// environment bundles the pieces every subcommand needs, assembled once
// from the loaded configuration.
type environment struct {
	cfg      *config.Config
	logger   *logging.Logger
	registry *storage.Registry
	repo     *cache.Repository
	db       *cachedb.DB
}

// loadEnvironment loads vault.yaml and constructs the registry and cache
// repository it describes.
func loadEnvironment() (*environment, error) {
	cfg, err := config.Load(rootConfiguration.configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger := cfg.Logger()

	registry, err := cfg.BuildRegistry(logger)
	if err != nil {
		return nil, fmt.Errorf("build storage registry: %w", err)
	}

	db, err := cachedb.Open(cfg.CacheDatabase)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	return &environment{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		repo:     cache.New(db),
		db:       db,
	}, nil
}

func (e *environment) Close() {
	e.db.Close()
}

// resolveBackend looks up name in the environment's registry, returning a
// descriptive error if it is not declared.
func (e *environment) resolveBackend(name string) (storage.Backend, error) {
	backend, ok := e.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("no backend named %q declared in %s", name, rootConfiguration.configPath)
	}
	return backend, nil
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
