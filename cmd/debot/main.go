// Command debot runs the DeBot Slack bot and its maintenance tools.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aschepis/backscratcher/debot/config"
	"github.com/aschepis/backscratcher/debot/kv"
	"github.com/aschepis/backscratcher/debot/migrations"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:           "debot",
	Short:         "DeBot, a Slack bot with a memory and a temper",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables win.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the DeBot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default $DEBOT_CONFIG_PATH or ~/.debot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database file (overrides storage.path)")
	rootCmd.AddCommand(serveCmd, personalityCmd, memoryCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	return cfg, nil
}

// openStore opens the database, applies migrations and returns the
// key-value store on top of it.
func openStore(cfg *config.Config, logger zerolog.Logger) (*sql.DB, *kv.SQLiteStore, error) {
	logger.Info().Str("path", cfg.Storage.Path).Msg("Opening database")
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrations.Run(db, logger); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, kv.NewSQLiteStore(db, logger), nil
}
