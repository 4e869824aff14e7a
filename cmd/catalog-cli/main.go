// Package main provides the catalog engine CLI entrypoint.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yokharian/catalog-engine/internal/config"
	"github.com/yokharian/catalog-engine/internal/observability"
	"github.com/yokharian/catalog-engine/pkg/catalog"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "catalog-cli",
	Short: "Catalog engine CLI for feed ingestion, search, and administration",
	Long: `Catalog engine CLI manages the used-vehicle catalog.

Use this tool to:
- Ingest CSV inventory feeds, single files or whole directories
- Search the catalog with fuzzy make/model matching and preference filters
- Initialize the database schema
- Watch a directory and ingest feeds as they arrive
- Inspect catalog statistics and the ingestion audit trail

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// The UI layer reports progress; keep structured logs quiet on the
		// terminal unless asked.
		cfg.Observability.LogFormat = "console"
		if outputJSON {
			cfg.Observability.LogFormat = "json"
		} else if !verbose {
			cfg.Observability.LogLevel = "warn"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       cfg.Observability.LogLevel,
			Format:      cfg.Observability.LogFormat,
			ServiceName: "catalog-cli",
		})

		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newInitDBCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openEngine builds the shared engine handle from the loaded configuration.
func openEngine() (*catalog.Engine, error) {
	engine, err := catalog.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open catalog engine: %w", err)
	}
	return engine, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
