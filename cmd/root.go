package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/logging"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/spf13/cobra"

	// Session store backends register their URL schemes in init.
	_ "github.com/kozaktomas/face-sculptor/internal/database/postgres"
	_ "github.com/kozaktomas/face-sculptor/internal/database/redis"
	_ "github.com/kozaktomas/face-sculptor/internal/database/sqlite"
)

var (
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "face-sculptor",
	Short: "Parametric anatomical deformation engine",
	Long: `Face Sculptor deforms a face or torso mesh in real time from a small set
of named parameters (nose size, lip fullness, implant volume, ...).

It normalizes scanned facial landmarks into a canonical frame, builds
per-parameter influence maps over the base mesh and keeps saved edit
sessions in a pluggable session store.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this rotating file (overrides LOG_FILE)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	opts := logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}
	if logLevel != "" {
		opts.Level = logLevel
	}
	if logFile != "" {
		opts.File = logFile
	}
	return logging.Setup(opts)
}

// loadCatalog reads the configuration and builds the parameter catalog.
func loadCatalog() (*config.Config, *params.Catalog, error) {
	cfg := config.Load()
	catalog, err := params.NewCatalog(cfg.Presets)
	if err != nil {
		return nil, nil, fmt.Errorf("loading parameter catalog: %w", err)
	}
	return cfg, catalog, nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
