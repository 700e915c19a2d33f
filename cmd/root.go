package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	envDataDir   = "FORCING_DATA_DIR"
	envOutputDir = "FORCING_OUTPUT_DIR"
)

var (
	logLevel string // Log verbosity level
	envFile  string // Optional .env file with FORCING_* defaults
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "forcing",
	Short: "Evaluate time-varying simulation inputs from analytic functions, series and NetCDF files",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		loadEnv(envFile)
	},
}

// loadEnv loads FORCING_* defaults from path. A missing default .env is not an error.
func loadEnv(path string) {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		logrus.Warnf("failed to load env file %s: %v", path, err)
	}
}

// envOr returns the value of the environment variable key, or def if it is unset.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up persistent flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file with FORCING_DATA_DIR / FORCING_OUTPUT_DIR (default: ./.env if present)")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(outdirCmd)
	rootCmd.AddCommand(datesCmd)
}
