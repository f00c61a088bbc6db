// Package cli defines the care-practice commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msomdec/care-practice/internal/config"
)

var (
	configPath string
	version    = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "care-practice",
	Short: "Counseling practice and rating workbench",
	Long: `care-practice runs a role-play practice loop between a simulated client
and a trainee counselor, scores each counselor turn against a fixed skill
rubric, and keeps a multi-rater assessment ledger over recorded dialogues.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(hashPinCmd)
}

// loadConfig reads the config and installs the default logger. Commands
// that write data to stdout pass quiet so logs stay on stderr.
func loadConfig(quiet bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.Log.Level, quiet))
	return cfg, nil
}

// newLogger writes human-readable text to stdout and JSON to stderr.
func newLogger(level string, quiet bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if quiet {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, opts),
		slog.NewJSONHandler(os.Stderr, opts),
	))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
