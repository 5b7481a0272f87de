package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/visionforge/foundry/version"
)

var (
	cfgFile  string
	homeDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "foundry",
	Short: "Automated object-detection dataset builder with quality refinement",
	Long: `Foundry builds labeled object-detection datasets by running vision-model
annotation through an iterative quality-refinement loop.

The pipeline includes:
  - Fault-tolerant parsing of free-text model output into detection records
  - Geometric validation of bounding boxes in a shared 0-1000 coordinate space
  - Coordinate, visual-overlay, and hybrid quality validation strategies
  - Feedback-driven re-annotation bounded by a per-image iteration budget
  - Perceptual-hash deduplication and COCO export`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.foundry/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "foundry home directory (default: ~/.foundry)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)",
	)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger from the effective level string.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
