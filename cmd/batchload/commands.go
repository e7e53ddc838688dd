package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/batchload/internal/config"
	"github.com/phrazzld/batchload/internal/platform/logger"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "batchload",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Bounded-concurrency batch loader",
		Long: `batchload loads a list of work items, fetches every item with a
concurrency cap, a per-attempt timeout and exponential backoff retries, and
calls an initializer once all items have either succeeded or exhausted their
retries.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or JSON configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig reads configuration for cmd: defaults, the --config file,
// BATCHLOAD_* environment variables and any flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(config.WithConfigFile(path), config.WithFlags(cmd.Flags()))
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch",
		Long: `Run one batch: load the item list, fetch every item and call the initializer.

The command exits non-zero when the item list cannot be loaded, when the
initializer fails, or when the run is interrupted. Items that exhaust their
retries are reported but do not fail the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			printReport, err := cmd.Flags().GetBool("report")
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log, err := logger.SetupWithWriter(
				logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format},
				cmd.ErrOrStderr(),
			)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}

			report, runErr := runBatch(ctx, cfg, log)
			if printReport && report != nil {
				if err := writeReport(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().Int("max-concurrency", 3, "Maximum number of concurrent fetch attempts")
	cmd.Flags().Duration("attempt-timeout", 3*time.Second, "Timeout of a single fetch attempt")
	cmd.Flags().Int("max-retries", 3, "Maximum number of attempts per item")
	cmd.Flags().Duration("initial-backoff", 500*time.Millisecond, "Delay before the first retry, doubled after each failure")
	cmd.Flags().Bool("report", false, "Print the batch report as JSON on stdout")

	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|reset|status|version]",
		Short:     "Manage the work_items table used by the postgres loader",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "reset", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := logger.SetupWithWriter(
				logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format},
				cmd.ErrOrStderr(),
			)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}
			return runMigrate(cmd.Context(), cfg, args[0], log)
		},
	}
	return cmd
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func getVersionInfo() versionInfo {
	return versionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := getVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return nil
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "batchload %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return nil
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
