// Package app provides the command tree of the catalogsync binary.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"

	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	envFiles []string
	logLevel string
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:               "catalogsync",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Incremental catalog sync from spreadsheet feeds to a commerce backend",
		Long: `catalogsync stages catalog feed rows into a database, writing only changed items,
and forwards the staged queue to the destination store. Both tasks run inside
a bounded function invocation and hand off to themselves when time runs low.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil,
		"Environment files loaded before configuration (default: .env when present)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(newLambdaCmd(opts))
	rootCmd.AddCommand(newRunCmd(opts, "stage", "Run one stage invocation locally"))
	rootCmd.AddCommand(newRunCmd(opts, "forward", "Run one forward invocation locally"))
	rootCmd.AddCommand(newPushCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newTokensCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig loads environment files, then configuration, then applies flag
// overrides. A missing default .env is not an error; a missing named file is.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if err := loadEnvFiles(o.envFiles); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		err := godotenv.Load(defaultEnvFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", defaultEnvFile, err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// versionInfo is printed by the version command.
type versionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func newVersionCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versionInfo{
				Version:   telemetry.ServiceVersion,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("error formatting version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "catalogsync %s (%s, %s)\n", info.Version, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Output format (json)")
	return cmd
}

// ensureFile reports a readable error for a missing input file.
func ensureFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	return nil
}
