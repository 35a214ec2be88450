// Package cmd implements the advisory-aggregator command line.
package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/config"
	"github.com/aquasecurity/advisory-aggregator/utils"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "advisory-aggregator",
	Short: "Aggregate npm, Maven and NuGet security advisories from GHSA, OSV and Snyk",
	Long: `advisory-aggregator collects recently published security advisories from the
GitHub Advisory Database, osv.dev and the Snyk vulnerability database, merges them
into one deduplicated list and matches declared packages against them.

Examples:
  # Advisories published in the last week for every ecosystem
  advisory-aggregator aggregate

  # npm advisories of the last 30 days, written to a file
  advisory-aggregator aggregate --duration month --ecosystem npm --output npm.json

  # Check declared packages against the last snapshot
  advisory-aggregator match --ecosystem npm --package lodash@4.17.20 --cached

  # Summary table of the last snapshot
  advisory-aggregator stats`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(newAggregateCmd())
	rootCmd.AddCommand(newMatchCmd())
	rootCmd.AddCommand(newStatsCmd())
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, xerrors.Errorf("config error: %w", err)
	}
	return cfg, nil
}

// snapshotPath falls back to the snapshot inside the configured cache directory.
func snapshotPath(flag string, cfg config.Config) string {
	if flag != "" {
		return flag
	}
	return utils.SnapshotPath(cfg.Cache.Dir)
}

// writeJSON writes v to path, or to w when path is empty.
func writeJSON(w io.Writer, path string, v interface{}) error {
	if path != "" {
		return utils.NewFs(afero.NewOsFs()).WriteJSON(path, v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return xerrors.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
