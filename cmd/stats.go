package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/aggregator"
	"github.com/aquasecurity/advisory-aggregator/cache"
	"github.com/aquasecurity/advisory-aggregator/stats"
)

func newStatsCmd() *cobra.Command {
	var snapshot string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the last snapshot per ecosystem and severity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			entry, err := cache.New[aggregator.Result]().Load(afero.NewOsFs(), snapshotPath(snapshot, cfg))
			if err != nil {
				return err
			}
			res := entry.Data
			if res.Count < 0 {
				return xerrors.Errorf("snapshot holds a failed run: %s", res.Error)
			}
			s := stats.Compute(res.Advisories, res.FetchedAt, res.Duration.Days())
			if res.Stats != nil {
				s = *res.Stats
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), "", s)
			}
			stats.WriteTable(cmd.OutOrStdout(), s, !color.NoColor)
			return nil
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "snapshot written by aggregate (default: <cache.dir>/snapshot.json)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the statistics as JSON")
	return cmd
}
