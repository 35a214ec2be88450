package cmd

import (
	"context"
	"log"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/aggregator"
	"github.com/aquasecurity/advisory-aggregator/cache"
	"github.com/aquasecurity/advisory-aggregator/config"
	"github.com/aquasecurity/advisory-aggregator/metrics"
	"github.com/aquasecurity/advisory-aggregator/types"
)

type matchOptions struct {
	ecosystem    string
	packages     []string
	packagesFile string
	cached       bool
	snapshot     string
	output       string
	timeout      time.Duration
}

func newMatchCmd() *cobra.Command {
	opts := matchOptions{}
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find the advisories affecting declared packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMatch(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.ecosystem, "ecosystem", "e", "npm", "npm, maven or nuget")
	cmd.Flags().StringArrayVarP(&opts.packages, "package", "p", nil, "package as name@version, repeatable")
	cmd.Flags().StringVar(&opts.packagesFile, "packages-file", "", "YAML list of {name, version}")
	cmd.Flags().BoolVar(&opts.cached, "cached", false, "match against the snapshot instead of querying GitHub")
	cmd.Flags().StringVar(&opts.snapshot, "snapshot", "", "snapshot written by aggregate (default: <cache.dir>/snapshot.json)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file path (default: stdout)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "overall deadline of the run")
	return cmd
}

func runMatch(cmd *cobra.Command, opts matchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	refs, err := packageRefs(opts)
	if err != nil {
		return err
	}
	req := aggregator.MatchRequest{Packages: refs, Ecosystem: opts.ecosystem}
	agg := aggregator.New(nil)

	var res aggregator.MatchResult
	if opts.cached {
		c := cache.New[aggregator.Result](cache.WithTTL(cfg.Cache.TTL))
		entry, err := c.Load(afero.NewOsFs(), snapshotPath(opts.snapshot, cfg))
		if err != nil {
			return err
		}
		if !c.Fresh() {
			log.Printf("snapshot from %s is older than %s", entry.FetchedAt.Format(time.RFC3339), cfg.Cache.TTL)
		}
		res = agg.MatchCached(entry.Data, req)
	} else {
		ctx, cancel := contextWithTimeout(cmd, opts.timeout)
		defer cancel()
		res = agg.MatchPackages(ctx, newMatcher(cfg, metrics.New()), req)
	}

	if err = writeJSON(cmd.OutOrStdout(), opts.output, res); err != nil {
		return xerrors.Errorf("output error: %w", err)
	}
	if res.Error != "" {
		return xerrors.Errorf("match failed: %s", res.Error)
	}
	return nil
}

func packageRefs(opts matchOptions) ([]types.PackageRef, error) {
	var refs []types.PackageRef
	if opts.packagesFile != "" {
		fromFile, err := config.LoadPackages(opts.packagesFile)
		if err != nil {
			return nil, err
		}
		refs = append(refs, fromFile...)
	}
	for _, p := range opts.packages {
		ref, err := config.ParsePackageRef(p)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil, xerrors.New("no packages given, use --package or --packages-file")
	}
	return refs, nil
}

func contextWithTimeout(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
