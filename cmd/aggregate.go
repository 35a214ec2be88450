package cmd

import (
	"log"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/aggregator"
	"github.com/aquasecurity/advisory-aggregator/cache"
	"github.com/aquasecurity/advisory-aggregator/metrics"
	"github.com/aquasecurity/advisory-aggregator/window"
)

type aggregateOptions struct {
	duration        string
	ecosystem       string
	apiKey          string
	output          string
	snapshot        string
	noSnapshot      bool
	metricsTextfile string
	timeout         time.Duration
}

func newAggregateCmd() *cobra.Command {
	opts := aggregateOptions{}
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Fetch, merge and filter recent advisories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAggregate(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.duration, "duration", "d", string(window.Default), "publication window: today, week or month")
	cmd.Flags().StringVarP(&opts.ecosystem, "ecosystem", "e", "", "npm, maven or nuget (default: all)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "key checked against api_key when one is configured")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file path (default: stdout)")
	cmd.Flags().StringVar(&opts.snapshot, "snapshot", "", "where to persist the result for match --cached and stats (default: <cache.dir>/snapshot.json)")
	cmd.Flags().BoolVar(&opts.noSnapshot, "no-snapshot", false, "do not persist the result")
	cmd.Flags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics in the textfile collector format")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Minute, "overall deadline of the run")
	return cmd
}

func runAggregate(cmd *cobra.Command, opts aggregateOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, opts.timeout)
	defer cancel()

	m := metrics.New()
	agg := aggregator.New(newSources(cfg, m),
		aggregator.WithAPIKey(cfg.APIKey),
		aggregator.WithMetrics(m),
	)
	res := agg.Aggregate(ctx, aggregator.Request{
		Duration:  window.Selector(opts.duration),
		Ecosystem: opts.ecosystem,
		APIKey:    opts.apiKey,
	})

	if err = writeJSON(cmd.OutOrStdout(), opts.output, res); err != nil {
		return xerrors.Errorf("output error: %w", err)
	}

	if opts.metricsTextfile != "" {
		if err = m.WriteTextfile(opts.metricsTextfile); err != nil {
			return err
		}
	}

	if res.Error != "" {
		return xerrors.Errorf("aggregation failed: %s", res.Error)
	}

	if !opts.noSnapshot {
		path := snapshotPath(opts.snapshot, cfg)
		c := cache.New[aggregator.Result](cache.WithTTL(cfg.Cache.TTL))
		entry := c.Set(res)
		if err = c.Save(afero.NewOsFs(), path); err != nil {
			return err
		}
		log.Printf("Snapshot saved to %s (version %d)", path, entry.Version)
	}
	return nil
}
