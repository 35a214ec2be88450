package cmd

import (
	"github.com/aquasecurity/advisory-aggregator/aggregator"
	"github.com/aquasecurity/advisory-aggregator/batch"
	"github.com/aquasecurity/advisory-aggregator/config"
	"github.com/aquasecurity/advisory-aggregator/ghsa"
	"github.com/aquasecurity/advisory-aggregator/matcher"
	"github.com/aquasecurity/advisory-aggregator/metrics"
	"github.com/aquasecurity/advisory-aggregator/osv"
	"github.com/aquasecurity/advisory-aggregator/snyk"
)

func newGHSA(cfg config.Config) ghsa.Config {
	return ghsa.NewConfig(
		ghsa.WithURL(cfg.GHSA.URL),
		ghsa.WithToken(cfg.GHSA.Token),
		ghsa.WithPerPage(cfg.GHSA.PerPage),
	)
}

// newSources returns the adapters in the order their records take precedence.
func newSources(cfg config.Config, m *metrics.Metrics) []aggregator.Source {
	osvPolicy := batch.DetailPolicy
	osvPolicy.Name = "osv-detail"
	osvPolicy.Size = cfg.OSV.DetailBatchSize
	osvPolicy.OnFailure = m.BatchFailed

	snykPolicy := batch.DetailPolicy
	snykPolicy.Name = "snyk-detail"
	snykPolicy.Size = cfg.Snyk.DetailBatchSize
	snykPolicy.Delay = cfg.Snyk.DetailDelay
	snykPolicy.OnFailure = m.BatchFailed

	return []aggregator.Source{
		newGHSA(cfg),
		osv.NewOsv(
			osv.WithURL(cfg.OSV.URL),
			osv.WithAPIURL(cfg.OSV.APIURL),
			osv.WithPages(cfg.OSV.Pages),
			osv.WithRetry(cfg.Retry),
			osv.WithDetailPolicy(osvPolicy),
		),
		snyk.NewScraper(
			snyk.WithURL(cfg.Snyk.URL),
			snyk.WithPages(cfg.Snyk.Pages),
			snyk.WithRetry(cfg.Retry),
			snyk.WithDetailPolicy(snykPolicy),
		),
	}
}

func newMatcher(cfg config.Config, m *metrics.Metrics) matcher.Matcher {
	policy := batch.MatchPolicy
	policy.Size = cfg.Match.BatchSize
	policy.Delay = cfg.Match.Delay
	policy.Retry = cfg.Retry
	policy.OnFailure = m.BatchFailed
	policy.ShowProgress = true
	return matcher.New(newGHSA(cfg), matcher.WithPolicy(policy))
}
