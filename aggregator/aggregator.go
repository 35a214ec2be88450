// Package aggregator runs every advisory source for the requested ecosystems and merges the
// results into a single deduplicated, windowed and risk classified list.
package aggregator

import (
	"context"
	"crypto/subtle"
	"log"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/batch"
	"github.com/aquasecurity/advisory-aggregator/dedup"
	"github.com/aquasecurity/advisory-aggregator/metrics"
	"github.com/aquasecurity/advisory-aggregator/risk"
	"github.com/aquasecurity/advisory-aggregator/stats"
	"github.com/aquasecurity/advisory-aggregator/types"
	"github.com/aquasecurity/advisory-aggregator/window"
)

var (
	ErrUnauthorized         = xerrors.New("unauthorized")
	ErrUnsupportedEcosystem = xerrors.New("unsupported ecosystem")
	ErrNoSources            = xerrors.New("no advisory sources configured")
)

// Source is implemented by every advisory adapter.
type Source interface {
	Source() types.Source
	Fetch(ctx context.Context, req types.FetchRequest) ([]types.Advisory, error)
}

type Request struct {
	Duration window.Selector
	// Ecosystem limits the run to one ecosystem. Empty means every supported ecosystem.
	Ecosystem string
	APIKey    string
}

type Result struct {
	FetchedAt  time.Time        `json:"fetchedAt"`
	Count      int              `json:"count"`
	Advisories []types.Advisory `json:"advisories"`
	Duration   window.Selector  `json:"duration,omitempty"`
	Error      string           `json:"error,omitempty"`
	Stats      *stats.Stats     `json:"stats,omitempty"`
}

type options struct {
	apiKey  string
	metrics *metrics.Metrics
	now     func() time.Time
}

type option func(*options)

// WithAPIKey makes every request carry the same key.
func WithAPIKey(key string) option {
	return func(opts *options) {
		opts.apiKey = key
	}
}

func WithMetrics(m *metrics.Metrics) option {
	return func(opts *options) {
		opts.metrics = m
	}
}

func WithClock(now func() time.Time) option {
	return func(opts *options) {
		opts.now = now
	}
}

type Aggregator struct {
	*options
	sources []Source
}

func New(sources []Source, opts ...option) Aggregator {
	o := &options{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return Aggregator{
		options: o,
		sources: sources,
	}
}

type job struct {
	source    Source
	ecosystem types.Ecosystem
}

// Aggregate never returns an error. Fatal failures are reported in the result envelope with a
// count of -1.
func (a Aggregator) Aggregate(ctx context.Context, req Request) (res Result) {
	start := a.now()
	defer func() {
		if r := recover(); r != nil {
			res = a.failure(xerrors.Errorf("aggregation panicked: %v", r))
		}
		a.metrics.Finished(a.now().Sub(start), res.Count)
	}()

	if err := a.authorize(req.APIKey); err != nil {
		return a.failure(err)
	}
	ecosystems, err := resolveEcosystems(req.Ecosystem)
	if err != nil {
		return a.failure(err)
	}
	if len(a.sources) == 0 {
		return a.failure(ErrNoSources)
	}

	duration := req.Duration.Normalize()
	days := duration.Days()

	var jobs []job
	for _, src := range a.sources {
		for _, eco := range ecosystems {
			jobs = append(jobs, job{source: src, ecosystem: eco})
		}
	}

	log.Printf("Aggregating %d sources for %s over the last %d days", len(a.sources), strings.Join(ecosystemNames(ecosystems), ", "), days)
	lists := batch.Concurrent(ctx, jobs, func(ctx context.Context, j job) ([]types.Advisory, error) {
		return a.run(ctx, j, days), nil
	})

	fetchedAt := a.now()
	merged := dedup.Dedupe(lists...)
	advisories := risk.ClassifyAll(window.Filter(merged, days, fetchedAt))
	s := stats.Compute(advisories, fetchedAt, days)

	log.Printf("Aggregated %d advisories (%d before window filter)", len(advisories), len(merged))
	return Result{
		FetchedAt:  fetchedAt,
		Count:      len(advisories),
		Advisories: advisories,
		Duration:   duration,
		Stats:      &s,
	}
}

// run invokes one source for one ecosystem. A failing source contributes an empty list.
func (a Aggregator) run(ctx context.Context, j job, days int) (advisories []types.Advisory) {
	name := j.source.Source()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s %s panicked: %v", name, j.ecosystem, r)
			a.metrics.SourceFailed(name, j.ecosystem)
			advisories = []types.Advisory{}
		}
	}()

	log.Printf("Fetching %s advisories: %s", name, j.ecosystem)
	advisories, err := j.source.Fetch(ctx, types.FetchRequest{Days: days, Ecosystem: j.ecosystem})
	if err != nil {
		log.Printf("%s %s failed: %s", name, j.ecosystem, err)
		a.metrics.SourceFailed(name, j.ecosystem)
		return []types.Advisory{}
	}
	a.metrics.SourceFetched(name, j.ecosystem, len(advisories))
	return advisories
}

func (a Aggregator) authorize(key string) error {
	if a.apiKey == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(a.apiKey), []byte(key)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (a Aggregator) failure(err error) Result {
	log.Printf("aggregation failed: %s", err)
	return Result{
		FetchedAt:  a.now(),
		Count:      -1,
		Advisories: []types.Advisory{},
		Error:      err.Error(),
	}
}

func resolveEcosystems(s string) ([]types.Ecosystem, error) {
	if strings.TrimSpace(s) == "" {
		return types.Ecosystems, nil
	}
	eco, ok := types.ParseEcosystem(s)
	if !ok {
		return nil, xerrors.Errorf("%w: %s", ErrUnsupportedEcosystem, s)
	}
	return []types.Ecosystem{eco}, nil
}

func ecosystemNames(ecosystems []types.Ecosystem) []string {
	var names []string
	for _, eco := range ecosystems {
		names = append(names, string(eco))
	}
	return names
}
