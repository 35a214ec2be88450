// Package matcher finds the advisories that affect a set of declared packages.
package matcher

import (
	"context"
	"log"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/exp/slices"

	"github.com/aquasecurity/advisory-aggregator/batch"
	"github.com/aquasecurity/advisory-aggregator/types"
)

// Fetcher queries a source that filters advisories by exact package versions.
type Fetcher interface {
	FetchForPackages(ctx context.Context, refs []string, ecosystem types.Ecosystem) ([]types.Advisory, error)
}

type Matcher struct {
	fetcher Fetcher
	policy  batch.Policy
}

type option func(*Matcher)

func WithPolicy(p batch.Policy) option {
	return func(m *Matcher) { m.policy = p }
}

func New(fetcher Fetcher, opts ...option) Matcher {
	m := Matcher{
		fetcher: fetcher,
		policy:  batch.MatchPolicy,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Live asks the source for advisories affecting the exact package versions, in rate limited
// batches. Packages without a name are ignored. Failed batches contribute nothing.
func (m Matcher) Live(ctx context.Context, ecosystem types.Ecosystem, refs []types.PackageRef) []types.Advisory {
	var queries []string
	for _, ref := range refs {
		if strings.TrimSpace(ref.Name) == "" {
			continue
		}
		queries = append(queries, ref.String())
	}
	if len(queries) == 0 {
		return []types.Advisory{}
	}

	log.Printf("Matching %d packages in %d batches", len(queries), (len(queries)+m.policy.Size-1)/max(m.policy.Size, 1))
	matched := batch.Run(ctx, queries, m.policy, func(ctx context.Context, chunk []string) ([]types.Advisory, error) {
		return m.fetcher.FetchForPackages(ctx, chunk, ecosystem)
	})
	if matched == nil {
		matched = []types.Advisory{}
	}
	return matched
}

type PackageMatch struct {
	Name       string           `json:"name"`
	Version    string           `json:"version"`
	URL        string           `json:"url,omitempty"`
	Advisories []types.Advisory `json:"advisories"`
}

// Group evaluates every declared package against an already aggregated advisory list and
// returns the matches per package, in the order the packages were declared. Advisories of a
// package are ordered from CRITICAL down. An empty ecosystem takes the registry URL from the
// first matching advisory.
func Group(ecosystem types.Ecosystem, advisories []types.Advisory, refs []types.PackageRef) []PackageMatch {
	byName := map[string][]int{}
	for i, a := range advisories {
		for _, name := range lo.Uniq(a.PackageNames()) {
			byName[name] = append(byName[name], i)
		}
	}

	var matches []PackageMatch
	for _, ref := range refs {
		if ref.Name == "" {
			continue
		}
		pm := PackageMatch{Name: ref.Name, Version: ref.Version, Advisories: []types.Advisory{}}
		for _, i := range byName[ref.Name] {
			if SatisfiesAny(ref.Version, advisories[i].AffectedVersions) {
				pm.Advisories = append(pm.Advisories, advisories[i])
			}
		}
		slices.SortStableFunc(pm.Advisories, func(a, b types.Advisory) int {
			return a.Severity.Rank() - b.Severity.Rank()
		})

		eco := ecosystem
		if eco == "" && len(pm.Advisories) > 0 {
			eco = pm.Advisories[0].Ecosystem
		}
		pm.URL = types.PackageURL(eco, ref.Name, ref.Version)
		matches = append(matches, pm)
	}
	return matches
}

// Cached flattens Group into the list of satisfying advisories. An advisory affecting several
// declared packages appears once per package.
func Cached(ecosystem types.Ecosystem, advisories []types.Advisory, refs []types.PackageRef) []types.Advisory {
	return Flatten(Group(ecosystem, advisories, refs))
}

func Flatten(matches []PackageMatch) []types.Advisory {
	result := []types.Advisory{}
	for _, pm := range matches {
		result = append(result, pm.Advisories...)
	}
	return result
}
