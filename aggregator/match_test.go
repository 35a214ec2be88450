package aggregator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/advisory-aggregator/aggregator"
	"github.com/aquasecurity/advisory-aggregator/batch"
	"github.com/aquasecurity/advisory-aggregator/matcher"
	"github.com/aquasecurity/advisory-aggregator/types"
)

type fakeFetcher struct {
	queries [][]string
}

func (f *fakeFetcher) FetchForPackages(_ context.Context, refs []string, eco types.Ecosystem) ([]types.Advisory, error) {
	f.queries = append(f.queries, refs)
	var list []types.Advisory
	for _, ref := range refs {
		list = append(list, types.Advisory{ID: "GHSA-" + ref, Ecosystem: eco, PackageName: ref})
	}
	return list, nil
}

func TestAggregator_MatchPackages(t *testing.T) {
	fetcher := &fakeFetcher{}
	m := matcher.New(fetcher, matcher.WithPolicy(batch.Policy{
		Name:  "match",
		Size:  2,
		Sleep: func(context.Context, time.Duration) error { return nil },
	}))
	agg := aggregator.New(nil, aggregator.WithClock(clock))

	got := agg.MatchPackages(context.Background(), m, aggregator.MatchRequest{
		Ecosystem: "npm",
		Packages: []types.PackageRef{
			{Name: "a", Version: "1.0.0"},
			{Name: " ", Version: "1.0.0"},
			{Name: "b", Version: "2.0.0"},
			{Name: "c", Version: "3.0.0"},
		},
	})

	require.Empty(t, got.Error)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, [][]string{{"a@1.0.0", "b@2.0.0"}, {"c@3.0.0"}}, fetcher.queries)
	assert.Equal(t, now, got.FetchedAt)

	bad := agg.MatchPackages(context.Background(), m, aggregator.MatchRequest{Ecosystem: "cargo"})
	assert.Equal(t, -1, bad.Count)
	assert.Equal(t, "unsupported ecosystem: cargo", bad.Error)
}

func TestAggregator_MatchCached(t *testing.T) {
	cached := aggregator.Result{
		FetchedAt: now,
		Count:     3,
		Advisories: []types.Advisory{
			{ID: "GHSA-lp-1", Ecosystem: types.Npm, PackageName: "left-pad", AffectedVersions: []string{">=1.0.0 <2.0.0"}},
			{ID: "GHSA-lp-2", Ecosystem: types.Npm, PackageName: "left-pad", AffectedVersions: []string{">=2.0.0"}},
			{ID: "GHSA-mvn", Ecosystem: types.Maven, PackageName: "left-pad", AffectedVersions: []string{"<5.0"}},
		},
	}
	refs := []types.PackageRef{{Name: "left-pad", Version: "1.2.3"}}
	agg := aggregator.New(nil, aggregator.WithClock(clock))

	tests := []struct {
		name      string
		ecosystem string
		wantIDs   []string
		wantErr   string
	}{
		{name: "npm only", ecosystem: "npm", wantIDs: []string{"GHSA-lp-1"}},
		{name: "every ecosystem", wantIDs: []string{"GHSA-lp-1", "GHSA-mvn"}},
		{name: "unsupported", ecosystem: "go", wantErr: "unsupported ecosystem: go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := agg.MatchCached(cached, aggregator.MatchRequest{Ecosystem: tt.ecosystem, Packages: refs})
			if tt.wantErr != "" {
				assert.Equal(t, -1, got.Count)
				assert.Equal(t, tt.wantErr, got.Error)
				return
			}
			var ids []string
			for _, a := range got.Advisories {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(tt.wantIDs), got.Count)
			require.Len(t, got.Packages, 1)
			assert.Equal(t, "left-pad", got.Packages[0].Name)
			if tt.ecosystem == "npm" {
				assert.Equal(t, "https://www.npmjs.com/package/left-pad/v/1.2.3", got.Packages[0].URL)
			}
		})
	}

	failed := agg.MatchCached(aggregator.Result{Count: -1, Error: "boom"}, aggregator.MatchRequest{Packages: refs})
	assert.Equal(t, -1, failed.Count)
	assert.Contains(t, failed.Error, "boom")
}
