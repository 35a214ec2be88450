package matcher_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/advisory-aggregator/batch"
	"github.com/aquasecurity/advisory-aggregator/matcher"
	"github.com/aquasecurity/advisory-aggregator/types"
)

type fakeFetcher struct {
	calls   [][]string
	failOn  int
	results map[string]types.Advisory
}

func (f *fakeFetcher) FetchForPackages(_ context.Context, refs []string, eco types.Ecosystem) ([]types.Advisory, error) {
	f.calls = append(f.calls, refs)
	if len(f.calls) == f.failOn {
		return nil, errors.New("rate limited")
	}
	var res []types.Advisory
	for _, r := range refs {
		if a, ok := f.results[r]; ok {
			a.Ecosystem = eco
			res = append(res, a)
		}
	}
	return res, nil
}

func TestMatcher_Live(t *testing.T) {
	var slept []time.Duration
	policy := batch.MatchPolicy
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	refs := make([]types.PackageRef, 0, 120)
	for i := 0; i < 119; i++ {
		refs = append(refs, types.PackageRef{Name: "pkg" + strings.Repeat("x", i%3), Version: "1.0.0"})
	}
	refs = append(refs, types.PackageRef{Name: " ", Version: "1.0.0"})
	refs[0] = types.PackageRef{Name: "left-pad", Version: "1.2.3"}

	f := &fakeFetcher{results: map[string]types.Advisory{
		"left-pad@1.2.3": {ID: "GHSA-1111-2222-3333"},
	}}
	got := matcher.New(f, matcher.WithPolicy(policy)).Live(context.Background(), types.Npm, refs)

	require.Len(t, f.calls, 3)
	assert.Len(t, f.calls[0], 50)
	assert.Len(t, f.calls[1], 50)
	assert.Len(t, f.calls[2], 19)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, slept)
	require.Len(t, got, 1)
	assert.Equal(t, "GHSA-1111-2222-3333", got[0].ID)
	assert.Equal(t, types.Npm, got[0].Ecosystem)
}

func TestMatcher_LiveFailedBatch(t *testing.T) {
	policy := batch.Policy{Size: 1}
	f := &fakeFetcher{failOn: 1, results: map[string]types.Advisory{
		"a@1.0.0": {ID: "A"},
		"b@1.0.0": {ID: "B"},
	}}
	got := matcher.New(f, matcher.WithPolicy(policy)).Live(context.Background(), types.Npm, []types.PackageRef{
		{Name: "a", Version: "1.0.0"},
		{Name: "b", Version: "1.0.0"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].ID)
}

func TestMatcher_LiveEmpty(t *testing.T) {
	f := &fakeFetcher{}
	got := matcher.New(f).Live(context.Background(), types.Npm, []types.PackageRef{{Name: ""}})
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Empty(t, f.calls)
}

func TestCached(t *testing.T) {
	advisories := []types.Advisory{
		{ID: "in-range", PackageName: "left-pad", AffectedVersions: []string{">=1.0.0 <2.0.0"}},
		{ID: "above", PackageName: "left-pad", AffectedVersions: []string{">=2.0.0"}},
		{ID: "joined", PackageName: "lodash, left-pad", AffectedVersions: []string{"< 1.3.0"}},
		{ID: "two-ranges", PackageName: "left-pad", AffectedVersions: []string{"<0.5.0", "1.2.3"}},
		{ID: "other", PackageName: "express", AffectedVersions: []string{">=0"}},
	}

	tests := []struct {
		name string
		refs []types.PackageRef
		want []string
	}{
		{
			name: "left-pad 1.2.3",
			refs: []types.PackageRef{{Name: "left-pad", Version: "1.2.3"}},
			want: []string{"in-range", "joined", "two-ranges"},
		},
		{
			name: "left-pad 2.1.0",
			refs: []types.PackageRef{{Name: "left-pad", Version: "2.1.0"}},
			want: []string{"above"},
		},
		{
			name: "unknown package",
			refs: []types.PackageRef{{Name: "react", Version: "18.0.0"}},
		},
		{
			name: "unparsable version",
			refs: []types.PackageRef{{Name: "left-pad", Version: "latest"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ids []string
			for _, a := range matcher.Cached(types.Npm, advisories, tt.refs) {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGroup(t *testing.T) {
	advisories := []types.Advisory{
		{ID: "A", PackageName: "lodash, left-pad", AffectedVersions: []string{"< 5.0.0"}},
	}
	got := matcher.Group(types.Npm, advisories, []types.PackageRef{
		{Name: "lodash", Version: "4.17.20"},
		{Name: "left-pad", Version: "1.3.0"},
		{Name: "express", Version: "4.0.0"},
	})
	require.Len(t, got, 3)
	assert.Len(t, got[0].Advisories, 1)
	assert.Len(t, got[1].Advisories, 1)
	assert.Empty(t, got[2].Advisories)
	assert.Equal(t, "express", got[2].Name)
	assert.Equal(t, "https://www.npmjs.com/package/lodash/v/4.17.20", got[0].URL)
	assert.Equal(t, "https://www.npmjs.com/package/express/v/4.0.0", got[2].URL)
}

func TestGroup_SeverityOrder(t *testing.T) {
	advisories := []types.Advisory{
		{ID: "low", Ecosystem: types.Maven, Severity: types.SeverityLow, PackageName: "org.example:core", AffectedVersions: []string{"< 2.0"}},
		{ID: "unknown", Ecosystem: types.Maven, PackageName: "org.example:core", AffectedVersions: []string{"< 2.0"}},
		{ID: "critical", Ecosystem: types.Maven, Severity: types.SeverityCritical, PackageName: "org.example:core", AffectedVersions: []string{"1.x"}},
		{ID: "high", Ecosystem: types.Maven, Severity: types.SeverityHigh, PackageName: "org.example:core", AffectedVersions: []string{"1.0 - 1.9"}},
	}
	got := matcher.Group("", advisories, []types.PackageRef{{Name: "org.example:core", Version: "1.5.0.Final"}})

	require.Len(t, got, 1)
	var ids []string
	for _, a := range got[0].Advisories {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"critical", "high", "low", "unknown"}, ids)
	assert.Equal(t, "https://mvnrepository.com/artifact/org.example/core/1.5.0.Final", got[0].URL)
}
