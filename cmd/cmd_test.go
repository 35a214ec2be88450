package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/advisory-aggregator/aggregator"
	"github.com/aquasecurity/advisory-aggregator/cache"
	"github.com/aquasecurity/advisory-aggregator/config"
	"github.com/aquasecurity/advisory-aggregator/types"
	"github.com/aquasecurity/advisory-aggregator/window"
)

func TestPackageRefs(t *testing.T) {
	tests := []struct {
		name    string
		opts    matchOptions
		want    []types.PackageRef
		wantErr string
	}{
		{
			name: "file then flags",
			opts: matchOptions{
				packagesFile: "../config/testdata/packages.yaml",
				packages:     []string{"lodash@4.17.20"},
			},
			want: []types.PackageRef{
				{Name: "left-pad", Version: "1.2.3"},
				{Name: "@babel/core", Version: "7.0.0"},
				{Name: "lodash", Version: "4.17.20"},
			},
		},
		{
			name:    "bad flag",
			opts:    matchOptions{packages: []string{"lodash"}},
			wantErr: "expected name@version",
		},
		{
			name:    "nothing",
			wantErr: "no packages given",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := packageRefs(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeSnapshot(t *testing.T, res aggregator.Result) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	c := cache.New[aggregator.Result]()
	c.Set(res)
	require.NoError(t, c.Save(afero.NewOsFs(), path))
	return path
}

func TestStatsCmd(t *testing.T) {
	fetchedAt := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	path := writeSnapshot(t, aggregator.Result{
		FetchedAt: fetchedAt,
		Count:     2,
		Duration:  window.Week,
		Advisories: []types.Advisory{
			{ID: "GHSA-1", Ecosystem: types.Npm, Severity: types.SeverityHigh},
			{ID: "GHSA-2", Ecosystem: types.Maven, Severity: types.SeverityLow},
		},
	})

	t.Run("json", func(t *testing.T) {
		cmd := newStatsCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{"--snapshot", path, "--json"})
		require.NoError(t, cmd.Execute())

		var got struct {
			Total      int            `json:"total"`
			Ecosystems map[string]int `json:"ecosystems"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.Equal(t, 2, got.Total)
		assert.Equal(t, map[string]int{"npm": 1, "maven": 1, "nuget": 0}, got.Ecosystems)
	})

	t.Run("table", func(t *testing.T) {
		cmd := newStatsCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{"--snapshot", path})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "maven")
		assert.Contains(t, out.String(), "window 7 days")
	})

	t.Run("missing snapshot", func(t *testing.T) {
		cmd := newStatsCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--snapshot", filepath.Join(t.TempDir(), "none.json")})
		assert.ErrorContains(t, cmd.Execute(), "failed to load snapshot")
	})
}

func TestMatchCmd_Cached(t *testing.T) {
	path := writeSnapshot(t, aggregator.Result{
		FetchedAt: time.Now(),
		Count:     1,
		Advisories: []types.Advisory{
			{ID: "GHSA-lp", Ecosystem: types.Npm, PackageName: "left-pad", AffectedVersions: []string{">=1.0.0 <2.0.0"}},
		},
	})

	cmd := newMatchCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--cached", "--snapshot", path, "--package", "left-pad@1.2.3"})
	require.NoError(t, cmd.Execute())

	var got aggregator.MatchResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
	require.Len(t, got.Advisories, 1)
	assert.Equal(t, "GHSA-lp", got.Advisories[0].ID)
}

func TestSnapshotPath(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Dir = "/var/cache/advisories"

	assert.Equal(t, filepath.Join("/var/cache/advisories", "snapshot.json"), snapshotPath("", cfg))
	assert.Equal(t, "custom.json", snapshotPath("custom.json", cfg))
}

func TestStatsCmd_CacheDirFromConfig(t *testing.T) {
	dir := t.TempDir()
	c := cache.New[aggregator.Result]()
	c.Set(aggregator.Result{
		FetchedAt:  time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		Count:      1,
		Duration:   window.Month,
		Advisories: []types.Advisory{{ID: "GHSA-1", Ecosystem: types.Nuget, Severity: types.SeverityCritical}},
	})
	require.NoError(t, c.Save(afero.NewOsFs(), filepath.Join(dir, "snapshot.json")))

	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("cache:\n  dir: "+dir+"\n"), 0o600))
	configPath = cfgFile
	t.Cleanup(func() { configPath = "" })

	cmd := newStatsCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--json"})
	require.NoError(t, cmd.Execute())

	var got struct {
		Total      int            `json:"total"`
		Ecosystems map[string]int `json:"ecosystems"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got.Total)
	assert.Equal(t, 1, got.Ecosystems["nuget"])
}
