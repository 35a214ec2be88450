package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/advisory-aggregator/config"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		env     map[string]string
		check   func(t *testing.T, cfg config.Config)
		wantErr string
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "https://api.github.com", cfg.GHSA.URL)
				assert.Equal(t, 50, cfg.Match.BatchSize)
				assert.Equal(t, 1500*time.Millisecond, cfg.Match.Delay)
				assert.Equal(t, 6, cfg.OSV.DetailBatchSize)
				assert.Equal(t, 2*time.Hour, cfg.Cache.TTL)
			},
		},
		{
			name: "file over defaults",
			path: "testdata/config.yaml",
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, 50, cfg.GHSA.PerPage)
				assert.Equal(t, "https://api.github.com", cfg.GHSA.URL)
				assert.Equal(t, 2, cfg.OSV.Pages)
				assert.Equal(t, 2*time.Second, cfg.Snyk.DetailDelay)
				assert.Equal(t, 20, cfg.Match.BatchSize)
				assert.Equal(t, 3*time.Second, cfg.Match.Delay)
				assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
				assert.Equal(t, "/var/cache/advisories", cfg.Cache.Dir)
				assert.Equal(t, "from-file", cfg.APIKey)
			},
		},
		{
			name: "environment wins",
			path: "testdata/config.yaml",
			env: map[string]string{
				"GITHUB_TOKEN":      "ghp_token",
				"ADVISORY_API_KEY":  "from-env",
				"ADVISORY_OSV_URL":  "http://localhost:8080",
				"ADVISORY_SNYK_URL": "http://localhost:8081",
			},
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "ghp_token", cfg.GHSA.Token)
				assert.Equal(t, "from-env", cfg.APIKey)
				assert.Equal(t, "http://localhost:8080", cfg.OSV.URL)
				assert.Equal(t, "http://localhost:8081", cfg.Snyk.URL)
			},
		},
		{
			name:    "unknown key",
			path:    "testdata/unknown.yaml",
			wantErr: "failed to parse config file",
		},
		{
			name:    "missing file",
			path:    "testdata/missing.yaml",
			wantErr: "failed to read config file",
		},
		{
			name:    "zero per_page",
			path:    "testdata/per-page-zero.yaml",
			wantErr: "ghsa.per_page must be between 1 and 100",
		},
		{
			name:    "invalid url",
			env:     map[string]string{"ADVISORY_GHSA_URL": "ftp://example.com"},
			wantErr: "ghsa.url must be an http(s) URL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := config.Load(tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
