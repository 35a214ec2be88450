// Package config loads the aggregator settings from an optional YAML file and the environment.
package config

import (
	"os"
	"strings"
	"time"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/aquasecurity/advisory-aggregator/utils"
)

type Config struct {
	GHSA   GHSA   `yaml:"ghsa"`
	OSV    OSV    `yaml:"osv"`
	Snyk   Snyk   `yaml:"snyk"`
	Match  Match  `yaml:"match"`
	Cache  Cache  `yaml:"cache"`
	APIKey string `yaml:"api_key"`
	// Retry is the number of extra attempts for every HTTP request. Zero disables retries.
	Retry int `yaml:"retry"`
}

type GHSA struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	PerPage int    `yaml:"per_page"`
}

type OSV struct {
	URL             string `yaml:"url"`
	APIURL          string `yaml:"api_url"`
	Pages           int    `yaml:"pages"`
	DetailBatchSize int    `yaml:"detail_batch_size"`
}

type Snyk struct {
	URL             string        `yaml:"url"`
	Pages           int           `yaml:"pages"`
	DetailBatchSize int           `yaml:"detail_batch_size"`
	DetailDelay     time.Duration `yaml:"detail_delay"`
}

type Match struct {
	BatchSize int           `yaml:"batch_size"`
	Delay     time.Duration `yaml:"delay"`
}

type Cache struct {
	TTL time.Duration `yaml:"ttl"`
	Dir string        `yaml:"dir"`
}

func Default() Config {
	return Config{
		GHSA: GHSA{
			URL:     "https://api.github.com",
			PerPage: 100,
		},
		OSV: OSV{
			URL:             "https://osv.dev",
			APIURL:          "https://api.osv.dev",
			Pages:           1,
			DetailBatchSize: 6,
		},
		Snyk: Snyk{
			URL:             "https://security.snyk.io",
			Pages:           1,
			DetailBatchSize: 6,
		},
		Match: Match{
			BatchSize: 50,
			Delay:     1500 * time.Millisecond,
		},
		Cache: Cache{
			TTL: 2 * time.Hour,
			Dir: utils.CacheDir(),
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, xerrors.Errorf("failed to read config file: %w", err)
		}
		if err = yaml.UnmarshalStrict(b, &cfg); err != nil {
			return Config{}, xerrors.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.GHSA.Token = utils.LookupEnv("GITHUB_TOKEN", c.GHSA.Token)
	c.GHSA.URL = utils.LookupEnv("ADVISORY_GHSA_URL", c.GHSA.URL)
	c.OSV.URL = utils.LookupEnv("ADVISORY_OSV_URL", c.OSV.URL)
	c.OSV.APIURL = utils.LookupEnv("ADVISORY_OSV_API_URL", c.OSV.APIURL)
	c.Snyk.URL = utils.LookupEnv("ADVISORY_SNYK_URL", c.Snyk.URL)
	c.APIKey = utils.LookupEnv("ADVISORY_API_KEY", c.APIKey)
}

func (c Config) Validate() error {
	var problems []string
	for name, u := range map[string]string{
		"ghsa.url":    c.GHSA.URL,
		"osv.url":     c.OSV.URL,
		"osv.api_url": c.OSV.APIURL,
		"snyk.url":    c.Snyk.URL,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			problems = append(problems, name+" must be an http(s) URL")
		}
	}
	if c.GHSA.PerPage <= 0 || c.GHSA.PerPage > 100 {
		problems = append(problems, "ghsa.per_page must be between 1 and 100")
	}
	if c.Match.BatchSize <= 0 {
		problems = append(problems, "match.batch_size must be positive")
	}
	if c.OSV.DetailBatchSize <= 0 || c.Snyk.DetailBatchSize <= 0 {
		problems = append(problems, "detail_batch_size must be positive")
	}
	if c.Retry < 0 {
		problems = append(problems, "retry must not be negative")
	}
	if len(problems) > 0 {
		return xerrors.Errorf("invalid config: %s", strings.Join(problems, ", "))
	}
	return nil
}
