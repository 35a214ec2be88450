package ghsa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/types"
)

const (
	apiURL         = "https://api.github.com"
	defaultPerPage = 100
	apiVersion     = "2022-11-28"
	dateLayout     = "2006-01-02"
)

type options struct {
	url     string
	token   string
	perPage int
	client  *http.Client
	now     func() time.Time
}

type option func(*options)

func WithURL(url string) option {
	return func(opts *options) { opts.url = url }
}

// WithToken authenticates requests with a GitHub token. An empty token keeps anonymous access.
func WithToken(token string) option {
	return func(opts *options) { opts.token = token }
}

func WithPerPage(perPage int) option {
	return func(opts *options) { opts.perPage = perPage }
}

func WithClient(client *http.Client) option {
	return func(opts *options) { opts.client = client }
}

func WithClock(now func() time.Time) option {
	return func(opts *options) { opts.now = now }
}

type Config struct {
	*options
}

func NewConfig(opts ...option) Config {
	o := &options{
		url:     apiURL,
		perPage: defaultPerPage,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: 60 * time.Second}
		if o.token != "" {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.token})
			ctx := context.WithValue(context.Background(), oauth2.HTTPClient, o.client)
			o.client = oauth2.NewClient(ctx, ts)
		}
	}
	return Config{options: o}
}

func (c Config) Source() types.Source {
	return types.SourceGHSA
}

// Fetch returns the advisories of the ecosystem published within the last req.Days days.
func (c Config) Fetch(ctx context.Context, req types.FetchRequest) ([]types.Advisory, error) {
	log.Printf("Fetching GitHub Security Advisory: %s", req.Ecosystem)

	now := c.now().UTC()
	from := now.AddDate(0, 0, -req.Days)
	q := url.Values{}
	q.Set("ecosystem", string(req.Ecosystem))
	q.Set("per_page", fmt.Sprint(c.perPage))
	q.Set("published", fmt.Sprintf("%s..%s", from.Format(dateLayout), now.Format(dateLayout)))

	advisories, err := c.list(ctx, q)
	if err != nil {
		return nil, xerrors.Errorf("failed to fetch github security advisories: %w", err)
	}
	return toAdvisories(advisories, req.Ecosystem), nil
}

// FetchForPackages returns the advisories affecting any of the "name@version" references.
func (c Config) FetchForPackages(ctx context.Context, refs []string, ecosystem types.Ecosystem) ([]types.Advisory, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("ecosystem", string(ecosystem))
	q.Set("affects", strings.Join(refs, ","))
	q.Set("per_page", fmt.Sprint(c.perPage))

	advisories, err := c.list(ctx, q)
	if err != nil {
		return nil, xerrors.Errorf("failed to fetch github security advisories for packages: %w", err)
	}
	return toAdvisories(advisories, ecosystem), nil
}

func (c Config) list(ctx context.Context, q url.Values) ([]Advisory, error) {
	u := fmt.Sprintf("%s/advisories?%s", strings.TrimSuffix(c.url, "/"), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to build a request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("HTTP error. url: %s, err: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, xerrors.Errorf("HTTP error. status code: %d, url: %s, body: %s", resp.StatusCode, u, strings.TrimSpace(string(body)))
	}

	var advisories []Advisory
	if err = json.NewDecoder(resp.Body).Decode(&advisories); err != nil {
		return nil, xerrors.Errorf("failed to decode github security advisories: %w", err)
	}
	return advisories, nil
}

func toAdvisories(advisories []Advisory, ecosystem types.Ecosystem) []types.Advisory {
	var result []types.Advisory
	for _, adv := range advisories {
		a, ok := toAdvisory(adv, ecosystem)
		if !ok {
			continue
		}
		result = append(result, a)
	}
	return result
}

func toAdvisory(adv Advisory, ecosystem types.Ecosystem) (types.Advisory, bool) {
	if adv.GhsaID == "" {
		return types.Advisory{}, false
	}

	eco := ecosystem
	var names, ranges []string
	var patched string
	var supported int
	for _, v := range adv.Vulnerabilities {
		if v.Package.Ecosystem != "" {
			e, ok := types.ParseEcosystem(v.Package.Ecosystem)
			if !ok {
				continue
			}
			eco = e
		}
		supported++
		if name := strings.TrimSpace(v.Package.Name); name != "" {
			names = append(names, name)
		}
		if r := strings.TrimSpace(v.VulnerableVersionRange); r != "" {
			ranges = append(ranges, r)
		}
		if patched == "" {
			patched = strings.TrimSpace(v.FirstPatchedVersion)
		}
	}
	if len(adv.Vulnerabilities) > 0 && supported == 0 {
		return types.Advisory{}, false
	}
	if _, ok := types.ParseEcosystem(string(eco)); !ok {
		return types.Advisory{}, false
	}

	a := types.Advisory{
		ID:                 adv.GhsaID,
		CVEID:              adv.CveID,
		Ecosystem:          eco,
		PackageName:        strings.Join(lo.Uniq(names), ", "),
		AffectedVersions:   ranges,
		PatchedVersion:     patched,
		Source:             types.SourceGHSA,
		PublishedDate:      adv.PublishedAt,
		ModifiedDate:       adv.UpdatedAt,
		Summary:            adv.Summary,
		Description:        adv.Description,
		DetailURL:          adv.HTMLURL,
		References:         adv.References,
		Type:               types.TypeVulnerability,
		Reviewed:           adv.Type == "reviewed",
		ReviewType:         adv.Type,
		SourceCodeLocation: adv.SourceCodeLocation,
	}
	if adv.Type == "malware" {
		a.Type = types.TypeMalware
	}

	for _, id := range adv.Identifiers {
		if id.Value != "" && id.Value != adv.GhsaID {
			a.Aliases = append(a.Aliases, id.Value)
		}
	}
	if len(a.Aliases) > 1 {
		a.Aliases = lo.Uniq(a.Aliases)
	}

	for _, cwe := range adv.CWEs {
		a.Weaknesses = append(a.Weaknesses, types.Weakness{ID: cwe.CweID, Name: cwe.Name})
	}

	if cvss := preferredCVSS(adv); cvss != nil {
		a.Score = cvss.Score
		a.ScoreVector = cvss.VectorString
	}

	a.Severity = severity(adv.Severity, a.Score)

	if adv.EPSS != nil {
		a.EPSS = &types.EPSS{
			Probability: float64(adv.EPSS.Percentage),
			Percentile:  float64(adv.EPSS.Percentile),
		}
	}
	return a, true
}

// preferredCVSS picks CVSS v4 over v3, falling back to the legacy cvss field.
func preferredCVSS(adv Advisory) *CVSS {
	if s := adv.CVSSSeverities; s != nil {
		for _, c := range []*CVSS{s.CVSSV4, s.CVSSV3} {
			if c != nil && c.Score != nil && *c.Score > 0 {
				return c
			}
		}
	}
	if adv.CVSS != nil && adv.CVSS.Score != nil && *adv.CVSS.Score > 0 {
		return adv.CVSS
	}
	return nil
}

// severity normalizes the GitHub label; "unknown" falls back to the score band, then LOW.
func severity(label string, score *float64) types.Severity {
	if s, ok := types.ParseSeverity(label); ok {
		return s
	}
	if score != nil {
		return types.SeverityFromScore(*score)
	}
	return types.SeverityLow
}
