package snyk

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/batch"
	"github.com/aquasecurity/advisory-aggregator/types"
	"github.com/aquasecurity/advisory-aggregator/utils"
	"github.com/aquasecurity/advisory-aggregator/window"
)

const baseURL = "https://security.snyk.io"

var listEcosystems = map[types.Ecosystem]string{
	types.Npm:   "npm",
	types.Maven: "maven",
	types.Nuget: "nuget",
}

type options struct {
	url    string
	pages  int
	retry  int
	policy batch.Policy
	now    func() time.Time
}

type option func(*options)

func WithURL(url string) option {
	return func(opts *options) {
		opts.url = url
	}
}

func WithPages(pages int) option {
	return func(opts *options) {
		opts.pages = pages
	}
}

func WithRetry(retry int) option {
	return func(opts *options) {
		opts.retry = retry
	}
}

// WithDetailPolicy controls how detail pages are batched and how long to wait between batches.
func WithDetailPolicy(p batch.Policy) option {
	return func(opts *options) {
		opts.policy = p
	}
}

func WithClock(now func() time.Time) option {
	return func(opts *options) {
		opts.now = now
	}
}

type Scraper struct {
	*options
}

func NewScraper(opts ...option) Scraper {
	o := &options{
		url:    baseURL,
		pages:  1,
		policy: batch.DetailPolicy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return Scraper{options: o}
}

func (s Scraper) Source() types.Source {
	return types.SourceSnyk
}

// Fetch scrapes the listing, then every advisory's detail page. Rows known to be older than the
// window are not looked up.
func (s Scraper) Fetch(ctx context.Context, req types.FetchRequest) ([]types.Advisory, error) {
	log.Printf("Fetching Snyk advisories: %s", req.Ecosystem)

	listed, err := s.list(ctx, req.Ecosystem)
	if err != nil {
		return nil, xerrors.Errorf("failed to fetch Snyk listing: %w", err)
	}

	now := s.now()
	var candidates []types.Advisory
	for _, a := range listed {
		if a.PublishedDate != nil && !window.Within(a.PublishedDate, req.Days, now) {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	details := batch.Run(ctx, candidates, s.policy, batch.Each(s.detail))
	byID := map[string]types.Advisory{}
	for _, d := range details {
		byID[d.ID] = d
	}

	advisories := make([]types.Advisory, 0, len(candidates))
	for _, a := range candidates {
		if d, ok := byID[a.ID]; ok {
			a = d
		}
		a.Severity = resolveSeverity(a.Severity, a.Score)
		advisories = append(advisories, a)
	}
	return advisories, nil
}

func (s Scraper) list(ctx context.Context, eco types.Ecosystem) ([]types.Advisory, error) {
	listEco, ok := listEcosystems[eco]
	if !ok {
		return nil, xerrors.Errorf("unsupported ecosystem: %s", eco)
	}

	var advisories []types.Advisory
	for page := 1; page <= s.pages; page++ {
		url := fmt.Sprintf("%s/vuln/%s", s.url, listEco)
		if page > 1 {
			url = fmt.Sprintf("%s/%d", url, page)
		}
		body, err := utils.FetchURL(ctx, url, nil, s.retry)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Printf("Snyk listing page %d failed, keeping %d advisories: %s", page, len(advisories), err)
			break
		}
		rows, err := parseListing(body, eco, s.url)
		if err != nil {
			return nil, xerrors.Errorf("failed to parse Snyk listing page %d: %w", page, err)
		}
		advisories = append(advisories, rows...)
	}
	return advisories, nil
}

// detail loads the advisory page and merges it over the listing row.
func (s Scraper) detail(ctx context.Context, listed types.Advisory) (types.Advisory, error) {
	url := fmt.Sprintf("%s/vuln/%s", s.url, listed.ID)
	body, err := utils.FetchURL(ctx, url, nil, s.retry)
	if err != nil {
		return types.Advisory{}, xerrors.Errorf("Snyk detail %s: %w", listed.ID, err)
	}
	a, err := parseDetail(body, listed)
	if err != nil {
		return types.Advisory{}, xerrors.Errorf("Snyk detail %s: %w", listed.ID, err)
	}
	return a, nil
}
