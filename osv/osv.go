package osv

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

const (
	webURL = "https://osv.dev"
	apiURL = "https://api.osv.dev"
)

// listing pages are served as a turbo frame fragment
var listHeaders = map[string]string{"turbo-frame": "vulnerability-table-page"}

// the listing filter uses osv.dev's own ecosystem names
var listEcosystems = map[types.Ecosystem]string{
	types.Npm:   "npm",
	types.Maven: "Maven",
	types.Nuget: "NuGet",
}

type options struct {
	url    string
	apiURL string
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

func WithAPIURL(url string) option {
	return func(opts *options) {
		opts.apiURL = url
	}
}

// WithPages sets how many listing pages are scanned.
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

// WithDetailPolicy controls how detail lookups are batched.
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

type Database struct {
	*options
}

func NewOsv(opts ...option) Database {
	o := &options{
		url:    webURL,
		apiURL: apiURL,
		pages:  1,
		policy: batch.DetailPolicy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return Database{
		options: o,
	}
}

func (osv Database) Source() types.Source {
	return types.SourceOSV
}

// Fetch scrapes the listing for recent advisories and enriches the ones inside the window
// with data from the detail API.
func (osv Database) Fetch(ctx context.Context, req types.FetchRequest) ([]types.Advisory, error) {
	log.Printf("Fetching OSV advisories: %s", req.Ecosystem)

	listed, err := osv.list(ctx, req.Ecosystem)
	if err != nil {
		return nil, xerrors.Errorf("failed to fetch OSV listing: %w", err)
	}

	now := osv.now()
	var recent []types.Advisory
	for _, a := range listed {
		if window.Within(a.PublishedDate, req.Days, now) {
			recent = append(recent, a)
		}
	}
	if len(recent) == 0 {
		return nil, nil
	}

	return osv.enrichAll(ctx, recent), nil
}

func (osv Database) list(ctx context.Context, eco types.Ecosystem) ([]types.Advisory, error) {
	listEco, ok := listEcosystems[eco]
	if !ok {
		return nil, xerrors.Errorf("unsupported ecosystem: %s", eco)
	}

	var advisories []types.Advisory
	for page := 1; page <= osv.pages; page++ {
		url := fmt.Sprintf("%s/list?page=%d&ecosystem=%s", osv.url, page, listEco)
		body, err := utils.FetchURL(ctx, url, listHeaders, osv.retry)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Printf("OSV listing page %d failed, keeping %d advisories: %s", page, len(advisories), err)
			break
		}
		rows, err := parseListing(body, eco, osv.url)
		if err != nil {
			return nil, xerrors.Errorf("failed to parse OSV listing page %d: %w", page, err)
		}
		advisories = append(advisories, rows...)
	}
	return advisories, nil
}
