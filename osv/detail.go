package osv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goark/go-cvss/v3/metric"
	gocvss40 "github.com/pandatix/go-cvss/40"
	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/batch"
	"github.com/aquasecurity/advisory-aggregator/types"
	"github.com/aquasecurity/advisory-aggregator/utils"
)

type detail struct {
	index int
	entry OsvJson
}

// enrichAll looks every advisory up in the detail API, a batch at a time. Lookups inside a
// batch run concurrently. An advisory whose lookup fails is returned as listed.
func (osv Database) enrichAll(ctx context.Context, advisories []types.Advisory) []types.Advisory {
	indexes := lo.Range(len(advisories))
	details := batch.Run(ctx, indexes, osv.policy, batch.Each(func(ctx context.Context, i int) (detail, error) {
		entry, err := osv.fetchDetail(ctx, advisories[i].ID)
		if err != nil {
			return detail{}, xerrors.Errorf("OSV detail %s: %w", advisories[i].ID, err)
		}
		return detail{index: i, entry: entry}, nil
	}))

	for _, d := range details {
		advisories[d.index] = enrich(advisories[d.index], d.entry)
	}
	return advisories
}

func (osv Database) fetchDetail(ctx context.Context, id string) (OsvJson, error) {
	url := fmt.Sprintf("%s/v1/vulns/%s", osv.apiURL, id)
	body, err := utils.FetchURL(ctx, url, nil, osv.retry)
	if err != nil {
		return OsvJson{}, err
	}
	var entry OsvJson
	if err = json.Unmarshal(body, &entry); err != nil {
		return OsvJson{}, xerrors.Errorf("failed to decode OSV JSON: %w", err)
	}
	return entry, nil
}

// enrich fills or overrides listing fields with the detail record.
func enrich(a types.Advisory, entry OsvJson) types.Advisory {
	if t, err := time.Parse(time.RFC3339, entry.Modified); err == nil {
		a.ModifiedDate = &t
	}
	if a.PublishedDate == nil {
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			a.PublishedDate = &t
		}
	}

	if len(entry.Aliases) > 0 {
		a.Aliases = lo.Uniq(entry.Aliases)
		if cve, ok := lo.Find(a.Aliases, func(alias string) bool {
			return strings.HasPrefix(alias, "CVE-")
		}); ok {
			a.CVEID = cve
		}
	}

	if len(entry.Affected) > 0 {
		if versions := affectedVersions(entry.Affected[0]); len(versions) > 0 {
			a.AffectedVersions = versions
		}
		if a.PatchedVersion == "" {
			a.PatchedVersion = firstFixed(entry.Affected[0])
		}
	}

	if db := entry.DatabaseSpecific; db != nil {
		if sev, ok := types.ParseSeverity(db.Severity); ok {
			a.Severity = sev
		}
		for _, cwe := range db.CweIDs {
			a.Weaknesses = append(a.Weaknesses, types.Weakness{ID: cwe})
		}
		for _, origin := range db.MaliciousOrigins {
			if origin.Sha256 != "" {
				a.MaliciousHashes = append(a.MaliciousHashes, origin.Sha256)
			}
		}
	}

	if a.Score == nil {
		for _, s := range entry.Severity {
			if score, ok := scoreVector(s); ok {
				a.Score = &score
				a.ScoreVector = s.Score
				break
			}
		}
	}

	if a.Summary == "" {
		a.Summary = entry.Summary
	}
	if a.Description == "" {
		a.Description = entry.Details
	}
	if len(a.References) == 0 {
		for _, ref := range entry.References {
			if ref.Url != "" {
				a.References = append(a.References, ref.Url)
			}
		}
	}
	return a
}

// affectedVersions turns range events into comparator expressions, falling back to the
// enumerated versions. Git ranges carry commits, not versions, and are skipped.
func affectedVersions(affected OsvAffected) []string {
	var exprs []string
	for _, r := range affected.Ranges {
		if r.Type == "GIT" {
			continue
		}
		exprs = append(exprs, rangeExpressions(r.Events)...)
	}
	if len(exprs) > 0 {
		return exprs
	}
	return affected.Versions
}

func rangeExpressions(events []OsvEvent) []string {
	var (
		exprs      []string
		introduced string
		open       bool
	)
	lower := func() string {
		if introduced == "" || introduced == "0" {
			return ""
		}
		return ">=" + introduced + " "
	}
	for _, ev := range events {
		switch {
		case ev.Introduced != "":
			if open {
				exprs = append(exprs, ">="+introduced)
			}
			introduced, open = ev.Introduced, true
		case ev.Fixed != "":
			exprs = append(exprs, lower()+"<"+ev.Fixed)
			introduced, open = "", false
		case ev.LastAffected != "":
			exprs = append(exprs, lower()+"<="+ev.LastAffected)
			introduced, open = "", false
		case ev.Limit != "" && ev.Limit != "*":
			exprs = append(exprs, lower()+"<"+ev.Limit)
			introduced, open = "", false
		}
	}
	if open {
		exprs = append(exprs, ">="+introduced)
	}
	return exprs
}

func firstFixed(affected OsvAffected) string {
	for _, r := range affected.Ranges {
		for _, ev := range r.Events {
			if ev.Fixed != "" {
				return ev.Fixed
			}
		}
	}
	return ""
}

// scoreVector computes the base score of a CVSS v3 or v4 vector.
func scoreVector(s OsvSeverity) (float64, bool) {
	switch s.Type {
	case "CVSS_V3":
		bm, err := metric.NewBase().Decode(s.Score)
		if err != nil {
			return 0, false
		}
		return bm.Score(), true
	case "CVSS_V4":
		v, err := gocvss40.ParseVector(s.Score)
		if err != nil {
			return 0, false
		}
		return v.Score(), true
	}
	return 0, false
}
