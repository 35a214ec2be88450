package osv

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/extract"
	"github.com/aquasecurity/advisory-aggregator/types"
	"github.com/aquasecurity/advisory-aggregator/utils"
)

const severityPrefix = "Severity -"

var (
	idChain   = extract.Chain{extract.ByText("a")}
	linkChain = extract.Chain{extract.ByAttr("a", "href")}
)

// parseListing reads one page of the vulnerability table. The first row is the header.
func parseListing(body []byte, eco types.Ecosystem, base string) ([]types.Advisory, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, xerrors.Errorf("failed to parse HTML: %w", err)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, xerrors.Errorf("invalid base URL: %w", err)
	}

	var advisories []types.Advisory
	doc.Find(".vuln-table-row").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		if a, ok := parseRow(row, eco, baseURL); ok {
			advisories = append(advisories, a)
		}
	})
	return advisories, nil
}

func parseRow(row *goquery.Selection, eco types.Ecosystem, base *url.URL) (types.Advisory, bool) {
	cells := row.Find(".vuln-table-cell")

	idCell := cells.Eq(0)
	id := idChain.Extract(idCell)
	if id == "" {
		return types.Advisory{}, false
	}

	a := types.Advisory{
		ID:        id,
		Ecosystem: eco,
		Severity:  types.SeverityCritical,
		Source:    types.SourceOSV,
		Type:      types.TypeVulnerability,
	}
	if strings.HasPrefix(id, "MAL-") {
		a.Type = types.TypeMalware
	}
	if href := linkChain.Extract(idCell); href != "" {
		if ref, err := url.Parse(href); err == nil {
			a.DetailURL = base.ResolveReference(ref).String()
		}
	}

	var packages []string
	cells.Eq(1).Find(".packages li").Each(func(_ int, li *goquery.Selection) {
		if name := trimEcosystem(utils.CollapseSpace(li.Text()), eco); name != "" {
			packages = append(packages, name)
		}
	})
	a.PackageName = strings.Join(packages, ", ")

	summary := utils.CollapseSpace(cells.Eq(2).Text())
	for _, label := range []string{listEcosystems[eco], string(eco)} {
		summary = strings.TrimSpace(strings.TrimSuffix(summary, " ("+label+")"))
	}
	a.Summary = summary

	published := cells.Eq(3)
	a.PublishedRelative = utils.CollapseSpace(published.Text())
	a.PublishedDate = types.TimePtr(extract.Time(published, "relative-time"))

	cells.Eq(4).Find(".tags li").Each(func(_ int, li *goquery.Selection) {
		applyTag(&a, utils.CollapseSpace(li.Text()))
	})
	return a, true
}

// trimEcosystem removes the "<ecosystem>/" prefix the listing puts in front of package names.
func trimEcosystem(name string, eco types.Ecosystem) string {
	prefix, rest, ok := strings.Cut(name, "/")
	if !ok {
		return name
	}
	if strings.EqualFold(prefix, string(eco)) {
		return strings.TrimSpace(rest)
	}
	return name
}

// applyTag reads one attribute tag. "Severity - 7.5 (High)" carries a score and a label.
// Remediation tags are mapped onto a severity: "No fix available" is CRITICAL and
// "Fix available" is LOW. Tags are applied in order, so a later tag wins.
func applyTag(a *types.Advisory, text string) {
	if _, value, ok := strings.Cut(text, severityPrefix); ok {
		parts := strings.Fields(value)
		if len(parts) != 2 {
			return
		}
		if score, err := strconv.ParseFloat(parts[0], 64); err == nil {
			a.Score = &score
		}
		if sev, ok := types.ParseSeverity(strings.Trim(parts[1], "()")); ok {
			a.Severity = sev
		}
		return
	}

	switch {
	case strings.EqualFold(text, "No fix available"):
		a.Severity = types.SeverityCritical
	case strings.EqualFold(text, "Fix available"):
		a.Severity = types.SeverityLow
	default:
		if sev, ok := types.ParseSeverity(text); ok {
			a.Severity = sev
		}
	}
}
