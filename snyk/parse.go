package snyk

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/extract"
	"github.com/aquasecurity/advisory-aggregator/types"
	"github.com/aquasecurity/advisory-aggregator/utils"
)

var (
	idRe       = regexp.MustCompile(`SNYK-[A-Z0-9]+(?:-[A-Z0-9]+)*-\d+`)
	cveRe      = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)
	cweRe      = regexp.MustCompile(`CWE-\d+`)
	vectorRe   = regexp.MustCompile(`CVSS:[34]\.[01](?:/[A-Za-z]+:[A-Za-z])+`)
	scoreRe    = regexp.MustCompile(`^\d{1,2}(?:\.\d)?$`)
	upgradeRe  = regexp.MustCompile(`(?i)upgrade\s+\S+\s+to\s+version\s+([^\s,]+?)\.?\s+or\s+higher`)
	cweHrefRe  = regexp.MustCompile(`definitions/(\d+)`)
	intervalRe = regexp.MustCompile(`([\[(])\s*([^,\[\]()]*?)\s*(?:,\s*([^\[\]()]*?)\s*)?([\])])`)
)

var severityLabels = []extract.Label{
	{Name: "Critical", Abbrev: "C"},
	{Name: "High", Abbrev: "H"},
	{Name: "Medium", Abbrev: "M"},
	{Name: "Low", Abbrev: "L"},
}

// Listing rows.
var (
	titleChain = extract.Chain{
		extract.ByText(`a[href*="/vuln/SNYK-"]`),
		extract.ByText("td a"),
	}
	hrefChain = extract.Chain{
		extract.ByAttr(`a[href*="/vuln/SNYK-"]`, "href"),
	}
	packageChain = extract.Chain{
		extract.ByText(`a[href*="/package/"]`),
		extract.ByAttr("[data-snyk-test-package]", "data-snyk-test-package"),
	}
	listVersionsChain = extract.Chain{
		extract.ByText(".vulnerable-versions"),
		extract.ByAttr("[data-vulnerable-versions]", "data-vulnerable-versions"),
	}
	listSeverityChain = extract.Chain{
		extract.ByAttr("[data-snyk-test-severity]", "data-snyk-test-severity"),
		extract.ByLabel(".severity-badge, abbr", severityLabels...),
	}
)

// Detail pages.
var (
	severityChain = extract.Chain{
		extract.ByLabel("dt, span, li", extract.Label{Name: "Severity"}),
		extract.ByAttr("[data-snyk-test-severity]", "data-snyk-test-severity"),
		extract.ByLabel(".severity-badge, abbr", severityLabels...),
	}
	scoreChain = extract.Chain{
		extract.ByAttr("[data-cvss-score]", "data-cvss-score"),
		extract.ByLabel("dt, span, li", extract.Label{Name: "CVSS Score"}, extract.Label{Name: "Snyk Score"}),
		extract.ByText(".cvss-score"),
	}
	vectorChain = extract.Chain{
		extract.ByAttr("[data-cvss-vector]", "data-cvss-vector"),
		extract.ByRegexp("", vectorRe),
	}
	cveChain = extract.Chain{
		extract.ByRegexp(`a[href*="cve"]`, cveRe),
		extract.ByRegexp("", cveRe),
	}
	publishedChain = extract.Chain{
		extract.ByLabel("dt, span, li", extract.Label{Name: "Published"}, extract.Label{Name: "Disclosed"}),
	}
	versionsChain = extract.Chain{
		extract.ByLabel("dt, span, li, h3", extract.Label{Name: "Vulnerable versions"}, extract.Label{Name: "Affected versions"}),
		extract.ByText(".vulnerable-versions"),
	}
	fixedChain = extract.Chain{
		extract.ByRegexp(".remediation, #remediation + p, p", upgradeRe),
	}
	summaryChain = extract.Chain{
		extract.ByText("h1"),
		extract.ByAttr(`meta[property="og:title"]`, "content"),
	}
	descriptionChain = extract.Chain{
		extract.ByText(".overview p"),
		extract.ByLabel("h2, h3", extract.Label{Name: "Overview"}),
		extract.ByAttr(`meta[name="description"]`, "content"),
	}
)

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
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		id := extract.ID(row, "a", idRe)
		if id == "" {
			return
		}
		a := types.Advisory{
			ID:          id,
			Ecosystem:   eco,
			PackageName: packageChain.Extract(row),
			Source:      types.SourceSnyk,
			Summary:     titleChain.Extract(row),
			Type:        types.TypeVulnerability,
			DetailURL:   resolve(baseURL, hrefChain.Extract(row), "/vuln/"+id),
		}
		if v := listVersionsChain.Extract(row); v != "" {
			a.AffectedVersions = versionRanges(v)
		}
		a.Severity, _ = parseSeverity(listSeverityChain.Extract(row))
		a.PublishedDate = types.TimePtr(extract.Time(row, "time"))
		if strings.Contains(strings.ToLower(a.Summary), "malicious package") {
			a.Type = types.TypeMalware
		}
		advisories = append(advisories, a)
	})
	return advisories, nil
}

// parseDetail fills the listing record with everything the detail page offers. Fields that no
// strategy finds keep their listing value.
func parseDetail(body []byte, listed types.Advisory) (types.Advisory, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return types.Advisory{}, xerrors.Errorf("failed to parse HTML: %w", err)
	}
	sel := doc.Selection
	a := listed

	if sev, ok := parseSeverity(severityChain.Extract(sel)); ok {
		a.Severity = sev
	}
	if v := scoreChain.Extract(sel); scoreRe.MatchString(v) {
		if score, err := strconv.ParseFloat(v, 64); err == nil {
			a.Score = &score
		}
	}
	a.ScoreVector = firstNonEmpty(vectorChain.Extract(sel), a.ScoreVector)
	a.CVEID = firstNonEmpty(cveChain.Extract(sel), a.CVEID)
	if a.CVEID != "" {
		a.Aliases = []string{a.CVEID}
	}
	a.Weaknesses = weaknesses(sel)

	if v := publishedChain.Extract(sel); v != "" {
		if t, err := dateparse.ParseIn(v, time.UTC); err == nil {
			a.PublishedDate = &t
		}
	}
	if a.PublishedDate == nil {
		a.PublishedDate = types.TimePtr(extract.Time(sel, "time"))
	}

	if v := versionsChain.Extract(sel); v != "" {
		a.AffectedVersions = versionRanges(v)
	}
	a.PatchedVersion = firstNonEmpty(fixedChain.Extract(sel), a.PatchedVersion)
	a.Summary = firstNonEmpty(summaryChain.Extract(sel), a.Summary)
	a.Description = firstNonEmpty(descriptionChain.Extract(sel), a.Description)
	if a.PackageName == "" {
		a.PackageName = packageChain.Extract(sel)
	}

	var refs []string
	sel.Find(".references a[href], #references ~ ul a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.HasPrefix(href, "http") {
			refs = append(refs, href)
		}
	})
	if len(refs) > 0 {
		a.References = refs
	}
	return a, nil
}

func weaknesses(sel *goquery.Selection) []types.Weakness {
	var ws []types.Weakness
	seen := map[string]struct{}{}
	sel.Find(`a[href*="cwe.mitre.org"], [data-snyk-test="cwe"]`).Each(func(_ int, s *goquery.Selection) {
		id := cweRe.FindString(s.Text())
		if id == "" {
			href, _ := s.Attr("href")
			if m := cweHrefRe.FindStringSubmatch(href); m != nil {
				id = "CWE-" + m[1]
			}
		}
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		name, _ := s.Attr("title")
		ws = append(ws, types.Weakness{ID: id, Name: utils.CollapseSpace(name)})
	})
	if len(ws) == 0 {
		for _, id := range extract.All(sel, "li, span, p", cweRe) {
			ws = append(ws, types.Weakness{ID: id})
		}
	}
	return ws
}

// parseSeverity understands the single letter badges as well as the spelled out levels.
func parseSeverity(s string) (types.Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C":
		return types.SeverityCritical, true
	case "H":
		return types.SeverityHigh, true
	case "M":
		return types.SeverityMedium, true
	case "L":
		return types.SeverityLow, true
	}
	return types.ParseSeverity(s)
}

// resolveSeverity falls back to the CVSS band, then MEDIUM.
func resolveSeverity(sev types.Severity, score *float64) types.Severity {
	if _, ok := types.ParseSeverity(string(sev)); ok {
		return sev
	}
	if score != nil {
		return types.SeverityFromScore(*score)
	}
	return types.SeverityMedium
}

// versionRanges converts Maven interval notation ("[1.0,2.0)") into comparator expressions.
// Text without intervals is kept as one expression.
func versionRanges(text string) []string {
	text = utils.CollapseSpace(text)
	if text == "" {
		return nil
	}
	matches := intervalRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	var ranges []string
	for _, m := range matches {
		open, lower, upper, closing := m[1], m[2], m[3], m[4]
		// "[1.2.3]" pins a single version
		if !strings.Contains(m[0], ",") {
			if lower != "" {
				ranges = append(ranges, lower)
			}
			continue
		}
		var parts []string
		if lower != "" {
			op := ">="
			if open == "(" {
				op = ">"
			}
			parts = append(parts, op+lower)
		}
		if upper != "" {
			op := "<="
			if closing == ")" {
				op = "<"
			}
			parts = append(parts, op+upper)
		}
		if len(parts) == 0 {
			parts = append(parts, ">=0")
		}
		ranges = append(ranges, strings.Join(parts, " "))
	}
	return ranges
}

func resolve(base *url.URL, href, fallback string) string {
	if href == "" {
		href = fallback
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
