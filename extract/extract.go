// Package extract pulls individual fields out of loosely structured advisory pages.
//
// Every field is described by a Chain of strategies that are tried in order; the first one that
// yields a non-empty value wins. A field that no strategy can find is simply absent.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/aquasecurity/advisory-aggregator/utils"
)

type Strategy func(sel *goquery.Selection) (string, bool)

type Chain []Strategy

// Extract returns the first value produced by the chain, or "" when nothing matched.
func (c Chain) Extract(sel *goquery.Selection) string {
	v, _ := c.Find(sel)
	return v
}

func (c Chain) Find(sel *goquery.Selection) (string, bool) {
	if sel == nil {
		return "", false
	}
	for _, s := range c {
		if v, ok := s(sel); ok {
			return v, true
		}
	}
	return "", false
}

// Label names a field as a page prints it, e.g. {Name: "Severity", Abbrev: "H"}.
type Label struct {
	Name   string
	Abbrev string
}

// ByLabel scans the candidate elements for one whose text starts with a label name, or equals
// its abbreviation, and returns the value attached to it. For a name the value is taken from a
// bold child first, then from the next sibling, then from a data-* attribute on the element.
// An abbreviation yields its data-* attribute, or the abbreviation itself.
func ByLabel(candidates string, labels ...Label) Strategy {
	return func(sel *goquery.Selection) (string, bool) {
		var value string
		sel.Find(candidates).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := utils.CollapseSpace(s.Text())
			byName, ok := matchLabel(text, labels)
			if !ok {
				return true
			}
			if !byName {
				// a bare abbreviation badge, optionally spelled out in a data attribute
				if v, ok := dataAttr(s); ok {
					value = v
				} else {
					value = text
				}
				return false
			}
			if v := utils.CollapseSpace(s.Find("strong, b").First().Text()); v != "" {
				value = v
				return false
			}
			if v := utils.CollapseSpace(s.Next().Text()); v != "" {
				value = v
				return false
			}
			if v, ok := dataAttr(s); ok {
				value = v
				return false
			}
			return true
		})
		return value, value != ""
	}
}

// matchLabel reports whether text names one of the labels, and whether it did so by name
// (as opposed to by abbreviation).
func matchLabel(text string, labels []Label) (byName, ok bool) {
	lower := strings.ToLower(text)
	for _, l := range labels {
		if l.Name != "" && strings.HasPrefix(lower, strings.ToLower(l.Name)) {
			return true, true
		}
		if l.Abbrev != "" && strings.EqualFold(text, l.Abbrev) {
			return false, true
		}
	}
	return false, false
}

func dataAttr(s *goquery.Selection) (string, bool) {
	if len(s.Nodes) == 0 {
		return "", false
	}
	for _, attr := range s.Nodes[0].Attr {
		if strings.HasPrefix(attr.Key, "data-") && strings.TrimSpace(attr.Val) != "" {
			return strings.TrimSpace(attr.Val), true
		}
	}
	return "", false
}

// ByAttr returns the attribute of the first matched element that carries it.
func ByAttr(selector, attr string) Strategy {
	return func(sel *goquery.Selection) (string, bool) {
		var value string
		sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				value = strings.TrimSpace(v)
				return false
			}
			return true
		})
		return value, value != ""
	}
}

// ByText returns the whitespace-collapsed text of the first non-empty matched element.
func ByText(selector string) Strategy {
	return func(sel *goquery.Selection) (string, bool) {
		var value string
		sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value = utils.CollapseSpace(s.Text())
			return value == ""
		})
		return value, value != ""
	}
}

// ByRegexp returns the first submatch (or the whole match when the expression has no group)
// found in the text of the matched elements.
func ByRegexp(selector string, re *regexp.Regexp) Strategy {
	return func(sel *goquery.Selection) (string, bool) {
		var value string
		target := sel
		if selector != "" {
			target = sel.Find(selector)
		}
		target.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value = submatch(re, utils.CollapseSpace(s.Text()))
			return value == ""
		})
		return value, value != ""
	}
}

// All collects every regexp match over the text of the matched elements, in document order
// and without duplicates.
func All(sel *goquery.Selection, selector string, re *regexp.Regexp) []string {
	var values []string
	seen := map[string]struct{}{}
	sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		for _, m := range re.FindAllString(s.Text(), -1) {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			values = append(values, m)
		}
	})
	return values
}

// Time prefers the machine readable datetime attribute and falls back to parsing the
// element text. The zero time is returned when neither works.
func Time(sel *goquery.Selection, selector string) time.Time {
	var t time.Time
	sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("datetime"); ok {
			if parsed, err := dateparse.ParseIn(strings.TrimSpace(v), time.UTC); err == nil {
				t = parsed.UTC()
				return false
			}
		}
		if text := utils.CollapseSpace(s.Text()); text != "" {
			if parsed, err := dateparse.ParseIn(text, time.UTC); err == nil {
				t = parsed.UTC()
				return false
			}
		}
		return true
	})
	return t
}

// ID finds an identifier by matching link targets first and link text second.
func ID(sel *goquery.Selection, selector string, re *regexp.Regexp) string {
	var id string
	links := sel.Find(selector)
	links.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		id = re.FindString(href)
		return id == ""
	})
	if id != "" {
		return id
	}
	links.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		id = re.FindString(s.Text())
		return id == ""
	})
	return id
}

func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	switch {
	case m == nil:
		return ""
	case len(m) > 1:
		return strings.TrimSpace(m[1])
	default:
		return strings.TrimSpace(m[0])
	}
}
