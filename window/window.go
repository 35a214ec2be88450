package window

import (
	"strings"
	"time"

	"github.com/aquasecurity/advisory-aggregator/types"
)

type Selector string

const (
	Today Selector = "today"
	Week  Selector = "week"
	Month Selector = "month"
)

// Default is used for unknown selectors.
const Default = Week

// Days resolves the selector to a window length. Unknown selectors fall back to a week.
func (s Selector) Days() int {
	switch Selector(strings.ToLower(strings.TrimSpace(string(s)))) {
	case Today:
		return 1
	case Month:
		return 30
	default:
		return 7
	}
}

// Normalize returns the selector actually applied.
func (s Selector) Normalize() Selector {
	switch v := Selector(strings.ToLower(strings.TrimSpace(string(s)))); v {
	case Today, Week, Month:
		return v
	}
	return Default
}

// Filter keeps advisories published at most days ago, boundary included.
// Advisories without a publication date are dropped.
func Filter(advisories []types.Advisory, days int, now time.Time) []types.Advisory {
	filtered := []types.Advisory{}
	for _, a := range advisories {
		if Within(a.PublishedDate, days, now) {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// Within reports whether published falls inside the window ending at now.
func Within(published *time.Time, days int, now time.Time) bool {
	if published == nil || published.IsZero() {
		return false
	}
	return now.Sub(*published) <= time.Duration(days)*24*time.Hour
}
