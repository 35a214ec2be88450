package types

import "strings"

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities is ordered from the most to the least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// ParseSeverity maps source labels onto the canonical four levels.
// GHSA's "moderate" is treated as MEDIUM.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical, true
	case "high":
		return SeverityHigh, true
	case "medium", "moderate":
		return SeverityMedium, true
	case "low":
		return SeverityLow, true
	}
	return "", false
}

// SeverityFromScore bands a CVSS base score using the CVSS v3 qualitative scale.
// A score of 0 ("none") is reported as LOW.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Rank returns 0 for CRITICAL up to 3 for LOW, 4 for anything unknown.
func (s Severity) Rank() int {
	for i, sev := range Severities {
		if s == sev {
			return i
		}
	}
	return len(Severities)
}
