// Package stats summarizes an aggregated advisory list.
package stats

import (
	"time"

	"github.com/aquasecurity/advisory-aggregator/types"
)

type Stats struct {
	Total        int                              `json:"total"`
	Ecosystems   map[types.Ecosystem]int          `json:"ecosystems"`
	Severities   map[types.Severity]SeverityCount `json:"severities"`
	ScanMetadata map[types.Ecosystem]ScanMetadata `json:"scanMetadata"`
}

type SeverityCount struct {
	Total       int                     `json:"total"`
	ByEcosystem map[types.Ecosystem]int `json:"byEcosystem"`
}

type ScanMetadata struct {
	FetchedAt  time.Time `json:"fetchedAt"`
	WindowDays int       `json:"windowDays"`
}

// Compute counts advisories per ecosystem and per severity. Every supported ecosystem and
// severity is present in the output even when its count is zero.
func Compute(advisories []types.Advisory, fetchedAt time.Time, windowDays int) Stats {
	s := Stats{
		Total:        len(advisories),
		Ecosystems:   map[types.Ecosystem]int{},
		Severities:   map[types.Severity]SeverityCount{},
		ScanMetadata: map[types.Ecosystem]ScanMetadata{},
	}
	for _, eco := range types.Ecosystems {
		s.Ecosystems[eco] = 0
		s.ScanMetadata[eco] = ScanMetadata{FetchedAt: fetchedAt, WindowDays: windowDays}
	}
	for _, sev := range types.Severities {
		byEco := map[types.Ecosystem]int{}
		for _, eco := range types.Ecosystems {
			byEco[eco] = 0
		}
		s.Severities[sev] = SeverityCount{ByEcosystem: byEco}
	}

	for _, a := range advisories {
		s.Ecosystems[a.Ecosystem]++
		sc, ok := s.Severities[a.Severity]
		if !ok {
			// severities are normalized upstream; anything else is only counted per ecosystem
			continue
		}
		sc.Total++
		sc.ByEcosystem[a.Ecosystem]++
		s.Severities[a.Severity] = sc
	}
	return s
}
