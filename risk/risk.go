// Package risk turns EPSS exploitation data into a four-level rating.
package risk

import (
	"math"

	"github.com/aquasecurity/advisory-aggregator/types"
)

// Thresholds are checked from the most severe down; either the probability (in percent) or
// the percentile reaching a level is enough.
var thresholds = []struct {
	level       types.Severity
	probability float64
	percentile  float64
}{
	{level: types.SeverityCritical, probability: 10, percentile: 0.90},
	{level: types.SeverityHigh, probability: 1, percentile: 0.75},
	{level: types.SeverityMedium, probability: 0.1, percentile: 0.50},
}

func Classify(e types.EPSS) types.EPSSRisk {
	p := e.Probability * 100
	level := types.SeverityLow
	for _, t := range thresholds {
		if p >= t.probability || e.Percentile >= t.percentile {
			level = t.level
			break
		}
	}
	return types.EPSSRisk{
		Level:       level,
		Probability: round2(p),
		Percentile:  round2(e.Percentile),
	}
}

// ClassifyAll sets Risk on every advisory that carries EPSS data.
func ClassifyAll(advisories []types.Advisory) []types.Advisory {
	for i := range advisories {
		if advisories[i].EPSS == nil {
			continue
		}
		r := Classify(*advisories[i].EPSS)
		advisories[i].Risk = &r
	}
	return advisories
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
