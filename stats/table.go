package stats

import (
	"fmt"
	"io"
	"strconv"

	aqtable "github.com/aquasecurity/table"
	"github.com/fatih/color"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/aquasecurity/advisory-aggregator/types"
)

var severityColors = map[types.Severity]func(a ...any) string{
	types.SeverityLow:      color.New(color.FgBlue).SprintFunc(),
	types.SeverityMedium:   color.New(color.FgYellow).SprintFunc(),
	types.SeverityHigh:     color.New(color.FgHiRed).SprintFunc(),
	types.SeverityCritical: color.New(color.FgRed).SprintFunc(),
}

// WriteTable renders one row per ecosystem with a column per severity, followed by a total row.
func WriteTable(w io.Writer, s Stats, colored bool) {
	tw := aqtable.New(w)
	if colored {
		tw.SetHeaderStyle(aqtable.StyleBold)
		tw.SetLineStyle(aqtable.StyleDim)
	}
	tw.SetBorders(true)
	tw.SetRowLines(true)

	headers := []string{"Ecosystem", "Total"}
	for _, sev := range types.Severities {
		h := string(sev)
		if colored {
			h = severityColors[sev](h)
		}
		headers = append(headers, h)
	}
	tw.SetHeaders(headers...)

	for _, eco := range ecosystems(s) {
		row := []string{string(eco), strconv.Itoa(s.Ecosystems[eco])}
		for _, sev := range types.Severities {
			row = append(row, strconv.Itoa(s.Severities[sev].ByEcosystem[eco]))
		}
		tw.AddRow(row...)
	}

	total := []string{"all", strconv.Itoa(s.Total)}
	for _, sev := range types.Severities {
		total = append(total, strconv.Itoa(s.Severities[sev].Total))
	}
	tw.AddRow(total...)
	tw.Render()

	if meta, ok := s.ScanMetadata[types.Npm]; ok {
		fmt.Fprintf(w, "Fetched at %s, window %d days\n", meta.FetchedAt.Format("2006-01-02 15:04:05 MST"), meta.WindowDays)
	}
}

// ecosystems lists the supported ecosystems first, in their canonical order, then any other
// ecosystem found in the counts.
func ecosystems(s Stats) []types.Ecosystem {
	others := maps.Keys(s.Ecosystems)
	others = slices.DeleteFunc(others, func(e types.Ecosystem) bool {
		return slices.Contains(types.Ecosystems, e)
	})
	slices.Sort(others)
	return append(slices.Clone(types.Ecosystems), others...)
}
