package osv

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aquasecurity/advisory-aggregator/types"
)

func TestRangeExpressions(t *testing.T) {
	tests := []struct {
		name   string
		events []OsvEvent
		want   []string
	}{
		{
			name:   "introduced and fixed",
			events: []OsvEvent{{Introduced: "1.0.0"}, {Fixed: "2.0.0"}},
			want:   []string{">=1.0.0 <2.0.0"},
		},
		{
			name:   "introduced zero",
			events: []OsvEvent{{Introduced: "0"}, {Fixed: "4.17.21"}},
			want:   []string{"<4.17.21"},
		},
		{
			name:   "last affected",
			events: []OsvEvent{{Introduced: "0"}, {LastAffected: "1.4.2"}},
			want:   []string{"<=1.4.2"},
		},
		{
			name:   "open ended",
			events: []OsvEvent{{Introduced: "2.3.0"}},
			want:   []string{">=2.3.0"},
		},
		{
			name:   "several intervals",
			events: []OsvEvent{{Introduced: "1.0.0"}, {Fixed: "1.2.5"}, {Introduced: "2.0.0"}, {Fixed: "2.1.1"}},
			want:   []string{">=1.0.0 <1.2.5", ">=2.0.0 <2.1.1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rangeExpressions(tt.events))
		})
	}
}

func TestAffectedVersions(t *testing.T) {
	got := affectedVersions(OsvAffected{
		Ranges:   []OsvRange{{Type: "GIT", Events: []OsvEvent{{Introduced: "abc"}, {Fixed: "def"}}}},
		Versions: []string{"1.0.0"},
	})
	assert.Equal(t, []string{"1.0.0"}, got)
}

func TestScoreVector(t *testing.T) {
	score, ok := scoreVector(OsvSeverity{Type: "CVSS_V3", Score: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"})
	assert.True(t, ok)
	assert.InDelta(t, 9.8, score, 0.001)

	score, ok = scoreVector(OsvSeverity{Type: "CVSS_V4", Score: "CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N"})
	assert.True(t, ok)
	assert.InDelta(t, 9.3, score, 0.001)

	_, ok = scoreVector(OsvSeverity{Type: "CVSS_V3", Score: "garbage"})
	assert.False(t, ok)
}

func TestApplyTag(t *testing.T) {
	tests := []struct {
		tags      []string
		want      types.Severity
		wantScore *float64
	}{
		{tags: []string{"Severity - 9.8 (Critical)"}, want: types.SeverityCritical, wantScore: types.Float64Ptr(9.8)},
		{tags: []string{"Severity - 5.3 (Medium)"}, want: types.SeverityMedium, wantScore: types.Float64Ptr(5.3)},
		{tags: []string{"No fix available"}, want: types.SeverityCritical},
		{tags: []string{"Fix available"}, want: types.SeverityLow},
		{tags: []string{"Severity - 7.5 (High)", "Fix available"}, want: types.SeverityLow, wantScore: types.Float64Ptr(7.5)},
		{tags: []string{"Withdrawn"}, want: types.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.tags[0], func(t *testing.T) {
			a := types.Advisory{Severity: types.SeverityCritical}
			for _, tag := range tt.tags {
				applyTag(&a, tag)
			}
			assert.Equal(t, tt.want, a.Severity)
			assert.Equal(t, tt.wantScore, a.Score)
		})
	}
}
