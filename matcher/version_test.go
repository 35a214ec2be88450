package matcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aquasecurity/advisory-aggregator/matcher"
)

func TestSatisfies(t *testing.T) {
	tests := []struct {
		version string
		expr    string
		want    bool
	}{
		{version: "1.2.3", expr: ">=1.0.0 <2.0.0", want: true},
		{version: "1.2.3", expr: ">=2.0.0", want: false},
		{version: "1.2.3", expr: ">= 1.0.0, < 2.0.0", want: true},
		{version: "2.0.0", expr: ">= 1.0.0, < 2.0.0", want: false},
		{version: "4.17.20", expr: "< 4.17.21", want: true},
		{version: "4.17.21", expr: "<= 4.17.21", want: true},
		{version: "1.2.3", expr: "1.2.3", want: true},
		{version: "1.2.3", expr: "= 1.2.3", want: true},
		{version: "1.2.4", expr: "1.2.3", want: false},
		{version: "0.5.0", expr: "<0.1.0 || >=0.5.0 <0.6.0", want: true},
		{version: "0.3.0", expr: "<0.1.0 || >=0.5.0 <0.6.0", want: false},
		{version: "1.9.0", expr: "^1.2.0", want: true},
		{version: "2.0.0", expr: "^1.2.0", want: false},
		{version: "0.2.9", expr: "^0.2.1", want: true},
		{version: "0.3.0", expr: "^0.2.1", want: false},
		{version: "1.2.9", expr: "~1.2.3", want: true},
		{version: "1.3.0", expr: "~1.2.3", want: false},
		{version: "1.0.0", expr: "*", want: true},
		{version: "1.0.0", expr: "", want: false},
		{version: "1.0.0", expr: "unknown", want: false},
		{version: "not-a-version", expr: ">=1.0.0", want: false},
		{version: "1.2.3", expr: "1.x", want: true},
		{version: "2.0.0", expr: "1.x", want: false},
		{version: "1.2.9", expr: "1.2.*", want: true},
		{version: "1.3.0", expr: "1.2.X", want: false},
		{version: "0.9.0", expr: "<1.x", want: true},
		{version: "1.5.0", expr: "<=1.x", want: true},
		{version: "1.5.0", expr: ">1.x", want: false},
		{version: "2.0.0", expr: ">1.x", want: true},
		{version: "1.2.3", expr: "1.0.0 - 2.0.0", want: true},
		{version: "2.0.0", expr: "1.0.0 - 2.0.0", want: true},
		{version: "2.0.1", expr: "1.0.0 - 2.0.0", want: false},
		{version: "0.9.9", expr: "1.0.0 - 2.0.0", want: false},
		{version: "2.9.0", expr: "1.0.0 - 2.x", want: true},
		{version: "3.0.0", expr: "1.0.0 - 2.x", want: false},
		{version: "5.3.1.Final", expr: ">=5.0.0 <6.0.0", want: true},
		{version: "5.3.1.Final", expr: "< 5.3.1", want: false},
		{version: "2.7.RELEASE", expr: ">= 2.0, < 2.8", want: true},
		{version: "5.3.2", expr: ">= 5.3.1.Final", want: true},
		{version: "v1.0.0", expr: "^1.0.0", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.version+" "+tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, matcher.Satisfies(tt.version, tt.expr))
		})
	}
}
