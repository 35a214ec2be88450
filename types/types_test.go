package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aquasecurity/advisory-aggregator/types"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in     string
		want   types.Severity
		wantOk bool
	}{
		{in: "critical", want: types.SeverityCritical, wantOk: true},
		{in: " HIGH ", want: types.SeverityHigh, wantOk: true},
		{in: "moderate", want: types.SeverityMedium, wantOk: true},
		{in: "Medium", want: types.SeverityMedium, wantOk: true},
		{in: "low", want: types.SeverityLow, wantOk: true},
		{in: "unknown"},
		{in: "Fix available"},
		{in: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := types.ParseSeverity(tt.in)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeverityFromScore(t *testing.T) {
	assert.Equal(t, types.SeverityCritical, types.SeverityFromScore(9.0))
	assert.Equal(t, types.SeverityHigh, types.SeverityFromScore(8.9))
	assert.Equal(t, types.SeverityHigh, types.SeverityFromScore(7.0))
	assert.Equal(t, types.SeverityMedium, types.SeverityFromScore(4.0))
	assert.Equal(t, types.SeverityLow, types.SeverityFromScore(3.9))
	assert.Equal(t, types.SeverityLow, types.SeverityFromScore(0))
}

func TestParseEcosystem(t *testing.T) {
	eco, ok := types.ParseEcosystem("NuGet")
	assert.True(t, ok)
	assert.Equal(t, types.Nuget, eco)

	_, ok = types.ParseEcosystem("pypi")
	assert.False(t, ok)
}

func TestAdvisory_PackageNames(t *testing.T) {
	a := types.Advisory{PackageName: "lodash, lodash-es,  "}
	assert.Equal(t, []string{"lodash", "lodash-es"}, a.PackageNames())
	assert.Nil(t, types.Advisory{}.PackageNames())
}

func TestPackageURL(t *testing.T) {
	tests := []struct {
		eco     types.Ecosystem
		name    string
		version string
		want    string
	}{
		{eco: types.Npm, name: "left-pad", want: "https://www.npmjs.com/package/left-pad"},
		{eco: types.Npm, name: "left-pad", version: "1.3.0", want: "https://www.npmjs.com/package/left-pad/v/1.3.0"},
		{eco: types.Maven, name: "org.apache.logging.log4j:log4j-core", version: "2.14.1", want: "https://mvnrepository.com/artifact/org.apache.logging.log4j/log4j-core/2.14.1"},
		{eco: types.Nuget, name: "Newtonsoft.Json", want: "https://www.nuget.org/packages/Newtonsoft.Json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, types.PackageURL(tt.eco, tt.name, tt.version))
	}
}
