package types

import (
	"strings"
	"time"
)

type Ecosystem string

const (
	Npm   Ecosystem = "npm"
	Maven Ecosystem = "maven"
	Nuget Ecosystem = "nuget"
)

// Ecosystems is the ordered list of supported ecosystems.
var Ecosystems = []Ecosystem{Npm, Maven, Nuget}

// ParseEcosystem accepts any casing used by the upstream sources ("NPM", "Maven", "NuGet").
func ParseEcosystem(s string) (Ecosystem, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "npm":
		return Npm, true
	case "maven":
		return Maven, true
	case "nuget":
		return Nuget, true
	}
	return "", false
}

type Source string

const (
	SourceGHSA Source = "GHSA"
	SourceOSV  Source = "OSV"
	SourceSnyk Source = "Snyk"
)

type Type string

const (
	TypeVulnerability Type = "VULNERABILITY"
	TypeMalware       Type = "MALWARE"
)

type Weakness struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// EPSS holds the exploitation probability and its percentile rank, both in [0,1].
type EPSS struct {
	Probability float64 `json:"probability"`
	Percentile  float64 `json:"percentile"`
}

type EPSSRisk struct {
	Level       Severity `json:"level"`
	Probability float64  `json:"probability"` // percent, 2 decimals
	Percentile  float64  `json:"percentile"`  // 2 decimals
}

type Advisory struct {
	ID                 string     `json:"id"`
	Aliases            []string   `json:"aliases,omitempty"`
	CVEID              string     `json:"cveId,omitempty"`
	Ecosystem          Ecosystem  `json:"ecosystem"`
	PackageName        string     `json:"packageName"`
	AffectedVersions   []string   `json:"affectedVersions,omitempty"`
	PatchedVersion     string     `json:"patchedVersion,omitempty"`
	Severity           Severity   `json:"severity"`
	Score              *float64   `json:"score,omitempty"`
	ScoreVector        string     `json:"scoreVector,omitempty"`
	EPSS               *EPSS      `json:"epss,omitempty"`
	Risk               *EPSSRisk  `json:"risk,omitempty"`
	Source             Source     `json:"source"`
	PublishedDate      *time.Time `json:"publishedDate,omitempty"`
	PublishedRelative  string     `json:"publishedRelative,omitempty"`
	ModifiedDate       *time.Time `json:"modifiedDate,omitempty"`
	Summary            string     `json:"summary,omitempty"`
	Description        string     `json:"description,omitempty"`
	DetailURL          string     `json:"detailURL"`
	Weaknesses         []Weakness `json:"weaknesses,omitempty"`
	References         []string   `json:"references,omitempty"`
	Type               Type       `json:"type"`
	Reviewed           bool       `json:"reviewed,omitempty"`
	ReviewType         string     `json:"reviewType,omitempty"`
	SourceCodeLocation string     `json:"sourceCodeLocation,omitempty"`
	MaliciousHashes    []string   `json:"maliciousHashes,omitempty"`
}

// PackageNames splits a joined PackageName back into its members.
func (a Advisory) PackageNames() []string {
	var names []string
	for _, n := range strings.Split(a.PackageName, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// FetchRequest is what every source adapter receives.
type FetchRequest struct {
	Days      int
	Ecosystem Ecosystem
}

// PackageRef is a declared dependency of a scanned project.
type PackageRef struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

func (p PackageRef) String() string {
	return p.Name + "@" + p.Version
}

// TimePtr returns nil for the zero time.
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func Float64Ptr(f float64) *float64 {
	return &f
}
