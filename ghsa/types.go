package ghsa

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Advisory is one element of the GET /advisories response.
// https://docs.github.com/en/rest/security-advisories/global-advisories
type Advisory struct {
	GhsaID             string          `json:"ghsa_id"`
	CveID              string          `json:"cve_id"`
	HTMLURL            string          `json:"html_url"`
	Type               string          `json:"type"`
	Severity           string          `json:"severity"`
	Summary            string          `json:"summary"`
	Description        string          `json:"description"`
	SourceCodeLocation string          `json:"source_code_location"`
	Identifiers        []Identifier    `json:"identifiers"`
	References         []string        `json:"references"`
	PublishedAt        *time.Time      `json:"published_at"`
	UpdatedAt          *time.Time      `json:"updated_at"`
	WithdrawnAt        *time.Time      `json:"withdrawn_at"`
	Vulnerabilities    []Vulnerability `json:"vulnerabilities"`
	CVSS               *CVSS           `json:"cvss"`
	CVSSSeverities     *CVSSSeverities `json:"cvss_severities"`
	EPSS               *EPSS           `json:"epss"`
	CWEs               []CWE           `json:"cwes"`
}

type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type Vulnerability struct {
	Package                Package `json:"package"`
	VulnerableVersionRange string  `json:"vulnerable_version_range"`
	FirstPatchedVersion    string  `json:"first_patched_version"`
}

type Package struct {
	Ecosystem string `json:"ecosystem"`
	Name      string `json:"name"`
}

type CVSS struct {
	VectorString string   `json:"vector_string"`
	Score        *float64 `json:"score"`
}

type CVSSSeverities struct {
	CVSSV3 *CVSS `json:"cvss_v3"`
	CVSSV4 *CVSS `json:"cvss_v4"`
}

// EPSS mirrors the API object; "percentage" is the exploitation probability in [0,1].
type EPSS struct {
	Percentage Float `json:"percentage"`
	Percentile Float `json:"percentile"`
}

type CWE struct {
	CweID string `json:"cwe_id"`
	Name  string `json:"name"`
}

// Float accepts both JSON numbers and numeric strings, as EPSS values show up in either form.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

func (f Float) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}
