package osv

type OsvAffected struct {
	Package  *OsvPackage `json:"package,omitempty"`
	Ranges   []OsvRange  `json:"ranges,omitempty"`
	Versions []string    `json:"versions,omitempty"`
}

type OsvPackage struct {
	Ecosystem string `json:"ecosystem,omitempty"`
	Name      string `json:"name,omitempty"`
	Purl      string `json:"purl,omitempty"`
}

type OsvRange struct {
	Type   string     `json:"type,omitempty"`
	Repo   string     `json:"repo,omitempty"`
	Events []OsvEvent `json:"events,omitempty"`
}

type OsvEvent struct {
	Introduced   string `json:"introduced,omitempty"`
	Fixed        string `json:"fixed,omitempty"`
	LastAffected string `json:"last_affected,omitempty"`
	Limit        string `json:"limit,omitempty"`
}

type OsvReference struct {
	Type string `json:"type,omitempty"`
	Url  string `json:"url,omitempty"`
}

type OsvSeverity struct {
	Type  string `json:"type,omitempty"`
	Score string `json:"score,omitempty"`
}

// OsvDatabaseSpecific holds the database_specific keys this package understands.
type OsvDatabaseSpecific struct {
	Severity         string            `json:"severity,omitempty"`
	CweIDs           []string          `json:"cwe_ids,omitempty"`
	MaliciousOrigins []MaliciousOrigin `json:"malicious-packages-origins,omitempty"`
}

type MaliciousOrigin struct {
	Source string `json:"source,omitempty"`
	Sha256 string `json:"sha256,omitempty"`
}

type OsvJson struct {
	Id               string               `json:"id,omitempty"`
	Modified         string               `json:"modified,omitempty"`
	Published        string               `json:"published,omitempty"`
	Withdrawn        string               `json:"withdrawn,omitempty"`
	Aliases          []string             `json:"aliases,omitempty"`
	Related          []string             `json:"related,omitempty"`
	Summary          string               `json:"summary,omitempty"`
	Details          string               `json:"details,omitempty"`
	Severity         []OsvSeverity        `json:"severity,omitempty"`
	Affected         []OsvAffected        `json:"affected,omitempty"` //collection based on https://ossf.github.io/osv-schema/
	References       []OsvReference       `json:"references,omitempty"`
	DatabaseSpecific *OsvDatabaseSpecific `json:"database_specific,omitempty"`
}
