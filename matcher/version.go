package matcher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
)

var (
	comparatorRe = regexp.MustCompile(`(>=|<=|!=|==|>|<|=|\^|~>|~)?\s*v?([0-9][0-9A-Za-z.*\-+_]*|\*)`)
	hyphenRe     = regexp.MustCompile(`^v?([0-9][0-9A-Za-z.\-+_]*)\s+-\s+v?([0-9][0-9A-Za-z.\-+_]*)$`)
	xRangeRe     = regexp.MustCompile(`^(\d+)(?:\.(\d+|[xX*]))?(?:\.(\d+|[xX*]))?$`)
	qualifierRe  = regexp.MustCompile(`^(\d+(?:\.\d+)*)[.\-_]?[A-Za-z].*$`)
)

// Satisfies reports whether v falls inside the range expression. Accepted forms are exact
// versions ("1.2.3"), space or comma separated comparators (">=1.0.0 <2.0.0",
// ">= 1.0.0, < 2.0.0"), npm caret, tilde, x ("1.x") and hyphen ("1.0.0 - 2.0.0") ranges and
// "||" alternatives. Maven qualifiers ("5.3.1.Final") compare as their numeric part.
// Anything that cannot be parsed never matches.
func Satisfies(v, expr string) bool {
	ver, err := parseVersion(v)
	if err != nil {
		return false
	}
	for _, alt := range strings.Split(expr, "||") {
		c, ok := constraint(alt)
		if !ok {
			continue
		}
		if c == nil || c.Check(ver) {
			return true
		}
	}
	return false
}

// SatisfiesAny reports whether v falls inside any of the expressions.
func SatisfiesAny(v string, exprs []string) bool {
	for _, e := range exprs {
		if Satisfies(v, e) {
			return true
		}
	}
	return false
}

func parseVersion(v string) (*version.Version, error) {
	return version.NewVersion(normalize(v))
}

// normalize drops a Maven qualifier that go-version cannot parse ("5.3.1.Final",
// "2.0.RELEASE"). Versions go-version already understands are returned unchanged.
func normalize(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if _, err := version.NewVersion(v); err == nil {
		return v
	}
	if m := qualifierRe.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return v
}

// constraint converts one alternative into hashicorp constraints. A nil result with ok
// means "any version".
func constraint(expr string) (version.Constraints, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, false
	}
	if expr == "*" || strings.EqualFold(expr, "x") {
		return nil, true
	}

	var parts []string
	if m := hyphenRe.FindStringSubmatch(expr); m != nil {
		lower, ok := bound(m[1], false)
		if !ok {
			return nil, false
		}
		upper, ok := bound(m[2], true)
		if !ok {
			return nil, false
		}
		parts = append(parts, lower, upper)
	} else {
		matches := comparatorRe.FindAllStringSubmatch(expr, -1)
		if len(matches) == 0 {
			return nil, false
		}
		for _, m := range matches {
			op, ver := m[1], m[2]
			if ver == "*" {
				continue
			}
			p, ok := comparator(op, ver)
			if !ok {
				return nil, false
			}
			parts = append(parts, p...)
		}
	}
	if len(parts) == 0 {
		// only "*" comparators
		return nil, true
	}

	c, err := version.NewConstraint(strings.Join(parts, ", "))
	if err != nil {
		return nil, false
	}
	return c, true
}

func comparator(op, ver string) ([]string, bool) {
	if lower, upper, ok := xRange(ver); ok {
		switch op {
		case "", "=", "==", "^", "~", "~>":
			return []string{">= " + lower, "< " + upper}, true
		case ">=":
			return []string{">= " + lower}, true
		case ">":
			return []string{">= " + upper}, true
		case "<":
			return []string{"< " + lower}, true
		case "<=":
			return []string{"< " + upper}, true
		}
		return nil, false
	}

	ver = normalize(ver)
	switch op {
	case "", "==":
		op = "="
	case "^":
		return caret(ver)
	case "~":
		return tilde(ver)
	}
	return []string{fmt.Sprintf("%s %s", op, ver)}, true
}

// xRange expands "1.x", "1.2.*" or "1.X.X" into its bounds. Versions without a wildcard are
// not x-ranges.
func xRange(v string) (lower, upper string, ok bool) {
	m := xRangeRe.FindStringSubmatch(v)
	if m == nil || !strings.ContainsAny(v, "xX*") {
		return "", "", false
	}
	major, _ := strconv.Atoi(m[1])
	if m[2] == "" || isWildcard(m[2]) {
		return fmt.Sprintf("%d.0.0", major), fmt.Sprintf("%d.0.0", major+1), true
	}
	minor, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%d.%d.0", major, minor), fmt.Sprintf("%d.%d.0", major, minor+1), true
}

func isWildcard(s string) bool {
	return s == "x" || s == "X" || s == "*"
}

// bound renders one side of a hyphen range. A wildcard upper side is exclusive of the next
// release, a wildcard lower side starts at its first release.
func bound(v string, upper bool) (string, bool) {
	if lower, next, ok := xRange(v); ok {
		if upper {
			return "< " + next, true
		}
		return ">= " + lower, true
	}
	v = normalize(v)
	if _, err := version.NewVersion(v); err != nil {
		return "", false
	}
	if upper {
		return "<= " + v, true
	}
	return ">= " + v, true
}

// caret allows changes that do not modify the left-most non-zero segment.
func caret(v string) ([]string, bool) {
	ver, err := version.NewVersion(v)
	if err != nil {
		return nil, false
	}
	s := ver.Segments()
	var upper string
	switch {
	case s[0] > 0:
		upper = fmt.Sprintf("%d.0.0", s[0]+1)
	case s[1] > 0:
		upper = fmt.Sprintf("0.%d.0", s[1]+1)
	default:
		upper = fmt.Sprintf("0.0.%d", s[2]+1)
	}
	return []string{">= " + v, "< " + upper}, true
}

// tilde allows patch-level changes.
func tilde(v string) ([]string, bool) {
	ver, err := version.NewVersion(v)
	if err != nil {
		return nil, false
	}
	s := ver.Segments()
	return []string{">= " + v, fmt.Sprintf("< %d.%d.0", s[0], s[1]+1)}, true
}
