package contribution

import (
	"fmt"
	"regexp"
	"strings"
)

// Redacted is the literal written over donor identity fields at
// serialization time.
const Redacted = "REDACTED"

// Entity types that never need redaction; they are organizations, not
// people.
var organizationalEntities = map[string]bool{
	"ORG": true,
	"PAC": true,
	"COM": true,
}

// Allowlist is the occupation allow-list: an exact-match set plus a single
// compiled case-insensitive pattern alternating the substring terms.
type Allowlist struct {
	Equals   map[string]bool
	Contains *regexp.Regexp
}

// NewAllowlist compiles an allowlist from its exact terms and substring
// terms.
func NewAllowlist(equals, contains []string) (*Allowlist, error) {
	eq := make(map[string]bool, len(equals))
	for _, term := range equals {
		eq[term] = true
	}
	var re *regexp.Regexp
	if len(contains) > 0 {
		quoted := make([]string, len(contains))
		for i, term := range contains {
			quoted[i] = regexp.QuoteMeta(term)
		}
		var err error
		re, err = regexp.Compile("(?i)(" + strings.Join(quoted, "|") + ")")
		if err != nil {
			return nil, fmt.Errorf("compiling occupation allowlist: %w", err)
		}
	}
	return &Allowlist{Equals: eq, Contains: re}, nil
}

// IsRedacted decides whether a donor's identity must be masked before
// storage. Organizational donors and rows with no individual name are
// never redacted; individuals are redacted when their occupation is
// missing or not captured by the allowlist. Redaction itself is deferred
// until serialization so grouping and rollups can still use the real
// identity for bucketing.
func (a *Allowlist) IsRedacted(c *Transaction) bool {
	if c.Claimed {
		return false
	}
	if organizationalEntities[c.EntityType] ||
		(c.ContributorFirstName == "" && c.ContributorLastName == "") {
		return false
	}
	if c.ContributorOccupation == "" {
		// Missing occupation is treated as sensitive.
		return true
	}
	occupation := strings.ToUpper(c.ContributorOccupation)
	if a.Equals[occupation] {
		return false
	}
	if a.Contains != nil && a.Contains.MatchString(occupation) {
		return false
	}
	return true
}

// IsHighLevel reports whether a row comes from a named individual whose
// occupation passes the allowlist. Company employer searches keep only
// these rows; rank-and-file employees' personal giving is not company
// spending.
func (a *Allowlist) IsHighLevel(c *Transaction) bool {
	if c.Claimed {
		return true
	}
	if organizationalEntities[c.EntityType] ||
		(c.ContributorFirstName == "" && c.ContributorLastName == "") {
		return false
	}
	if c.ContributorOccupation == "" {
		return false
	}
	occupation := strings.ToUpper(c.ContributorOccupation)
	if a.Equals[occupation] {
		return true
	}
	return a.Contains != nil && a.Contains.MatchString(occupation)
}
