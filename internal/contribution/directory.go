package contribution

import "strings"

// Entity is a tracked company, committee, or individual that donor groups
// can link to.
type Entity struct {
	ID      string
	Name    string
	Aliases []string
}

// Directory resolves donor group names and profile links from the tracked
// entity lists.
type Directory struct {
	companies   []Entity
	committees  []Entity
	individuals []Entity

	// companyAliases maps raw employer strings to canonical group names.
	companyAliases map[string]string
	// individualEmployers holds employer strings that identify a person
	// rather than a company, so the group falls back to the donor's name.
	individualEmployers map[string]bool
}

func NewDirectory(companies, committees, individuals []Entity, companyAliases map[string]string, individualEmployers []string) *Directory {
	employers := make(map[string]bool, len(individualEmployers))
	for _, e := range individualEmployers {
		employers[strings.ToUpper(e)] = true
	}
	aliases := make(map[string]string, len(companyAliases))
	for k, v := range companyAliases {
		aliases[strings.ToUpper(k)] = v
	}
	return &Directory{
		companies:           companies,
		committees:          committees,
		individuals:         individuals,
		companyAliases:      aliases,
		individualEmployers: employers,
	}
}

// GroupName picks the donor group for a transaction: the employer unless it
// is missing, a placeholder, or names an individual, in which case the
// contributor's own name is used. Known alias spellings collapse to their
// canonical form.
func (d *Directory) GroupName(t *Transaction) string {
	group := strings.TrimSpace(t.ContributorEmployer)
	if group == "" || strings.EqualFold(group, "N/A") {
		group = strings.TrimSpace(t.ContributorName)
	}
	upper := strings.ToUpper(group)
	if d.individualEmployers[upper] {
		group = strings.TrimSpace(t.ContributorName)
		upper = strings.ToUpper(group)
	}
	if canonical, ok := d.companyAliases[upper]; ok {
		return canonical
	}
	if group == "" {
		return "UNKNOWN"
	}
	return group
}

// Link returns the profile path for a group name, or "" when the group does
// not match any tracked entity. Companies win over committees, committees
// over individuals.
func (d *Directory) Link(group string) string {
	upper := strings.ToUpper(group)
	if id := matchEntity(d.companies, upper); id != "" {
		return "/companies/" + id
	}
	if id := matchEntity(d.committees, upper); id != "" {
		return "/committees/" + id
	}
	if id := matchEntity(d.individuals, upper); id != "" {
		return "/individuals/" + id
	}
	return ""
}

func matchEntity(entities []Entity, upper string) string {
	for _, e := range entities {
		if strings.ToUpper(e.Name) == upper {
			return e.ID
		}
		for _, a := range e.Aliases {
			if strings.ToUpper(a) == upper {
				return e.ID
			}
		}
	}
	return ""
}
