// Package refdata loads the operator-maintained reference data that steers
// a pipeline run: which committees, companies, and individuals to track,
// search terms, the occupation allowlist, and per-transaction corrections.
package refdata

import (
	"context"
	"fmt"

	"github.com/molly/follow-the-crypto-backend/internal/contribution"
	"github.com/molly/follow-the-crypto-backend/internal/logger"
	"github.com/molly/follow-the-crypto-backend/internal/store"
)

// CollectionName is where the reference documents live.
const CollectionName = "constants"

// Committee is a tracked recipient committee.
type Committee struct {
	ID      string   `json:"id" firestore:"id"`
	Name    string   `json:"name" firestore:"name"`
	Aliases []string `json:"aliases,omitempty" firestore:"aliases,omitempty"`
}

// Company is a tracked company. Searches hold contributor-name terms and
// EmployerSearches employer terms; a term wrapped in ^...$ requires an
// exact match instead of a substring one.
type Company struct {
	ID               string   `json:"id" firestore:"id"`
	Name             string   `json:"name" firestore:"name"`
	Aliases          []string `json:"aliases,omitempty" firestore:"aliases,omitempty"`
	Searches         []string `json:"searches,omitempty" firestore:"searches,omitempty"`
	EmployerSearches []string `json:"employerSearches,omitempty" firestore:"employerSearches,omitempty"`
}

// Individual is a tracked person, with the FEC search parameters that find
// their contributions and any contributions they have claimed that FEC
// data does not itemize.
type Individual struct {
	ID               string                `json:"id" firestore:"id"`
	Name             string                `json:"name" firestore:"name"`
	Aliases          []string              `json:"aliases,omitempty" firestore:"aliases,omitempty"`
	NameSearches     []string              `json:"nameSearches,omitempty" firestore:"nameSearches,omitempty"`
	Zips             []string              `json:"zips,omitempty" firestore:"zips,omitempty"`
	Cities           []string              `json:"cities,omitempty" firestore:"cities,omitempty"`
	EmployerSearches []string              `json:"employerSearches,omitempty" firestore:"employerSearches,omitempty"`
	Occupation       string                `json:"occupation,omitempty" firestore:"occupation,omitempty"`
	Employer         string                `json:"employer,omitempty" firestore:"employer,omitempty"`
	Claimed          []ClaimedContribution `json:"claimed,omitempty" firestore:"claimed,omitempty"`
}

// ClaimedContribution is a contribution an individual has publicly claimed
// that does not appear (or appears unattributed) in FEC data.
type ClaimedContribution struct {
	CommitteeID               string  `json:"committee_id" firestore:"committee_id"`
	ContributionReceiptAmount float64 `json:"contribution_receipt_amount" firestore:"contribution_receipt_amount"`
	ContributionReceiptDate   string  `json:"contribution_receipt_date" firestore:"contribution_receipt_date"`
	Source                    string  `json:"source,omitempty" firestore:"source,omitempty"`
}

// Transaction converts a claimed contribution into the common transaction
// shape, attributed to its individual.
func (c *ClaimedContribution) Transaction(ind *Individual) *contribution.Transaction {
	return &contribution.Transaction{
		ContributorName:           ind.Name,
		ContributorEmployer:       ind.Employer,
		ContributorOccupation:     ind.Occupation,
		CommitteeID:               c.CommitteeID,
		ContributionReceiptAmount: c.ContributionReceiptAmount,
		ContributionReceiptDate:   c.ContributionReceiptDate,
		Claimed:                   true,
		IsIndividual:              true,
		Individual:                ind.ID,
	}
}

// Data is everything a run reads from the constants collection. Loaded
// once and shared read-only across steps.
type Data struct {
	Committees  []Committee
	Companies   []Company
	Individuals []Individual

	Allowlist *contribution.Allowlist

	// DuplicateIDs lists transaction IDs to drop per recipient, maintained
	// by hand for duplicates the resolver cannot see.
	DuplicateIDs map[string][]string
	// AmountOverrides maps transaction IDs to corrected amounts.
	AmountOverrides map[string]float64

	CandidateAliases       map[string]string
	NonCandidateCommittees map[string]bool
	// CommitteeAffiliations overrides the reported party for committees
	// whose filings carry the wrong one.
	CommitteeAffiliations map[string]string

	CompanyAliases      map[string]string
	IndividualEmployers []string
}

type committeesDoc struct {
	Committees []Committee `json:"committees" firestore:"committees"`
}

type companiesDoc struct {
	Companies []Company         `json:"companies" firestore:"companies"`
	Aliases   map[string]string `json:"aliases" firestore:"aliases"`
}

type individualsDoc struct {
	Individuals []Individual `json:"individuals" firestore:"individuals"`
	// Employers that identify a person rather than a company.
	Employers []string `json:"employers" firestore:"employers"`
}

type allowlistDoc struct {
	Equals   []string `json:"equals" firestore:"equals"`
	Contains []string `json:"contains" firestore:"contains"`
}

type duplicatesDoc struct {
	Duplicates map[string][]string `json:"duplicates" firestore:"duplicates"`
}

type overridesDoc struct {
	Overrides map[string]float64 `json:"overrides" firestore:"overrides"`
}

type candidatesDoc struct {
	Aliases       map[string]string `json:"aliases" firestore:"aliases"`
	NonCandidates []string          `json:"nonCandidates" firestore:"nonCandidates"`
}

type affiliationsDoc struct {
	Affiliations map[string]any `json:"affiliations" firestore:"affiliations"`
}

// Load reads all reference documents. A missing document is treated as
// empty so a fresh environment can still run; a malformed affiliation
// entry is logged and skipped rather than failing the run.
func Load(ctx context.Context, st store.Store) (*Data, error) {
	log := logger.FromContext(ctx)
	coll := st.Collection(CollectionName)

	var committees committeesDoc
	if _, err := coll.Get(ctx, "committees", &committees); err != nil {
		return nil, fmt.Errorf("refdata.Load: committees: %w", err)
	}
	var companies companiesDoc
	if _, err := coll.Get(ctx, "companies", &companies); err != nil {
		return nil, fmt.Errorf("refdata.Load: companies: %w", err)
	}
	var individuals individualsDoc
	if _, err := coll.Get(ctx, "individuals", &individuals); err != nil {
		return nil, fmt.Errorf("refdata.Load: individuals: %w", err)
	}
	var allowlist allowlistDoc
	if _, err := coll.Get(ctx, "occupationAllowlist", &allowlist); err != nil {
		return nil, fmt.Errorf("refdata.Load: occupationAllowlist: %w", err)
	}
	var duplicates duplicatesDoc
	if _, err := coll.Get(ctx, "duplicateContributions", &duplicates); err != nil {
		return nil, fmt.Errorf("refdata.Load: duplicateContributions: %w", err)
	}
	var overrides overridesDoc
	if _, err := coll.Get(ctx, "amountOverrides", &overrides); err != nil {
		return nil, fmt.Errorf("refdata.Load: amountOverrides: %w", err)
	}
	var candidates candidatesDoc
	if _, err := coll.Get(ctx, "candidates", &candidates); err != nil {
		return nil, fmt.Errorf("refdata.Load: candidates: %w", err)
	}
	var affiliations affiliationsDoc
	if _, err := coll.Get(ctx, "committeeAffiliations", &affiliations); err != nil {
		return nil, fmt.Errorf("refdata.Load: committeeAffiliations: %w", err)
	}

	allow, err := contribution.NewAllowlist(allowlist.Equals, allowlist.Contains)
	if err != nil {
		return nil, fmt.Errorf("refdata.Load: %w", err)
	}

	nonCandidates := make(map[string]bool, len(candidates.NonCandidates))
	for _, id := range candidates.NonCandidates {
		nonCandidates[id] = true
	}

	affiliationOverrides := make(map[string]string, len(affiliations.Affiliations))
	for id, v := range affiliations.Affiliations {
		s, ok := v.(string)
		if !ok || id == "" {
			log.Warn().Str("committee_id", id).Interface("value", v).
				Msg("Skipping malformed committee affiliation entry")
			continue
		}
		affiliationOverrides[id] = s
	}

	if len(committees.Committees) == 0 {
		log.Warn().Msg("No tracked committees configured")
	}

	return &Data{
		Committees:             committees.Committees,
		Companies:              companies.Companies,
		Individuals:            individuals.Individuals,
		Allowlist:              allow,
		DuplicateIDs:           duplicates.Duplicates,
		AmountOverrides:        overrides.Overrides,
		CandidateAliases:       candidates.Aliases,
		NonCandidateCommittees: nonCandidates,
		CommitteeAffiliations:  affiliationOverrides,
		CompanyAliases:         companies.Aliases,
		IndividualEmployers:    individuals.Employers,
	}, nil
}

// Directory builds the group-name and link resolver over the tracked
// entities.
func (d *Data) Directory() *contribution.Directory {
	companies := make([]contribution.Entity, len(d.Companies))
	for i, c := range d.Companies {
		companies[i] = contribution.Entity{ID: c.ID, Name: c.Name, Aliases: c.Aliases}
	}
	committees := make([]contribution.Entity, len(d.Committees))
	for i, c := range d.Committees {
		committees[i] = contribution.Entity{ID: c.ID, Name: c.Name, Aliases: c.Aliases}
	}
	individuals := make([]contribution.Entity, len(d.Individuals))
	for i, c := range d.Individuals {
		individuals[i] = contribution.Entity{ID: c.ID, Name: c.Name, Aliases: c.Aliases}
	}
	return contribution.NewDirectory(companies, committees, individuals, d.CompanyAliases, d.IndividualEmployers)
}

// Individual returns the tracked individual with the given ID, or nil.
func (d *Data) Individual(id string) *Individual {
	for i := range d.Individuals {
		if d.Individuals[i].ID == id {
			return &d.Individuals[i]
		}
	}
	return nil
}
