package refdata

import (
	"context"
	"testing"

	"github.com/molly/follow-the-crypto-backend/internal/contribution"
	"github.com/molly/follow-the-crypto-backend/internal/store"
)

func seedConstants(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	coll := st.Collection(CollectionName)

	docs := map[string]any{
		"committees": map[string]any{
			"committees": []map[string]any{
				{"id": "C00100001", "name": "EXAMPLE PAC"},
			},
		},
		"companies": map[string]any{
			"companies": []map[string]any{
				{"id": "example-corp", "name": "EXAMPLE CORP", "searches": []string{"^EXAMPLE CORP$", "EXAMPLE"}},
			},
			"aliases": map[string]string{"EXAMPLE CORP USA": "EXAMPLE CORP"},
		},
		"individuals": map[string]any{
			"individuals": []map[string]any{
				{
					"id":           "jane-doe",
					"name":         "DOE, JANE",
					"nameSearches": []string{"DOE, JANE"},
					"claimed": []map[string]any{
						{
							"committee_id":                "C00100001",
							"contribution_receipt_amount": 5000.0,
							"contribution_receipt_date":   "2024-05-01",
						},
					},
				},
			},
			"employers": []string{"SELF-EMPLOYED"},
		},
		"occupationAllowlist": map[string]any{
			"equals":   []string{"CEO"},
			"contains": []string{"ENGINEER"},
		},
		"duplicateContributions": map[string]any{
			"duplicates": map[string][]string{"C00100001": {"SA11AI.1"}},
		},
		"amountOverrides": map[string]any{
			"overrides": map[string]float64{"SA11AI.2": 1250.50},
		},
		"candidates": map[string]any{
			"aliases":       map[string]string{"P00000001": "P00000002"},
			"nonCandidates": []string{"C00999999"},
		},
		"committeeAffiliations": map[string]any{
			"affiliations": map[string]any{
				"C00100001": "REP",
				"C00100002": 42, // malformed, must be skipped
			},
		},
	}
	for id, doc := range docs {
		if err := coll.Set(ctx, id, doc); err != nil {
			t.Fatalf("seeding %s: %v", id, err)
		}
	}
}

func TestLoad(t *testing.T) {
	st := store.NewMemory()
	seedConstants(t, st)

	data, err := Load(context.Background(), st)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(data.Committees) != 1 || data.Committees[0].ID != "C00100001" {
		t.Errorf("committees = %+v", data.Committees)
	}
	if len(data.Companies) != 1 || len(data.Companies[0].Searches) != 2 {
		t.Errorf("companies = %+v", data.Companies)
	}
	if ind := data.Individual("jane-doe"); ind == nil || len(ind.Claimed) != 1 {
		t.Errorf("individual jane-doe = %+v", ind)
	}
	if got := data.AmountOverrides["SA11AI.2"]; got != 1250.50 {
		t.Errorf("amount override = %v, want 1250.50", got)
	}
	if !data.NonCandidateCommittees["C00999999"] {
		t.Errorf("missing non-candidate committee")
	}
	if data.CommitteeAffiliations["C00100001"] != "REP" {
		t.Errorf("affiliations = %v", data.CommitteeAffiliations)
	}
	if _, ok := data.CommitteeAffiliations["C00100002"]; ok {
		t.Errorf("malformed affiliation entry should be skipped")
	}
	allowlisted := &contribution.Transaction{
		ContributorFirstName:  "JANE",
		ContributorLastName:   "DOE",
		ContributorOccupation: "STAFF ENGINEER",
	}
	if data.Allowlist.IsRedacted(allowlisted) {
		t.Errorf("allowlisted occupation should not redact")
	}
}

func TestLoadTolerantOfMissingDocuments(t *testing.T) {
	st := store.NewMemory()

	data, err := Load(context.Background(), st)
	if err != nil {
		t.Fatalf("Load() on an empty store should work, got: %v", err)
	}
	if len(data.Committees) != 0 || len(data.Companies) != 0 {
		t.Errorf("expected empty data, got %+v", data)
	}
}

func TestClaimedTransaction(t *testing.T) {
	ind := &Individual{ID: "jane-doe", Name: "DOE, JANE", Employer: "EXAMPLE CORP"}
	claimed := &ClaimedContribution{
		CommitteeID:               "C00100001",
		ContributionReceiptAmount: 5000,
		ContributionReceiptDate:   "2024-05-01",
	}

	txn := claimed.Transaction(ind)

	if !txn.Claimed || !txn.IsIndividual || txn.Individual != "jane-doe" {
		t.Errorf("claimed markers wrong: %+v", txn)
	}
	if txn.CommitteeID != "C00100001" || txn.ContributionReceiptAmount != 5000 {
		t.Errorf("claimed amounts wrong: %+v", txn)
	}
}

func TestDirectory(t *testing.T) {
	st := store.NewMemory()
	seedConstants(t, st)
	data, err := Load(context.Background(), st)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	dir := data.Directory()
	if got := dir.Link("EXAMPLE CORP"); got != "/companies/example-corp" {
		t.Errorf("Link = %q, want /companies/example-corp", got)
	}
	if got := dir.Link("EXAMPLE PAC"); got != "/committees/C00100001" {
		t.Errorf("Link = %q, want /committees/C00100001", got)
	}
}
