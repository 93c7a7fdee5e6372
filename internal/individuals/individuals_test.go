package individuals

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/molly/follow-the-crypto-backend/internal/contribution"
	"github.com/molly/follow-the-crypto-backend/internal/fec"
	"github.com/molly/follow-the-crypto-backend/internal/refdata"
	"github.com/molly/follow-the-crypto-backend/internal/store"
)

type fakeFetcher struct {
	pages map[string][]string
	calls []url.Values
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, path string, params url.Values, v any) error {
	cloned := url.Values{}
	for k, vals := range params {
		cloned[k] = append([]string(nil), vals...)
	}
	f.calls = append(f.calls, cloned)

	queue := f.pages[path]
	if len(queue) == 0 {
		return json.Unmarshal([]byte(`{"results": [], "pagination": {}}`), v)
	}
	payload := queue[0]
	f.pages[path] = queue[1:]
	return json.Unmarshal([]byte(payload), v)
}

func testData(t *testing.T) *refdata.Data {
	t.Helper()
	allow, err := contribution.NewAllowlist(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &refdata.Data{
		Individuals: []refdata.Individual{{
			ID:           "jane-doe",
			Name:         "DOE, JANE",
			NameSearches: []string{"DOE, JANE"},
			Zips:         []string{"94105"},
			Cities:       []string{"SAN FRANCISCO"},
			Claimed: []refdata.ClaimedContribution{{
				CommitteeID:               "C00300001",
				ContributionReceiptAmount: 5000,
				ContributionReceiptDate:   "2024-05-01",
			}},
		}},
		Allowlist:             allow,
		CommitteeAffiliations: map[string]string{"C00200001": "DEM"},
	}
}

func TestFetchExcludesConduits(t *testing.T) {
	page := `{
		"results": [
			{"transaction_id": "SA11AI.1", "committee_id": "C00200001", "contributor_name": "DOE, JANE", "contribution_receipt_amount": 3300, "contribution_receipt_date": "2024-02-01", "line_number": "11ai"},
			{"transaction_id": "SA11AI.2", "committee_id": "C00694323", "contributor_name": "DOE, JANE", "contribution_receipt_amount": 3300, "contribution_receipt_date": "2024-02-01", "line_number": "11ai"}
		],
		"pagination": {"count": 2, "pages": 1, "per_page": 100}
	}`
	efilePage := `{
		"results": [
			{"transaction_id": "SA11AI.7", "committee_id": "C00200009", "contributor_name": "doe, jane,", "contribution_receipt_amount": 2000, "contribution_receipt_date": "2024-06-01", "line_number": "11ai"}
		],
		"pagination": {"count": 1, "pages": 1, "per_page": 100}
	}`
	fetcher := &fakeFetcher{pages: map[string][]string{
		fec.ScheduleAPath:      {page},
		fec.ScheduleAEfilePath: {efilePage},
	}}
	st := store.NewMemory()
	svc := New(st, fetcher, testData(t), "2024", "2023-01-01")

	if err := svc.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	var raw RawDoc
	ok, err := st.Collection(RawCollection).Get(context.Background(), "jane-doe", &raw)
	if err != nil || !ok {
		t.Fatalf("raw snapshot missing: ok=%v err=%v", ok, err)
	}

	byID := map[string]*contribution.Transaction{}
	for _, txn := range raw.Transactions {
		byID[txn.TransactionID] = txn
	}
	if len(byID) != 2 {
		t.Fatalf("expected 2 transactions, got %+v", raw.Transactions)
	}
	if _, ok := byID["SA11AI.2"]; ok {
		t.Errorf("conduit transaction not excluded")
	}
	if txn := byID["SA11AI.7"]; txn == nil {
		t.Errorf("efiled transaction missing")
	} else {
		if !txn.Efiled {
			t.Errorf("efiled transaction not flagged")
		}
		if txn.ContributorName != "DOE, JANE" {
			t.Errorf("efiled name not normalized: %q", txn.ContributorName)
		}
	}

	// The processed search narrows by zip; the efiled one by city, with the
	// configured date floor.
	var sawProcessed, sawEfiled bool
	for _, call := range fetcher.calls {
		if call.Get("contributor_name") == "DOE, JANE" && call.Get("contributor_zip") == "94105" && call.Get("contributor_city") == "" {
			sawProcessed = true
		}
		if call.Get("contributor_name") == "DOE, JANE" && call.Get("contributor_city") == "SAN FRANCISCO" && call.Get("min_date") == "2023-01-01" {
			sawEfiled = true
		}
	}
	if !sawProcessed {
		t.Errorf("processed search parameters not passed: %+v", fetcher.calls)
	}
	if !sawEfiled {
		t.Errorf("efiled search parameters not passed: %+v", fetcher.calls)
	}
}

func TestProcessGroupsByRecipientAndMergesClaimed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := New(st, &fakeFetcher{}, testData(t), "2024", "2023-01-01")

	raw := &RawDoc{Transactions: []*contribution.Transaction{
		{
			TransactionID:             "SA11AI.1",
			CommitteeID:               "C00200001",
			ContributorName:           "DOE, JANE",
			ContributionReceiptAmount: 3300,
			ContributionReceiptDate:   "2024-02-01",
		},
		{
			TransactionID:             "SA11AI.3",
			CommitteeID:               "C00200002",
			Party:                     "REP",
			ContributorName:           "DOE, JANE",
			ContributionReceiptAmount: 1000,
			ContributionReceiptDate:   "2024-03-01",
		},
	}}
	if err := st.Collection(RawCollection).Set(ctx, "jane-doe", raw); err != nil {
		t.Fatal(err)
	}

	if err := svc.Process(ctx); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	var doc Doc
	ok, err := st.Collection(ProcessedCollection).Get(ctx, "jane-doe", &doc)
	if err != nil || !ok {
		t.Fatalf("aggregate missing: ok=%v err=%v", ok, err)
	}

	if doc.Total != 9300 {
		t.Errorf("Total = %v, want 9300 including the claimed contribution", doc.Total)
	}
	if len(doc.Recipients) != 3 {
		t.Fatalf("expected 3 recipients, got %d", len(doc.Recipients))
	}
	if r := doc.Recipients["C00200001"]; r == nil || r.Party != "DEM" {
		t.Errorf("affiliation override not applied: %+v", r)
	}
	if r := doc.Recipients["C00200002"]; r == nil || r.Party != "REP" {
		t.Errorf("reported party not used: %+v", r)
	}
	claimed := doc.Recipients["C00300001"]
	if claimed == nil || len(claimed.Contributions) != 1 || !claimed.Contributions[0].Claimed {
		t.Errorf("claimed contribution missing: %+v", claimed)
	}
	if doc.PartySummary["DEM"] != 3300 || doc.PartySummary["REP"] != 1000 || doc.PartySummary["UNK"] != 5000 {
		t.Errorf("party summary = %v", doc.PartySummary)
	}
}

func TestProcessKeepsClaimsAlongsideFetchedRows(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := New(st, &fakeFetcher{}, testData(t), "2024", "2023-01-01")

	// A fetched row to the same committee the claim names. The claim may or
	// may not be the same money, so both are kept for an operator to review.
	raw := &RawDoc{Transactions: []*contribution.Transaction{{
		TransactionID:             "SA11AI.1",
		CommitteeID:               "C00300001",
		ContributorName:           "DOE, JANE",
		ContributionReceiptAmount: 5000,
		ContributionReceiptDate:   "2024-05-01",
	}}}
	if err := st.Collection(RawCollection).Set(ctx, "jane-doe", raw); err != nil {
		t.Fatal(err)
	}

	if err := svc.Process(ctx); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	var doc Doc
	if _, err := st.Collection(ProcessedCollection).Get(ctx, "jane-doe", &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Total != 10000 {
		t.Errorf("Total = %v, want 10000: the claim is kept next to the fetched row", doc.Total)
	}
	r := doc.Recipients["C00300001"]
	if r == nil || len(r.Contributions) != 2 {
		t.Fatalf("expected 2 contributions, got %+v", r)
	}
	var claimed, fetched bool
	for _, c := range r.Contributions {
		if c.Claimed {
			claimed = true
		} else if c.TransactionID == "SA11AI.1" {
			fetched = true
		}
	}
	if !claimed || !fetched {
		t.Errorf("missing claimed or fetched entry: %+v", r.Contributions)
	}
}

func TestProcessResolvesPartyFromCandidates(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	candidatesPage := `{
		"results": [{"candidate_id": "P00000001", "name": "SMITH, PAT", "party": "REP"}],
		"pagination": {"count": 1, "pages": 1, "per_page": 100}
	}`
	fetcher := &fakeFetcher{pages: map[string][]string{fec.CandidatesPath: {candidatesPage}}}
	svc := New(st, fetcher, testData(t), "2024", "2023-01-01")

	// The committee reports a no-party code, so its linked candidate
	// decides.
	raw := &RawDoc{Transactions: []*contribution.Transaction{{
		TransactionID:             "SA11AI.1",
		CommitteeID:               "C00200005",
		Party:                     "NNE",
		CandidateIDs:              []string{"P00000001"},
		ContributorName:           "DOE, JANE",
		ContributionReceiptAmount: 3300,
		ContributionReceiptDate:   "2024-02-01",
	}}}
	if err := st.Collection(RawCollection).Set(ctx, "jane-doe", raw); err != nil {
		t.Fatal(err)
	}

	if err := svc.Process(ctx); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	var doc Doc
	if _, err := st.Collection(ProcessedCollection).Get(ctx, "jane-doe", &doc); err != nil {
		t.Fatal(err)
	}
	if r := doc.Recipients["C00200005"]; r == nil || r.Party != "REP" {
		t.Errorf("candidate consensus not applied: %+v", r)
	}
	if doc.PartySummary["REP"] != 3300 {
		t.Errorf("party summary = %v", doc.PartySummary)
	}
}
