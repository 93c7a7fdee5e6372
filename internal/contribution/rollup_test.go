package contribution

import (
	"context"
	"testing"
)

func testDirectory() *Directory {
	return NewDirectory(
		[]Entity{{ID: "example-corp", Name: "EXAMPLE CORP", Aliases: []string{"EXAMPLE CORPORATION"}}},
		[]Entity{{ID: "C00100001", Name: "EXAMPLE PAC"}},
		[]Entity{{ID: "jane-doe", Name: "DOE, JANE"}},
		map[string]string{"EXAMPLE CORP USA": "EXAMPLE CORP"},
		[]string{"SELF-EMPLOYED"},
	)
}

func TestDirectoryGroupName(t *testing.T) {
	dir := testDirectory()

	tests := []struct {
		name string
		c    *Transaction
		want string
	}{
		{
			name: "employer",
			c:    &Transaction{ContributorEmployer: "EXAMPLE CORP", ContributorName: "DOE, JANE"},
			want: "EXAMPLE CORP",
		},
		{
			name: "alias collapses to canonical employer",
			c:    &Transaction{ContributorEmployer: "EXAMPLE CORP USA", ContributorName: "DOE, JANE"},
			want: "EXAMPLE CORP",
		},
		{
			name: "missing employer falls back to donor name",
			c:    &Transaction{ContributorName: "DOE, JANE"},
			want: "DOE, JANE",
		},
		{
			name: "placeholder employer falls back to donor name",
			c:    &Transaction{ContributorEmployer: "N/A", ContributorName: "DOE, JANE"},
			want: "DOE, JANE",
		},
		{
			name: "individual employer falls back to donor name",
			c:    &Transaction{ContributorEmployer: "SELF-EMPLOYED", ContributorName: "DOE, JANE"},
			want: "DOE, JANE",
		},
		{
			name: "nothing at all",
			c:    &Transaction{},
			want: "UNKNOWN",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := dir.GroupName(tc.c); got != tc.want {
				t.Errorf("GroupName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDirectoryLink(t *testing.T) {
	dir := testDirectory()

	if got := dir.Link("EXAMPLE CORPORATION"); got != "/companies/example-corp" {
		t.Errorf("Link(alias) = %q, want /companies/example-corp", got)
	}
	if got := dir.Link("EXAMPLE PAC"); got != "/committees/C00100001" {
		t.Errorf("Link(committee) = %q, want /committees/C00100001", got)
	}
	if got := dir.Link("DOE, JANE"); got != "/individuals/jane-doe" {
		t.Errorf("Link(individual) = %q, want /individuals/jane-doe", got)
	}
	if got := dir.Link("NOBODY WE TRACK"); got != "" {
		t.Errorf("Link(unknown) = %q, want empty", got)
	}
}

func buildTestMap(t *testing.T, txns []*Transaction) *DonorMap {
	t.Helper()
	b := NewDonorMapBuilder(testDirectory(), testAllowlist(t))
	ctx := context.Background()
	for _, txn := range txns {
		b.Add(ctx, txn)
	}
	return b.Finalize()
}

func TestDonorMapRollsUpSmallContributions(t *testing.T) {
	m := buildTestMap(t, []*Transaction{
		{
			ContributorName:           "DOE, JANE",
			ContributorFirstName:      "JANE",
			ContributorLastName:       "DOE",
			ContributorOccupation:     "SOFTWARE ENGINEER",
			ContributorEmployer:       "EXAMPLE CORP",
			ContributionReceiptAmount: 500,
			ContributionReceiptDate:   "2024-02-01",
			ContributorAggregateYTD:   500,
			TransactionID:             "A.1",
		},
		{
			ContributorName:           "DOE, JANE",
			ContributorFirstName:      "JANE",
			ContributorLastName:       "DOE",
			ContributorOccupation:     "SOFTWARE ENGINEER",
			ContributorEmployer:       "EXAMPLE CORP",
			ContributionReceiptAmount: 250,
			ContributionReceiptDate:   "2024-03-05",
			ContributorAggregateYTD:   750,
			TransactionID:             "A.2",
		},
		{
			ContributorName:           "ROE, RICHARD",
			ContributorFirstName:      "RICHARD",
			ContributorLastName:       "ROE",
			ContributorOccupation:     "CEO",
			ContributorEmployer:       "EXAMPLE CORP",
			ContributionReceiptAmount: 25000,
			ContributionReceiptDate:   "2024-01-15",
			TransactionID:             "A.3",
		},
	})

	if m.ContributionsCount != 3 {
		t.Errorf("ContributionsCount = %d, want 3", m.ContributionsCount)
	}
	if m.TotalContributed != 25750 {
		t.Errorf("TotalContributed = %v, want 25750", m.TotalContributed)
	}
	if len(m.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(m.Groups))
	}

	g := m.Groups[0]
	if g.Company != "EXAMPLE CORP" {
		t.Errorf("group = %q, want EXAMPLE CORP", g.Company)
	}
	if g.Link != "/companies/example-corp" {
		t.Errorf("group link = %q, want /companies/example-corp", g.Link)
	}
	if g.Total != 25750 {
		t.Errorf("group total = %v, want 25750", g.Total)
	}
	if len(g.Contributions) != 2 {
		t.Fatalf("expected an itemized record and a rollup, got %d entries", len(g.Contributions))
	}

	// Amount-descending order puts the large itemized contribution first.
	item, ok := g.Contributions[0].(*Itemized)
	if !ok {
		t.Fatalf("first entry is %T, want *Itemized", g.Contributions[0])
	}
	if item.TransactionID != "A.3" {
		t.Errorf("itemized entry = %s, want A.3", item.TransactionID)
	}

	roll, ok := g.Contributions[1].(*Rollup)
	if !ok {
		t.Fatalf("second entry is %T, want *Rollup", g.Contributions[1])
	}
	if roll.Total != 2 || roll.TotalReceiptAmount != 750 {
		t.Errorf("rollup = %d contributions totaling %v, want 2 totaling 750", roll.Total, roll.TotalReceiptAmount)
	}
	if roll.Oldest != "2024-02-01" || roll.Newest != "2024-03-05" {
		t.Errorf("rollup span = %s..%s, want 2024-02-01..2024-03-05", roll.Oldest, roll.Newest)
	}
	if roll.ContributorAggregateYTD != 750 {
		t.Errorf("aggregate YTD = %v, want the high-water 750", roll.ContributorAggregateYTD)
	}
}

func TestDonorMapSingletonRollupCollapses(t *testing.T) {
	m := buildTestMap(t, []*Transaction{{
		ContributorName:           "DOE, JANE",
		ContributorFirstName:      "JANE",
		ContributorLastName:       "DOE",
		ContributorOccupation:     "SOFTWARE ENGINEER",
		ContributorEmployer:       "EXAMPLE CORP",
		ContributionReceiptAmount: 500,
		ContributionReceiptDate:   "2024-02-01",
		TransactionID:             "A.1",
	}})

	g := m.Groups[0]
	if len(g.Contributions) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(g.Contributions))
	}
	item, ok := g.Contributions[0].(*Itemized)
	if !ok {
		t.Fatalf("entry is %T, want *Itemized after singleton collapse", g.Contributions[0])
	}
	if item.ContributionReceiptAmount != 500 || item.ContributionReceiptDate != "2024-02-01" {
		t.Errorf("collapsed entry = %v on %s, want 500 on 2024-02-01", item.ContributionReceiptAmount, item.ContributionReceiptDate)
	}
}

func TestSingletonCollapseKeepsTransactionIdentity(t *testing.T) {
	m := buildTestMap(t, []*Transaction{{
		ContributorName:           "DOE, JANE",
		ContributorFirstName:      "JANE",
		ContributorLastName:       "DOE",
		ContributorOccupation:     "SOFTWARE ENGINEER",
		ContributorEmployer:       "EXAMPLE CORP",
		ContributionReceiptAmount: 500,
		ContributionReceiptDate:   "2024-02-01",
		TransactionID:             "SA11AI.8250",
		CommitteeID:               "C00100001",
		LineNumber:                "11ai",
		ReceiptType:               "15",
		PDFURL:                    "https://docquery.fec.gov/cgi-bin/fecimg/?202404150000001",
	}})

	item, ok := m.Groups[0].Contributions[0].(*Itemized)
	if !ok {
		t.Fatalf("entry is %T, want *Itemized", m.Groups[0].Contributions[0])
	}
	if item.TransactionID != "SA11AI.8250" {
		t.Errorf("TransactionID = %q, want SA11AI.8250", item.TransactionID)
	}
	if got := item.ReviewID(); got != "txn_SA11AI.8250" {
		t.Errorf("ReviewID() = %q, want txn_SA11AI.8250: a review of a collapsed entry must key on the transaction", got)
	}
	if item.CommitteeID != "C00100001" || item.LineNumber != "11ai" || item.ReceiptType != "15" {
		t.Errorf("collapsed entry lost filing fields: %+v", item)
	}
	if item.PDFURL == "" {
		t.Errorf("collapsed entry lost its PDF link")
	}
}

func TestMergeVerifiedTransferLineUppercase(t *testing.T) {
	b := NewDonorMapBuilder(testDirectory(), testAllowlist(t))
	ctx := context.Background()

	b.MergeReviewed(ctx, map[string]StoredContribution{
		"txn_T.1": {
			ContributorName:           "EXAMPLE VICTORY FUND",
			EntityType:                "PAC",
			LineNumber:                "11C",
			ContributionReceiptAmount: 40000,
			ContributionReceiptDate:   "2024-03-01",
			TransactionID:             "T.1",
			ManualReview:              &ManualReview{Reviewed: true, Status: ReviewVerified},
		},
	})

	m := b.Finalize()
	if m.TotalTransferred != 40000 {
		t.Errorf("TotalTransferred = %v, want 40000 for an 11C line", m.TotalTransferred)
	}
	if m.TotalContributed != 0 {
		t.Errorf("TotalContributed = %v, want 0", m.TotalContributed)
	}
}

func TestDonorMapRedactsAtSerialization(t *testing.T) {
	m := buildTestMap(t, []*Transaction{{
		ContributorName:           "DOE, JANE",
		ContributorFirstName:      "JANE",
		ContributorLastName:       "DOE",
		ContributorOccupation:     "TEACHER",
		ContributorEmployer:       "EXAMPLE SCHOOL",
		ContributionReceiptAmount: 12000,
		ContributionReceiptDate:   "2024-02-01",
		TransactionID:             "A.1",
	}})

	item := m.Groups[0].Contributions[0].(*Itemized)
	if !item.Redacted || item.ContributorName != Redacted {
		t.Errorf("group entry not redacted: %+v", item)
	}
	if len(m.ByDate) != 1 || m.ByDate[0].ContributorName != Redacted {
		t.Errorf("by-date entry not redacted: %+v", m.ByDate)
	}
	// The group key was chosen before masking.
	if m.Groups[0].Company != "EXAMPLE SCHOOL" {
		t.Errorf("group = %q, want EXAMPLE SCHOOL", m.Groups[0].Company)
	}
}

func TestDonorMapSplitsTransfersFromContributions(t *testing.T) {
	m := buildTestMap(t, []*Transaction{
		{
			ContributorName:           "EXAMPLE VICTORY FUND",
			EntityType:                "PAC",
			LineNumber:                "12",
			ContributionReceiptAmount: 50000,
			ContributionReceiptDate:   "2024-04-01",
			TransactionID:             "A.1",
		},
		{
			ContributorName:           "DOE, JANE",
			ContributorFirstName:      "JANE",
			ContributorLastName:       "DOE",
			ContributorOccupation:     "CEO",
			ContributorEmployer:       "EXAMPLE CORP",
			LineNumber:                "11ai",
			ContributionReceiptAmount: 3300,
			ContributionReceiptDate:   "2024-04-02",
			TransactionID:             "A.2",
		},
	})

	if m.TotalTransferred != 50000 {
		t.Errorf("TotalTransferred = %v, want 50000", m.TotalTransferred)
	}
	if m.TotalContributed != 3300 {
		t.Errorf("TotalContributed = %v, want 3300", m.TotalContributed)
	}
	if len(m.ByDate) != 2 || m.ByDate[0].TransactionID != "A.2" {
		t.Errorf("by_date should be newest first, got %+v", m.ByDate)
	}
}

func TestDonorMapGroupsSortedByTotal(t *testing.T) {
	m := buildTestMap(t, []*Transaction{
		{
			ContributorName:           "DOE, JANE",
			ContributorFirstName:      "JANE",
			ContributorLastName:       "DOE",
			ContributorOccupation:     "CEO",
			ContributorEmployer:       "SMALL CO",
			ContributionReceiptAmount: 100,
			ContributionReceiptDate:   "2024-01-01",
			TransactionID:             "A.1",
		},
		{
			ContributorName:           "ROE, RICHARD",
			ContributorFirstName:      "RICHARD",
			ContributorLastName:       "ROE",
			ContributorOccupation:     "CEO",
			ContributorEmployer:       "BIG CO",
			ContributionReceiptAmount: 99999,
			ContributionReceiptDate:   "2024-01-01",
			TransactionID:             "A.2",
		},
	})

	if len(m.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(m.Groups))
	}
	if m.Groups[0].Company != "BIG CO" || m.Groups[1].Company != "SMALL CO" {
		t.Errorf("groups out of order: %s then %s", m.Groups[0].Company, m.Groups[1].Company)
	}
}

func TestMergeReviewedOmitAndVerified(t *testing.T) {
	b := NewDonorMapBuilder(testDirectory(), testAllowlist(t))
	ctx := context.Background()

	b.Add(ctx, &Transaction{
		ContributorName:           "DOE, JANE",
		ContributorFirstName:      "JANE",
		ContributorLastName:       "DOE",
		ContributorOccupation:     "CEO",
		ContributorEmployer:       "EXAMPLE CORP",
		ContributionReceiptAmount: 15000,
		ContributionReceiptDate:   "2024-01-01",
		TransactionID:             "A.1",
	})

	b.MergeReviewed(ctx, map[string]StoredContribution{
		"txn_B.1": {
			ContributorName:           "ROE, RICHARD",
			ContributorEmployer:       "EXAMPLE CORP",
			ContributorOccupation:     "CEO",
			ContributionReceiptAmount: 20000,
			ContributionReceiptDate:   "2024-01-05",
			TransactionID:             "B.1",
			ManualReview:              &ManualReview{Reviewed: true, Status: ReviewVerified},
		},
		"txn_C.1": {
			ContributorName:           "NOBODY, REAL",
			Description:               "Duplicate of B.1",
			ContributionReceiptAmount: 20000,
			ContributionReceiptDate:   "2024-01-05",
			TransactionID:             "C.1",
			ManualReview:              &ManualReview{Reviewed: true, Status: ReviewOmit},
		},
	})

	m := b.Finalize()

	var corp, omitted *DonorGroup
	for _, g := range m.Groups {
		switch g.Company {
		case "EXAMPLE CORP":
			corp = g
		case OmittedGroupName:
			omitted = g
		}
	}

	if corp == nil {
		t.Fatal("missing EXAMPLE CORP group")
	}
	if corp.Total != 35000 {
		t.Errorf("group total = %v, want 35000 including the verified entry", corp.Total)
	}
	if len(corp.Contributions) != 2 {
		t.Fatalf("expected 2 entries in EXAMPLE CORP, got %d", len(corp.Contributions))
	}
	verified, ok := corp.Contributions[0].(*Itemized)
	if !ok || verified.TransactionID != "B.1" {
		t.Errorf("largest entry should be the verified B.1, got %+v", corp.Contributions[0])
	}
	if verified.ManualReview == nil || !verified.ManualReview.Reviewed {
		t.Errorf("verified entry lost its review marker: %+v", verified)
	}

	if omitted == nil {
		t.Fatal("missing OMITTED group")
	}
	if omitted.Total != 0 {
		t.Errorf("OMITTED group total = %v, want 0", omitted.Total)
	}
	stub, ok := omitted.Contributions[0].(*OmittedStub)
	if !ok || stub.TransactionID != "C.1" {
		t.Errorf("expected an omit stub for C.1, got %+v", omitted.Contributions[0])
	}
	if m.TotalContributed != 35000 {
		t.Errorf("TotalContributed = %v, want 35000: omitted entries do not count", m.TotalContributed)
	}
}

func TestStoredDonorMapReviewed(t *testing.T) {
	stored := &StoredDonorMap{
		Groups: []StoredDonorGroup{
			{
				Company: "EXAMPLE CORP",
				Contributions: []StoredContribution{
					{TransactionID: "A.1", ContributionReceiptAmount: 500},
					{
						TransactionID:             "B.1",
						ContributionReceiptAmount: 20000,
						ManualReview:              &ManualReview{Reviewed: true, Status: ReviewVerified},
					},
				},
			},
		},
	}

	reviewed := stored.Reviewed()

	if len(reviewed) != 1 {
		t.Fatalf("expected 1 reviewed entry, got %d", len(reviewed))
	}
	if _, ok := reviewed["txn_B.1"]; !ok {
		t.Errorf("missing txn_B.1, got %v", reviewed)
	}
}
