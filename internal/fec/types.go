package fec

import "encoding/json"

// API paths relative to the v1 base URL.
const (
	ScheduleAPath      = "/schedules/schedule_a/"
	ScheduleAEfilePath = "/schedules/schedule_a/efile/"
	CommitteesPath     = "/committees/"
	CandidatesPath     = "/candidates/"
)

// Pagination carries the cursor fields returned on every list response.
// Processed endpoints use keyset pagination via LastIndexes; the efile
// endpoint uses plain page numbers.
type Pagination struct {
	Count       int          `json:"count"`
	Pages       int          `json:"pages"`
	PerPage     int          `json:"per_page"`
	LastIndexes *LastIndexes `json:"last_indexes"`
}

// LastIndexes is the keyset cursor to thread into the next request.
type LastIndexes struct {
	LastIndex                   json.Number `json:"last_index"`
	LastContributionReceiptDate string      `json:"last_contribution_receipt_date"`
}

// ScheduleAReceipt is one raw Schedule A transaction as returned by the API.
// The efile feed returns the same shape with lowercased name fields and no
// nested filing data.
type ScheduleAReceipt struct {
	TransactionID string `json:"transaction_id"`

	ContributorFirstName  string `json:"contributor_first_name"`
	ContributorMiddleName string `json:"contributor_middle_name"`
	ContributorLastName   string `json:"contributor_last_name"`
	ContributorSuffix     string `json:"contributor_suffix"`
	ContributorName       string `json:"contributor_name"`
	ContributorOccupation string `json:"contributor_occupation"`
	ContributorEmployer   string `json:"contributor_employer"`

	EntityType              string   `json:"entity_type"`
	ContributorAggregateYTD *float64 `json:"contributor_aggregate_ytd"`

	ContributionReceiptAmount float64 `json:"contribution_receipt_amount"`
	ContributionReceiptDate   string  `json:"contribution_receipt_date"`

	LineNumber      string `json:"line_number"`
	PDFURL          string `json:"pdf_url"`
	ReceiptType     string `json:"receipt_type"`
	ReceiptTypeFull string `json:"receipt_type_full"`
	MemoText        string `json:"memo_text"`

	CommitteeID string            `json:"committee_id"`
	Committee   *CommitteeDetails `json:"committee"`
	Filing      *FilingDetails    `json:"filing"`
}

// CommitteeDetails is the nested committee object on processed receipts.
type CommitteeDetails struct {
	Name              string   `json:"name"`
	CandidateIDs      []string `json:"candidate_ids"`
	CommitteeType     string   `json:"committee_type"`
	CommitteeTypeFull string   `json:"committee_type_full"`
	Designation       string   `json:"designation"`
	DesignationFull   string   `json:"designation_full"`
	Party             string   `json:"party"`
	State             string   `json:"state"`
}

// FilingDetails carries the revision history of the filing a receipt came
// from. Later entries supersede earlier ones.
type FilingDetails struct {
	AmendmentChain []float64 `json:"amendment_chain"`
}

// ScheduleAPage is one page of Schedule A results.
type ScheduleAPage struct {
	Pagination Pagination         `json:"pagination"`
	Results    []ScheduleAReceipt `json:"results"`
}

// CommitteeRecord is one committee from the /committees/ endpoint.
type CommitteeRecord struct {
	CommitteeID         string   `json:"committee_id"`
	Name                string   `json:"name"`
	Party               string   `json:"party"`
	State               string   `json:"state"`
	DesignationFull     string   `json:"designation_full"`
	CommitteeTypeFull   string   `json:"committee_type_full"`
	CandidateIDs        []string `json:"candidate_ids"`
	SponsorCandidateIDs []string `json:"sponsor_candidate_ids"`
}

// CommitteePage is one page of committee lookups.
type CommitteePage struct {
	Pagination Pagination        `json:"pagination"`
	Results    []CommitteeRecord `json:"results"`
}

// CandidateRecord is one candidate from the /candidates/ endpoint.
type CandidateRecord struct {
	CandidateID        string `json:"candidate_id"`
	Name               string `json:"name"`
	Party              string `json:"party"`
	State              string `json:"state"`
	Office             string `json:"office"`
	District           string `json:"district"`
	IncumbentChallenge string `json:"incumbent_challenge"`
	ElectionYears      []int  `json:"election_years"`
}

// CandidatePage is one page of candidate lookups.
type CandidatePage struct {
	Pagination Pagination        `json:"pagination"`
	Results    []CandidateRecord `json:"results"`
}
