package contribution

import "fmt"

// RollupThreshold is the amount at or above which a contribution is stored
// itemized rather than merged into a donor rollup.
const RollupThreshold = 10000

// ManualReview records an operator's decision about a stored contribution.
type ManualReview struct {
	Reviewed bool   `json:"reviewed" firestore:"reviewed"`
	Status   string `json:"status,omitempty" firestore:"status,omitempty"`
}

// Contribution is one stored entry in a donor group: an itemized
// contribution, a rollup of several small ones, or a minimal stub kept to
// preserve a manual omit decision across reprocessing runs.
type Contribution interface {
	// SortAmount is the value groups are ordered by.
	SortAmount() float64
	// SortDate is the newest receipt date carried by the record.
	SortDate() string
	// ReviewID identifies the record for manual-review matching.
	ReviewID() string

	contribution()
}

// Itemized is a single stored contribution.
type Itemized struct {
	ContributorFirstName  string `json:"contributor_first_name" firestore:"contributor_first_name"`
	ContributorMiddleName string `json:"contributor_middle_name" firestore:"contributor_middle_name"`
	ContributorLastName   string `json:"contributor_last_name" firestore:"contributor_last_name"`
	ContributorSuffix     string `json:"contributor_suffix" firestore:"contributor_suffix"`
	ContributorName       string `json:"contributor_name" firestore:"contributor_name"`
	ContributorOccupation string `json:"contributor_occupation" firestore:"contributor_occupation"`
	ContributorEmployer   string `json:"contributor_employer" firestore:"contributor_employer"`

	EntityType              string  `json:"entity_type,omitempty" firestore:"entity_type,omitempty"`
	ContributorAggregateYTD float64 `json:"contributor_aggregate_ytd,omitempty" firestore:"contributor_aggregate_ytd,omitempty"`

	ContributionReceiptAmount float64 `json:"contribution_receipt_amount" firestore:"contribution_receipt_amount"`
	ContributionReceiptDate   string  `json:"contribution_receipt_date" firestore:"contribution_receipt_date"`

	LineNumber      string `json:"line_number,omitempty" firestore:"line_number,omitempty"`
	PDFURL          string `json:"pdf_url,omitempty" firestore:"pdf_url,omitempty"`
	ReceiptType     string `json:"receipt_type,omitempty" firestore:"receipt_type,omitempty"`
	ReceiptTypeFull string `json:"receipt_type_full,omitempty" firestore:"receipt_type_full,omitempty"`
	TransactionID   string `json:"transaction_id,omitempty" firestore:"transaction_id,omitempty"`

	CommitteeID  string   `json:"committee_id,omitempty" firestore:"committee_id,omitempty"`
	CandidateIDs []string `json:"candidate_ids,omitempty" firestore:"candidate_ids,omitempty"`

	Redacted     bool          `json:"redacted,omitempty" firestore:"redacted,omitempty"`
	Link         string        `json:"link,omitempty" firestore:"link,omitempty"`
	Claimed      bool          `json:"claimed,omitempty" firestore:"claimed,omitempty"`
	IsIndividual bool          `json:"isIndividual,omitempty" firestore:"isIndividual,omitempty"`
	Individual   string        `json:"individual,omitempty" firestore:"individual,omitempty"`
	ManualReview *ManualReview `json:"manualReview,omitempty" firestore:"manualReview,omitempty"`
}

func (c *Itemized) SortAmount() float64 { return c.ContributionReceiptAmount }
func (c *Itemized) SortDate() string    { return c.ContributionReceiptDate }
func (c *Itemized) contribution()       {}

func (c *Itemized) ReviewID() string {
	if c.TransactionID != "" {
		return "txn_" + c.TransactionID
	}
	return fmt.Sprintf("rollup_%s_%v_%s", c.ContributorName, c.ContributionReceiptAmount, c.ContributionReceiptDate)
}

// redact masks the donor's identity fields in place.
func (c *Itemized) redact() {
	if !c.Redacted {
		return
	}
	c.ContributorFirstName = Redacted
	c.ContributorMiddleName = Redacted
	c.ContributorLastName = Redacted
	c.ContributorSuffix = Redacted
	c.ContributorName = Redacted
}

// Rollup is a synthesized aggregate of one donor's small contributions
// within a group.
type Rollup struct {
	ContributorFirstName  string `json:"contributor_first_name" firestore:"contributor_first_name"`
	ContributorMiddleName string `json:"contributor_middle_name" firestore:"contributor_middle_name"`
	ContributorLastName   string `json:"contributor_last_name" firestore:"contributor_last_name"`
	ContributorSuffix     string `json:"contributor_suffix" firestore:"contributor_suffix"`
	ContributorName       string `json:"contributor_name" firestore:"contributor_name"`
	ContributorOccupation string `json:"contributor_occupation" firestore:"contributor_occupation"`
	ContributorEmployer   string `json:"contributor_employer" firestore:"contributor_employer"`

	EntityType              string  `json:"entity_type,omitempty" firestore:"entity_type,omitempty"`
	ContributorAggregateYTD float64 `json:"contributor_aggregate_ytd,omitempty" firestore:"contributor_aggregate_ytd,omitempty"`

	Oldest             string  `json:"oldest" firestore:"oldest"`
	Newest             string  `json:"newest" firestore:"newest"`
	Total              int     `json:"total" firestore:"total"`
	TotalReceiptAmount float64 `json:"total_receipt_amount" firestore:"total_receipt_amount"`

	Redacted     bool          `json:"redacted,omitempty" firestore:"redacted,omitempty"`
	Link         string        `json:"link,omitempty" firestore:"link,omitempty"`
	ManualReview *ManualReview `json:"manualReview,omitempty" firestore:"manualReview,omitempty"`
}

func (c *Rollup) SortAmount() float64 { return c.TotalReceiptAmount }
func (c *Rollup) SortDate() string    { return c.Newest }
func (c *Rollup) contribution()       {}

func (c *Rollup) ReviewID() string {
	return fmt.Sprintf("rollup_%s_%v_%s", c.ContributorName, c.TotalReceiptAmount, c.Oldest)
}

func (c *Rollup) redact() {
	if !c.Redacted {
		return
	}
	c.ContributorFirstName = Redacted
	c.ContributorMiddleName = Redacted
	c.ContributorLastName = Redacted
	c.ContributorSuffix = Redacted
	c.ContributorName = Redacted
}

// OmittedStub is the minimal record kept for a contribution an operator
// marked omit, so the decision survives reprocessing. The frontend filters
// the OMITTED group out.
type OmittedStub struct {
	ManualReview              *ManualReview `json:"manualReview" firestore:"manualReview"`
	Description               string        `json:"description,omitempty" firestore:"description,omitempty"`
	TransactionID             string        `json:"transaction_id,omitempty" firestore:"transaction_id,omitempty"`
	ContributorName           string        `json:"contributor_name,omitempty" firestore:"contributor_name,omitempty"`
	ContributionReceiptAmount float64       `json:"contribution_receipt_amount,omitempty" firestore:"contribution_receipt_amount,omitempty"`
	TotalReceiptAmount        float64       `json:"total_receipt_amount,omitempty" firestore:"total_receipt_amount,omitempty"`
	ContributionReceiptDate   string        `json:"contribution_receipt_date,omitempty" firestore:"contribution_receipt_date,omitempty"`
	Oldest                    string        `json:"oldest,omitempty" firestore:"oldest,omitempty"`
}

func (c *OmittedStub) SortAmount() float64 { return 0 }
func (c *OmittedStub) contribution()       {}

func (c *OmittedStub) SortDate() string {
	if c.ContributionReceiptDate != "" {
		return c.ContributionReceiptDate
	}
	return c.Oldest
}

func (c *OmittedStub) ReviewID() string {
	if c.TransactionID != "" {
		return "txn_" + c.TransactionID
	}
	amount := c.ContributionReceiptAmount
	if amount == 0 {
		amount = c.TotalReceiptAmount
	}
	return fmt.Sprintf("rollup_%s_%v_%s", c.ContributorName, amount, c.SortDate())
}

// NewItemized trims a reconciled transaction down to its stored form.
func NewItemized(t *Transaction) *Itemized {
	return &Itemized{
		ContributorFirstName:      t.ContributorFirstName,
		ContributorMiddleName:     t.ContributorMiddleName,
		ContributorLastName:       t.ContributorLastName,
		ContributorSuffix:         t.ContributorSuffix,
		ContributorName:           t.ContributorName,
		ContributorOccupation:     t.ContributorOccupation,
		ContributorEmployer:       t.ContributorEmployer,
		EntityType:                t.EntityType,
		ContributorAggregateYTD:   t.ContributorAggregateYTD,
		ContributionReceiptAmount: Round2(t.ContributionReceiptAmount),
		ContributionReceiptDate:   t.ContributionReceiptDate,
		LineNumber:                t.LineNumber,
		PDFURL:                    t.PDFURL,
		ReceiptType:               t.ReceiptType,
		ReceiptTypeFull:           t.ReceiptTypeFull,
		TransactionID:             t.TransactionID,
		CommitteeID:               t.CommitteeID,
		CandidateIDs:              t.CandidateIDs,
		Redacted:                  t.Redacted,
		Link:                      t.Link,
		Claimed:                   t.Claimed,
		IsIndividual:              t.IsIndividual,
		Individual:                t.Individual,
	}
}

// TransactionReviewID is the manual-review key for a raw transaction before
// it has been turned into a stored record.
func TransactionReviewID(t *Transaction) string {
	if t.TransactionID != "" {
		return "txn_" + t.TransactionID
	}
	return fmt.Sprintf("rollup_%s_%v_%s", t.ContributorName, t.ContributionReceiptAmount, t.ContributionReceiptDate)
}
