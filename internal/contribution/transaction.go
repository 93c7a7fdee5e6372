package contribution

import (
	"math"
	"strings"

	"github.com/molly/follow-the-crypto-backend/internal/fec"
)

// Transaction is one raw Schedule A contribution after field trimming,
// stored per recipient in the raw collections. Receipt dates are ISO date
// strings and are compared as strings throughout; the feed carries no
// intraday ordering.
type Transaction struct {
	TransactionID string `json:"transaction_id" firestore:"transaction_id"`

	ContributorFirstName  string `json:"contributor_first_name" firestore:"contributor_first_name"`
	ContributorMiddleName string `json:"contributor_middle_name" firestore:"contributor_middle_name"`
	ContributorLastName   string `json:"contributor_last_name" firestore:"contributor_last_name"`
	ContributorSuffix     string `json:"contributor_suffix" firestore:"contributor_suffix"`
	ContributorName       string `json:"contributor_name" firestore:"contributor_name"`
	ContributorOccupation string `json:"contributor_occupation" firestore:"contributor_occupation"`
	ContributorEmployer   string `json:"contributor_employer" firestore:"contributor_employer"`

	EntityType              string  `json:"entity_type" firestore:"entity_type"`
	ContributorAggregateYTD float64 `json:"contributor_aggregate_ytd,omitempty" firestore:"contributor_aggregate_ytd,omitempty"`

	ContributionReceiptAmount float64 `json:"contribution_receipt_amount" firestore:"contribution_receipt_amount"`
	ContributionReceiptDate   string  `json:"contribution_receipt_date" firestore:"contribution_receipt_date"`

	LineNumber      string `json:"line_number,omitempty" firestore:"line_number,omitempty"`
	PDFURL          string `json:"pdf_url,omitempty" firestore:"pdf_url,omitempty"`
	ReceiptType     string `json:"receipt_type,omitempty" firestore:"receipt_type,omitempty"`
	ReceiptTypeFull string `json:"receipt_type_full,omitempty" firestore:"receipt_type_full,omitempty"`
	MemoText        string `json:"memo_text,omitempty" firestore:"memo_text,omitempty"`

	CommitteeID       string   `json:"committee_id,omitempty" firestore:"committee_id,omitempty"`
	CommitteeName     string   `json:"committee_name,omitempty" firestore:"committee_name,omitempty"`
	CandidateIDs      []string `json:"candidate_ids,omitempty" firestore:"candidate_ids,omitempty"`
	CommitteeType     string   `json:"committee_type,omitempty" firestore:"committee_type,omitempty"`
	CommitteeTypeFull string   `json:"committee_type_full,omitempty" firestore:"committee_type_full,omitempty"`
	Designation       string   `json:"designation,omitempty" firestore:"designation,omitempty"`
	DesignationFull   string   `json:"designation_full,omitempty" firestore:"designation_full,omitempty"`
	Party             string   `json:"party,omitempty" firestore:"party,omitempty"`
	State             string   `json:"state,omitempty" firestore:"state,omitempty"`

	AmendmentChain []float64 `json:"amendment_chain,omitempty" firestore:"amendment_chain,omitempty"`

	Efiled       bool   `json:"efiled,omitempty" firestore:"efiled,omitempty"`
	Claimed      bool   `json:"claimed,omitempty" firestore:"claimed,omitempty"`
	IsIndividual bool   `json:"isIndividual,omitempty" firestore:"isIndividual,omitempty"`
	Individual   string `json:"individual,omitempty" firestore:"individual,omitempty"`
	Link         string `json:"link,omitempty" firestore:"link,omitempty"`
	Redacted     bool   `json:"redacted,omitempty" firestore:"redacted,omitempty"`
}

// Description returns the free-text description of a transaction: the memo
// if present, otherwise the full receipt type. This is the only attribution
// signal the feed carries for earmark and transfer chains.
func (t *Transaction) Description() string {
	if t.MemoText != "" {
		return t.MemoText
	}
	return t.ReceiptTypeFull
}

// IsTransfer reports whether the row is an intra-committee transfer (form
// lines 12 and 11C), which is excluded from the contributed total.
func (t *Transaction) IsTransfer() bool {
	return t.LineNumber == "12" || strings.EqualFold(t.LineNumber, "11c")
}

// FromReceipt trims a raw API receipt down to the stored transaction,
// flattening the nested committee and filing objects.
func FromReceipt(r *fec.ScheduleAReceipt) *Transaction {
	t := &Transaction{
		TransactionID:             r.TransactionID,
		ContributorFirstName:      r.ContributorFirstName,
		ContributorMiddleName:     r.ContributorMiddleName,
		ContributorLastName:       r.ContributorLastName,
		ContributorSuffix:         r.ContributorSuffix,
		ContributorName:           r.ContributorName,
		ContributorOccupation:     r.ContributorOccupation,
		ContributorEmployer:       r.ContributorEmployer,
		EntityType:                r.EntityType,
		ContributionReceiptAmount: r.ContributionReceiptAmount,
		ContributionReceiptDate:   r.ContributionReceiptDate,
		LineNumber:                r.LineNumber,
		PDFURL:                    r.PDFURL,
		ReceiptType:               r.ReceiptType,
		ReceiptTypeFull:           r.ReceiptTypeFull,
		MemoText:                  r.MemoText,
		CommitteeID:               r.CommitteeID,
	}
	if r.ContributorAggregateYTD != nil {
		t.ContributorAggregateYTD = *r.ContributorAggregateYTD
	}
	if r.Committee != nil {
		t.CommitteeName = r.Committee.Name
		t.CandidateIDs = r.Committee.CandidateIDs
		t.CommitteeType = r.Committee.CommitteeType
		t.CommitteeTypeFull = r.Committee.CommitteeTypeFull
		t.Designation = r.Committee.Designation
		t.DesignationFull = r.Committee.DesignationFull
		t.Party = r.Committee.Party
		t.State = r.Committee.State
	}
	if r.Filing != nil {
		t.AmendmentChain = r.Filing.AmendmentChain
	}
	return t
}

// NormalizeEfiled uppercases the identity fields of an efiled row for
// consistency with processed data (the efile feed lowercases them) and
// strips the trailing commas that organizational donor names carry there.
func (t *Transaction) NormalizeEfiled() {
	t.Efiled = true
	t.ContributorFirstName = strings.ToUpper(t.ContributorFirstName)
	t.ContributorMiddleName = strings.ToUpper(t.ContributorMiddleName)
	t.ContributorLastName = strings.ToUpper(t.ContributorLastName)
	t.ContributorSuffix = strings.ToUpper(t.ContributorSuffix)
	t.ContributorName = strings.ToUpper(t.ContributorName)
	t.ContributorOccupation = strings.ToUpper(t.ContributorOccupation)
	t.ContributorEmployer = strings.ToUpper(t.ContributorEmployer)
	t.ContributorName = strings.Trim(t.ContributorName, ",")
}

// Cents converts a dollar amount to integer cents. All sum comparisons in
// the reconciler are done in cents so that float accumulation can never
// make two reports of the same transfer look unequal.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Round2 rounds a dollar amount to cents precision for storage.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

func sumCents(contribs []*Transaction) int64 {
	var total int64
	for _, c := range contribs {
		total += Cents(c.ContributionReceiptAmount)
	}
	return total
}
