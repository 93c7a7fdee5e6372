package contribution

// DonorMap is the stored aggregation of one recipient's contributions.
type DonorMap struct {
	ContributionsCount int            `json:"contributions_count" firestore:"contributions_count"`
	Groups             []*DonorGroup  `json:"groups" firestore:"groups"`
	ByDate             []*Itemized    `json:"by_date" firestore:"by_date"`
	TotalContributed   float64        `json:"total_contributed" firestore:"total_contributed"`
	TotalTransferred   float64        `json:"total_transferred" firestore:"total_transferred"`
}

// DonorGroup is one employer-or-name bucket inside a donor map. The group
// key lives in the company field for historical reasons.
type DonorGroup struct {
	Company       string         `json:"company" firestore:"company"`
	Link          string         `json:"link,omitempty" firestore:"link,omitempty"`
	Contributions []Contribution `json:"contributions" firestore:"contributions"`
	Total         float64        `json:"total" firestore:"total"`
}

// StoredContribution is the field superset of every stored variant. It is
// how previously written donor maps are read back, since a stored group
// mixes itemized records, rollups, and omit stubs.
type StoredContribution struct {
	ContributorFirstName  string `json:"contributor_first_name,omitempty" firestore:"contributor_first_name,omitempty"`
	ContributorMiddleName string `json:"contributor_middle_name,omitempty" firestore:"contributor_middle_name,omitempty"`
	ContributorLastName   string `json:"contributor_last_name,omitempty" firestore:"contributor_last_name,omitempty"`
	ContributorSuffix     string `json:"contributor_suffix,omitempty" firestore:"contributor_suffix,omitempty"`
	ContributorName       string `json:"contributor_name,omitempty" firestore:"contributor_name,omitempty"`
	ContributorOccupation string `json:"contributor_occupation,omitempty" firestore:"contributor_occupation,omitempty"`
	ContributorEmployer   string `json:"contributor_employer,omitempty" firestore:"contributor_employer,omitempty"`

	EntityType              string  `json:"entity_type,omitempty" firestore:"entity_type,omitempty"`
	ContributorAggregateYTD float64 `json:"contributor_aggregate_ytd,omitempty" firestore:"contributor_aggregate_ytd,omitempty"`

	ContributionReceiptAmount float64 `json:"contribution_receipt_amount,omitempty" firestore:"contribution_receipt_amount,omitempty"`
	ContributionReceiptDate   string  `json:"contribution_receipt_date,omitempty" firestore:"contribution_receipt_date,omitempty"`
	LineNumber                string  `json:"line_number,omitempty" firestore:"line_number,omitempty"`
	PDFURL                    string  `json:"pdf_url,omitempty" firestore:"pdf_url,omitempty"`
	ReceiptType               string  `json:"receipt_type,omitempty" firestore:"receipt_type,omitempty"`
	ReceiptTypeFull           string  `json:"receipt_type_full,omitempty" firestore:"receipt_type_full,omitempty"`
	TransactionID             string  `json:"transaction_id,omitempty" firestore:"transaction_id,omitempty"`

	CommitteeID  string   `json:"committee_id,omitempty" firestore:"committee_id,omitempty"`
	CandidateIDs []string `json:"candidate_ids,omitempty" firestore:"candidate_ids,omitempty"`

	Oldest             string  `json:"oldest,omitempty" firestore:"oldest,omitempty"`
	Newest             string  `json:"newest,omitempty" firestore:"newest,omitempty"`
	Total              int     `json:"total,omitempty" firestore:"total,omitempty"`
	TotalReceiptAmount float64 `json:"total_receipt_amount,omitempty" firestore:"total_receipt_amount,omitempty"`

	Redacted     bool          `json:"redacted,omitempty" firestore:"redacted,omitempty"`
	Link         string        `json:"link,omitempty" firestore:"link,omitempty"`
	Claimed      bool          `json:"claimed,omitempty" firestore:"claimed,omitempty"`
	IsIndividual bool          `json:"isIndividual,omitempty" firestore:"isIndividual,omitempty"`
	Individual   string        `json:"individual,omitempty" firestore:"individual,omitempty"`
	Description  string        `json:"description,omitempty" firestore:"description,omitempty"`
	ManualReview *ManualReview `json:"manualReview,omitempty" firestore:"manualReview,omitempty"`
}

// StoredDonorMap mirrors DonorMap with loose entries, for reading back
// previously stored documents.
type StoredDonorMap struct {
	Groups []StoredDonorGroup   `json:"groups" firestore:"groups"`
	ByDate []StoredContribution `json:"by_date" firestore:"by_date"`
}

type StoredDonorGroup struct {
	Company       string               `json:"company" firestore:"company"`
	Contributions []StoredContribution `json:"contributions" firestore:"contributions"`
}

// IsRollup reports whether the stored entry was written as a rollup.
func (s *StoredContribution) IsRollup() bool {
	return s.Total > 0 || (s.TransactionID == "" && s.TotalReceiptAmount != 0)
}

// ReviewID identifies the stored entry for manual-review matching, using
// the same key shape the typed variants produce.
func (s *StoredContribution) ReviewID() string {
	c := s.Variant()
	return c.ReviewID()
}

// Variant converts the loose entry back into its typed form.
func (s *StoredContribution) Variant() Contribution {
	if s.ManualReview != nil && s.ManualReview.Status == ReviewOmit && s.TransactionID == "" && s.Total == 0 && s.Description != "" {
		return &OmittedStub{
			ManualReview:              s.ManualReview,
			Description:               s.Description,
			TransactionID:             s.TransactionID,
			ContributorName:           s.ContributorName,
			ContributionReceiptAmount: s.ContributionReceiptAmount,
			TotalReceiptAmount:        s.TotalReceiptAmount,
			ContributionReceiptDate:   s.ContributionReceiptDate,
			Oldest:                    s.Oldest,
		}
	}
	if s.IsRollup() {
		return &Rollup{
			ContributorFirstName:    s.ContributorFirstName,
			ContributorMiddleName:   s.ContributorMiddleName,
			ContributorLastName:     s.ContributorLastName,
			ContributorSuffix:       s.ContributorSuffix,
			ContributorName:         s.ContributorName,
			ContributorOccupation:   s.ContributorOccupation,
			ContributorEmployer:     s.ContributorEmployer,
			EntityType:              s.EntityType,
			ContributorAggregateYTD: s.ContributorAggregateYTD,
			Oldest:                  s.Oldest,
			Newest:                  s.Newest,
			Total:                   s.Total,
			TotalReceiptAmount:      s.TotalReceiptAmount,
			Redacted:                s.Redacted,
			Link:                    s.Link,
			ManualReview:            s.ManualReview,
		}
	}
	return &Itemized{
		ContributorFirstName:      s.ContributorFirstName,
		ContributorMiddleName:     s.ContributorMiddleName,
		ContributorLastName:       s.ContributorLastName,
		ContributorSuffix:         s.ContributorSuffix,
		ContributorName:           s.ContributorName,
		ContributorOccupation:     s.ContributorOccupation,
		ContributorEmployer:       s.ContributorEmployer,
		EntityType:                s.EntityType,
		ContributorAggregateYTD:   s.ContributorAggregateYTD,
		ContributionReceiptAmount: s.ContributionReceiptAmount,
		ContributionReceiptDate:   s.ContributionReceiptDate,
		LineNumber:                s.LineNumber,
		PDFURL:                    s.PDFURL,
		ReceiptType:               s.ReceiptType,
		ReceiptTypeFull:           s.ReceiptTypeFull,
		TransactionID:             s.TransactionID,
		CommitteeID:               s.CommitteeID,
		CandidateIDs:              s.CandidateIDs,
		Redacted:                  s.Redacted,
		Link:                      s.Link,
		Claimed:                   s.Claimed,
		IsIndividual:              s.IsIndividual,
		Individual:                s.Individual,
		ManualReview:              s.ManualReview,
	}
}

// Reviewed collects the manually reviewed entries of a stored donor map,
// keyed by review ID.
func (m *StoredDonorMap) Reviewed() map[string]StoredContribution {
	out := make(map[string]StoredContribution)
	for _, g := range m.Groups {
		for _, c := range g.Contributions {
			if c.ManualReview != nil && c.ManualReview.Reviewed {
				out[c.ReviewID()] = c
			}
		}
	}
	return out
}

// Manual-review statuses.
const (
	ReviewVerified = "verified"
	ReviewOmit     = "omit"
)

// OmittedGroupName is the donor group that holds omit stubs.
const OmittedGroupName = "OMITTED"
