// Package individuals fetches and processes contributions made by the
// tracked individuals: donor-side Schedule A searches by name, location,
// and employer, reconciled and grouped per recipient committee.
package individuals

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/molly/follow-the-crypto-backend/internal/contribution"
	"github.com/molly/follow-the-crypto-backend/internal/fec"
	"github.com/molly/follow-the-crypto-backend/internal/logger"
	"github.com/molly/follow-the-crypto-backend/internal/refdata"
	"github.com/molly/follow-the-crypto-backend/internal/store"
)

const (
	RawCollection       = "rawIndividualContributions"
	ProcessedCollection = "individuals"
)

// Conduit committees are excluded from donor-side searches: money through
// them shows up again attributed to the ultimate recipient.
var conduitCommittees = map[string]bool{
	"C00694323": true, // WinRed
	"C00401224": true, // ActBlue
}

// RawDoc is the per-individual raw snapshot.
type RawDoc struct {
	Transactions []*contribution.Transaction `json:"transactions" firestore:"transactions"`
}

// RecipientContribs is one recipient committee's slice of an individual's
// giving.
type RecipientContribs struct {
	CommitteeID   string                   `json:"committee_id" firestore:"committee_id"`
	CommitteeName string                   `json:"committee_name,omitempty" firestore:"committee_name,omitempty"`
	Party         string                   `json:"party,omitempty" firestore:"party,omitempty"`
	Total         float64                  `json:"total" firestore:"total"`
	Contributions []*contribution.Itemized `json:"contributions" firestore:"contributions"`
}

// Doc is the stored per-individual aggregate.
type Doc struct {
	Total        float64                       `json:"total" firestore:"total"`
	Recipients   map[string]*RecipientContribs `json:"recipients" firestore:"recipients"`
	PartySummary map[string]float64            `json:"party_summary" firestore:"party_summary"`
}

type Service struct {
	store   store.Store
	fetcher fec.Fetcher
	data    *refdata.Data

	cycle         string
	efiledMinDate string
}

func New(st store.Store, fetcher fec.Fetcher, data *refdata.Data, cycle, efiledMinDate string) *Service {
	return &Service{
		store:         st,
		fetcher:       fetcher,
		data:          data,
		cycle:         cycle,
		efiledMinDate: efiledMinDate,
	}
}

// Fetch refetches raw donor-side contributions for every tracked
// individual. Per-individual failures keep the previous snapshot.
func (s *Service) Fetch(ctx context.Context) error {
	log := logger.FromContext(ctx)
	coll := s.store.Collection(RawCollection)

	for i := range s.data.Individuals {
		ind := &s.data.Individuals[i]
		iLog := log.With().Str("individual", ind.ID).Logger()
		iCtx := logger.WithContext(ctx, iLog)

		txns, err := s.fetchIndividual(iCtx, ind)
		if err != nil {
			iLog.Error().Err(err).Msg("Failed to fetch individual contributions, keeping previous snapshot")
			continue
		}
		if err := coll.Set(ctx, ind.ID, &RawDoc{Transactions: txns}); err != nil {
			return fmt.Errorf("individuals.Fetch: storing %s: %w", ind.ID, err)
		}
		iLog.Info().Int("count", len(txns)).Msg("Stored raw contributions")
	}
	return nil
}

// fetchIndividual runs each configured search against the processed feed
// and then the efiled feed. Processed searches narrow by zip; the efile
// endpoint does not index zips, so its searches narrow by city instead.
func (s *Service) fetchIndividual(ctx context.Context, ind *refdata.Individual) ([]*contribution.Transaction, error) {
	seen := contribution.NewIDSet(nil)
	manual := contribution.NewIDSet(s.data.DuplicateIDs[ind.ID])
	var kept []*contribution.Transaction

	for _, name := range ind.NameSearches {
		params := url.Values{}
		params.Set("contributor_name", name)
		for _, z := range ind.Zips {
			params.Add("contributor_zip", z)
		}
		batch, err := s.searchScheduleA(ctx, "contributions from "+name, params, seen, manual)
		if err != nil {
			return nil, err
		}
		kept = append(kept, batch...)

		params = url.Values{}
		params.Set("contributor_name", name)
		for _, c := range ind.Cities {
			params.Add("contributor_city", c)
		}
		batch, err = s.searchEfiled(ctx, "efiled contributions from "+name, params, seen, manual)
		if err != nil {
			return nil, err
		}
		kept = append(kept, batch...)
	}
	for _, employer := range ind.EmployerSearches {
		params := url.Values{}
		params.Set("contributor_employer", employer)
		batch, err := s.searchScheduleA(ctx, "contributions via employer "+employer, params, seen, manual)
		if err != nil {
			return nil, err
		}
		kept = append(kept, batch...)

		params = url.Values{}
		params.Set("contributor_employer", employer)
		batch, err = s.searchEfiled(ctx, "efiled contributions via employer "+employer, params, seen, manual)
		if err != nil {
			return nil, err
		}
		kept = append(kept, batch...)
	}
	return kept, nil
}

// searchScheduleA runs one keyset-paginated processed search, applying the
// omission filter and the conduit exclusion.
func (s *Service) searchScheduleA(ctx context.Context, description string, params url.Values, seen, manual contribution.IDSet) ([]*contribution.Transaction, error) {
	params.Set("two_year_transaction_period", s.cycle)
	params.Set("per_page", "100")
	params.Set("sort", "-contribution_receipt_date")

	var kept []*contribution.Transaction
	for {
		var page fec.ScheduleAPage
		if err := s.fetcher.Fetch(ctx, description, fec.ScheduleAPath, params, &page); err != nil {
			return nil, fmt.Errorf("searchScheduleA: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}

		batch := make([]*contribution.Transaction, 0, len(page.Results))
		for i := range page.Results {
			t := contribution.FromReceipt(&page.Results[i])
			if conduitCommittees[t.CommitteeID] {
				continue
			}
			batch = append(batch, t)
		}
		kept = append(kept, s.filterBatch(batch, seen, manual)...)

		li := page.Pagination.LastIndexes
		if li == nil || li.LastIndex.String() == "" {
			break
		}
		params.Set("last_index", li.LastIndex.String())
		params.Set("last_contribution_receipt_date", li.LastContributionReceiptDate)
	}
	return kept, nil
}

// searchEfiled runs one page-numbered search against the efile feed, so
// filings newer than the processed data still reach the aggregate.
func (s *Service) searchEfiled(ctx context.Context, description string, params url.Values, seen, manual contribution.IDSet) ([]*contribution.Transaction, error) {
	params.Set("min_date", s.efiledMinDate)
	params.Set("per_page", "100")
	params.Set("sort", "-contribution_receipt_date")

	var kept []*contribution.Transaction
	for pageNum := 1; ; pageNum++ {
		params.Set("page", strconv.Itoa(pageNum))
		var page fec.ScheduleAPage
		if err := s.fetcher.Fetch(ctx, description, fec.ScheduleAEfilePath, params, &page); err != nil {
			return nil, fmt.Errorf("searchEfiled: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}

		batch := make([]*contribution.Transaction, 0, len(page.Results))
		for i := range page.Results {
			t := contribution.FromReceipt(&page.Results[i])
			if conduitCommittees[t.CommitteeID] {
				continue
			}
			t.NormalizeEfiled()
			batch = append(batch, t)
		}
		kept = append(kept, s.filterBatch(batch, seen, manual)...)

		if pageNum >= page.Pagination.Pages {
			break
		}
	}
	return kept, nil
}

// filterBatch applies the omission rules to one fetched page and records
// the surviving IDs so later pages and the efiled feed cannot reintroduce
// them.
func (s *Service) filterBatch(batch []*contribution.Transaction, seen, manual contribution.IDSet) []*contribution.Transaction {
	omit := contribution.IDsToOmit(batch)
	omit.Union(manual)

	var kept []*contribution.Transaction
	for _, t := range batch {
		if contribution.ShouldOmit(t, seen, omit) {
			continue
		}
		seen.Add(t.TransactionID)
		if corrected, ok := s.data.AmountOverrides[t.TransactionID]; ok {
			t.ContributionReceiptAmount = corrected
		}
		kept = append(kept, t)
	}
	return kept
}

// Process rebuilds every stored individual aggregate from the raw
// snapshots.
func (s *Service) Process(ctx context.Context) error {
	log := logger.FromContext(ctx)
	raw := s.store.Collection(RawCollection)

	err := raw.Stream(ctx, func(doc store.Document) error {
		var snapshot RawDoc
		if err := doc.DataTo(&snapshot); err != nil {
			log.Error().Err(err).Str("individual", doc.ID()).Msg("Failed to decode raw snapshot")
			return nil
		}
		iLog := log.With().Str("individual", doc.ID()).Logger()
		iCtx := logger.WithContext(ctx, iLog)
		if err := s.processIndividual(iCtx, doc.ID(), snapshot.Transactions); err != nil {
			iLog.Error().Err(err).Msg("Failed to process individual contributions")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("individuals.Process: %w", err)
	}
	return nil
}

func (s *Service) processIndividual(ctx context.Context, id string, txns []*contribution.Transaction) error {
	log := logger.FromContext(ctx)
	ind := s.data.Individual(id)

	// Donor-side searches fix the donor, so groups are keyed by date only.
	var kept []*contribution.Transaction
	for _, group := range contribution.GroupByDate(txns) {
		kept = append(kept, contribution.ReconcileGroup(ctx, group.Transactions)...)
	}

	if ind != nil {
		for i := range ind.Claimed {
			claimed := ind.Claimed[i].Transaction(ind)
			if hasFetched(kept, claimed.CommitteeID) {
				log.Warn().Str("committee_id", claimed.CommitteeID).
					Float64("amount", claimed.ContributionReceiptAmount).
					Msg("Claimed contribution committee also appears in fetched data, check for duplicates")
			}
			kept = append(kept, claimed)
		}
	}

	doc := &Doc{
		Recipients:   map[string]*RecipientContribs{},
		PartySummary: map[string]float64{},
	}
	var totalCents int64
	recipientCents := map[string]int64{}
	repTxns := map[string]*contribution.Transaction{}

	for _, t := range kept {
		t.IsIndividual = true
		t.Individual = id

		r, ok := doc.Recipients[t.CommitteeID]
		if !ok {
			r = &RecipientContribs{
				CommitteeID:   t.CommitteeID,
				CommitteeName: t.CommitteeName,
			}
			doc.Recipients[t.CommitteeID] = r
			repTxns[t.CommitteeID] = t
		}
		r.Contributions = append(r.Contributions, contribution.NewItemized(t))

		cents := contribution.Cents(t.ContributionReceiptAmount)
		recipientCents[t.CommitteeID] += cents
		totalCents += cents
	}

	candidates := s.lookupPartyCandidates(ctx, repTxns)
	partyCents := map[string]int64{}
	for committeeID, r := range doc.Recipients {
		r.Total = float64(recipientCents[committeeID]) / 100
		r.Party = s.party(repTxns[committeeID], candidates)
		partyCents[r.Party] += recipientCents[committeeID]
	}
	for party, cents := range partyCents {
		doc.PartySummary[party] = float64(cents) / 100
	}
	doc.Total = float64(totalCents) / 100

	// Merge keeps operator-maintained fields on the document intact.
	if err := s.store.Collection(ProcessedCollection).Merge(ctx, id, doc); err != nil {
		return fmt.Errorf("processIndividual: storing aggregate: %w", err)
	}
	return nil
}

// lookupPartyCandidates fetches details for the candidates linked to
// recipients whose filings carry no usable party. A failed lookup is not
// fatal; those recipients fall back to "UNK".
func (s *Service) lookupPartyCandidates(ctx context.Context, repTxns map[string]*contribution.Transaction) map[string]*fec.CandidateRecord {
	log := logger.FromContext(ctx)

	seen := map[string]bool{}
	var ids []string
	for committeeID, t := range repTxns {
		if _, ok := s.data.CommitteeAffiliations[committeeID]; ok {
			continue
		}
		if t.Party != "" && !strings.HasPrefix(t.Party, "N") {
			continue
		}
		for _, id := range t.CandidateIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)

	candidates, err := fec.LookupCandidates(ctx, s.fetcher, ids)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to look up candidate details for party attribution")
		return nil
	}
	return candidates
}

// party resolves a recipient's party: the operator-maintained affiliation
// override, else the filing's reported party unless it is a no-party code
// (N-prefixed), else the party the committee's candidates agree on, else
// "UNK".
func (s *Service) party(t *contribution.Transaction, candidates map[string]*fec.CandidateRecord) string {
	if p, ok := s.data.CommitteeAffiliations[t.CommitteeID]; ok {
		return p
	}
	if t.Party != "" && !strings.HasPrefix(t.Party, "N") {
		return t.Party
	}
	if p := fec.CandidateConsensusParty(t.CandidateIDs, candidates); p != "" {
		return p
	}
	return "UNK"
}

// hasFetched reports whether any fetched (non-claimed) row already targets
// the committee.
func hasFetched(kept []*contribution.Transaction, committeeID string) bool {
	for _, t := range kept {
		if !t.Claimed && t.CommitteeID == committeeID {
			return true
		}
	}
	return false
}
