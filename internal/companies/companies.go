// Package companies fetches and processes contributions attributed to the
// tracked companies: name and employer searches against Schedule A, plus
// the merge of tracked individuals' giving into their company's aggregate.
package companies

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/molly/follow-the-crypto-backend/internal/contribution"
	"github.com/molly/follow-the-crypto-backend/internal/fec"
	"github.com/molly/follow-the-crypto-backend/internal/individuals"
	"github.com/molly/follow-the-crypto-backend/internal/logger"
	"github.com/molly/follow-the-crypto-backend/internal/refdata"
	"github.com/molly/follow-the-crypto-backend/internal/store"
)

const (
	RawCollection       = "rawCompanyContributions"
	ProcessedCollection = "companies"

	// MinAmount filters company-side searches: small matches are noise,
	// usually unrelated donors with a similar employer string.
	MinAmount = 1000
)

// Conduit committees are excluded; money through them reappears attributed
// to the ultimate recipient.
var conduitCommittees = map[string]bool{
	"C00694323": true, // WinRed
	"C00401224": true, // ActBlue
}

// RawDoc is the per-company raw snapshot.
type RawDoc struct {
	Transactions []*contribution.Transaction `json:"transactions" firestore:"transactions"`
}

// Doc is the stored per-company aggregate: the company's own contributions
// plus those of its tracked individuals, deduplicated by transaction ID.
type Doc struct {
	Total         float64                  `json:"total" firestore:"total"`
	Contributions []*contribution.Itemized `json:"contributions" firestore:"contributions"`
	PartySummary  map[string]float64       `json:"party_summary" firestore:"party_summary"`
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

// parseSearch splits a search term into its value and match mode: a term
// wrapped in ^...$ requires the field to equal the value exactly instead of
// merely containing it.
func parseSearch(term string) (string, bool) {
	if strings.HasPrefix(term, "^") && strings.HasSuffix(term, "$") && len(term) > 2 {
		return term[1 : len(term)-1], true
	}
	return term, false
}

// Fetch refetches raw contribution matches for every tracked company.
func (s *Service) Fetch(ctx context.Context) error {
	log := logger.FromContext(ctx)
	coll := s.store.Collection(RawCollection)

	for i := range s.data.Companies {
		company := &s.data.Companies[i]
		cLog := log.With().Str("company", company.ID).Logger()
		cCtx := logger.WithContext(ctx, cLog)

		txns, err := s.fetchCompany(cCtx, company)
		if err != nil {
			cLog.Error().Err(err).Msg("Failed to fetch company contributions, keeping previous snapshot")
			continue
		}
		if err := coll.Set(ctx, company.ID, &RawDoc{Transactions: txns}); err != nil {
			return fmt.Errorf("companies.Fetch: storing %s: %w", company.ID, err)
		}
		cLog.Info().Int("count", len(txns)).Msg("Stored raw contributions")
	}
	return nil
}

// fetchCompany runs every configured search against the processed feed and
// then the efiled feed, so filings newer than the processed data still
// reach the aggregate.
func (s *Service) fetchCompany(ctx context.Context, company *refdata.Company) ([]*contribution.Transaction, error) {
	seen := contribution.NewIDSet(nil)
	manual := contribution.NewIDSet(s.data.DuplicateIDs[company.ID])
	var kept []*contribution.Transaction

	for _, term := range company.Searches {
		value, exact := parseSearch(term)
		batch, err := s.search(ctx, "contributor_name", value, exact, false, seen, manual)
		if err != nil {
			return nil, err
		}
		kept = append(kept, batch...)

		batch, err = s.searchEfiled(ctx, "contributor_name", value, exact, false, seen, manual)
		if err != nil {
			return nil, err
		}
		kept = append(kept, batch...)
	}
	for _, term := range company.EmployerSearches {
		value, exact := parseSearch(term)
		batch, err := s.search(ctx, "contributor_employer", value, exact, true, seen, manual)
		if err != nil {
			return nil, err
		}
		kept = append(kept, batch...)

		batch, err = s.searchEfiled(ctx, "contributor_employer", value, exact, true, seen, manual)
		if err != nil {
			return nil, err
		}
		kept = append(kept, batch...)
	}
	return kept, nil
}

// search runs one keyset-paginated Schedule A search on the given field.
func (s *Service) search(ctx context.Context, field, value string, exact, employerSearch bool, seen, manual contribution.IDSet) ([]*contribution.Transaction, error) {
	params := url.Values{}
	params.Set(field, value)
	params.Set("two_year_transaction_period", s.cycle)
	params.Set("per_page", "100")
	params.Set("sort", "-contribution_receipt_date")

	var kept []*contribution.Transaction
	for {
		var page fec.ScheduleAPage
		if err := s.fetcher.Fetch(ctx, field+" search "+value, fec.ScheduleAPath, params, &page); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}

		batch := make([]*contribution.Transaction, 0, len(page.Results))
		for i := range page.Results {
			t := contribution.FromReceipt(&page.Results[i])
			if !s.keep(t, field, value, exact, employerSearch) {
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

// searchEfiled runs the same search against the efile feed, which paginates
// by page number and does not scope by cycle.
func (s *Service) searchEfiled(ctx context.Context, field, value string, exact, employerSearch bool, seen, manual contribution.IDSet) ([]*contribution.Transaction, error) {
	params := url.Values{}
	params.Set(field, value)
	params.Set("min_date", s.efiledMinDate)
	params.Set("per_page", "100")
	params.Set("sort", "-contribution_receipt_date")

	var kept []*contribution.Transaction
	for pageNum := 1; ; pageNum++ {
		params.Set("page", strconv.Itoa(pageNum))
		var page fec.ScheduleAPage
		if err := s.fetcher.Fetch(ctx, "efiled "+field+" search "+value, fec.ScheduleAEfilePath, params, &page); err != nil {
			return nil, fmt.Errorf("searchEfiled: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}

		batch := make([]*contribution.Transaction, 0, len(page.Results))
		for i := range page.Results {
			t := contribution.FromReceipt(&page.Results[i])
			if !s.keep(t, field, value, exact, employerSearch) {
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

// keep decides whether a search result counts as company spending. Employer
// searches keep only rows from high-level individuals; rank-and-file
// employees' personal giving is their own, not the company's.
func (s *Service) keep(t *contribution.Transaction, field, value string, exact, employerSearch bool) bool {
	if conduitCommittees[t.CommitteeID] {
		return false
	}
	if t.ContributionReceiptAmount < MinAmount {
		return false
	}
	matched := t.ContributorName
	if field == "contributor_employer" {
		matched = t.ContributorEmployer
	}
	if exact && !strings.EqualFold(strings.TrimSpace(matched), value) {
		return false
	}
	if employerSearch && !s.data.Allowlist.IsHighLevel(t) {
		return false
	}
	return true
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

// Process rebuilds every stored company aggregate: the company's own
// reconciled rows merged with its tracked individuals' contributions, with
// transaction-ID dedup so a contribution attributed both ways is counted
// once.
func (s *Service) Process(ctx context.Context) error {
	log := logger.FromContext(ctx)
	raw := s.store.Collection(RawCollection)

	err := raw.Stream(ctx, func(doc store.Document) error {
		var snapshot RawDoc
		if err := doc.DataTo(&snapshot); err != nil {
			log.Error().Err(err).Str("company", doc.ID()).Msg("Failed to decode raw snapshot")
			return nil
		}
		cLog := log.With().Str("company", doc.ID()).Logger()
		cCtx := logger.WithContext(ctx, cLog)
		if err := s.processCompany(cCtx, doc.ID(), snapshot.Transactions); err != nil {
			cLog.Error().Err(err).Msg("Failed to process company contributions")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("companies.Process: %w", err)
	}
	return nil
}

func (s *Service) processCompany(ctx context.Context, id string, txns []*contribution.Transaction) error {
	var kept []*contribution.Transaction
	for _, group := range contribution.GroupByDateAndDonor(txns) {
		kept = append(kept, contribution.ReconcileGroup(ctx, group.Transactions)...)
	}

	recorded := contribution.NewIDSet(nil)
	for _, t := range kept {
		recorded.Add(t.TransactionID)
	}

	// Merge in the giving of this company's tracked individuals. A
	// transaction the company search already found must not be counted
	// twice.
	for _, t := range s.individualContributions(ctx, id) {
		if t.TransactionID != "" && recorded[t.TransactionID] {
			continue
		}
		recorded.Add(t.TransactionID)
		kept = append(kept, t)
	}

	candidates := s.lookupPartyCandidates(ctx, kept)

	doc := &Doc{PartySummary: map[string]float64{}}
	var totalCents int64
	partyCents := map[string]int64{}
	for _, t := range kept {
		doc.Contributions = append(doc.Contributions, contribution.NewItemized(t))
		cents := contribution.Cents(t.ContributionReceiptAmount)
		totalCents += cents
		partyCents[s.party(t, candidates)] += cents
	}
	doc.Total = float64(totalCents) / 100
	for party, cents := range partyCents {
		doc.PartySummary[party] = float64(cents) / 100
	}

	if err := s.store.Collection(ProcessedCollection).Merge(ctx, id, doc); err != nil {
		return fmt.Errorf("processCompany: storing aggregate: %w", err)
	}
	return nil
}

// individualContributions collects the processed contributions of tracked
// individuals employed by this company, annotated with their individual.
func (s *Service) individualContributions(ctx context.Context, companyID string) []*contribution.Transaction {
	log := logger.FromContext(ctx)

	var company *refdata.Company
	for i := range s.data.Companies {
		if s.data.Companies[i].ID == companyID {
			company = &s.data.Companies[i]
		}
	}
	if company == nil {
		return nil
	}

	coll := s.store.Collection(individuals.RawCollection)
	var out []*contribution.Transaction
	for i := range s.data.Individuals {
		ind := &s.data.Individuals[i]
		if !employedBy(ind, company) {
			continue
		}
		var snapshot individuals.RawDoc
		ok, err := coll.Get(ctx, ind.ID, &snapshot)
		if err != nil {
			log.Error().Err(err).Str("individual", ind.ID).Msg("Failed to load individual snapshot")
			continue
		}
		if !ok {
			continue
		}
		var kept []*contribution.Transaction
		for _, group := range contribution.GroupByDate(snapshot.Transactions) {
			kept = append(kept, contribution.ReconcileGroup(ctx, group.Transactions)...)
		}
		for j := range ind.Claimed {
			kept = append(kept, ind.Claimed[j].Transaction(ind))
		}
		for _, t := range kept {
			t.IsIndividual = true
			t.Individual = ind.ID
			out = append(out, t)
		}
	}
	return out
}

// employedBy matches an individual to a company by their configured
// employer against the company's name and aliases.
func employedBy(ind *refdata.Individual, company *refdata.Company) bool {
	employer := strings.ToUpper(strings.TrimSpace(ind.Employer))
	if employer == "" {
		return false
	}
	if employer == strings.ToUpper(company.Name) {
		return true
	}
	for _, alias := range company.Aliases {
		if employer == strings.ToUpper(alias) {
			return true
		}
	}
	return false
}

// lookupPartyCandidates fetches details for the candidates linked to
// recipients whose filings carry no usable party. A failed lookup is not
// fatal; those recipients fall back to "UNK".
func (s *Service) lookupPartyCandidates(ctx context.Context, txns []*contribution.Transaction) map[string]*fec.CandidateRecord {
	log := logger.FromContext(ctx)

	seen := map[string]bool{}
	var ids []string
	for _, t := range txns {
		if _, ok := s.data.CommitteeAffiliations[t.CommitteeID]; ok {
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
