// Package committees fetches and processes Schedule A contributions for the
// tracked recipient committees: the raw fetch with omission filtering, and
// the processing run that reconciles and aggregates raw transactions into
// the stored per-committee donor map.
package committees

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/molly/follow-the-crypto-backend/internal/contribution"
	"github.com/molly/follow-the-crypto-backend/internal/fec"
	"github.com/molly/follow-the-crypto-backend/internal/logger"
	"github.com/molly/follow-the-crypto-backend/internal/refdata"
	"github.com/molly/follow-the-crypto-backend/internal/store"
)

// Collections written and read by this package.
const (
	RawCollection       = "rawContributions"
	ProcessedCollection = "contributions"
)

// RawDoc is the per-committee raw snapshot: the fetched transactions after
// omission filtering and cross-page duplicate suppression, before
// reconciliation.
type RawDoc struct {
	Transactions []*contribution.Transaction `json:"transactions" firestore:"transactions"`
}

type Service struct {
	store   store.Store
	fetcher fec.Fetcher
	data    *refdata.Data
	dir     *contribution.Directory

	cycle         string
	efiledMinDate string
}

func New(st store.Store, fetcher fec.Fetcher, data *refdata.Data, cycle, efiledMinDate string) *Service {
	return &Service{
		store:         st,
		fetcher:       fetcher,
		data:          data,
		dir:           data.Directory(),
		cycle:         cycle,
		efiledMinDate: efiledMinDate,
	}
}

// Fetch refetches raw contributions for every tracked committee. A failed
// fetch leaves that committee's previous snapshot in place and moves on.
func (s *Service) Fetch(ctx context.Context) error {
	log := logger.FromContext(ctx)
	coll := s.store.Collection(RawCollection)

	for _, committee := range s.data.Committees {
		cLog := log.With().Str("committee_id", committee.ID).Logger()
		cCtx := logger.WithContext(ctx, cLog)

		txns, err := s.fetchCommittee(cCtx, committee.ID)
		if err != nil {
			cLog.Error().Err(err).Msg("Failed to fetch committee contributions, keeping previous snapshot")
			continue
		}

		var prev RawDoc
		if _, err := coll.Get(ctx, committee.ID, &prev); err != nil {
			cLog.Error().Err(err).Msg("Failed to load previous snapshot")
		} else if newIDs := newTransactionIDs(prev.Transactions, txns); len(newIDs) > 0 {
			cLog.Info().Int("count", len(newIDs)).Strs("transaction_ids", newIDs).
				Msg("New transactions since last fetch")
		}

		if err := coll.Set(ctx, committee.ID, &RawDoc{Transactions: txns}); err != nil {
			return fmt.Errorf("committees.Fetch: storing %s: %w", committee.ID, err)
		}
		cLog.Info().Int("count", len(txns)).Msg("Stored raw contributions")
	}
	return nil
}

// fetchCommittee pulls the processed feed (keyset pagination) and the
// efiled feed (page numbers) for one committee, suppressing duplicates
// across pages and feeds.
func (s *Service) fetchCommittee(ctx context.Context, committeeID string) ([]*contribution.Transaction, error) {
	seen := contribution.NewIDSet(nil)
	manual := contribution.NewIDSet(s.data.DuplicateIDs[committeeID])
	var kept []*contribution.Transaction

	params := url.Values{}
	params.Set("committee_id", committeeID)
	params.Set("two_year_transaction_period", s.cycle)
	params.Set("per_page", "100")
	params.Set("sort", "-contribution_receipt_date")
	for {
		var page fec.ScheduleAPage
		err := s.fetcher.Fetch(ctx, "contributions to "+committeeID, fec.ScheduleAPath, params, &page)
		if err != nil {
			return nil, fmt.Errorf("fetchCommittee: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}

		batch := make([]*contribution.Transaction, 0, len(page.Results))
		for i := range page.Results {
			batch = append(batch, contribution.FromReceipt(&page.Results[i]))
		}
		kept = append(kept, s.filterBatch(batch, seen, manual)...)

		li := page.Pagination.LastIndexes
		if li == nil || li.LastIndex.String() == "" {
			break
		}
		params.Set("last_index", li.LastIndex.String())
		params.Set("last_contribution_receipt_date", li.LastContributionReceiptDate)
	}

	params = url.Values{}
	params.Set("committee_id", committeeID)
	params.Set("min_date", s.efiledMinDate)
	params.Set("per_page", "100")
	params.Set("sort", "-contribution_receipt_date")
	for pageNum := 1; ; pageNum++ {
		params.Set("page", strconv.Itoa(pageNum))
		var page fec.ScheduleAPage
		err := s.fetcher.Fetch(ctx, "efiled contributions to "+committeeID, fec.ScheduleAEfilePath, params, &page)
		if err != nil {
			return nil, fmt.Errorf("fetchCommittee: efile: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}

		batch := make([]*contribution.Transaction, 0, len(page.Results))
		for i := range page.Results {
			t := contribution.FromReceipt(&page.Results[i])
			t.Efiled = true
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
// the surviving IDs so later pages cannot reintroduce them.
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

// newTransactionIDs reports IDs present in next but not prev.
func newTransactionIDs(prev, next []*contribution.Transaction) []string {
	known := make(map[string]bool, len(prev))
	for _, t := range prev {
		known[t.TransactionID] = true
	}
	var out []string
	for _, t := range next {
		if !known[t.TransactionID] {
			out = append(out, t.TransactionID)
		}
	}
	return out
}

// Process rebuilds every stored donor map from the raw snapshots. Each
// committee is recomputed from scratch; a failure is logged and the run
// continues with the next committee.
func (s *Service) Process(ctx context.Context) error {
	log := logger.FromContext(ctx)
	raw := s.store.Collection(RawCollection)

	err := raw.Stream(ctx, func(doc store.Document) error {
		var snapshot RawDoc
		if err := doc.DataTo(&snapshot); err != nil {
			log.Error().Err(err).Str("committee_id", doc.ID()).Msg("Failed to decode raw snapshot")
			return nil
		}
		cLog := log.With().Str("committee_id", doc.ID()).Logger()
		cCtx := logger.WithContext(ctx, cLog)
		if err := s.processCommittee(cCtx, doc.ID(), snapshot.Transactions); err != nil {
			cLog.Error().Err(err).Msg("Failed to process committee contributions")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("committees.Process: %w", err)
	}
	return nil
}

func (s *Service) processCommittee(ctx context.Context, committeeID string, txns []*contribution.Transaction) error {
	coll := s.store.Collection(ProcessedCollection)

	var stored contribution.StoredDonorMap
	if _, err := coll.Get(ctx, committeeID, &stored); err != nil {
		return fmt.Errorf("processCommittee: loading stored map: %w", err)
	}
	reviewed := stored.Reviewed()

	builder := contribution.NewDonorMapBuilder(s.dir, s.data.Allowlist)

	var pending []*contribution.Transaction
	for _, t := range txns {
		if _, ok := reviewed[contribution.TransactionReviewID(t)]; ok {
			continue
		}
		pending = append(pending, t)
	}
	for _, group := range contribution.GroupByDateAndDonor(pending) {
		for _, t := range contribution.ReconcileGroup(ctx, group.Transactions) {
			builder.Add(ctx, t)
		}
	}

	for i := range s.data.Individuals {
		ind := &s.data.Individuals[i]
		for j := range ind.Claimed {
			claimed := &ind.Claimed[j]
			if claimed.CommitteeID != committeeID {
				continue
			}
			t := claimed.Transaction(ind)
			if _, ok := reviewed[contribution.TransactionReviewID(t)]; ok {
				continue
			}
			builder.Add(ctx, t)
		}
	}

	builder.MergeReviewed(ctx, reviewed)

	if err := coll.Set(ctx, committeeID, builder.Finalize()); err != nil {
		return fmt.Errorf("processCommittee: storing donor map: %w", err)
	}
	return nil
}
