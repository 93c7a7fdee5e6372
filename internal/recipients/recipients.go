// Package recipients produces the final per-beneficiary aggregates: all
// company and individual money grouped by the candidate or committee it
// ultimately benefits, with party attribution and ordering.
package recipients

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/molly/follow-the-crypto-backend/internal/companies"
	"github.com/molly/follow-the-crypto-backend/internal/contribution"
	"github.com/molly/follow-the-crypto-backend/internal/fec"
	"github.com/molly/follow-the-crypto-backend/internal/individuals"
	"github.com/molly/follow-the-crypto-backend/internal/logger"
	"github.com/molly/follow-the-crypto-backend/internal/refdata"
	"github.com/molly/follow-the-crypto-backend/internal/store"
)

const (
	RecipientsCollection = "recipients"
	SummaryCollection    = "aggregated"
	OrderDocID           = "recipientsOrder"
)

// Recipient is the stored per-beneficiary aggregate.
type Recipient struct {
	ID    string `json:"id" firestore:"id"`
	Type  string `json:"type" firestore:"type"` // "candidate" or "committee"
	Name  string `json:"name,omitempty" firestore:"name,omitempty"`
	Party string `json:"party,omitempty" firestore:"party,omitempty"`
	State string `json:"state,omitempty" firestore:"state,omitempty"`

	// Office and District are set for candidate recipients only.
	Office   string `json:"office,omitempty" firestore:"office,omitempty"`
	District string `json:"district,omitempty" firestore:"district,omitempty"`

	Total         float64                  `json:"total" firestore:"total"`
	Contributions []*contribution.Itemized `json:"contributions" firestore:"contributions"`

	// CommitteeTotals breaks the total down by the committee the money
	// passed through; SourceTotals by the tracked company or individual it
	// came from.
	CommitteeTotals map[string]float64 `json:"committee_totals" firestore:"committee_totals"`
	SourceTotals    map[string]float64 `json:"source_totals" firestore:"source_totals"`
	PartySummary    map[string]float64 `json:"party_summary" firestore:"party_summary"`
}

// Order is the stored recipient ordering, totals descending.
type Order struct {
	Order []string `json:"order" firestore:"order"`
}

type Service struct {
	store   store.Store
	fetcher fec.Fetcher
	data    *refdata.Data
	cycle   string
}

func New(st store.Store, fetcher fec.Fetcher, data *refdata.Data, cycle string) *Service {
	return &Service{store: st, fetcher: fetcher, data: data, cycle: cycle}
}

// sourced is one gathered contribution with the tracked entity it came
// from.
type sourced struct {
	source string
	c      *contribution.Itemized
}

// Summarize gathers all processed company and individual contributions,
// resolves each one's beneficiaries, and writes the recipient aggregates
// and their ordering.
func (s *Service) Summarize(ctx context.Context) error {
	log := logger.FromContext(ctx)

	gathered, err := s.gather(ctx)
	if err != nil {
		return fmt.Errorf("recipients.Summarize: %w", err)
	}

	committeeIDs := map[string]bool{}
	for _, g := range gathered {
		if g.c.CommitteeID != "" {
			committeeIDs[g.c.CommitteeID] = true
		}
	}
	committees, err := fec.LookupCommittees(ctx, s.fetcher, keys(committeeIDs))
	if err != nil {
		return fmt.Errorf("recipients.Summarize: %w", err)
	}

	// Candidate details are needed both for the beneficiary records and for
	// the party-consensus fallback, so the lookup set covers the resolved
	// beneficiaries plus every committee's linked candidates.
	candidateIDs := map[string]bool{}
	for _, g := range gathered {
		committee := committees[g.c.CommitteeID]
		for _, beneficiary := range s.beneficiaries(g.c.CommitteeID, g.c.CandidateIDs, committee) {
			if beneficiary != g.c.CommitteeID {
				candidateIDs[beneficiary] = true
			}
		}
		if committee != nil {
			for _, id := range committee.CandidateIDs {
				candidateIDs[id] = true
			}
			for _, id := range committee.SponsorCandidateIDs {
				candidateIDs[id] = true
			}
		}
	}
	candidates, err := fec.LookupCandidates(ctx, s.fetcher, keys(candidateIDs))
	if err != nil {
		return fmt.Errorf("recipients.Summarize: %w", err)
	}

	type accum struct {
		recipient   *Recipient
		cents       int64
		byCommittee map[string]int64
		bySource    map[string]int64
		byParty     map[string]int64
	}
	accums := map[string]*accum{}

	for _, g := range gathered {
		committee := committees[g.c.CommitteeID]
		for _, beneficiary := range s.beneficiaries(g.c.CommitteeID, g.c.CandidateIDs, committee) {
			a, ok := accums[beneficiary]
			if !ok {
				typ := "committee"
				if beneficiary != g.c.CommitteeID {
					typ = "candidate"
				}
				a = &accum{
					recipient:   &Recipient{ID: beneficiary, Type: typ},
					byCommittee: map[string]int64{},
					bySource:    map[string]int64{},
					byParty:     map[string]int64{},
				}
				accums[beneficiary] = a
			}
			cents := contribution.Cents(g.c.ContributionReceiptAmount)
			a.cents += cents
			a.byCommittee[g.c.CommitteeID] += cents
			a.bySource[g.source] += cents
			a.byParty[s.committeeParty(g.c.CommitteeID, committee, candidates)] += cents
			a.recipient.Contributions = append(a.recipient.Contributions, g.c)
		}
	}

	ids := make([]string, 0, len(accums))
	for id := range accums {
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		if accums[ids[i]].cents != accums[ids[j]].cents {
			return accums[ids[i]].cents > accums[ids[j]].cents
		}
		return ids[i] < ids[j]
	})

	coll := s.store.Collection(RecipientsCollection)
	for _, id := range ids {
		a := accums[id]
		r := a.recipient
		r.Total = float64(a.cents) / 100
		r.CommitteeTotals = centsMap(a.byCommittee)
		r.SourceTotals = centsMap(a.bySource)
		r.PartySummary = centsMap(a.byParty)
		sort.SliceStable(r.Contributions, func(i, j int) bool {
			return r.Contributions[i].ContributionReceiptAmount > r.Contributions[j].ContributionReceiptAmount
		})

		switch r.Type {
		case "candidate":
			if c, ok := candidates[id]; ok {
				r.Name = c.Name
				r.Party = c.Party
				r.State = c.State
				r.Office = c.Office
				r.District = c.District
			} else {
				log.Warn().Str("candidate_id", id).Msg("No candidate details found")
			}
		case "committee":
			if c, ok := committees[id]; ok {
				r.Name = c.Name
				r.Party = s.committeeParty(id, c, candidates)
				r.State = c.State
			}
		}
		if r.Party == "" {
			r.Party = "UNK"
		}

		if err := coll.Set(ctx, id, r); err != nil {
			return fmt.Errorf("recipients.Summarize: storing %s: %w", id, err)
		}
	}

	if err := s.store.Collection(SummaryCollection).Set(ctx, OrderDocID, &Order{Order: ids}); err != nil {
		return fmt.Errorf("recipients.Summarize: storing order: %w", err)
	}
	log.Info().Int("count", len(ids)).Msg("Summarized recipients")
	return nil
}

// gather collects processed contributions from the company and individual
// aggregates. A transaction attributed to both a company and one of its
// individuals is kept once, under the company.
func (s *Service) gather(ctx context.Context) ([]sourced, error) {
	var out []sourced
	seen := map[string]bool{}

	add := func(source string, c *contribution.Itemized) {
		key := c.TransactionID
		if key == "" {
			key = fmt.Sprintf("%s|%v|%s|%s", c.ContributorName, c.ContributionReceiptAmount, c.ContributionReceiptDate, c.CommitteeID)
		}
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, sourced{source: source, c: c})
	}

	companyColl := s.store.Collection(companies.ProcessedCollection)
	err := companyColl.Stream(ctx, func(doc store.Document) error {
		var d companies.Doc
		if err := doc.DataTo(&d); err != nil {
			return fmt.Errorf("decoding company %s: %w", doc.ID(), err)
		}
		for _, c := range d.Contributions {
			add(doc.ID(), c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}

	individualColl := s.store.Collection(individuals.ProcessedCollection)
	err = individualColl.Stream(ctx, func(doc store.Document) error {
		var d individuals.Doc
		if err := doc.DataTo(&d); err != nil {
			return fmt.Errorf("decoding individual %s: %w", doc.ID(), err)
		}
		recipientIDs := make([]string, 0, len(d.Recipients))
		for id := range d.Recipients {
			recipientIDs = append(recipientIDs, id)
		}
		sort.Strings(recipientIDs)
		for _, id := range recipientIDs {
			for _, c := range d.Recipients[id].Contributions {
				add(doc.ID(), c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}
	return out, nil
}

// beneficiaries resolves who a contribution ultimately benefits: the
// committee's own candidates if it has any, else the candidate IDs the
// contribution carried from its filing, else the committee itself.
// Candidate IDs pass through the alias map and are deduplicated so a
// committee carrying two IDs for the same candidate does not double-count.
func (s *Service) beneficiaries(committeeID string, groupCandidateIDs []string, committee *fec.CommitteeRecord) []string {
	if s.data.NonCandidateCommittees[committeeID] {
		return []string{committeeID}
	}
	var candidateIDs []string
	if committee != nil {
		candidateIDs = committee.CandidateIDs
	}
	if len(candidateIDs) == 0 {
		candidateIDs = groupCandidateIDs
	}
	if len(candidateIDs) == 0 {
		return []string{committeeID}
	}

	var out []string
	seen := map[string]bool{}
	for _, id := range candidateIDs {
		if canonical, ok := s.data.CandidateAliases[id]; ok {
			id = canonical
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// committeeParty attributes a party to a committee: the override if one is
// configured, else the committee's own reported party unless it is a
// no-party code (N-prefixed), else the party its linked candidates agree
// on, else "UNK".
func (s *Service) committeeParty(committeeID string, committee *fec.CommitteeRecord, candidates map[string]*fec.CandidateRecord) string {
	if p, ok := s.data.CommitteeAffiliations[committeeID]; ok {
		return p
	}
	if committee == nil {
		return "UNK"
	}
	if committee.Party != "" && !strings.HasPrefix(committee.Party, "N") {
		return committee.Party
	}
	linked := append(append([]string(nil), committee.CandidateIDs...), committee.SponsorCandidateIDs...)
	if p := fec.CandidateConsensusParty(linked, candidates); p != "" {
		return p
	}
	return "UNK"
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func centsMap(m map[string]int64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = float64(v) / 100
	}
	return out
}
