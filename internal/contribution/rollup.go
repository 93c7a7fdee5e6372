package contribution

import (
	"context"
	"sort"

	"github.com/molly/follow-the-crypto-backend/internal/logger"
)

// DonorMapBuilder aggregates reconciled transactions into the stored donor
// map: one group per employer (or donor name), with small contributions
// rolled up per donor and large ones kept itemized.
type DonorMapBuilder struct {
	dir   *Directory
	allow *Allowlist

	groups     map[string]*groupAccum
	groupOrder []string

	byDate []*Itemized
	count  int

	contributedCents int64
	transferredCents int64
}

type groupAccum struct {
	name string
	link string

	itemized []*Itemized

	rollups     map[string]*rollupAccum
	rollupOrder []string

	stubs []*OmittedStub

	totalCents int64
	claimed    bool
}

type rollupAccum struct {
	first  *Transaction
	link   string
	review *ManualReview

	oldest string
	newest string
	count  int
	cents  int64
	ytd    float64
}

func NewDonorMapBuilder(dir *Directory, allow *Allowlist) *DonorMapBuilder {
	return &DonorMapBuilder{
		dir:    dir,
		allow:  allow,
		groups: make(map[string]*groupAccum),
	}
}

func (b *DonorMapBuilder) group(name string) *groupAccum {
	g, ok := b.groups[name]
	if !ok {
		g = &groupAccum{
			name:    name,
			link:    b.dir.Link(name),
			rollups: make(map[string]*rollupAccum),
		}
		b.groups[name] = g
		b.groupOrder = append(b.groupOrder, name)
	}
	return g
}

// Add folds one reconciled transaction into the map.
func (b *DonorMapBuilder) Add(ctx context.Context, t *Transaction) {
	log := logger.FromContext(ctx)

	t.Redacted = b.allow.IsRedacted(t)
	name := b.dir.GroupName(t)
	g := b.group(name)

	if t.Claimed && !g.claimed && (len(g.itemized) > 0 || len(g.rollups) > 0) {
		log.Warn().
			Str("group", name).
			Str("contributor", t.ContributorName).
			Msg("claimed contribution joins a group with fetched contributions")
	}
	if t.Claimed {
		g.claimed = true
	}

	cents := Cents(t.ContributionReceiptAmount)
	g.totalCents += cents
	if t.IsTransfer() {
		b.transferredCents += cents
	} else {
		b.contributedCents += cents
	}
	b.count++

	item := NewItemized(t)
	item.Link = g.link
	b.byDate = append(b.byDate, item)

	if t.ContributionReceiptAmount >= RollupThreshold {
		g.itemized = append(g.itemized, item)
		return
	}

	key := t.ContributorName
	r, ok := g.rollups[key]
	if !ok {
		r = &rollupAccum{first: t, link: g.link, oldest: t.ContributionReceiptDate, newest: t.ContributionReceiptDate}
		g.rollups[key] = r
		g.rollupOrder = append(g.rollupOrder, key)
	}
	r.count++
	r.cents += cents
	if t.ContributionReceiptDate != "" {
		if r.oldest == "" || t.ContributionReceiptDate < r.oldest {
			r.oldest = t.ContributionReceiptDate
		}
		if t.ContributionReceiptDate > r.newest {
			r.newest = t.ContributionReceiptDate
		}
	}
	if t.ContributorAggregateYTD > r.ytd {
		r.ytd = t.ContributorAggregateYTD
	}
}

// MergeReviewed restores manually reviewed entries from a previous run.
// Verified entries rejoin their group and count toward totals; omitted
// entries are kept only as stubs so the decision is not lost.
func (b *DonorMapBuilder) MergeReviewed(ctx context.Context, reviewed map[string]StoredContribution) {
	log := logger.FromContext(ctx)

	ids := make([]string, 0, len(reviewed))
	for id := range reviewed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := reviewed[id]
		if s.ManualReview == nil {
			continue
		}
		switch s.ManualReview.Status {
		case ReviewOmit:
			g := b.group(OmittedGroupName)
			g.stubs = append(g.stubs, &OmittedStub{
				ManualReview:              s.ManualReview,
				Description:               s.Description,
				TransactionID:             s.TransactionID,
				ContributorName:           s.ContributorName,
				ContributionReceiptAmount: s.ContributionReceiptAmount,
				TotalReceiptAmount:        s.TotalReceiptAmount,
				ContributionReceiptDate:   s.ContributionReceiptDate,
				Oldest:                    s.Oldest,
			})
		case ReviewVerified:
			b.mergeVerified(&s)
		default:
			log.Warn().Str("id", id).Str("status", s.ManualReview.Status).
				Msg("reviewed contribution has an unknown status")
		}
	}
}

func (b *DonorMapBuilder) mergeVerified(s *StoredContribution) {
	name := b.dir.GroupName(&Transaction{
		ContributorEmployer: s.ContributorEmployer,
		ContributorName:     s.ContributorName,
	})
	g := b.group(name)

	var cents int64
	switch v := s.Variant().(type) {
	case *Itemized:
		v.Link = g.link
		cents = Cents(v.ContributionReceiptAmount)
		g.itemized = append(g.itemized, v)
		b.byDate = append(b.byDate, v)
		if (&Transaction{LineNumber: v.LineNumber}).IsTransfer() {
			b.transferredCents += cents
		} else {
			b.contributedCents += cents
		}
		b.count++
	case *Rollup:
		v.Link = g.link
		cents = Cents(v.TotalReceiptAmount)
		g.rollupOrder = append(g.rollupOrder, "stored:"+v.ReviewID())
		g.rollups["stored:"+v.ReviewID()] = &rollupAccum{
			first:  storedRollupIdentity(s),
			link:   g.link,
			review: s.ManualReview,
			oldest: v.Oldest,
			newest: v.Newest,
			count:  v.Total,
			cents:  cents,
			ytd:    v.ContributorAggregateYTD,
		}
		b.count += v.Total
		b.contributedCents += cents
	}
	g.totalCents += cents
}

func storedRollupIdentity(s *StoredContribution) *Transaction {
	return &Transaction{
		ContributorFirstName:  s.ContributorFirstName,
		ContributorMiddleName: s.ContributorMiddleName,
		ContributorLastName:   s.ContributorLastName,
		ContributorSuffix:     s.ContributorSuffix,
		ContributorName:       s.ContributorName,
		ContributorOccupation: s.ContributorOccupation,
		ContributorEmployer:   s.ContributorEmployer,
		EntityType:            s.EntityType,
		Redacted:              s.Redacted,
	}
}

// Finalize collapses the accumulated state into the stored map. Rollups
// covering a single contribution are demoted back to itemized records,
// redaction is applied, and every list gets its stored order.
func (b *DonorMapBuilder) Finalize() *DonorMap {
	m := &DonorMap{
		ContributionsCount: b.count,
		Groups:             make([]*DonorGroup, 0, len(b.groupOrder)),
		ByDate:             make([]*Itemized, 0, len(b.byDate)),
		TotalContributed:   float64(b.contributedCents) / 100,
		TotalTransferred:   float64(b.transferredCents) / 100,
	}

	for _, name := range b.groupOrder {
		g := b.groups[name]
		dg := &DonorGroup{
			Company: g.name,
			Link:    g.link,
			Total:   float64(g.totalCents) / 100,
		}
		for _, item := range g.itemized {
			c := *item
			c.redact()
			dg.Contributions = append(dg.Contributions, &c)
		}
		for _, key := range g.rollupOrder {
			dg.Contributions = append(dg.Contributions, b.groups[name].rollups[key].finalize())
		}
		for _, stub := range g.stubs {
			dg.Contributions = append(dg.Contributions, stub)
		}
		sort.SliceStable(dg.Contributions, func(i, j int) bool {
			a, b := dg.Contributions[i], dg.Contributions[j]
			if a.SortAmount() != b.SortAmount() {
				return a.SortAmount() > b.SortAmount()
			}
			return a.SortDate() > b.SortDate()
		})
		m.Groups = append(m.Groups, dg)
	}
	sort.SliceStable(m.Groups, func(i, j int) bool {
		return m.Groups[i].Total > m.Groups[j].Total
	})

	for _, item := range b.byDate {
		c := *item
		c.redact()
		m.ByDate = append(m.ByDate, &c)
	}
	sort.SliceStable(m.ByDate, func(i, j int) bool {
		return m.ByDate[i].ContributionReceiptDate > m.ByDate[j].ContributionReceiptDate
	})

	return m
}

// finalize turns an accumulated rollup into its stored record. A rollup of
// one contribution collapses back to a full itemized record, keeping the
// source transaction's identity so manual-review matching still keys on the
// transaction ID.
func (r *rollupAccum) finalize() Contribution {
	t := r.first
	if r.count == 1 {
		c := NewItemized(t)
		c.ContributorAggregateYTD = r.ytd
		c.ContributionReceiptAmount = float64(r.cents) / 100
		c.ContributionReceiptDate = r.oldest
		c.Link = r.link
		c.ManualReview = r.review
		c.redact()
		return c
	}
	c := &Rollup{
		ContributorFirstName:    t.ContributorFirstName,
		ContributorMiddleName:   t.ContributorMiddleName,
		ContributorLastName:     t.ContributorLastName,
		ContributorSuffix:       t.ContributorSuffix,
		ContributorName:         t.ContributorName,
		ContributorOccupation:   t.ContributorOccupation,
		ContributorEmployer:     t.ContributorEmployer,
		EntityType:              t.EntityType,
		ContributorAggregateYTD: r.ytd,
		Oldest:                  r.oldest,
		Newest:                  r.newest,
		Total:                   r.count,
		TotalReceiptAmount:      float64(r.cents) / 100,
		Redacted:                t.Redacted,
		Link:                    r.link,
		ManualReview:            r.review,
	}
	c.redact()
	return c
}
