package contribution

import (
	"context"
	"regexp"
	"strings"

	"github.com/molly/follow-the-crypto-backend/internal/logger"
)

var (
	// A parenthesized committee ID embedded in a memo, e.g.
	// "EARMARKED FOR SMITH FOR SENATE (C00123456)".
	committeeIDPattern = regexp.MustCompile(`\((C\d+)\)`)

	// A joint-fundraising transfer notice, e.g. "TRANSFER FROM SMITH
	// VICTORY FUND JFC". The source name runs to end of string or to a
	// trailing " JFC" marker.
	transferFromPattern = regexp.MustCompile(`FROM (.*?)(?:$| JFC)`)
)

// ReconcileGroup takes a group of raw rows sharing (recipient, date, donor)
// that may represent 1..N real economic events and returns the rows that
// are distinct reportable contributions, attributing earmarked transfers to
// their ultimate committee. Pure: no stored state, same input gives the
// same output.
func ReconcileGroup(ctx context.Context, group []*Transaction) []*Transaction {
	log := logger.FromContext(ctx)

	if len(group) == 1 {
		return []*Transaction{attributeEarmarked(group[0])}
	}
	group = dedupeByIDs(ctx, group)
	if len(group) == 1 {
		return []*Transaction{attributeEarmarked(group[0])}
	}

	// Bucket by receipt type. 24T is a joint-committee transfer notice,
	// 15 an earmarked receipt, 15E an earmarked memo, 15X any other code
	// starting "15"; everything else (including untyped) is rest.
	var b24t, b15, b15e, b15x, rest []*Transaction
	for _, c := range group {
		switch {
		case c.ReceiptType == "24T":
			b24t = append(b24t, c)
		case c.ReceiptType == "15":
			b15 = append(b15, c)
		case c.ReceiptType == "15E":
			b15e = append(b15e, c)
		case strings.HasPrefix(c.ReceiptType, "15"):
			b15x = append(b15x, c)
		default:
			rest = append(rest, c)
		}
	}

	sum24t := sumCents(b24t)
	sum15 := sumCents(b15)
	sum15e := sumCents(b15e)
	sum15x := sumCents(b15x)
	sumRest := sumCents(rest)

	if sum24t == 0 && sum15 == 0 && sum15e == 0 && sum15x == 0 && sumRest == 0 {
		totals := map[string]int64{}
		for _, c := range group {
			totals[c.CommitteeID] += Cents(c.ContributionReceiptAmount)
		}
		allZero := true
		for _, t := range totals {
			if t != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			// Pure redesignation, no real economic content. Logged because
			// this pattern is unusual enough to be worth auditing.
			log.Info().Interface("group", group).Msg("Dropping zero-sum redesignation group")
			return nil
		}
		log.Error().Interface("group", group).Msg("Encountered an unexpected contributions group")
	}

	if len(b24t) == 0 && len(b15) == 0 && len(b15e) == 0 {
		// No earmark chain to resolve. These are just multiple genuine
		// contributions on the same day.
		return append(b15x, rest...)
	}

	if len(b24t) > 0 {
		if sum24t != sum15 && sum24t != sum15e && sum24t != sum15x {
			log.Warn().Interface("group", group).Msg("Ambiguous 24T group, falling back to memo dedupe")
			return dedupeByMemo(ctx, group)
		}
		// The 24T row duplicates money already counted in the matched
		// bucket. Drop it and resolve the 15 family below.
	}

	if len(b15) > 0 || len(b15e) > 0 || len(b15x) > 0 {
		switch {
		case sum15e == 0 && sum15 > 0 && sum15 == sum15x:
			// The earmark was reported at two stages; keep the granular one.
			return attributeAll(append(b15x, rest...))
		case sum15 == 0 && sum15e > 0 && sum15e == sum15x:
			return attributeAll(append(b15x, rest...))
		case len(b15x) == 0:
			if len(b15e) > 0 && len(b15) > 0 {
				log.Warn().Interface("group", group).Msg("Ambiguous 15/15E group, falling back to memo dedupe")
				return dedupeByMemo(ctx, group)
			}
			if len(b15e) > 0 {
				return dedupeByMemo(ctx, append(b15e, rest...))
			}
			return dedupeByMemo(ctx, append(b15, rest...))
		default:
			log.Warn().Interface("group", group).Msg("Ambiguous 15-family group, falling back to memo dedupe")
			return dedupeByMemo(ctx, group)
		}
	}

	log.Error().Interface("group", group).Msg("Encountered an unexpected contributions group")
	return nil
}

// dedupeByIDs is the first-pass dedupe within a group: the same transaction
// ID can appear more than once when an efiled and a processed copy of the
// same filing coexist, or across amendment revisions.
func dedupeByIDs(ctx context.Context, group []*Transaction) []*Transaction {
	log := logger.FromContext(ctx)

	byID := map[string][]*Transaction{}
	var order []string
	for _, c := range group {
		if _, ok := byID[c.TransactionID]; !ok {
			order = append(order, c.TransactionID)
		}
		byID[c.TransactionID] = append(byID[c.TransactionID], c)
	}

	var deduped []*Transaction
	for _, id := range order {
		contribs := byID[id]
		if len(contribs) == 1 {
			deduped = append(deduped, contribs[0])
			continue
		}
		if d := removeEfiled(contribs, false); len(d) == 1 {
			deduped = append(deduped, d[0])
			continue
		}

		// Prefer the most-amended copy: later revisions supersede earlier
		// ones.
		longest := 0
		for _, c := range contribs {
			if len(c.AmendmentChain) > longest {
				longest = len(c.AmendmentChain)
			}
		}
		var mostAmended []*Transaction
		for _, c := range contribs {
			if len(c.AmendmentChain) == longest {
				mostAmended = append(mostAmended, c)
			}
		}
		contribs = mostAmended
		if len(contribs) == 1 {
			deduped = append(deduped, contribs[0])
			continue
		}

		// Prefer copies that were not flagged as earmarked.
		var reattributed []*Transaction
		for _, c := range contribs {
			if !strings.Contains(strings.ToUpper(c.Description()), "EARMARK") {
				reattributed = append(reattributed, c)
			}
		}
		switch {
		case len(reattributed) == 0:
			// All earmarked; nothing to narrow on.
		case len(reattributed) < len(contribs):
			narrowed := removeEfiled(reattributed, false)
			if len(narrowed) == 1 {
				deduped = append(deduped, narrowed[0])
				continue
			}
			contribs = narrowed
		default:
			contribs = reattributed
		}

		// Last ditch: strip all efiled copies and take whatever is first.
		// This pick is arbitrary, not verified; surface it for manual
		// reconciliation.
		noEfiled := removeEfiled(contribs, true)
		if len(noEfiled) > 0 {
			if len(noEfiled) > 1 {
				log.Warn().Str("transaction_id", id).Interface("candidates", noEfiled).
					Msg("Could not fully dedupe transaction ID, keeping first processed copy")
			}
			deduped = append(deduped, noEfiled[0])
			continue
		}
		log.Warn().Str("transaction_id", id).Interface("candidates", contribs).
			Msg("Could not dedupe transaction ID, keeping first copy")
		deduped = append(deduped, contribs[0])
	}
	return deduped
}

// removeEfiled drops efiled copies. With removeAll false it only resolves
// the exact pair case: two rows with identical amounts where one is efiled
// and one is processed, preferring the processed copy.
func removeEfiled(contribs []*Transaction, removeAll bool) []*Transaction {
	if removeAll {
		var kept []*Transaction
		for _, c := range contribs {
			if !c.Efiled {
				kept = append(kept, c)
			}
		}
		return kept
	}
	if len(contribs) == 2 &&
		Cents(contribs[0].ContributionReceiptAmount) == Cents(contribs[1].ContributionReceiptAmount) {
		if contribs[0].Efiled && !contribs[1].Efiled {
			return contribs[1:2]
		}
		if contribs[1].Efiled && !contribs[0].Efiled {
			return contribs[0:1]
		}
	}
	return contribs
}

// dedupeByMemo is the fallback disambiguation over free-text descriptions.
// It collapses earmark parent rows against their itemized children and
// "FROM <source>" transfer notices against the source's own rows, keeping
// everything it cannot match. Heuristic string matching against regulator
// memo fields: an unmatched pattern means keep as-is, never an invented
// attribution.
func dedupeByMemo(ctx context.Context, group []*Transaction) []*Transaction {
	kept := map[string]*Transaction{}
	var order []string
	for _, c := range group {
		if _, ok := kept[c.TransactionID]; !ok {
			order = append(order, c.TransactionID)
		}
		kept[c.TransactionID] = c
	}

	orderedKept := func() []*Transaction {
		out := make([]*Transaction, 0, len(kept))
		for _, id := range order {
			if c, ok := kept[id]; ok {
				out = append(out, c)
			}
		}
		return out
	}

	for _, c := range group {
		if _, ok := kept[c.TransactionID]; !ok {
			// Removed in an earlier pass.
			continue
		}
		description := c.Description()
		if description == "" {
			continue
		}
		if m := committeeIDPattern.FindStringSubmatch(description); m != nil {
			committeeID := m[1]
			var toID []*Transaction
			for _, x := range orderedKept() {
				if x.CommitteeID == committeeID {
					toID = append(toID, x)
				}
			}
			if len(toID) > 0 && sumCents(toID) == Cents(c.ContributionReceiptAmount) {
				// This row is the double-counted parent of an earmark chain
				// that is already itemized.
				delete(kept, c.TransactionID)
			}
		} else if m := transferFromPattern.FindStringSubmatch(description); m != nil {
			source := m[1]
			var fromSource, to []*Transaction
			for _, x := range orderedKept() {
				if x.CommitteeName == source {
					fromSource = append(fromSource, x)
				}
				if d := x.Description(); d != "" && strings.Contains(d, source) {
					to = append(to, x)
				}
			}
			if len(fromSource) > 0 && sumCents(fromSource) == sumCents(to) {
				// The transfer notices fully account for the source's own
				// rows; collapse the source rows.
				for _, f := range fromSource {
					delete(kept, f.TransactionID)
				}
			}
		}
	}

	return attributeAll(orderedKept())
}

// attributeEarmarked rewrites a row to the earmark's ultimate committee
// when its description names one, clearing the committee-identity fields
// that described the original reporting committee. Returns a copy; the
// input row is never mutated.
func attributeEarmarked(c *Transaction) *Transaction {
	description := c.Description()
	if description == "" {
		return c
	}
	m := committeeIDPattern.FindStringSubmatch(description)
	if m == nil {
		return c
	}
	attributed := *c
	attributed.CommitteeID = m[1]
	attributed.CommitteeName = ""
	attributed.CandidateIDs = nil
	attributed.CommitteeType = ""
	attributed.CommitteeTypeFull = ""
	attributed.Designation = ""
	attributed.DesignationFull = ""
	attributed.Party = ""
	attributed.State = ""
	return &attributed
}

func attributeAll(contribs []*Transaction) []*Transaction {
	out := make([]*Transaction, len(contribs))
	for i, c := range contribs {
		out[i] = attributeEarmarked(c)
	}
	return out
}
