package contribution

import (
	"regexp"
	"strings"
)

// Form lines that report corrections (refunds and reattributions) rather
// than new money.
var correctionLines = map[string]bool{
	"15": true,
	"16": true,
	"17": true,
}

// Matches transaction IDs that are sub-line-items of a parent ID, e.g.
// "SA17.4457.0" under "SA17.4457".
var subItemIDPattern = regexp.MustCompile(`^(.*)\.\d$`)

// IDSet is a set of transaction IDs.
type IDSet map[string]bool

// NewIDSet builds an IDSet from a list of IDs.
func NewIDSet(ids []string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// Add inserts an ID into the set.
func (s IDSet) Add(id string) { s[id] = true }

// Union folds other into s.
func (s IDSet) Union(other IDSet) {
	for id := range other {
		s[id] = true
	}
}

// IDsToOmit scans a batch for parent transactions whose sub-line-items are
// also present and marks the parents for omission. This happens when a
// committee reports a rolled-up transaction and its granular children in
// the same feed (in-kind plus dollar-equivalent dual reporting, or a group
// transaction re-reported per person); only the children should be kept.
//
// This is a heuristic over ID structure: a standalone transaction whose ID
// happens to look like a sub-item of another real ID would be wrongly
// dropped. Such cases are handled via the manual omit overrides rather than
// amount reconciliation here.
func IDsToOmit(batch []*Transaction) IDSet {
	ids := make(IDSet, len(batch))
	for _, c := range batch {
		ids.Add(c.TransactionID)
	}
	toOmit := IDSet{}
	for id := range ids {
		m := subItemIDPattern.FindStringSubmatch(id)
		if m != nil && ids[m[1]] {
			toOmit.Add(m[1])
		}
	}
	return toOmit
}

// ShouldOmit decides whether a single raw transaction should be dropped
// before storage: correction lines, manually excluded or duplicate-parent
// IDs, cross-page duplicates, and internal attribution memos.
func ShouldOmit(c *Transaction, seenIDs IDSet, idsToOmit IDSet) bool {
	if correctionLines[c.LineNumber] {
		return true
	}
	if idsToOmit[c.TransactionID] {
		return true
	}
	if seenIDs[c.TransactionID] {
		return true
	}
	if strings.Contains(strings.ToUpper(c.MemoText), "ATTRIBUTION") ||
		strings.Contains(strings.ToUpper(c.ReceiptTypeFull), "ATTRIBUTION") {
		return true
	}
	return false
}
