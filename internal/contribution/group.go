package contribution

// GroupKey is the natural key over which reconciliation is attempted: rows
// sharing a receipt date and donor name might all be the same real-world
// transaction reported multiple times, or genuinely separate same-day
// donations. The reconciler decides which.
type GroupKey struct {
	Date  string
	Donor string
}

// Group is one partition of transactions sharing a GroupKey.
type Group struct {
	Key          GroupKey
	Transactions []*Transaction
}

// GroupByDateAndDonor partitions transactions by (date, donor name). Pure
// partition, no filtering; groups preserve input order and are returned in
// first-seen order so reconciliation runs are deterministic.
func GroupByDateAndDonor(transactions []*Transaction) []Group {
	byKey := map[GroupKey]int{}
	var groups []Group
	for _, t := range transactions {
		key := GroupKey{Date: t.ContributionReceiptDate, Donor: t.ContributorName}
		idx, ok := byKey[key]
		if !ok {
			idx = len(groups)
			byKey[key] = idx
			groups = append(groups, Group{Key: key})
		}
		groups[idx].Transactions = append(groups[idx].Transactions, t)
	}
	return groups
}

// GroupByDate partitions transactions by receipt date alone. Individual
// searches already fix the donor, so the donor half of the key carries no
// information there.
func GroupByDate(transactions []*Transaction) []Group {
	byDate := map[string]int{}
	var groups []Group
	for _, t := range transactions {
		idx, ok := byDate[t.ContributionReceiptDate]
		if !ok {
			idx = len(groups)
			byDate[t.ContributionReceiptDate] = idx
			groups = append(groups, Group{Key: GroupKey{Date: t.ContributionReceiptDate}})
		}
		groups[idx].Transactions = append(groups[idx].Transactions, t)
	}
	return groups
}
