package fec

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// LookupChunkSize bounds how many IDs one detail request carries.
const LookupChunkSize = 10

// LookupCommittees fetches committee details for the given IDs, chunked.
func LookupCommittees(ctx context.Context, f Fetcher, ids []string) (map[string]*CommitteeRecord, error) {
	out := make(map[string]*CommitteeRecord, len(ids))
	for _, batch := range Chunk(ids, LookupChunkSize) {
		params := url.Values{}
		for _, id := range batch {
			params.Add("committee_id", id)
		}
		params.Set("per_page", "100")
		var page CommitteePage
		if err := f.Fetch(ctx, "committee details", CommitteesPath, params, &page); err != nil {
			return nil, fmt.Errorf("LookupCommittees: %w", err)
		}
		for i := range page.Results {
			out[page.Results[i].CommitteeID] = &page.Results[i]
		}
	}
	return out, nil
}

// LookupCandidates fetches candidate details for the given IDs, chunked.
func LookupCandidates(ctx context.Context, f Fetcher, ids []string) (map[string]*CandidateRecord, error) {
	out := make(map[string]*CandidateRecord, len(ids))
	for _, batch := range Chunk(ids, LookupChunkSize) {
		params := url.Values{}
		for _, id := range batch {
			params.Add("candidate_id", id)
		}
		params.Set("per_page", "100")
		var page CandidatePage
		if err := f.Fetch(ctx, "candidate details", CandidatesPath, params, &page); err != nil {
			return nil, fmt.Errorf("LookupCandidates: %w", err)
		}
		for i := range page.Results {
			out[page.Results[i].CandidateID] = &page.Results[i]
		}
	}
	return out, nil
}

// CandidateConsensusParty returns the party shared by every listed
// candidate with known details, or "" when the candidates disagree, carry a
// no-party code, or none are known. Used as the fallback when a committee
// reports no usable party of its own.
func CandidateConsensusParty(ids []string, candidates map[string]*CandidateRecord) string {
	var party string
	for _, id := range ids {
		c, ok := candidates[id]
		if !ok || c.Party == "" {
			continue
		}
		if party == "" {
			party = c.Party
		} else if party != c.Party {
			return ""
		}
	}
	if strings.HasPrefix(party, "N") {
		return ""
	}
	return party
}

// Chunk splits ids into slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
