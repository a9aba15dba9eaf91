// Package fusion merges ranked result lists with Reciprocal Rank Fusion.
package fusion

import (
	"sort"

	"github.com/54b3r/ragkit/internal/rag"
)

// DefaultK is the RRF rank constant.
const DefaultK = 60

// RRF fuses ranked lists by summing 1/(K+rank+1) per document id.
// The zero value uses DefaultK.
type RRF struct {
	K int
}

// Fuse merges the lexical and vector lists into at most maxResults results.
// Each result's Score is replaced by its fused score. Documents with equal
// fused scores keep their first-seen order, lexical list first.
func (f RRF) Fuse(lexical, vector []rag.SearchResult, maxResults int) []rag.SearchResult {
	k := f.K
	if k <= 0 {
		k = DefaultK
	}

	type entry struct {
		result rag.SearchResult
		score  float64
	}
	var (
		order []*entry
		byID  = make(map[string]*entry, len(lexical)+len(vector))
	)
	accumulate := func(list []rag.SearchResult) {
		for i, r := range list {
			contribution := 1.0 / float64(k+i+1)
			if e, ok := byID[r.DocumentID]; ok {
				e.score += contribution
				continue
			}
			e := &entry{result: r, score: contribution}
			byID[r.DocumentID] = e
			order = append(order, e)
		}
	}
	accumulate(lexical)
	accumulate(vector)

	sort.SliceStable(order, func(i, j int) bool { return order[i].score > order[j].score })

	if maxResults < 0 {
		maxResults = 0
	}
	n := min(len(order), maxResults)
	out := make([]rag.SearchResult, n)
	for i := range n {
		out[i] = order[i].result
		out[i].Score = order[i].score
	}
	return out
}
