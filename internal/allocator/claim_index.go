package allocator

import (
	"sort"

	"github.com/iliyamo/raffle-reservation/internal/model"
	"github.com/iliyamo/raffle-reservation/internal/ticket"
)

// claimIndex answers membership queries over a raffle's active claim sets
// without expanding ranges into individual indices. A reservation covering
// half a million tickets through one wide range costs a single span here,
// so conflict checks stay proportional to the request size and the number
// of claimed spans, never to the pool size.
type claimIndex struct {
	spans []ticket.Range // sorted by Start, non-overlapping after merging
	lucky []int          // sorted, may repeat or fall inside a span
}

// newClaimIndex gathers every range and lucky index from the claim sets.
// Spans are merged where they overlap or touch so that one binary search
// decides range membership even if stored claims were not disjoint.
func newClaimIndex(claims []model.ClaimSet) *claimIndex {
	ci := &claimIndex{}
	for _, cs := range claims {
		ci.spans = append(ci.spans, cs.Ranges...)
		ci.lucky = append(ci.lucky, cs.Lucky...)
	}
	sort.Slice(ci.spans, func(i, j int) bool { return ci.spans[i].Start < ci.spans[j].Start })
	merged := ci.spans[:0]
	for _, r := range ci.spans {
		if n := len(merged); n > 0 && r.Start <= merged[n-1].End+1 {
			if r.End > merged[n-1].End {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	ci.spans = merged
	sort.Ints(ci.lucky)
	return ci
}

// contains reports whether the index is claimed.
func (ci *claimIndex) contains(index int) bool {
	if ci.inSpans(index) {
		return true
	}
	pos := sort.SearchInts(ci.lucky, index)
	return pos < len(ci.lucky) && ci.lucky[pos] == index
}

func (ci *claimIndex) inSpans(index int) bool {
	n := sort.Search(len(ci.spans), func(k int) bool { return ci.spans[k].Start > index })
	return n > 0 && ci.spans[n-1].End >= index
}

// size counts the distinct claimed indices.
func (ci *claimIndex) size() int {
	total := 0
	for _, r := range ci.spans {
		total += r.End - r.Start + 1
	}
	for i, l := range ci.lucky {
		if i > 0 && l == ci.lucky[i-1] {
			continue
		}
		if ci.inSpans(l) {
			continue
		}
		total++
	}
	return total
}
