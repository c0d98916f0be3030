package ticket

import "sort"

// Range is a contiguous, inclusive span of ticket indices. A single index i
// is represented as {Start: i, End: i}.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// BulkLuckyThreshold is the request size at or above which a reservation is
// stored as a flat list of lucky indices instead of compressed ranges.
// Large requests tend to be scattered picks where range compression buys
// nothing; the value is a storage-shape heuristic, not a correctness
// boundary, since expansion treats both representations identically.
const BulkLuckyThreshold = 200

// CompressIndices merges a set of ticket indices into the minimal list of
// contiguous ranges. The input may be unsorted and contain duplicates.
func CompressIndices(indices []int) []Range {
	if len(indices) == 0 {
		return []Range{}
	}
	sorted := normalize(indices)
	ranges := make([]Range, 0, len(sorted))
	cur := Range{Start: sorted[0], End: sorted[0]}
	for _, idx := range sorted[1:] {
		if idx == cur.End+1 {
			cur.End = idx
			continue
		}
		ranges = append(ranges, cur)
		cur = Range{Start: idx, End: idx}
	}
	return append(ranges, cur)
}

// ExpandIndices returns the sorted, deduplicated union of every index
// covered by ranges plus the discrete lucky indices. Both storage
// representations expand through this single function so that claims
// stored as ranges and claims stored as lucky lists compare identically.
func ExpandIndices(ranges []Range, lucky []int) []int {
	seen := make(map[int]struct{})
	for _, r := range ranges {
		for i := r.Start; i <= r.End; i++ {
			seen[i] = struct{}{}
		}
	}
	for _, i := range lucky {
		seen[i] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// SplitForStorage decides how a reservation's indices are persisted. Sparse
// picks (flagged lucky by the caller) and bulk requests at or above
// BulkLuckyThreshold are kept as a flat index list; everything else is
// compressed into ranges. Exactly one of the return values is non-empty.
func SplitForStorage(indices []int, isLucky bool) ([]Range, []int) {
	sorted := normalize(indices)
	if isLucky || len(sorted) >= BulkLuckyThreshold {
		return []Range{}, sorted
	}
	return CompressIndices(sorted), []int{}
}

// normalize sorts indices ascending and drops duplicates.
func normalize(indices []int) []int {
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Ints(sorted)
	out := sorted[:0]
	for i, idx := range sorted {
		if i > 0 && idx == sorted[i-1] {
			continue
		}
		out = append(out, idx)
	}
	return out
}
