package allocator

import (
	"testing"

	"github.com/iliyamo/raffle-reservation/internal/model"
	"github.com/iliyamo/raffle-reservation/internal/ticket"
)

func TestClaimIndexMembershipBoundaries(test *testing.T) {
	test.Parallel()
	ci := newClaimIndex([]model.ClaimSet{
		{Ranges: []ticket.Range{{Start: 10, End: 19}}},
		{Ranges: []ticket.Range{{Start: 30, End: 30}}, Lucky: []int{5, 25}},
	})
	for _, idx := range []int{10, 15, 19, 30, 5, 25} {
		if !ci.contains(idx) {
			test.Fatalf("expected index %d to be claimed", idx)
		}
	}
	for _, idx := range []int{9, 20, 29, 31, 6, 24, 0} {
		if ci.contains(idx) {
			test.Fatalf("expected index %d to be free", idx)
		}
	}
}

func TestClaimIndexMergesOverlappingSpans(test *testing.T) {
	test.Parallel()
	// A containing span followed by a nested one: membership in the middle
	// must not be lost to the nearest-start span ending early.
	ci := newClaimIndex([]model.ClaimSet{
		{Ranges: []ticket.Range{{Start: 0, End: 100}}},
		{Ranges: []ticket.Range{{Start: 50, End: 60}, {Start: 101, End: 110}}},
	})
	if !ci.contains(70) {
		test.Fatalf("index 70 lies inside [0,100] and must be claimed")
	}
	if len(ci.spans) != 1 || ci.spans[0].Start != 0 || ci.spans[0].End != 110 {
		test.Fatalf("expected one merged span [0,110], got %v", ci.spans)
	}
	if ci.size() != 111 {
		test.Fatalf("expected 111 claimed indices, got %d", ci.size())
	}
}

func TestClaimIndexSizeDeduplicatesLucky(test *testing.T) {
	test.Parallel()
	ci := newClaimIndex([]model.ClaimSet{
		{Ranges: []ticket.Range{{Start: 0, End: 9}}},
		{Lucky: []int{5, 12, 12, 14}},
	})
	// 5 is covered by the span, 12 repeats; distinct indices are 0..9,12,14.
	if got := ci.size(); got != 12 {
		test.Fatalf("expected size 12, got %d", got)
	}
}

func TestClaimIndexEmpty(test *testing.T) {
	test.Parallel()
	ci := newClaimIndex(nil)
	if ci.contains(0) || ci.size() != 0 {
		test.Fatalf("an empty index must claim nothing")
	}
}
