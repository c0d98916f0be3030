package ticket

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

func TestCompressMergesConsecutiveIndices(test *testing.T) {
	test.Parallel()
	got := CompressIndices([]int{1, 2, 3, 7, 8, 10})
	want := []Range{{Start: 1, End: 3}, {Start: 7, End: 8}, {Start: 10, End: 10}}
	if !reflect.DeepEqual(got, want) {
		test.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCompressToleratesDuplicatesAndDisorder(test *testing.T) {
	test.Parallel()
	got := CompressIndices([]int{10, 3, 1, 2, 3, 8, 7, 10})
	want := []Range{{Start: 1, End: 3}, {Start: 7, End: 8}, {Start: 10, End: 10}}
	if !reflect.DeepEqual(got, want) {
		test.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCompressEmptyInput(test *testing.T) {
	test.Parallel()
	got := CompressIndices(nil)
	if len(got) != 0 {
		test.Fatalf("expected no ranges for empty input, got %v", got)
	}
}

func TestExpandUnionsRangesAndLuckyIndices(test *testing.T) {
	test.Parallel()
	got := ExpandIndices([]Range{{Start: 2, End: 4}, {Start: 9, End: 9}}, []int{4, 1, 20})
	want := []int{1, 2, 3, 4, 9, 20}
	if !reflect.DeepEqual(got, want) {
		test.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCompressExpandRoundTrip(test *testing.T) {
	test.Parallel()
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 100; round++ {
		size := rng.Intn(60)
		indices := make([]int, size)
		for i := range indices {
			indices[i] = rng.Intn(80)
		}
		want := normalize(indices)
		got := ExpandIndices(CompressIndices(indices), nil)
		if !reflect.DeepEqual(got, want) {
			test.Fatalf("round %d: expand(compress(%v)) = %v, want %v", round, indices, got, want)
		}
	}
}

func TestSplitForStorageUsesRangesForSmallRequests(test *testing.T) {
	test.Parallel()
	ranges, lucky := SplitForStorage([]int{5, 6, 7, 30}, false)
	if len(lucky) != 0 {
		test.Fatalf("expected empty lucky list, got %v", lucky)
	}
	want := []Range{{Start: 5, End: 7}, {Start: 30, End: 30}}
	if !reflect.DeepEqual(ranges, want) {
		test.Fatalf("expected %v, got %v", want, ranges)
	}
}

func TestSplitForStorageSwitchesToLuckyAtThreshold(test *testing.T) {
	test.Parallel()
	indices := make([]int, BulkLuckyThreshold)
	for i := range indices {
		indices[i] = i * 2
	}

	ranges, lucky := SplitForStorage(indices, false)
	if len(ranges) != 0 {
		test.Fatalf("expected no ranges at the bulk threshold, got %v", ranges)
	}
	if len(lucky) != BulkLuckyThreshold {
		test.Fatalf("expected %d lucky indices, got %d", BulkLuckyThreshold, len(lucky))
	}

	ranges, lucky = SplitForStorage(indices[:BulkLuckyThreshold-1], false)
	if len(ranges) == 0 || len(lucky) != 0 {
		test.Fatalf("expected ranges below the bulk threshold, got ranges=%v lucky=%v", ranges, lucky)
	}
}

func TestSplitForStorageHonorsLuckyFlag(test *testing.T) {
	test.Parallel()
	ranges, lucky := SplitForStorage([]int{3, 1, 2}, true)
	if len(ranges) != 0 {
		test.Fatalf("expected no ranges for a lucky pick, got %v", ranges)
	}
	if !reflect.DeepEqual(lucky, []int{1, 2, 3}) {
		test.Fatalf("expected sorted lucky indices, got %v", lucky)
	}
}

func TestBothStorageShapesExpandIdentically(test *testing.T) {
	test.Parallel()
	indices := []int{14, 2, 3, 4, 9, 2}

	asRanges, _ := SplitForStorage(indices, false)
	_, asLucky := SplitForStorage(indices, true)

	fromRanges := ExpandIndices(asRanges, nil)
	fromLucky := ExpandIndices(nil, asLucky)
	if !reflect.DeepEqual(fromRanges, fromLucky) {
		test.Fatalf("storage shapes diverge: %v vs %v", fromRanges, fromLucky)
	}
	want := []int{2, 3, 4, 9, 14}
	if !sort.IntsAreSorted(fromRanges) || !reflect.DeepEqual(fromRanges, want) {
		test.Fatalf("expected %v, got %v", want, fromRanges)
	}
}
