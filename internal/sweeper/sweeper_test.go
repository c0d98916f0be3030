package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/raffle-reservation/internal/config"
	"github.com/iliyamo/raffle-reservation/internal/queue"
	"github.com/iliyamo/raffle-reservation/internal/repository"
)

type batchStore struct {
	batches [][]repository.ExpiredClaim
	calls   int
	limits  []int
	err     error
}

func (s *batchStore) ExpireBatch(_ context.Context, _ time.Time, limit int) ([]repository.ExpiredClaim, error) {
	s.calls++
	s.limits = append(s.limits, limit)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

type recordingInvalidator struct {
	raffles []uint64
}

func (r *recordingInvalidator) Invalidate(_ context.Context, raffleID uint64) {
	r.raffles = append(r.raffles, raffleID)
}

func claim(id, raffleID uint64, count int) repository.ExpiredClaim {
	return repository.ExpiredClaim{
		ID:            id,
		RaffleID:      raffleID,
		ReferenceCode: "R-TEST0-00000",
		TicketCount:   count,
	}
}

func TestSweepOnceReleasesUntilShortBatch(test *testing.T) {
	test.Parallel()
	store := &batchStore{batches: [][]repository.ExpiredClaim{
		{claim(1, 10, 2), claim(2, 10, 1)},
		{claim(3, 11, 5)},
	}}
	sw := New(store, nil, nil, config.SweeperConfig{BatchSize: 2, MaxBatches: 10})

	released, err := sw.SweepOnce(context.Background())
	if err != nil {
		test.Fatalf("unexpected error: %v", err)
	}
	if released != 3 {
		test.Fatalf("expected 3 released, got %d", released)
	}
	// The second batch came back short, so no third call is made.
	if store.calls != 2 {
		test.Fatalf("expected 2 batch calls, got %d", store.calls)
	}
	for _, limit := range store.limits {
		if limit != 2 {
			test.Fatalf("expected batch size 2 on every call, got %v", store.limits)
		}
	}
}

func TestSweepOnceStopsAtMaxBatches(test *testing.T) {
	test.Parallel()
	store := &batchStore{batches: [][]repository.ExpiredClaim{
		{claim(1, 10, 1)},
		{claim(2, 10, 1)},
		{claim(3, 10, 1)},
	}}
	sw := New(store, nil, nil, config.SweeperConfig{BatchSize: 1, MaxBatches: 2})

	released, err := sw.SweepOnce(context.Background())
	if err != nil {
		test.Fatalf("unexpected error: %v", err)
	}
	if released != 2 {
		test.Fatalf("expected the batch cap to stop at 2, got %d", released)
	}
	if store.calls != 2 {
		test.Fatalf("expected 2 batch calls, got %d", store.calls)
	}
}

func TestSweepOnceInvalidatesTouchedRaffles(test *testing.T) {
	test.Parallel()
	store := &batchStore{batches: [][]repository.ExpiredClaim{
		{claim(1, 10, 1), claim(2, 11, 1), claim(3, 10, 1)},
	}}
	inv := &recordingInvalidator{}
	sw := New(store, inv, nil, config.SweeperConfig{BatchSize: 5, MaxBatches: 1})

	if _, err := sw.SweepOnce(context.Background()); err != nil {
		test.Fatalf("unexpected error: %v", err)
	}
	if len(inv.raffles) != 2 {
		test.Fatalf("expected one invalidation per touched raffle, got %v", inv.raffles)
	}
	seen := map[uint64]bool{}
	for _, id := range inv.raffles {
		seen[id] = true
	}
	if !seen[10] || !seen[11] {
		test.Fatalf("expected raffles 10 and 11 invalidated, got %v", inv.raffles)
	}
}

func TestSweepOncePublishesReleaseEvents(test *testing.T) {
	test.Parallel()
	store := &batchStore{batches: [][]repository.ExpiredClaim{
		{claim(7, 10, 3), claim(8, 10, 1)},
	}}
	var events []queue.ReservationEvent
	publish := func(_ context.Context, ev queue.ReservationEvent) error {
		events = append(events, ev)
		return nil
	}
	sw := New(store, nil, publish, config.SweeperConfig{BatchSize: 5, MaxBatches: 1})

	if _, err := sw.SweepOnce(context.Background()); err != nil {
		test.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		test.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Event != queue.EventReservationReleased {
			test.Fatalf("expected release events, got %q", ev.Event)
		}
	}
	if events[0].ReservationID != 7 || events[0].TicketCount != 3 {
		test.Fatalf("unexpected first event %+v", events[0])
	}
}

func TestSweepOnceReturnsPartialCountOnError(test *testing.T) {
	test.Parallel()
	store := &batchStore{err: errors.New("lock wait timeout")}
	sw := New(store, nil, nil, config.SweeperConfig{BatchSize: 5, MaxBatches: 3})

	released, err := sw.SweepOnce(context.Background())
	if err == nil {
		test.Fatalf("expected the storage error to surface")
	}
	if released != 0 {
		test.Fatalf("expected no releases before the failure, got %d", released)
	}
}
