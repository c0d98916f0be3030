// Package sweeper implements the periodic batch job that releases expired
// reservations. Expired holds already stop claiming their indices the
// moment their deadline passes (the conflict predicate excludes them); the
// sweeper's job is to move the rows out of reserved status, refresh the
// count cache and announce the release. It runs against the same store as
// the live API with no coordination beyond the store's own isolation, and
// is safe to run concurrently with itself: batches lock candidate rows and
// skip ones another run already holds.
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/raffle-reservation/internal/config"
	"github.com/iliyamo/raffle-reservation/internal/queue"
	"github.com/iliyamo/raffle-reservation/internal/repository"
)

// Store is the storage surface the sweeper needs; the production
// implementation is repository.Store.
type Store interface {
	ExpireBatch(ctx context.Context, now time.Time, limit int) ([]repository.ExpiredClaim, error)
}

// Invalidator evicts a raffle's cached counts after its pool changed.
type Invalidator interface {
	Invalidate(ctx context.Context, raffleID uint64)
}

// Sweeper periodically cancels reservations past their hold deadline in
// bounded batches.
type Sweeper struct {
	store   Store
	cache   Invalidator
	publish queue.PublishFunc
	cfg     config.SweeperConfig
	now     func() time.Time
}

// New constructs a Sweeper. cache and publish may be nil, in which case
// cache eviction and event publishing are skipped.
func New(store Store, cache Invalidator, publish queue.PublishFunc, cfg config.SweeperConfig) *Sweeper {
	return &Sweeper{store: store, cache: cache, publish: publish, cfg: cfg, now: time.Now}
}

// Run sweeps on the configured interval until ctx is cancelled. Errors are
// logged and the loop keeps going; a failed run leaves expired rows for the
// next tick, which is harmless because expired holds are already excluded
// from conflict checks.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if released, err := s.SweepOnce(ctx); err != nil {
				log.Printf("sweeper: sweep failed after releasing %d: %v", released, err)
			} else if released > 0 {
				log.Printf("sweeper: released %d expired reservations", released)
			}
		}
	}
}

// SweepOnce processes up to MaxBatches batches of BatchSize expired
// reservations and returns how many were released. Each batch commits
// independently, so an error mid-run never rolls back earlier batches.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	released := 0
	for b := 0; b < s.cfg.MaxBatches; b++ {
		batch, err := s.store.ExpireBatch(ctx, s.now().UTC(), s.cfg.BatchSize)
		if err != nil {
			return released, err
		}
		if len(batch) == 0 {
			break
		}
		released += len(batch)

		touched := make(map[uint64]struct{})
		for _, ec := range batch {
			touched[ec.RaffleID] = struct{}{}
		}
		if s.cache != nil {
			for raffleID := range touched {
				s.cache.Invalidate(ctx, raffleID)
			}
		}
		if s.publish != nil {
			occurred := s.now().UTC().Format(time.RFC3339)
			for _, ec := range batch {
				_ = s.publish(ctx, queue.ReservationEvent{
					Event:         queue.EventReservationReleased,
					ReservationID: ec.ID,
					ReferenceCode: ec.ReferenceCode,
					RaffleID:      ec.RaffleID,
					TicketCount:   ec.TicketCount,
					OccurredAt:    occurred,
				})
			}
		}
		if len(batch) < s.cfg.BatchSize {
			break
		}
	}
	return released, nil
}
