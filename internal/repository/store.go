package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/raffle-reservation/internal/model"
)

// Store bundles the raffle and reservation repositories into the single
// storage surface the allocator and sweeper are written against.
type Store struct {
	Raffles      *RaffleRepo
	Reservations *ReservationRepo
}

// NewStore builds a Store over one database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		Raffles:      NewRaffleRepo(db),
		Reservations: NewReservationRepo(db),
	}
}

// GetRaffle loads a raffle with normalized numbering configuration.
func (s *Store) GetRaffle(ctx context.Context, raffleID uint64) (*model.Raffle, error) {
	return s.Raffles.GetByID(ctx, raffleID)
}

// ActiveClaims returns the raffle's claim version and active index sets.
func (s *Store) ActiveClaims(ctx context.Context, raffleID uint64) (uint64, []model.ClaimSet, error) {
	return s.Reservations.ActiveClaims(ctx, raffleID)
}

// CreateClaim inserts a reservation conditionally on the claim version.
func (s *Store) CreateClaim(ctx context.Context, version uint64, res *model.Reservation) error {
	return s.Reservations.CreateClaim(ctx, version, res)
}

// GetByIdempotencyKey finds a previous reservation for a retry token.
func (s *Store) GetByIdempotencyKey(ctx context.Context, raffleID uint64, key string) (*model.Reservation, error) {
	return s.Reservations.GetByIdempotencyKey(ctx, raffleID, key)
}

// ExpireBatch cancels up to limit expired reservations.
func (s *Store) ExpireBatch(ctx context.Context, now time.Time, limit int) ([]ExpiredClaim, error) {
	return s.Reservations.ExpireBatch(ctx, now, limit)
}
