package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/raffle-reservation/internal/model"
)

// RaffleRepo provides read access to the raffles table. The reservation
// engine never mutates raffle settings; numbering configuration and pool
// size are owned by the (out-of-scope) organizer dashboard and consumed
// read-only here.
type RaffleRepo struct {
	db *sql.DB
}

// NewRaffleRepo returns a new RaffleRepo bound to the provided database.
func NewRaffleRepo(db *sql.DB) *RaffleRepo { return &RaffleRepo{db: db} }

// GetByID loads a raffle including its numbering configuration. The
// numbering is normalized with defaults derived from the pool size so that
// callers can format and parse ticket numbers without re-checking unset
// columns. Returns ErrRaffleNotFound when no row matches.
func (r *RaffleRepo) GetByID(ctx context.Context, raffleID uint64) (*model.Raffle, error) {
	const q = `SELECT id, name, total_tickets, ticket_price_cents, claim_version, status,
	                  start_number, step, pad_enabled, pad_width, pad_char,
	                  prefix, suffix, separator, created_at
	           FROM raffles WHERE id = ?`
	var raf model.Raffle
	err := r.db.QueryRowContext(ctx, q, raffleID).Scan(
		&raf.ID, &raf.Name, &raf.TotalTickets, &raf.TicketPriceCents, &raf.ClaimVersion, &raf.Status,
		&raf.Numbering.StartNumber, &raf.Numbering.Step, &raf.Numbering.PadEnabled,
		&raf.Numbering.PadWidth, &raf.Numbering.PadChar,
		&raf.Numbering.Prefix, &raf.Numbering.Suffix, &raf.Numbering.Separator,
		&raf.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRaffleNotFound
	}
	if err != nil {
		return nil, err
	}
	raf.Numbering = raf.Numbering.Defaulted(raf.TotalTickets)
	return &raf, nil
}

// Counts aggregates the raffle's ticket totals from the source of truth.
// Sold counts every sold reservation; reserved counts only unexpired holds,
// so an expired-but-unswept reservation already reads as available. The
// result feeds the count cache and is never consulted for claim decisions.
func (r *RaffleRepo) Counts(ctx context.Context, raffleID uint64) (*model.TicketCounts, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT total_tickets FROM raffles WHERE id = ?`, raffleID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRaffleNotFound
	}
	if err != nil {
		return nil, err
	}
	const q = `SELECT
	             COALESCE(SUM(CASE WHEN status = 'sold' THEN ticket_count ELSE 0 END), 0),
	             COALESCE(SUM(CASE WHEN status = 'reserved' AND reserved_until > UTC_TIMESTAMP() THEN ticket_count ELSE 0 END), 0)
	           FROM reservations WHERE raffle_id = ?`
	var sold, reserved int
	if err := r.db.QueryRowContext(ctx, q, raffleID).Scan(&sold, &reserved); err != nil {
		return nil, err
	}
	return &model.TicketCounts{
		Total:     total,
		Sold:      sold,
		Reserved:  reserved,
		Available: total - sold - reserved,
	}, nil
}
