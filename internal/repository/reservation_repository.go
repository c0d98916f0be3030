package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/raffle-reservation/internal/model"
	"github.com/iliyamo/raffle-reservation/internal/ticket"
)

// ReservationRepo provides data access to the reservations table. Claimed
// indices are stored in aggregate as JSON range and lucky-index columns
// rather than one row per ticket, so storage and conflict checks stay
// O(reservation size) even for pools of hundreds of thousands of tickets.
// All timestamps are stored and compared in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// activePredicate matches reservations whose indices count as claimed: any
// sold reservation, plus reserved ones whose hold has not yet expired. An
// expired hold stops claiming its indices immediately, before the sweeper
// gets around to cancelling the row.
const activePredicate = `(status = 'sold' OR (status = 'reserved' AND reserved_until > UTC_TIMESTAMP()))`

// ActiveClaims reads the raffle's current claim version together with the
// index sets of every active reservation. The version is read before the
// claims: a claim committed in between makes the subsequent conditional
// write fail with ErrVersionConflict, so the caller can never act on a
// stale availability picture.
func (r *ReservationRepo) ActiveClaims(ctx context.Context, raffleID uint64) (uint64, []model.ClaimSet, error) {
	var version uint64
	err := r.db.QueryRowContext(ctx, `SELECT claim_version FROM raffles WHERE id = ?`, raffleID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, ErrRaffleNotFound
	}
	if err != nil {
		return 0, nil, err
	}
	const q = `SELECT ticket_ranges, lucky_indices FROM reservations
	           WHERE raffle_id = ? AND ` + activePredicate
	rows, err := r.db.QueryContext(ctx, q, raffleID)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	var claims []model.ClaimSet
	for rows.Next() {
		var rangesJSON, luckyJSON []byte
		if err := rows.Scan(&rangesJSON, &luckyJSON); err != nil {
			return 0, nil, err
		}
		cs, err := decodeClaimSet(rangesJSON, luckyJSON)
		if err != nil {
			return 0, nil, err
		}
		claims = append(claims, cs)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return version, claims, nil
}

// CreateClaim inserts a reservation and bumps the raffle's claim version in
// a single transaction. The bump is conditional on the version still
// matching the value observed by the caller's availability check; when the
// version has moved the transaction rolls back and ErrVersionConflict is
// returned with no partial effects. Duplicate-key violations on the
// idempotency and reference indexes are mapped to their sentinels. On
// success the reservation's ID and CreatedAt are populated.
func (r *ReservationRepo) CreateClaim(ctx context.Context, version uint64, res *model.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Conditional bump: touches exactly one raffle row, held only until
	// commit, so claims on other raffles (and losing claims on this one)
	// never queue behind a table or pool-wide lock.
	bump, err := tx.ExecContext(ctx,
		`UPDATE raffles SET claim_version = claim_version + 1 WHERE id = ? AND claim_version = ?`,
		res.RaffleID, version,
	)
	if err != nil {
		return err
	}
	affected, err := bump.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	rangesJSON, err := json.Marshal(res.TicketRanges)
	if err != nil {
		return err
	}
	luckyJSON, err := json.Marshal(res.LuckyIndices)
	if err != nil {
		return err
	}
	const q = `INSERT INTO reservations
	             (raffle_id, reference_code, idempotency_key, buyer_name, buyer_email,
	              buyer_phone, buyer_city, ticket_count, ticket_ranges, lucky_indices,
	              is_lucky_numbers, status, reserved_until, order_total_cents)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var reservedUntil interface{}
	if res.ReservedUntil != nil {
		reservedUntil = res.ReservedUntil.UTC().Format("2006-01-02 15:04:05")
	}
	result, err := tx.ExecContext(ctx, q,
		res.RaffleID, res.ReferenceCode, res.IdempotencyKey, res.BuyerName, res.BuyerEmail,
		res.BuyerPhone, res.BuyerCity, res.TicketCount, rangesJSON, luckyJSON,
		res.IsLuckyNumbers, res.Status, reservedUntil, res.OrderTotalCents,
	)
	if err != nil {
		switch {
		case IsDuplicateEntry(err, "idempotency"):
			return ErrDuplicateIdempotencyKey
		case IsDuplicateEntry(err, "reference"):
			return ErrDuplicateReference
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	if err := tx.QueryRowContext(ctx,
		`SELECT created_at FROM reservations WHERE id = ?`, res.ID,
	).Scan(&res.CreatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByReference loads a reservation by its human-shareable reference code.
// Returns ErrReservationNotFound when the code matches nothing.
func (r *ReservationRepo) GetByReference(ctx context.Context, referenceCode string) (*model.Reservation, error) {
	return r.getOne(ctx, `reference_code = ?`, referenceCode)
}

// GetByIdempotencyKey loads the reservation previously created for a
// client-supplied idempotency key on the given raffle, if any. Returns
// ErrReservationNotFound when the key has not been used.
func (r *ReservationRepo) GetByIdempotencyKey(ctx context.Context, raffleID uint64, key string) (*model.Reservation, error) {
	return r.getOne(ctx, `raffle_id = ? AND idempotency_key = ?`, raffleID, key)
}

func (r *ReservationRepo) getOne(ctx context.Context, where string, args ...interface{}) (*model.Reservation, error) {
	q := `SELECT id, raffle_id, reference_code, idempotency_key, buyer_name, buyer_email,
	             buyer_phone, buyer_city, ticket_count, ticket_ranges, lucky_indices,
	             is_lucky_numbers, status, reserved_until, order_total_cents, created_at
	      FROM reservations WHERE ` + where
	var res model.Reservation
	var idemKey, phone, city sql.NullString
	var rangesJSON, luckyJSON []byte
	var reservedUntil sql.NullTime
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&res.ID, &res.RaffleID, &res.ReferenceCode, &idemKey, &res.BuyerName, &res.BuyerEmail,
		&phone, &city, &res.TicketCount, &rangesJSON, &luckyJSON,
		&res.IsLuckyNumbers, &res.Status, &reservedUntil, &res.OrderTotalCents, &res.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	if idemKey.Valid {
		v := idemKey.String
		res.IdempotencyKey = &v
	}
	if phone.Valid {
		v := phone.String
		res.BuyerPhone = &v
	}
	if city.Valid {
		v := city.String
		res.BuyerCity = &v
	}
	if reservedUntil.Valid {
		t := reservedUntil.Time.UTC()
		res.ReservedUntil = &t
	}
	cs, err := decodeClaimSet(rangesJSON, luckyJSON)
	if err != nil {
		return nil, err
	}
	res.TicketRanges = cs.Ranges
	res.LuckyIndices = cs.Lucky
	return &res, nil
}

// UpdateStatus transitions a reservation from one status to another,
// clearing the hold deadline. The from-status is part of the UPDATE
// predicate, so a reservation concurrently swept or confirmed loses the
// race cleanly: zero rows are affected and ErrStatusConflict is returned
// instead of skipping a state. Returns the reservation as updated.
// Transitions to sold must go through ConfirmSale, which additionally
// guards against expired holds.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, referenceCode, from, to string) (*model.Reservation, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, reserved_until = NULL WHERE reference_code = ? AND status = ?`,
		to, referenceCode, from,
	)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Distinguish a missing reservation from one in the wrong state.
		if _, err := r.GetByReference(ctx, referenceCode); err != nil {
			return nil, err
		}
		return nil, ErrStatusConflict
	}
	return r.GetByReference(ctx, referenceCode)
}

// ConfirmSale transitions a reservation from reserved to sold. Beyond the
// from-status, the predicate requires the hold to be unexpired: once
// reserved_until passes, the indices stop counting as claimed and may
// already belong to a newer reservation, so confirming the stale hold
// would sell the same tickets twice. Expired, swept and already-confirmed
// reservations all return ErrStatusConflict.
func (r *ReservationRepo) ConfirmSale(ctx context.Context, referenceCode string) (*model.Reservation, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, reserved_until = NULL
		 WHERE reference_code = ? AND status = ? AND reserved_until > UTC_TIMESTAMP()`,
		model.StatusSold, referenceCode, model.StatusReserved,
	)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := r.GetByReference(ctx, referenceCode); err != nil {
			return nil, err
		}
		return nil, ErrStatusConflict
	}
	return r.GetByReference(ctx, referenceCode)
}

// ExpiredClaim identifies one reservation released by a sweep batch.
type ExpiredClaim struct {
	ID            uint64
	RaffleID      uint64
	ReferenceCode string
	TicketCount   int
}

// ExpireBatch cancels up to limit reservations whose hold deadline has
// passed and reports which raffles they belonged to. The candidate rows
// are locked before the update and the status predicate is re-checked in
// the UPDATE itself, so a reservation being confirmed as sold by the
// approval workflow at the same moment is never swept. Returns an empty
// slice when nothing is expired.
func (r *ReservationRepo) ExpireBatch(ctx context.Context, now time.Time, limit int) ([]ExpiredClaim, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `SELECT id, raffle_id, reference_code, ticket_count FROM reservations
	           WHERE status = 'reserved' AND reserved_until <= ?
	           ORDER BY reserved_until
	           LIMIT ? FOR UPDATE SKIP LOCKED`
	rows, err := tx.QueryContext(ctx, q, now.UTC().Format("2006-01-02 15:04:05"), limit)
	if err != nil {
		return nil, err
	}
	var expired []ExpiredClaim
	for rows.Next() {
		var ec ExpiredClaim
		if scanErr := rows.Scan(&ec.ID, &ec.RaffleID, &ec.ReferenceCode, &ec.TicketCount); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		expired = append(expired, ec)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return []ExpiredClaim{}, nil
	}

	ids := make([]interface{}, 0, len(expired))
	placeholders := make([]string, 0, len(expired))
	for _, ec := range expired {
		ids = append(ids, ec.ID)
		placeholders = append(placeholders, "?")
	}
	update := `UPDATE reservations SET status = 'cancelled', reserved_until = NULL
	           WHERE id IN (` + strings.Join(placeholders, ",") + `) AND status = 'reserved'`
	if _, err := tx.ExecContext(ctx, update, ids...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return expired, nil
}

// referenceAlphabet omits ambiguous characters (0/O, 1/I/L) so codes can be
// read aloud over the phone.
const referenceAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewReferenceCode generates a human-shareable reservation code such as
// "R-7KQ2M-XW4TP". Ten characters over a 31-symbol alphabet give roughly
// 49 bits of entropy; the unique index on reference_code catches the
// astronomically rare collision and the caller simply regenerates.
func NewReferenceCode() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	chars := make([]byte, 10)
	for i, b := range buf {
		chars[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("R-%s-%s", chars[:5], chars[5:]), nil
}

// decodeClaimSet unmarshals the JSON range and lucky-index columns. NULL
// columns decode as empty sets.
func decodeClaimSet(rangesJSON, luckyJSON []byte) (model.ClaimSet, error) {
	var cs model.ClaimSet
	if len(rangesJSON) > 0 {
		if err := json.Unmarshal(rangesJSON, &cs.Ranges); err != nil {
			return model.ClaimSet{}, err
		}
	}
	if len(luckyJSON) > 0 {
		if err := json.Unmarshal(luckyJSON, &cs.Lucky); err != nil {
			return model.ClaimSet{}, err
		}
	}
	if cs.Ranges == nil {
		cs.Ranges = []ticket.Range{}
	}
	if cs.Lucky == nil {
		cs.Lucky = []int{}
	}
	return cs, nil
}
