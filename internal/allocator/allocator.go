// Package allocator implements the transactional core of the reservation
// engine. A claim is all-or-nothing: either every requested ticket index is
// free and a reservation covering exactly those indices is created, or the
// call fails listing the contested indices and nothing is claimed.
//
// Atomicity rests on an optimistic-concurrency loop against the store's
// per-raffle claim version: availability is checked against a version
// stamp, the insert is conditional on that stamp being unchanged, and a
// lost race re-runs the check. Contested indices therefore always surface
// as conflicts, exactly one concurrent claimant wins each index, and
// disjoint claims on the same raffle proceed in parallel instead of
// queueing behind a raffle-wide lock.
package allocator

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/iliyamo/raffle-reservation/internal/model"
	"github.com/iliyamo/raffle-reservation/internal/repository"
	"github.com/iliyamo/raffle-reservation/internal/ticket"
)

// Store is the storage contract the allocator runs against. The production
// implementation is repository.ReservationRepo plus repository.RaffleRepo
// over MySQL; tests substitute an in-memory stub. CreateClaim must be
// atomic: it either inserts the reservation and bumps the raffle's claim
// version from exactly the given value, or fails with
// repository.ErrVersionConflict leaving no partial state.
type Store interface {
	GetRaffle(ctx context.Context, raffleID uint64) (*model.Raffle, error)
	ActiveClaims(ctx context.Context, raffleID uint64) (version uint64, claims []model.ClaimSet, err error)
	CreateClaim(ctx context.Context, version uint64, res *model.Reservation) error
	GetByIdempotencyKey(ctx context.Context, raffleID uint64, key string) (*model.Reservation, error)
}

// Config bounds the allocator's behavior. Zero values fall back to the
// defaults applied by New.
type Config struct {
	MaxTicketsPerCall int           // per-call cap on requested indices
	DefaultMinutes    int           // hold length when the request omits one
	MaxMinutes        int           // upper bound on client-requested holds
	OpTimeout         time.Duration // overall deadline per Reserve call
	ClaimAttempts     int           // optimistic claim attempts before giving up
	RetryBase         time.Duration // base backoff between attempts
}

const (
	defaultMaxPerCall    = 100
	defaultHoldMinutes   = 15
	defaultMaxMinutes    = 120
	defaultOpTimeout     = 15 * time.Second
	defaultClaimAttempts = 4
	defaultRetryBase     = 50 * time.Millisecond
)

// ReserveRequest carries one claim attempt. Indices are zero-based ticket
// slots; duplicates are tolerated and removed before any storage access.
type ReserveRequest struct {
	RaffleID        uint64
	Indices         []int
	BuyerName       string
	BuyerEmail      string
	BuyerPhone      *string
	BuyerCity       *string
	Minutes         int
	OrderTotalCents uint32
	IsLuckyNumbers  bool
	IdempotencyKey  string
}

// Receipt is the successful outcome of a claim. Replayed marks a result
// served from a previous call with the same idempotency key.
type Receipt struct {
	OrderID         uint64
	ReferenceCode   string
	ReservedUntil   time.Time
	TicketCount     int
	ReservedIndices []int
	Replayed        bool
}

// Allocator performs atomic ticket claims against a Store.
type Allocator struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// New constructs an Allocator, filling unset config fields with defaults.
func New(store Store, cfg Config) *Allocator {
	if cfg.MaxTicketsPerCall < 1 {
		cfg.MaxTicketsPerCall = defaultMaxPerCall
	}
	if cfg.DefaultMinutes < 1 {
		cfg.DefaultMinutes = defaultHoldMinutes
	}
	if cfg.MaxMinutes < cfg.DefaultMinutes {
		cfg.MaxMinutes = defaultMaxMinutes
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultOpTimeout
	}
	if cfg.ClaimAttempts < 1 {
		cfg.ClaimAttempts = defaultClaimAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	return &Allocator{store: store, cfg: cfg, now: time.Now}
}

// Reserve atomically claims the requested indices. On success the returned
// receipt identifies the new reservation; on failure the error is one of
// *ValidationError, *CapacityError, *ConflictError, *TransientError or
// repository.ErrRaffleNotFound, and no indices were claimed by this call.
func (a *Allocator) Reserve(ctx context.Context, req ReserveRequest) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.OpTimeout)
	defer cancel()

	if req.BuyerName == "" {
		return nil, &ValidationError{Field: "buyer_name", Reason: "required"}
	}
	if req.BuyerEmail == "" {
		return nil, &ValidationError{Field: "buyer_email", Reason: "required"}
	}
	if len(req.Indices) == 0 {
		return nil, &ValidationError{Field: "ticket_indices", Reason: "at least one index is required"}
	}
	indices := dedupeSorted(req.Indices)
	if len(indices) > a.cfg.MaxTicketsPerCall {
		return nil, &CapacityError{Requested: len(indices), Limit: a.cfg.MaxTicketsPerCall}
	}
	minutes := req.Minutes
	if minutes <= 0 {
		minutes = a.cfg.DefaultMinutes
	}
	if minutes > a.cfg.MaxMinutes {
		return nil, &ValidationError{Field: "reservation_minutes", Reason: "exceeds maximum hold length"}
	}

	raffle, err := a.store.GetRaffle(ctx, req.RaffleID)
	if err != nil {
		return nil, a.wrapStorage(err)
	}
	if raffle.Status != model.RaffleStatusActive {
		return nil, &ValidationError{Field: "raffle_id", Reason: "raffle is not open for reservations"}
	}
	for _, idx := range indices {
		if idx < 0 || idx >= raffle.TotalTickets {
			return nil, &ValidationError{Field: "ticket_indices", Reason: "index out of range"}
		}
	}

	// A retried request with the same idempotency key returns the original
	// reservation rather than claiming twice.
	if req.IdempotencyKey != "" {
		if existing, err := a.store.GetByIdempotencyKey(ctx, req.RaffleID, req.IdempotencyKey); err == nil {
			return receiptFrom(existing, true), nil
		} else if !errors.Is(err, repository.ErrReservationNotFound) {
			return nil, a.wrapStorage(err)
		}
	}

	var receipt *Receipt
	attempt := func() error {
		version, claims, err := a.store.ActiveClaims(ctx, req.RaffleID)
		if err != nil {
			return err
		}
		conflicts := intersect(indices, claims)
		if len(conflicts) > 0 {
			return &ConflictError{Indices: conflicts}
		}
		res, err := a.buildReservation(raffle, indices, req, minutes)
		if err != nil {
			return err
		}
		if err := a.store.CreateClaim(ctx, version, res); err != nil {
			return err
		}
		receipt = receiptFrom(res, false)
		return nil
	}

	err = repository.WithRetry(ctx, a.cfg.ClaimAttempts, a.cfg.RetryBase, attempt)
	if err == nil {
		return receipt, nil
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return nil, conflict
	}
	// A duplicate idempotency key at insert time means a concurrent retry of
	// the same request won the race; serve its result.
	if errors.Is(err, repository.ErrDuplicateIdempotencyKey) && req.IdempotencyKey != "" {
		existing, getErr := a.store.GetByIdempotencyKey(ctx, req.RaffleID, req.IdempotencyKey)
		if getErr == nil {
			return receiptFrom(existing, true), nil
		}
		return nil, a.wrapStorage(getErr)
	}
	return nil, a.wrapStorage(err)
}

// Unavailable reports which of the given indices are currently claimed by
// an active reservation. Used by the availability read path; it performs no
// writes.
func (a *Allocator) Unavailable(ctx context.Context, raffleID uint64, indices []int) ([]int, error) {
	_, claims, err := a.store.ActiveClaims(ctx, raffleID)
	if err != nil {
		return nil, a.wrapStorage(err)
	}
	return intersect(dedupeSorted(indices), claims), nil
}

// SuggestAvailable returns up to count currently free indices, randomly
// sampled so concurrent buyers asking for suggestions are steered toward
// different tickets. Random probing is attempted first; a raffle dense
// enough to defeat it falls back to a bounded scan from a random offset.
// The suggestions are not held – a subsequent Reserve may still conflict.
func (a *Allocator) SuggestAvailable(ctx context.Context, raffleID uint64, count int) ([]int, error) {
	if count < 1 {
		return nil, &ValidationError{Field: "count", Reason: "must be positive"}
	}
	raffle, err := a.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, a.wrapStorage(err)
	}
	_, claims, err := a.store.ActiveClaims(ctx, raffleID)
	if err != nil {
		return nil, a.wrapStorage(err)
	}
	claimed := newClaimIndex(claims)
	total := raffle.TotalTickets
	if free := total - claimed.size(); count > free {
		count = free
	}
	picked := make(map[int]struct{}, count)
	out := make([]int, 0, count)
	for tries := 0; tries < count*20 && len(out) < count; tries++ {
		idx := rand.Intn(total)
		if claimed.contains(idx) {
			continue
		}
		if _, dup := picked[idx]; dup {
			continue
		}
		picked[idx] = struct{}{}
		out = append(out, idx)
	}
	if len(out) < count {
		start := rand.Intn(total)
		for off := 0; off < total && len(out) < count; off++ {
			idx := (start + off) % total
			if claimed.contains(idx) {
				continue
			}
			if _, dup := picked[idx]; dup {
				continue
			}
			picked[idx] = struct{}{}
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (a *Allocator) buildReservation(raffle *model.Raffle, indices []int, req ReserveRequest, minutes int) (*model.Reservation, error) {
	ref, err := repository.NewReferenceCode()
	if err != nil {
		return nil, err
	}
	ranges, lucky := ticket.SplitForStorage(indices, req.IsLuckyNumbers)
	until := a.now().UTC().Add(time.Duration(minutes) * time.Minute)
	total := req.OrderTotalCents
	if total == 0 {
		total = raffle.TicketPriceCents * uint32(len(indices))
	}
	res := &model.Reservation{
		RaffleID:        raffle.ID,
		ReferenceCode:   ref,
		BuyerName:       req.BuyerName,
		BuyerEmail:      req.BuyerEmail,
		BuyerPhone:      req.BuyerPhone,
		BuyerCity:       req.BuyerCity,
		TicketCount:     len(indices),
		TicketRanges:    ranges,
		LuckyIndices:    lucky,
		IsLuckyNumbers:  req.IsLuckyNumbers,
		Status:          model.StatusReserved,
		ReservedUntil:   &until,
		OrderTotalCents: total,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		res.IdempotencyKey = &key
	}
	return res, nil
}

// wrapStorage classifies a storage-layer failure. Sentinels the caller
// reacts to pass through unchanged; everything else, including a deadline
// hit, becomes a TransientError.
func (a *Allocator) wrapStorage(err error) error {
	if errors.Is(err, repository.ErrRaffleNotFound) || errors.Is(err, repository.ErrReservationNotFound) {
		return err
	}
	return &TransientError{Err: err}
}

func receiptFrom(res *model.Reservation, replayed bool) *Receipt {
	receipt := &Receipt{
		OrderID:         res.ID,
		ReferenceCode:   res.ReferenceCode,
		TicketCount:     res.TicketCount,
		ReservedIndices: res.Indices(),
		Replayed:        replayed,
	}
	if res.ReservedUntil != nil {
		receipt.ReservedUntil = *res.ReservedUntil
	}
	return receipt
}

// intersect returns the requested indices present in any claim set.
// requested must be sorted ascending (dedupeSorted output), so the result
// is too. Membership is tested against the claim sets directly rather than
// by expanding them, keeping the check O(request size) with a logarithmic
// factor even when the claims cover most of a large pool.
func intersect(requested []int, claims []model.ClaimSet) []int {
	claimed := newClaimIndex(claims)
	var out []int
	for _, idx := range requested {
		if claimed.contains(idx) {
			out = append(out, idx)
		}
	}
	return out
}

func dedupeSorted(indices []int) []int {
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
