// Package repository provides data access to the raffles and reservations
// tables. Sentinel errors defined here let higher layers distinguish
// failure scenarios without inspecting driver-specific error codes: the
// allocator reacts to ErrVersionConflict by re-running its availability
// check, while handlers translate not-found and state-conflict sentinels
// into 404 and 409 responses.
package repository

import "errors"

// ErrRaffleNotFound is returned when no raffle exists with the given ID.
var ErrRaffleNotFound = errors.New("raffle not found")

// ErrReservationNotFound is returned when a reservation lookup by ID or
// reference code matches nothing.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrVersionConflict is returned by CreateClaim when the raffle's claim
// version moved between the availability check and the conditional write.
// The caller should re-read the active claims and try again; the contested
// indices will then surface as ordinary conflicts.
var ErrVersionConflict = errors.New("claim version conflict")

// ErrDuplicateIdempotencyKey is returned when an insert trips the unique
// index on (raffle_id, idempotency_key). The original reservation for that
// key should be fetched and returned to the caller unchanged.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// ErrDuplicateReference is returned when a freshly generated reference code
// collides with an existing one. Codes carry enough entropy that a retry
// with a new code is expected to succeed immediately.
var ErrDuplicateReference = errors.New("duplicate reference code")

// ErrStatusConflict is returned when a status transition finds the
// reservation in a state the transition does not start from, e.g.
// confirming a reservation that has already been swept.
var ErrStatusConflict = errors.New("reservation status conflict")
