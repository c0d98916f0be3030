// Package queue defines message payloads exchanged over the message broker
// and the background consumer that audits them.
package queue

import "context"

// Reservation lifecycle event kinds.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationReleased  = "reservation.released"
)

// PublishFunc is the signature event producers depend on, satisfied by
// queue_publisher.PublishReservationEvent. Keeping it a function type lets
// the API handlers and the sweeper run without a broker in tests.
type PublishFunc func(ctx context.Context, event ReservationEvent) error

// ReservationEvent is published on every reservation state change. It
// carries enough information for downstream consumers – notifications,
// analytics, the audit log – to act without querying the primary database.
// Ticket indices are intentionally omitted; consumers needing them look the
// reservation up by reference code.
type ReservationEvent struct {
	Event         string `json:"event"`
	ReservationID uint64 `json:"reservation_id"`
	ReferenceCode string `json:"reference_code"`
	RaffleID      uint64 `json:"raffle_id"`
	TicketCount   int    `json:"ticket_count"`
	BuyerEmail    string `json:"buyer_email,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
