package model

import (
	"time"

	"github.com/iliyamo/raffle-reservation/internal/ticket"
)

// Reservation states. Tickets move available → reserved → {sold, cancelled};
// sold is only reachable from reserved, and a cancelled or expired
// reservation releases its indices back to available.
const (
	StatusReserved  = "reserved"
	StatusSold      = "sold"
	StatusCancelled = "cancelled"
)

// Reservation records a buyer's claim on a set of ticket indices within a
// raffle. The claimed indices are stored in aggregate – either as
// contiguous ranges or as a flat list of lucky indices – so a reservation
// costs O(selection size) to store regardless of the raffle's pool size.
// While Status is reserved the claim is time-bounded by ReservedUntil;
// confirming a sale or cancelling clears the deadline.
//
// Fields:
//
//	ID              – primary key identifier.
//	RaffleID        – raffle whose tickets are claimed.
//	ReferenceCode   – unique human-shareable lookup code.
//	IdempotencyKey  – optional client-supplied retry token (unique per raffle).
//	BuyerName       – buyer's display name.
//	BuyerEmail      – buyer's email address.
//	BuyerPhone      – optional phone number.
//	BuyerCity       – optional city.
//	TicketCount     – number of indices claimed.
//	TicketRanges    – contiguous spans of claimed indices.
//	LuckyIndices    – discrete claimed indices not covered by ranges.
//	IsLuckyNumbers  – whether the buyer picked scattered "lucky" numbers.
//	Status          – reserved, sold or cancelled.
//	ReservedUntil   – hold deadline; nil once sold or cancelled.
//	OrderTotalCents – total charged for the reservation in cents.
//	CreatedAt       – creation timestamp.
type Reservation struct {
	ID              uint64         // reservations.id
	RaffleID        uint64         // reservations.raffle_id
	ReferenceCode   string         // reservations.reference_code
	IdempotencyKey  *string        // reservations.idempotency_key (nullable)
	BuyerName       string         // reservations.buyer_name
	BuyerEmail      string         // reservations.buyer_email
	BuyerPhone      *string        // reservations.buyer_phone (nullable)
	BuyerCity       *string        // reservations.buyer_city (nullable)
	TicketCount     int            // reservations.ticket_count
	TicketRanges    []ticket.Range // reservations.ticket_ranges (JSON)
	LuckyIndices    []int          // reservations.lucky_indices (JSON)
	IsLuckyNumbers  bool           // reservations.is_lucky_numbers
	Status          string         // reservations.status
	ReservedUntil   *time.Time     // reservations.reserved_until (nullable)
	OrderTotalCents uint32         // reservations.order_total_cents
	CreatedAt       time.Time      // reservations.created_at
}

// Indices expands the reservation's stored representation into the sorted
// set of claimed ticket indices.
func (r *Reservation) Indices() []int {
	return ticket.ExpandIndices(r.TicketRanges, r.LuckyIndices)
}

// ClaimSet is the projection of a reservation used for conflict checks: the
// claimed index sets of every active reservation in a raffle, stripped of
// buyer details.
type ClaimSet struct {
	Ranges []ticket.Range
	Lucky  []int
}
