package model

import (
	"time"

	"github.com/iliyamo/raffle-reservation/internal/ticket"
)

// Raffle lifecycle states. Only active raffles accept reservations.
const (
	RaffleStatusDraft     = "draft"
	RaffleStatusActive    = "active"
	RaffleStatusCompleted = "completed"
	RaffleStatusArchived  = "archived"
)

// Raffle describes a single raffle and its fixed ticket pool. Ticket slots
// are identified by zero-based indices in [0, TotalTickets); individual
// tickets are never materialized as rows. TotalTickets is immutable once
// tickets have been offered for sale.
//
// Fields:
//
//	ID               – primary key identifier.
//	Name             – organizer-facing title.
//	TotalTickets     – size N of the index space [0, N).
//	TicketPriceCents – price per ticket in cents.
//	Numbering        – display numbering configuration (normalized on load).
//	ClaimVersion     – stamp bumped by every successful claim; conditional
//	                   writes against it make check-free-then-claim atomic.
//	Status           – lifecycle state (draft, active, completed, archived).
//	CreatedAt        – creation timestamp.
type Raffle struct {
	ID               uint64           // raffles.id
	Name             string           // raffles.name
	TotalTickets     int              // raffles.total_tickets
	TicketPriceCents uint32           // raffles.ticket_price_cents
	Numbering        ticket.Numbering // raffles numbering columns
	ClaimVersion     uint64           // raffles.claim_version
	Status           string           // raffles.status
	CreatedAt        time.Time        // raffles.created_at
}

// TicketCounts aggregates per-raffle availability for the detail page.
// Reserved counts only unexpired holds; Available is derived, never stored.
type TicketCounts struct {
	Total     int `json:"total"`
	Sold      int `json:"sold"`
	Reserved  int `json:"reserved"`
	Available int `json:"available"`
}
