package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/raffle-reservation/internal/allocator"
	"github.com/iliyamo/raffle-reservation/internal/cache"
	"github.com/iliyamo/raffle-reservation/internal/queue"
	"github.com/iliyamo/raffle-reservation/internal/repository"
)

// ReservationHandler is the request boundary of the reservation engine: it
// validates input, invokes the allocator, invalidates the count cache on
// success and shapes the response. The rate limiter runs as route
// middleware before any of this. Claim decisions live entirely in the
// allocator; the handler never touches claim state itself.
type ReservationHandler struct {
	Allocator    *allocator.Allocator
	Raffles      *repository.RaffleRepo
	Reservations *repository.ReservationRepo
	Counts       *cache.CountCache
	Publish      queue.PublishFunc // nil disables event publishing
}

// NewReservationHandler constructs a ReservationHandler. Allocator and the
// repositories must be non-nil; Counts and Publish are optional.
func NewReservationHandler(alloc *allocator.Allocator, raffles *repository.RaffleRepo, reservations *repository.ReservationRepo, counts *cache.CountCache, publish queue.PublishFunc) *ReservationHandler {
	if alloc == nil || raffles == nil || reservations == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{
		Allocator:    alloc,
		Raffles:      raffles,
		Reservations: reservations,
		Counts:       counts,
		Publish:      publish,
	}
}

// reserveRequest mirrors the reservation API request body. The idempotency
// key may also arrive via the Idempotency-Key header; the header wins.
type reserveRequest struct {
	RaffleID           uint64  `json:"raffle_id"`
	TicketIndices      []int   `json:"ticket_indices"`
	BuyerName          string  `json:"buyer_name"`
	BuyerEmail         string  `json:"buyer_email"`
	BuyerPhone         *string `json:"buyer_phone"`
	BuyerCity          *string `json:"buyer_city"`
	ReservationMinutes int     `json:"reservation_minutes"`
	OrderTotalCents    uint32  `json:"order_total"`
	IsLuckyNumbers     bool    `json:"is_lucky_numbers"`
	IdempotencyKey     string  `json:"idempotency_key"`
}

// Reserve handles POST /v1/reservations. On success it responds 200 with
// the reservation receipt; conflicts yield 409 with the exact contested
// indices, validation failures 400, and storage failures that survived the
// engine's retries 500. Every failure path means no indices were claimed.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	var body reserveRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if body.RaffleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "raffle_id is required"})
	}
	idemKey := body.IdempotencyKey
	if hdr := c.Request().Header.Get("Idempotency-Key"); hdr != "" {
		idemKey = hdr
	}

	receipt, err := h.Allocator.Reserve(c.Request().Context(), allocator.ReserveRequest{
		RaffleID:        body.RaffleID,
		Indices:         body.TicketIndices,
		BuyerName:       body.BuyerName,
		BuyerEmail:      body.BuyerEmail,
		BuyerPhone:      body.BuyerPhone,
		BuyerCity:       body.BuyerCity,
		Minutes:         body.ReservationMinutes,
		OrderTotalCents: body.OrderTotalCents,
		IsLuckyNumbers:  body.IsLuckyNumbers,
		IdempotencyKey:  idemKey,
	})
	if err != nil {
		return h.writeReserveError(c, err)
	}

	// A replayed receipt changed nothing, so the cache entry still holds.
	if !receipt.Replayed {
		if h.Counts != nil {
			h.Counts.Invalidate(c.Request().Context(), body.RaffleID)
		}
		if h.Publish != nil {
			_ = h.Publish(c.Request().Context(), queue.ReservationEvent{
				Event:         queue.EventReservationCreated,
				ReservationID: receipt.OrderID,
				ReferenceCode: receipt.ReferenceCode,
				RaffleID:      body.RaffleID,
				TicketCount:   receipt.TicketCount,
				BuyerEmail:    body.BuyerEmail,
				OccurredAt:    time.Now().UTC().Format(time.RFC3339),
			})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":          true,
		"order_id":         receipt.OrderID,
		"reference_code":   receipt.ReferenceCode,
		"reserved_until":   receipt.ReservedUntil.UTC().Format(time.RFC3339),
		"ticket_count":     receipt.TicketCount,
		"reserved_indices": receipt.ReservedIndices,
	})
}

// Lookup handles GET /v1/reservations/:ref, the buyer-facing status page.
// Ticket numbers are rendered through the raffle's numbering configuration
// alongside the raw indices.
func (h *ReservationHandler) Lookup(c echo.Context) error {
	ref := c.Param("ref")
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "reference code is required"})
	}
	ctx := c.Request().Context()
	res, err := h.Reservations.GetByReference(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "database error"})
	}
	raffle, err := h.Raffles.GetByID(ctx, res.RaffleID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "database error"})
	}
	indices := res.Indices()
	numbers := make([]string, len(indices))
	for i, idx := range indices {
		numbers[i] = raffle.Numbering.Format(idx)
	}
	resp := echo.Map{
		"success":        true,
		"reference_code": res.ReferenceCode,
		"raffle_id":      res.RaffleID,
		"status":         res.Status,
		"buyer_name":     res.BuyerName,
		"ticket_count":   res.TicketCount,
		"ticket_indices": indices,
		"ticket_numbers": numbers,
		"order_total":    res.OrderTotalCents,
		"created_at":     res.CreatedAt.UTC().Format(time.RFC3339),
	}
	if res.ReservedUntil != nil {
		resp["reserved_until"] = res.ReservedUntil.UTC().Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, resp)
}

// writeReserveError maps allocator failures onto the API's response shapes.
func (h *ReservationHandler) writeReserveError(c echo.Context, err error) error {
	var validation *allocator.ValidationError
	if errors.As(err, &validation) {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": validation.Error()})
	}
	var capacity *allocator.CapacityError
	if errors.As(err, &capacity) {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": capacity.Error()})
	}
	var conflict *allocator.ConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, echo.Map{
			"success":          false,
			"error":            "some tickets are unavailable",
			"conflict_indices": conflict.Indices,
		})
	}
	if errors.Is(err, repository.ErrRaffleNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "raffle not found"})
	}
	var transient *allocator.TransientError
	if errors.As(err, &transient) {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   "reservation could not be completed",
			"details": transient.Err.Error(),
		})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "internal error"})
}
