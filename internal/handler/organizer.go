package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/raffle-reservation/internal/cache"
	"github.com/iliyamo/raffle-reservation/internal/model"
	"github.com/iliyamo/raffle-reservation/internal/queue"
	"github.com/iliyamo/raffle-reservation/internal/repository"
)

// reservationTransitions is the slice of the reservation repository the
// organizer endpoints drive. Tests substitute a stub.
type reservationTransitions interface {
	ConfirmSale(ctx context.Context, referenceCode string) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, referenceCode, from, to string) (*model.Reservation, error)
}

// OrganizerHandler exposes the organizer-side transitions: confirming a
// reservation as sold once payment proof is approved, and cancelling a
// hold. Both routes sit behind JWT + role middleware. The status machine is
// enforced in storage: sold is only reachable from an unexpired hold, so a
// reservation the sweeper already released, or whose deadline has passed,
// can no longer be confirmed over a newer claim on the same indices.
type OrganizerHandler struct {
	reservations reservationTransitions
	Counts       *cache.CountCache
	Publish      queue.PublishFunc // nil disables event publishing
}

// NewOrganizerHandler constructs an OrganizerHandler.
func NewOrganizerHandler(reservations *repository.ReservationRepo, counts *cache.CountCache, publish queue.PublishFunc) *OrganizerHandler {
	if reservations == nil {
		panic("nil repository passed to NewOrganizerHandler")
	}
	return newOrganizerHandler(reservations, counts, publish)
}

// newOrganizerHandler is the test seam; production code goes through
// NewOrganizerHandler.
func newOrganizerHandler(reservations reservationTransitions, counts *cache.CountCache, publish queue.PublishFunc) *OrganizerHandler {
	return &OrganizerHandler{reservations: reservations, Counts: counts, Publish: publish}
}

// Confirm handles POST /v1/reservations/:ref/confirm, transitioning the
// reservation from reserved to sold. Expired holds are rejected even when
// the sweeper has not cancelled them yet: their indices may already belong
// to a newer reservation.
func (h *OrganizerHandler) Confirm(c echo.Context) error {
	return h.transition(c, queue.EventReservationConfirmed, h.reservations.ConfirmSale)
}

// Cancel handles POST /v1/reservations/:ref/cancel, releasing the
// reservation's tickets back to the pool. Cancelling only frees indices,
// so an expired-but-unswept hold may still be cancelled.
func (h *OrganizerHandler) Cancel(c echo.Context) error {
	return h.transition(c, queue.EventReservationReleased, func(ctx context.Context, ref string) (*model.Reservation, error) {
		return h.reservations.UpdateStatus(ctx, ref, model.StatusReserved, model.StatusCancelled)
	})
}

func (h *OrganizerHandler) transition(c echo.Context, event string, apply func(context.Context, string) (*model.Reservation, error)) error {
	ref := c.Param("ref")
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "reference code is required"})
	}
	ctx := c.Request().Context()
	res, err := apply(ctx, ref)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "reservation not found"})
		case errors.Is(err, repository.ErrStatusConflict):
			return c.JSON(http.StatusConflict, echo.Map{"success": false, "error": "reservation is not an active hold"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "database error"})
	}

	if h.Counts != nil {
		h.Counts.Invalidate(ctx, res.RaffleID)
	}
	if h.Publish != nil {
		_ = h.Publish(ctx, queue.ReservationEvent{
			Event:         event,
			ReservationID: res.ID,
			ReferenceCode: res.ReferenceCode,
			RaffleID:      res.RaffleID,
			TicketCount:   res.TicketCount,
			BuyerEmail:    res.BuyerEmail,
			OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"reference_code": res.ReferenceCode,
		"status":         res.Status,
	})
}
