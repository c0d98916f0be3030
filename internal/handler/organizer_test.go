package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/raffle-reservation/internal/model"
	"github.com/iliyamo/raffle-reservation/internal/queue"
	"github.com/iliyamo/raffle-reservation/internal/repository"
)

// stubTransitions mimics the repository's transition contract: ConfirmSale
// fails with ErrStatusConflict for anything but a live hold, UpdateStatus
// for anything not in the from-status.
type stubTransitions struct {
	confirmErr error
	cancelErr  error
	confirmed  []string
	cancelled  []string
	froms      []string
}

func (s *stubTransitions) reservation(ref, status string) *model.Reservation {
	return &model.Reservation{
		ID:            7,
		RaffleID:      3,
		ReferenceCode: ref,
		BuyerName:     "Ada Buyer",
		BuyerEmail:    "ada@example.com",
		TicketCount:   2,
		Status:        status,
	}
}

func (s *stubTransitions) ConfirmSale(_ context.Context, ref string) (*model.Reservation, error) {
	s.confirmed = append(s.confirmed, ref)
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return s.reservation(ref, model.StatusSold), nil
}

func (s *stubTransitions) UpdateStatus(_ context.Context, ref, from, to string) (*model.Reservation, error) {
	s.cancelled = append(s.cancelled, ref)
	s.froms = append(s.froms, from)
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return s.reservation(ref, to), nil
}

func postTransition(h *OrganizerHandler, action func(echo.Context) error, ref string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("ref")
	c.SetParamValues(ref)
	if err := action(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestConfirmTransitionsToSold(test *testing.T) {
	test.Parallel()
	stub := &stubTransitions{}
	var events []queue.ReservationEvent
	h := newOrganizerHandler(stub, nil, func(_ context.Context, ev queue.ReservationEvent) error {
		events = append(events, ev)
		return nil
	})

	rec := postTransition(h, h.Confirm, "R-AAAAA-BBBBB")
	if rec.Code != http.StatusOK {
		test.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(stub.confirmed) != 1 || stub.confirmed[0] != "R-AAAAA-BBBBB" {
		test.Fatalf("expected one confirm call, got %v", stub.confirmed)
	}
	if len(events) != 1 || events[0].Event != queue.EventReservationConfirmed {
		test.Fatalf("expected one confirmed event, got %v", events)
	}
}

func TestConfirmRejectsExpiredHold(test *testing.T) {
	test.Parallel()
	// An expired hold no longer claims its indices, so a newer reservation
	// may legitimately cover them; the confirm must fail rather than turn
	// the stale hold into a second sale of the same tickets.
	stub := &stubTransitions{confirmErr: repository.ErrStatusConflict}
	var events []queue.ReservationEvent
	h := newOrganizerHandler(stub, nil, func(_ context.Context, ev queue.ReservationEvent) error {
		events = append(events, ev)
		return nil
	})

	rec := postTransition(h, h.Confirm, "R-AAAAA-BBBBB")
	if rec.Code != http.StatusConflict {
		test.Fatalf("expected 409 for an expired hold, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(events) != 0 {
		test.Fatalf("a rejected confirm must not publish events, got %v", events)
	}
}

func TestConfirmUnknownReservation(test *testing.T) {
	test.Parallel()
	stub := &stubTransitions{confirmErr: repository.ErrReservationNotFound}
	h := newOrganizerHandler(stub, nil, nil)

	rec := postTransition(h, h.Confirm, "R-AAAAA-BBBBB")
	if rec.Code != http.StatusNotFound {
		test.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCancelReleasesHold(test *testing.T) {
	test.Parallel()
	stub := &stubTransitions{}
	var events []queue.ReservationEvent
	h := newOrganizerHandler(stub, nil, func(_ context.Context, ev queue.ReservationEvent) error {
		events = append(events, ev)
		return nil
	})

	rec := postTransition(h, h.Cancel, "R-AAAAA-BBBBB")
	if rec.Code != http.StatusOK {
		test.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(stub.froms) != 1 || stub.froms[0] != model.StatusReserved {
		test.Fatalf("cancel must transition from reserved, got %v", stub.froms)
	}
	if len(events) != 1 || events[0].Event != queue.EventReservationReleased {
		test.Fatalf("expected one released event, got %v", events)
	}
}

func TestCancelSweptReservationConflicts(test *testing.T) {
	test.Parallel()
	stub := &stubTransitions{cancelErr: repository.ErrStatusConflict}
	h := newOrganizerHandler(stub, nil, nil)

	rec := postTransition(h, h.Cancel, "R-AAAAA-BBBBB")
	if rec.Code != http.StatusConflict {
		test.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}
