package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/raffle-reservation/internal/allocator"
	"github.com/iliyamo/raffle-reservation/internal/cache"
	"github.com/iliyamo/raffle-reservation/internal/repository"
)

// RaffleHandler serves the read side of the engine: cached ticket counts,
// availability checks for specific tickets, and free-ticket suggestions.
type RaffleHandler struct {
	Allocator *allocator.Allocator
	Raffles   *repository.RaffleRepo
	Counts    *cache.CountCache
}

// NewRaffleHandler constructs a RaffleHandler; Counts may be nil when
// caching is disabled.
func NewRaffleHandler(alloc *allocator.Allocator, raffles *repository.RaffleRepo, counts *cache.CountCache) *RaffleHandler {
	if alloc == nil || raffles == nil {
		panic("nil dependency passed to NewRaffleHandler")
	}
	return &RaffleHandler{Allocator: alloc, Raffles: raffles, Counts: counts}
}

// GetCounts handles GET /v1/raffles/:id/counts. Cache hits are served
// directly; misses recompute from the source of truth and repopulate the
// entry for the next burst of readers.
func (h *RaffleHandler) GetCounts(c echo.Context) error {
	raffleID, err := parseRaffleID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid raffle id"})
	}
	ctx := c.Request().Context()
	if h.Counts != nil {
		if counts, ok := h.Counts.Get(ctx, raffleID); ok {
			return c.JSON(http.StatusOK, counts)
		}
	}
	counts, err := h.Raffles.Counts(ctx, raffleID)
	if err != nil {
		if errors.Is(err, repository.ErrRaffleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "raffle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "database error"})
	}
	if h.Counts != nil {
		h.Counts.Set(ctx, raffleID, counts)
	}
	return c.JSON(http.StatusOK, counts)
}

// CheckAvailability handles GET /v1/raffles/:id/availability. Tickets can
// be identified by zero-based indices (?indices=3,7,12) or by display
// numbers (?numbers=0150,0210) which are parsed through the raffle's
// numbering configuration. The response splits the request into available
// and unavailable indices; it is a point-in-time read, not a hold.
func (h *RaffleHandler) CheckAvailability(c echo.Context) error {
	raffleID, err := parseRaffleID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid raffle id"})
	}
	ctx := c.Request().Context()
	raffle, err := h.Raffles.GetByID(ctx, raffleID)
	if err != nil {
		if errors.Is(err, repository.ErrRaffleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "raffle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "database error"})
	}

	var indices []int
	switch {
	case c.QueryParam("indices") != "":
		for _, part := range strings.Split(c.QueryParam("indices"), ",") {
			idx, convErr := strconv.Atoi(strings.TrimSpace(part))
			if convErr != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid ticket index: " + part})
			}
			indices = append(indices, idx)
		}
	case c.QueryParam("numbers") != "":
		for _, part := range strings.Split(c.QueryParam("numbers"), ",") {
			part = strings.TrimSpace(part)
			idx, ok := raffle.Numbering.ParseIndex(part)
			if !ok {
				return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "unrecognized ticket number: " + part})
			}
			indices = append(indices, idx)
		}
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "indices or numbers query parameter is required"})
	}
	for _, idx := range indices {
		if idx < 0 || idx >= raffle.TotalTickets {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "ticket index out of range"})
		}
	}

	unavailable, err := h.Allocator.Unavailable(ctx, raffleID, indices)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "database error"})
	}
	taken := make(map[int]struct{}, len(unavailable))
	for _, idx := range unavailable {
		taken[idx] = struct{}{}
	}
	available := make([]int, 0, len(indices))
	for _, idx := range indices {
		if _, ok := taken[idx]; !ok {
			available = append(available, idx)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"available":   available,
		"unavailable": unavailable,
	})
}

// Suggest handles GET /v1/raffles/:id/suggest, the "lucky dip": it returns
// up to ?count free ticket indices with their display numbers. Suggestions
// are not held; a subsequent reservation may still find them contested.
func (h *RaffleHandler) Suggest(c echo.Context) error {
	raffleID, err := parseRaffleID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid raffle id"})
	}
	count := 1
	if raw := c.QueryParam("count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid count"})
		}
	}
	ctx := c.Request().Context()
	raffle, err := h.Raffles.GetByID(ctx, raffleID)
	if err != nil {
		if errors.Is(err, repository.ErrRaffleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "raffle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "database error"})
	}

	indices, err := h.Allocator.SuggestAvailable(ctx, raffleID, count)
	if err != nil {
		var validation *allocator.ValidationError
		if errors.As(err, &validation) {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": validation.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "database error"})
	}
	numbers := make([]string, len(indices))
	for i, idx := range indices {
		numbers[i] = raffle.Numbering.Format(idx)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"ticket_indices": indices,
		"ticket_numbers": numbers,
	})
}

// parseRaffleID extracts the :id path parameter.
func parseRaffleID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidRaffleID
	}
	return id, nil
}

var errInvalidRaffleID = errors.New("invalid raffle id")
