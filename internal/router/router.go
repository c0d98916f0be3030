// Package router defines how HTTP routes are registered for the engine.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/raffle-reservation/internal/handler"
	"github.com/iliyamo/raffle-reservation/internal/middleware"
)

// Deps bundles everything route registration needs. Limiter guards only
// the reservation endpoint – read paths absorb bursts through the count
// cache instead – and the organizer transitions require an ORGANIZER role
// in a bearer token issued by the platform's auth service.
type Deps struct {
	Reservations *handler.ReservationHandler
	Raffles      *handler.RaffleHandler
	Organizer    *handler.OrganizerHandler
	Limiter      echo.MiddlewareFunc
	JWTSecret    string
}

// Register wires all routes onto the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")

	// The write path: rate-limited reservation claims.
	v1.POST("/reservations", d.Reservations.Reserve, d.Limiter)

	// Buyer-facing reads.
	v1.GET("/reservations/:ref", d.Reservations.Lookup)
	v1.GET("/raffles/:id/counts", d.Raffles.GetCounts)
	v1.GET("/raffles/:id/availability", d.Raffles.CheckAvailability)
	v1.GET("/raffles/:id/suggest", d.Raffles.Suggest)

	// Organizer transitions, guarded by JWT + role.
	guard := []echo.MiddlewareFunc{
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole("ORGANIZER"),
	}
	v1.POST("/reservations/:ref/confirm", d.Organizer.Confirm, guard...)
	v1.POST("/reservations/:ref/cancel", d.Organizer.Cancel, guard...)
}
