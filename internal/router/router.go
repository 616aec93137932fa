// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-seat-reservation/internal/handler"
	"github.com/iliyamo/session-seat-reservation/internal/middleware"
)

// Deps bundles what the routes need.
type Deps struct {
	JWTSecret string
	Health    echo.HandlerFunc
	Sessions  *handler.SessionHandler
	Queue     *handler.QueueHandler
	RateLimit echo.MiddlewareFunc // applied to authenticated routes
	Cache     echo.MiddlewareFunc // applied to the catalog listing
}

// RegisterRoutes registers the public endpoints: health and catalog.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health)

	g := e.Group("/v1")
	g.GET("/sessions", d.Sessions.List, d.Cache)
	g.GET("/sessions/:id/seats", d.Sessions.Seats)
}

// RegisterAttendee registers the queue endpoints.  All require a valid
// access token and pass through the rate limiter.
func RegisterAttendee(e *echo.Echo, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), d.RateLimit)
	g.POST("/queue", d.Queue.Submit)
	g.GET("/queue", d.Queue.Pending)
	g.GET("/sessions/:id/reservation", d.Queue.Reservation)
}

// RegisterAdmin registers catalog maintenance endpoints for the ADMIN role.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/v1/admin", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(middleware.RoleAdmin))
	g.POST("/catalog/sync", d.Sessions.Sync)
}
