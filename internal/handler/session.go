// Package handler exposes the attendee-facing HTTP API: the session catalog,
// the reservation queue and read access to seat ledgers and reservations.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-seat-reservation/internal/catalog"
	"github.com/iliyamo/session-seat-reservation/internal/model"
	"github.com/iliyamo/session-seat-reservation/internal/repository"
	"github.com/iliyamo/session-seat-reservation/internal/reservation"
	"github.com/iliyamo/session-seat-reservation/internal/store"
)

// SessionCatalog reads the session catalog.
type SessionCatalog interface {
	List(ctx context.Context) ([]model.Session, error)
	Search(ctx context.Context, q repository.SessionSearchQuery) ([]model.Session, int64, error)
}

// SessionHandler serves the catalog and per-session ledgers.
type SessionHandler struct {
	Sessions SessionCatalog
	Store    store.Store
}

// PublicSession is the catalog entry returned to clients.
type PublicSession struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Capacity int       `json:"capacity"`
}

// List handles GET /v1/sessions.  Query parameters: title (substring),
// time ("upcoming" by default, "active" or "any"), page and page_size
// (default 20, at most 100).
func (h *SessionHandler) List(c echo.Context) error {
	q := repository.SessionSearchQuery{
		Title:      strings.TrimSpace(c.QueryParam("title")),
		TimeFilter: strings.ToLower(strings.TrimSpace(c.QueryParam("time"))),
	}
	if q.TimeFilter == "" {
		q.TimeFilter = "upcoming"
	}
	q.Page, _ = strconv.Atoi(c.QueryParam("page"))
	q.Page = max(q.Page, 1)
	q.PageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	q.PageSize = min(q.PageSize, 100)

	sessions, total, err := h.Sessions.Search(c.Request().Context(), q)
	if err != nil {
		c.Logger().Errorf("search sessions: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicSession, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, PublicSession{ID: s.ID, Title: s.Title, Start: s.Start, End: s.End, Capacity: s.Capacity})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":      out,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

// Seats handles GET /v1/sessions/:id/seats.
func (h *SessionHandler) Seats(c echo.Context) error {
	sid, ok := pathSegment(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	seats, err := reservation.NewLedger(h.Store).Seats(c.Request().Context(), sid)
	if errors.Is(err, reservation.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	}
	if err != nil {
		return storeError(c, err, "session not found")
	}
	return c.JSON(http.StatusOK, seats)
}

// Sync handles POST /v1/admin/catalog/sync: it copies the catalog into the
// reservation store, creating seat ledgers for new sessions.
func (h *SessionHandler) Sync(c echo.Context) error {
	ctx := c.Request().Context()
	sessions, err := h.Sessions.List(ctx)
	if err != nil {
		c.Logger().Errorf("list sessions: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := catalog.Seed(ctx, h.Store, sessions); err != nil {
		c.Logger().Errorf("seed store: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"synced": len(sessions)})
}

// pathSegment accepts ids that address exactly one store node.
func pathSegment(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && !strings.ContainsAny(s, "/.#$[]")
}

func storeError(c echo.Context, err error, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": notFound})
	}
	c.Logger().Errorf("store: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store error"})
}
