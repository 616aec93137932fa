package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-seat-reservation/internal/middleware"
	"github.com/iliyamo/session-seat-reservation/internal/model"
	"github.com/iliyamo/session-seat-reservation/internal/reservation"
	"github.com/iliyamo/session-seat-reservation/internal/store"
)

// QueueHandler lets an authenticated attendee submit reservation requests and
// follow their outcome.  It never touches the ledger itself; the processor
// picks up the queue entry through its trigger.
type QueueHandler struct {
	Store store.Store
}

type submitBody struct {
	Session   string `json:"session"`
	Action    string `json:"action"`
	RequestID string `json:"request_id"`
}

// Submit handles POST /v1/queue.  Each attendee holds at most one pending
// request; a second submission before it is processed gets 409.
func (h *QueueHandler) Submit(c echo.Context) error {
	uid, ok := attendee(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body submitBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	sid, valid := pathSegment(body.Session)
	if !valid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	action, err := model.ParseAction(body.Action)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action must be reserve or return"})
	}
	rid := body.RequestID
	if rid == "" {
		rid = uuid.NewString()
	}

	ctx := c.Request().Context()
	req := model.Request{SessionID: sid, Action: action, RequestID: rid}
	created, err := h.Store.Create(ctx, reservation.QueuePath(uid), req, 0)
	if err != nil && created {
		// The entry is stored but its trigger was not delivered, so nothing
		// would ever free the slot.
		if delErr := h.Store.Delete(ctx, reservation.QueuePath(uid)); delErr != nil {
			c.Logger().Errorf("drop undelivered request of %s: %v", uid, delErr)
		}
		c.Logger().Errorf("queue request of %s: %v", uid, err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request could not be queued, try again"})
	}
	if err != nil {
		return storeError(c, err, "")
	}
	if !created {
		return c.JSON(http.StatusConflict, echo.Map{"error": "a request is already pending"})
	}
	return c.JSON(http.StatusAccepted, req)
}

// Pending handles GET /v1/queue.
func (h *QueueHandler) Pending(c echo.Context) error {
	uid, ok := attendee(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req model.Request
	if err := h.Store.Get(c.Request().Context(), reservation.QueuePath(uid), &req); err != nil {
		return storeError(c, err, "no pending request")
	}
	return c.JSON(http.StatusOK, req)
}

// Reservation handles GET /v1/sessions/:id/reservation: the caller's status
// on that session and the result of each request.
func (h *QueueHandler) Reservation(c echo.Context) error {
	uid, ok := attendee(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sid, valid := pathSegment(c.Param("id"))
	if !valid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var r model.Reservation
	if err := h.Store.Get(c.Request().Context(), reservation.ReservationPath(sid, uid), &r); err != nil {
		return storeError(c, err, "no reservation")
	}
	return c.JSON(http.StatusOK, r)
}

// attendee returns the authenticated uid when it addresses a single queue node.
func attendee(c echo.Context) (string, bool) {
	uid := middleware.UserID(c)
	if uid == "" {
		return "", false
	}
	return pathSegment(uid)
}
