// Package reservation implements the session seat reservation core: the
// dedup guard, seat ledger, clash checker, request processor and waitlist
// promotion engine.  Every handler is stateless; all coordination happens
// through store transactions.
package reservation

import "github.com/iliyamo/session-seat-reservation/internal/store"

// Store layout.
const (
	pathSessions     = "sessions"
	pathSeats        = "seats"
	pathReservations = "reservations"
	pathQueue        = "queue"
	pathPromoQueue   = "promo_queue"
	pathEvents       = "events"
)

// Trigger patterns handled by Processor and Promoter.
const (
	QueuePattern     = "/queue/{uid}"
	PromotionPattern = "/promo_queue/{sid}/{rid}"
)

func SessionPath(sid string) string      { return store.Join(pathSessions, sid) }
func SeatsPath(sid string) string        { return store.Join(pathSessions, sid, pathSeats) }
func ReservationsPath(sid string) string { return store.Join(pathSessions, sid, pathReservations) }
func ReservationPath(sid, uid string) string {
	return store.Join(pathSessions, sid, pathReservations, uid)
}
func QueuePath(uid string) string      { return store.Join(pathQueue, uid) }
func PromoPath(sid, rid string) string { return store.Join(pathPromoQueue, sid, rid) }
func EventPath(id string) string       { return store.Join(pathEvents, id) }
