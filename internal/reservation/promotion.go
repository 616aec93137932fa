package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/session-seat-reservation/internal/model"
	"github.com/iliyamo/session-seat-reservation/internal/store"
	"github.com/iliyamo/session-seat-reservation/internal/trigger"
)

// PromotionResult describes what one promotion scan did.
type PromotionResult struct {
	// UserID is the longest waiting user, empty when nobody was waiting.
	UserID string
	// Promoted is true when that user was moved to GRANTED.
	Promoted bool
}

func (r PromotionResult) String() string {
	switch {
	case r.UserID == "":
		return "waitlist empty"
	case r.Promoted:
		return "promoted " + r.UserID
	}
	return "not promoted " + r.UserID
}

// Promoter handles writes to promo_queue/{sid}/{rid}: it grants a freed seat
// to the user who has been waiting longest.
type Promoter struct {
	core
}

// NewPromoter wires a promoter over st.
func NewPromoter(st store.Store, dedup *DedupGuard, n Notifier, opts ...Option) *Promoter {
	return &Promoter{core: newCore(st, dedup, n, "promotion", opts)}
}

// HandlePromotion is the trigger handler for PromotionPattern.  The trigger
// entry is removed whatever the scan decided.
func (p *Promoter) HandlePromotion(ctx context.Context, ev trigger.Event) error {
	if ev.Empty() {
		return nil
	}
	sid, rid := ev.Params["sid"], ev.Params["rid"]
	if sid == "" || rid == "" {
		return nil
	}
	isNew, err := p.dedup.MarkSeen(ctx, ev.ID)
	if err != nil {
		return err
	}
	if !isNew {
		p.log.Infof("duplicate event found: %s", ev.ID)
		return nil
	}

	res, err := p.Promote(ctx, sid)
	if err != nil {
		p.log.Errorf("promotion on session %s failed: %v", sid, err)
	} else {
		p.log.Infof("attendee was promoted from waitlist of session %s ended with result: %s", sid, res)
	}

	if err := p.remove(ctx, PromoPath(sid, rid)); err != nil {
		return fmt.Errorf("clear promotion trigger %s/%s: %w", sid, rid, err)
	}
	return nil
}

// Promote runs one scan over the whole session in a single transaction.
// The user with the smallest LastStatusChanged among WAITING reservations
// gets the seat if one is free; ties go to the lowest user id.  When nobody
// is left waiting afterwards the waitlisted flag is cleared.
func (p *Promoter) Promote(ctx context.Context, sid string) (PromotionResult, error) {
	var first string
	var prev model.Status
	err := p.store.Update(ctx, func(tx store.Tx) error {
		first, prev = "", model.StatusNone

		var seats model.Seats
		if err := tx.Get(SeatsPath(sid), &seats); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		uids, err := tx.Children(ReservationsPath(sid))
		if err != nil {
			return err
		}

		var chosen model.Reservation
		waiting := 0
		for _, uid := range uids {
			var r model.Reservation
			if err := tx.Get(ReservationPath(sid, uid), &r); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return err
			}
			if r.Status != model.StatusWaiting {
				continue
			}
			waiting++
			if first == "" || r.LastStatusChanged < chosen.LastStatusChanged {
				first, chosen = uid, r
			}
		}

		if first == "" {
			seats.Waitlisted = false
			return tx.Set(SeatsPath(sid), seats)
		}
		prev = chosen.Status
		if !seats.Available() {
			return nil
		}

		if err := chosen.Transition(model.StatusGranted, p.now()); err != nil {
			return err
		}
		seats.Reserved++
		seats.Refresh()
		if waiting == 1 {
			seats.Waitlisted = false
		}
		if err := tx.Set(ReservationPath(sid, first), chosen); err != nil {
			return err
		}
		return tx.Set(SeatsPath(sid), seats)
	})
	if err != nil {
		return PromotionResult{}, err
	}
	if first == "" {
		p.log.Infof("waitlist was empty for session %s so no promotions needed", sid)
		return PromotionResult{}, nil
	}

	var after model.Reservation
	if err := p.store.Get(ctx, ReservationPath(sid, first), &after); err != nil {
		return PromotionResult{UserID: first}, err
	}
	if prev != model.StatusWaiting || after.Status != model.StatusGranted {
		p.log.Infof("%s was first in waitlist but not promoted", first)
		return PromotionResult{UserID: first}, nil
	}
	p.notify(ctx, model.SyncAddReserved, first, sid)
	return PromotionResult{UserID: first, Promoted: true}, nil
}
