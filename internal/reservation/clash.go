package reservation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/session-seat-reservation/internal/model"
	"github.com/iliyamo/session-seat-reservation/internal/store"
)

// ClashChecker tells whether a user already holds, or waits for, a session
// overlapping a candidate.  Its reads are not part of the seat transaction
// that follows, so two concurrent reserves for overlapping sessions can both
// pass; the single queue slot per user keeps that window narrow.
type ClashChecker struct {
	store store.Store
}

// NewClashChecker returns a checker reading from st.
func NewClashChecker(st store.Store) *ClashChecker { return &ClashChecker{store: st} }

// HasClash reports whether any GRANTED or WAITING reservation of uid overlaps
// candidate.  The candidate session itself is ignored.
func (c *ClashChecker) HasClash(ctx context.Context, uid string, candidate model.Session) (bool, error) {
	for _, status := range []model.Status{model.StatusGranted, model.StatusWaiting} {
		sessions, err := c.SessionsWithStatus(ctx, uid, status)
		if err != nil {
			return false, err
		}
		for _, s := range sessions {
			if s.ID == candidate.ID {
				continue
			}
			if candidate.Overlaps(s) {
				return true, nil
			}
		}
	}
	return false, nil
}

// SessionsWithStatus returns every session where uid's reservation has the
// given status.
func (c *ClashChecker) SessionsWithStatus(ctx context.Context, uid string, status model.Status) ([]model.Session, error) {
	sids, err := c.store.Children(ctx, pathSessions)
	if err != nil {
		return nil, err
	}
	if len(sids) == 0 {
		return nil, nil
	}
	paths := make([]string, len(sids))
	for i, sid := range sids {
		paths[i] = ReservationPath(sid, uid)
	}
	raws, err := c.store.GetMany(ctx, paths)
	if err != nil {
		return nil, err
	}
	var matched []string
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		var r model.Reservation
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", paths[i], err)
		}
		if r.Status == status {
			matched = append(matched, sids[i])
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}
	sessionPaths := make([]string, len(matched))
	for i, sid := range matched {
		sessionPaths[i] = SessionPath(sid)
	}
	raws, err = c.store.GetMany(ctx, sessionPaths)
	if err != nil {
		return nil, err
	}
	sessions := make([]model.Session, 0, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		var s model.Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", sessionPaths[i], err)
		}
		if s.ID == "" {
			s.ID = matched[i]
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
