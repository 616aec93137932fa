package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/session-seat-reservation/internal/logging"
	"github.com/iliyamo/session-seat-reservation/internal/model"
	"github.com/iliyamo/session-seat-reservation/internal/store"
	"github.com/iliyamo/session-seat-reservation/internal/trigger"
)

// DefaultCutoff is how long before a session starts reservations close.
const DefaultCutoff = 30 * time.Minute

// Outcome summarises how a request ended.  It is logged; clients see the
// ResultCode instead.
type Outcome string

const (
	OutcomeReserved       Outcome = "reserved"
	OutcomeDeniedNoSpace  Outcome = "denied no space"
	OutcomeClosed         Outcome = "reservations closed"
	OutcomeReturned       Outcome = "returned"
	OutcomeReturnFailed   Outcome = "unable to complete return"
	OutcomeFailed         Outcome = "unable to complete reservation"
	OutcomeDeniedClashing Outcome = "denied other session clashes"
	OutcomeSkipped        Outcome = "skipped"
)

// Option configures a Processor or Promoter.
type Option func(*core)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(c *core) { c.now = now } }

// WithLogger replaces the component logger.
func WithLogger(l *log.Logger) Option { return func(c *core) { c.log = l } }

// core holds what both trigger handlers share.
type core struct {
	store    store.Store
	dedup    *DedupGuard
	notifier Notifier
	now      func() time.Time
	log      *log.Logger
}

func newCore(st store.Store, dedup *DedupGuard, n Notifier, name string, opts []Option) core {
	if n == nil {
		n = Discard
	}
	c := core{store: st, dedup: dedup, notifier: n, now: time.Now, log: logging.New(name)}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func (c *core) notify(ctx context.Context, op model.SyncOperation, uid, sid string) {
	c.notifier.Notify(ctx, model.Notification{
		Operation: op,
		UserID:    uid,
		SessionID: sid,
		Timestamp: c.now().UnixMilli(),
	})
}

// removeAttempts bounds the retries of a trigger node delete.  A redelivery
// would be dropped by the dedup guard, so the delete has to succeed here.
const removeAttempts = 4

// removeBackoff is the pause before the first retry; it doubles after each.
var removeBackoff = 50 * time.Millisecond

// remove deletes the trigger node at path, retrying transient failures.
func (c *core) remove(ctx context.Context, path string) error {
	wait := removeBackoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = c.store.Delete(ctx, path); err == nil {
			return nil
		}
		if attempt == removeAttempts {
			return err
		}
		c.log.Warnf("delete %s failed (attempt %d): %v", path, attempt, err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
}

// Processor handles writes to queue/{uid}: it runs the reserve/return state
// machine for the request and then frees the user's queue slot.
type Processor struct {
	core
	clash  *ClashChecker
	cutoff time.Duration
}

// NewProcessor wires a processor over st.  A cutoff <= 0 selects DefaultCutoff.
func NewProcessor(st store.Store, dedup *DedupGuard, n Notifier, cutoff time.Duration, opts ...Option) *Processor {
	if cutoff <= 0 {
		cutoff = DefaultCutoff
	}
	return &Processor{
		core:   newCore(st, dedup, n, "processor", opts),
		clash:  NewClashChecker(st),
		cutoff: cutoff,
	}
}

// HandleRequest is the trigger handler for QueuePattern.
func (p *Processor) HandleRequest(ctx context.Context, ev trigger.Event) error {
	if ev.Empty() {
		return nil
	}
	uid := ev.Params["uid"]
	if uid == "" {
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

	var req model.Request
	if err := json.Unmarshal(ev.Data, &req); err != nil {
		p.log.Warnf("malformed request from uid %s: %v", uid, err)
	} else {
		if req.RequestID == "" {
			req.RequestID = trigger.SanitizeID(ev.ID)
		}
		outcome, err := p.Process(ctx, uid, req)
		if err != nil {
			p.log.Errorf("%s with uid: %s and sid: %s failed: %v", req.Action, uid, req.SessionID, err)
		}
		p.log.Infof("%s with uid: %s and sid: %s ended with result: %s", req.Action, uid, req.SessionID, outcome)
	}

	if err := p.remove(ctx, QueuePath(uid)); err != nil {
		return fmt.Errorf("release queue slot of %s: %w", uid, err)
	}
	return nil
}

// Process runs the state machine for one request.  A non-nil error is
// returned alongside the outcome when an infrastructure failure, rather than
// a policy decision, ended the request.
func (p *Processor) Process(ctx context.Context, uid string, req model.Request) (Outcome, error) {
	var session model.Session
	if err := p.store.Get(ctx, SessionPath(req.SessionID), &session); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return OutcomeSkipped, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
		}
		return OutcomeSkipped, err
	}
	if session.ID == "" {
		session.ID = req.SessionID
	}

	if !p.now().Before(session.Start.Add(-p.cutoff)) {
		return p.handleCutoff(ctx, uid, req)
	}

	switch req.Action {
	case model.ActionReserve:
		return p.processReserve(ctx, uid, req, session)
	case model.ActionReturn:
		return p.processReturn(ctx, uid, req)
	}
	return OutcomeSkipped, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
}

func (p *Processor) handleCutoff(ctx context.Context, uid string, req model.Request) (Outcome, error) {
	var code model.ResultCode
	switch req.Action {
	case model.ActionReserve:
		code = model.ResultReserveDeniedCutoff
	case model.ActionReturn:
		code = model.ResultReturnDeniedCutoff
	default:
		return OutcomeClosed, nil
	}
	return OutcomeClosed, p.writeResult(ctx, uid, req.SessionID, req.RequestID, code)
}

func (p *Processor) processReserve(ctx context.Context, uid string, req model.Request, session model.Session) (Outcome, error) {
	sid, rid := req.SessionID, req.RequestID

	// A user already holding or waiting keeps what they have.
	current, err := p.reservation(ctx, sid, uid)
	if err != nil {
		return p.fail(ctx, uid, sid, rid, model.ResultReserveFailed, OutcomeFailed, err)
	}
	switch current.Status {
	case model.StatusGranted:
		return OutcomeReserved, p.writeResult(ctx, uid, sid, rid, model.ResultReserved)
	case model.StatusWaiting:
		return OutcomeDeniedNoSpace, p.writeResult(ctx, uid, sid, rid, model.ResultReserveDeniedSpace)
	}

	clash, err := p.clash.HasClash(ctx, uid, session)
	if err != nil {
		return p.fail(ctx, uid, sid, rid, model.ResultReserveFailed, OutcomeFailed, err)
	}
	if clash {
		return OutcomeDeniedClashing, p.writeResult(ctx, uid, sid, rid, model.ResultReserveDeniedClash)
	}

	var seat SeatOutcome
	err = p.store.Update(ctx, func(tx store.Tx) error {
		r, err := txReservation(tx, sid, uid)
		if err != nil {
			return err
		}
		if r.Status == model.StatusGranted || r.Status == model.StatusWaiting {
			return errAlreadyHeld
		}
		seat, err = reserveSeat(tx, sid)
		if err != nil {
			return err
		}
		next, code := model.StatusWaiting, model.ResultReserveDeniedSpace
		if seat == SeatGranted {
			next, code = model.StatusGranted, model.ResultReserved
		}
		if err := r.Transition(next, p.now()); err != nil {
			return err
		}
		r.Record(rid, code)
		return tx.Set(ReservationPath(sid, uid), r)
	})
	switch {
	case errors.Is(err, errAlreadyHeld):
		return p.processReserve(ctx, uid, req, session)
	case errors.Is(err, store.ErrAborted):
		return p.fail(ctx, uid, sid, rid, model.ResultReserveFailed, OutcomeFailed, nil)
	case err != nil:
		return p.fail(ctx, uid, sid, rid, model.ResultReserveFailed, OutcomeFailed, err)
	}

	if seat == SeatGranted {
		p.notify(ctx, model.SyncAddReserved, uid, sid)
		return OutcomeReserved, nil
	}
	p.notify(ctx, model.SyncAddWaitlisted, uid, sid)
	return OutcomeDeniedNoSpace, nil
}

func (p *Processor) processReturn(ctx context.Context, uid string, req model.Request) (Outcome, error) {
	sid, rid := req.SessionID, req.RequestID

	current, err := p.reservation(ctx, sid, uid)
	if err != nil {
		return p.fail(ctx, uid, sid, rid, model.ResultReturnFailed, OutcomeReturnFailed, err)
	}

	switch current.Status {
	case model.StatusGranted:
		return p.returnGranted(ctx, uid, sid, rid)
	case model.StatusWaiting:
		return p.returnWaiting(ctx, uid, sid, rid)
	}
	return OutcomeReturnFailed, p.writeResult(ctx, uid, sid, rid, model.ResultReturnFailed)
}

func (p *Processor) returnGranted(ctx context.Context, uid, sid, rid string) (Outcome, error) {
	var rel ReleaseResult
	err := p.store.Update(ctx, func(tx store.Tx) error {
		r, err := txReservation(tx, sid, uid)
		if err != nil {
			return err
		}
		if r.Status != model.StatusGranted {
			return errNotGranted
		}
		rel, err = releaseSeat(tx, sid)
		if err != nil {
			return err
		}
		if err := r.Transition(model.StatusReturned, p.now()); err != nil {
			return err
		}
		r.Record(rid, model.ResultReturned)
		return tx.Set(ReservationPath(sid, uid), r)
	})
	switch {
	case errors.Is(err, errNotGranted):
		return OutcomeReturnFailed, p.writeResult(ctx, uid, sid, rid, model.ResultReturnFailed)
	case errors.Is(err, store.ErrAborted):
		return p.fail(ctx, uid, sid, rid, model.ResultReturnFailed, OutcomeReturnFailed, nil)
	case err != nil:
		return p.fail(ctx, uid, sid, rid, model.ResultReturnFailed, OutcomeReturnFailed, err)
	}

	if rel.Waitlisted {
		ts := strconv.FormatInt(p.now().UnixMilli(), 10)
		if err := p.store.Set(ctx, PromoPath(sid, ts), true); err != nil {
			p.log.Errorf("enqueue promotion for %s: %v", sid, err)
		}
	}
	p.notify(ctx, model.SyncRemoveReserved, uid, sid)
	return OutcomeReturned, nil
}

func (p *Processor) returnWaiting(ctx context.Context, uid, sid, rid string) (Outcome, error) {
	err := p.store.Update(ctx, func(tx store.Tx) error {
		var r model.Reservation
		if err := tx.Get(ReservationPath(sid, uid), &r); err != nil {
			return err
		}
		if r.Status != model.StatusWaiting {
			return errNotWaiting
		}
		if err := r.Transition(model.StatusReturned, p.now()); err != nil {
			return err
		}
		r.Record(rid, model.ResultReturned)
		return tx.Set(ReservationPath(sid, uid), r)
	})
	if errors.Is(err, errNotWaiting) {
		return OutcomeReturnFailed, p.writeResult(ctx, uid, sid, rid, model.ResultReturnFailed)
	}
	if errors.Is(err, store.ErrAborted) {
		return p.fail(ctx, uid, sid, rid, model.ResultReturnFailed, OutcomeReturnFailed, nil)
	}
	if err != nil {
		return p.fail(ctx, uid, sid, rid, model.ResultReturnFailed, OutcomeReturnFailed, err)
	}
	p.notify(ctx, model.SyncRemoveReserved, uid, sid)
	return OutcomeReturned, nil
}

// fail records a failure result code and reports cause.  A store abort is
// logged as contention rather than an error.
func (p *Processor) fail(ctx context.Context, uid, sid, rid string, code model.ResultCode, outcome Outcome, cause error) (Outcome, error) {
	if cause == nil {
		p.log.Warnf("transaction for uid %s on %s not committed", uid, sid)
	}
	if err := p.writeResult(ctx, uid, sid, rid, code); err != nil {
		return outcome, errors.Join(cause, err)
	}
	return outcome, cause
}

// txReservation reads the reservation inside tx; a missing node is the zero
// reservation.
func txReservation(tx store.Tx, sid, uid string) (model.Reservation, error) {
	var r model.Reservation
	if err := tx.Get(ReservationPath(sid, uid), &r); err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.Reservation{}, err
	}
	return r, nil
}

func (p *Processor) reservation(ctx context.Context, sid, uid string) (model.Reservation, error) {
	var r model.Reservation
	err := p.store.Get(ctx, ReservationPath(sid, uid), &r)
	if errors.Is(err, store.ErrNotFound) {
		return model.Reservation{}, nil
	}
	return r, err
}

// writeResult appends results[rid] = code without touching the status.
func (p *Processor) writeResult(ctx context.Context, uid, sid, rid string, code model.ResultCode) error {
	err := p.store.Update(ctx, func(tx store.Tx) error {
		r, err := txReservation(tx, sid, uid)
		if err != nil {
			return err
		}
		r.Record(rid, code)
		return tx.Set(ReservationPath(sid, uid), r)
	})
	if err != nil {
		return fmt.Errorf("write result %s for uid %s on %s: %w", code, uid, sid, err)
	}
	return nil
}
