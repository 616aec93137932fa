package reservation

import (
	"context"
	"errors"

	"github.com/iliyamo/session-seat-reservation/internal/model"
	"github.com/iliyamo/session-seat-reservation/internal/store"
)

// SeatOutcome is the result of Ledger.TryReserve.
type SeatOutcome int

const (
	SeatGranted SeatOutcome = iota + 1
	SeatWaitlisted
	SeatAborted
)

func (o SeatOutcome) String() string {
	switch o {
	case SeatGranted:
		return "granted"
	case SeatWaitlisted:
		return "waitlisted"
	case SeatAborted:
		return "aborted"
	}
	return "unknown"
}

// ReleaseResult is the result of Ledger.Release.  Waitlisted is the value of
// the ledger flag as read inside the committing transaction.
type ReleaseResult struct {
	Released   bool
	Waitlisted bool
}

// Ledger performs the atomic seat accounting on sessions/{sid}/seats.
type Ledger struct {
	store store.Store
}

// NewLedger returns a ledger over st.
func NewLedger(st store.Store) *Ledger { return &Ledger{store: st} }

// Seats reads the current ledger of a session.
func (l *Ledger) Seats(ctx context.Context, sid string) (model.Seats, error) {
	var seats model.Seats
	err := l.store.Get(ctx, SeatsPath(sid), &seats)
	if errors.Is(err, store.ErrNotFound) {
		return seats, ErrSessionNotFound
	}
	return seats, err
}

// TryReserve takes a seat when one is free, otherwise flags the session as
// waitlisted.  SeatAborted with a nil error means the store gave up on the
// transaction because of contention.
func (l *Ledger) TryReserve(ctx context.Context, sid string) (SeatOutcome, error) {
	var outcome SeatOutcome
	err := l.store.Update(ctx, func(tx store.Tx) error {
		var err error
		outcome, err = reserveSeat(tx, sid)
		return err
	})
	if errors.Is(err, store.ErrAborted) {
		return SeatAborted, nil
	}
	if err != nil {
		return SeatAborted, err
	}
	return outcome, nil
}

// Release gives a seat back.  Released is false with a nil error when the
// store aborted the transaction.
func (l *Ledger) Release(ctx context.Context, sid string) (ReleaseResult, error) {
	var res ReleaseResult
	err := l.store.Update(ctx, func(tx store.Tx) error {
		var err error
		res, err = releaseSeat(tx, sid)
		return err
	})
	if errors.Is(err, store.ErrAborted) {
		return ReleaseResult{}, nil
	}
	if err != nil {
		return ReleaseResult{}, err
	}
	return res, nil
}

// reserveSeat is the TryReserve accounting on an open transaction, so the
// caller can commit it together with the reservation it pays for.
func reserveSeat(tx store.Tx, sid string) (SeatOutcome, error) {
	seats, err := txSeats(tx, sid)
	if err != nil {
		return SeatAborted, err
	}
	outcome := SeatWaitlisted
	if seats.Available() {
		seats.Reserved++
		outcome = SeatGranted
	} else {
		seats.Waitlisted = true
	}
	seats.Refresh()
	return outcome, tx.Set(SeatsPath(sid), seats)
}

// releaseSeat is the Release accounting on an open transaction.
func releaseSeat(tx store.Tx, sid string) (ReleaseResult, error) {
	seats, err := txSeats(tx, sid)
	if err != nil {
		return ReleaseResult{}, err
	}
	if seats.Reserved <= 0 {
		return ReleaseResult{}, ErrLedgerUnderflow
	}
	seats.Reserved--
	seats.Refresh()
	if err := tx.Set(SeatsPath(sid), seats); err != nil {
		return ReleaseResult{}, err
	}
	return ReleaseResult{Released: true, Waitlisted: seats.Waitlisted}, nil
}

func txSeats(tx store.Tx, sid string) (model.Seats, error) {
	var seats model.Seats
	if err := tx.Get(SeatsPath(sid), &seats); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return seats, ErrSessionNotFound
		}
		return seats, err
	}
	return seats, nil
}
