package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a user's reservation on one session.
type Status int

const (
	StatusNone Status = iota
	StatusWaiting
	StatusGranted
	StatusReturned
)

var statusNames = map[Status]string{
	StatusNone:     "",
	StatusWaiting:  "waiting",
	StatusGranted:  "granted",
	StatusReturned: "returned",
}

// transitions lists every allowed status change.  Anything not listed here
// is rejected by Reservation.Transition.
var transitions = map[Status][]Status{
	StatusNone:     {StatusGranted, StatusWaiting},
	StatusWaiting:  {StatusGranted, StatusReturned},
	StatusGranted:  {StatusReturned},
	StatusReturned: {StatusGranted, StatusWaiting},
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		if n == "" {
			return "none"
		}
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// MarshalJSON writes the wire name ("granted", "waiting", "returned").
func (s Status) MarshalJSON() ([]byte, error) {
	n, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("model: unknown status %d", int(s))
	}
	return json.Marshal(n)
}

// UnmarshalJSON accepts the wire name; unknown names are an error.
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for k, v := range statusNames {
		if v == name {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("model: unknown status %q", name)
}

// Reservation is a user's record on one session, stored at
// sessions/{sid}/reservations/{uid}.  It is created by the first processed
// request for the pair and never deleted; RETURNED is a state, not a removal.
//
// Fields:
//
//	Status            – current lifecycle state; omitted until the first
//	                    status change.
//	LastStatusChanged – epoch millis of the last status change; FIFO key
//	                    for the waitlist.
//	Results           – request_id → result code, one entry per processed
//	                    request, append-only.
type Reservation struct {
	Status            Status                `json:"status,omitempty"`
	LastStatusChanged int64                 `json:"last_status_changed"`
	Results           map[string]ResultCode `json:"results,omitempty"`
}

// ErrInvalidTransition is returned by Transition for a disallowed change.
var ErrInvalidTransition = errors.New("invalid reservation transition")

// Transition moves the reservation to next, stamping LastStatusChanged.
func (r *Reservation) Transition(next Status, at time.Time) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	r.LastStatusChanged = at.UnixMilli()
	return nil
}

// Record stores the result code for a request id.
func (r *Reservation) Record(requestID string, code ResultCode) {
	if r.Results == nil {
		r.Results = make(map[string]ResultCode)
	}
	r.Results[requestID] = code
}
