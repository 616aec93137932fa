package model

import (
	"fmt"
	"strings"
)

// Action is what a queued request asks for.
type Action string

const (
	ActionReserve Action = "reserve"
	ActionReturn  Action = "return"
)

// ParseAction normalises a client supplied action.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionReserve, ActionReturn:
		return a, nil
	}
	return "", fmt.Errorf("model: unknown action %q", s)
}

// Request is the single pending queue entry a user may hold at queue/{uid}.
// It is deleted by the processor once handled, which is what frees the slot
// for the next request.
type Request struct {
	SessionID string `json:"session"`
	Action    Action `json:"action"`
	RequestID string `json:"request_id"`
}

// ResultCode is the per-request outcome surfaced to clients through
// Reservation.Results.
type ResultCode string

const (
	ResultReserved            ResultCode = "reserved"
	ResultReserveDeniedSpace  ResultCode = "reserve_denied_space"
	ResultReserveDeniedCutoff ResultCode = "reserve_denied_cutoff"
	ResultReserveDeniedClash  ResultCode = "reserve_denied_clash"
	ResultReserveFailed       ResultCode = "reserve_failed"
	ResultReturned            ResultCode = "returned"
	ResultReturnDeniedCutoff  ResultCode = "return_denied_cutoff"
	ResultReturnFailed        ResultCode = "return_failed"
)
