package reservation

import "errors"

// ErrSessionNotFound is returned when a request names a session that has no
// catalog entry or seat ledger in the store.
var ErrSessionNotFound = errors.New("reservation: session not found")

// ErrLedgerUnderflow is returned when a release would drive the reserved
// count below zero.
var ErrLedgerUnderflow = errors.New("reservation: reserved count underflow")

// ErrUnknownAction is returned for a queued request whose action is neither
// reserve nor return.
var ErrUnknownAction = errors.New("reservation: unknown action")

// errNotWaiting aborts a waitlist removal that observed a concurrent change.
var errNotWaiting = errors.New("reservation: status is no longer waiting")

// errNotGranted aborts a seat return that observed a concurrent change.
var errNotGranted = errors.New("reservation: status is no longer granted")

// errAlreadyHeld aborts a reserve when the user got a seat or a waitlist
// place after the status was first read.
var errAlreadyHeld = errors.New("reservation: already granted or waiting")
