// Package repository holds the MySQL data access for the session catalog and
// attendee identities.  Sentinel errors let handlers map failures to HTTP
// statuses without inspecting driver errors.
package repository

import "errors"

// ErrSessionNotFound is returned when no session row has the requested id.
// Handlers translate it into a 404 response.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidSession is returned when a session fails validation before it is
// written.
var ErrInvalidSession = errors.New("invalid session")
