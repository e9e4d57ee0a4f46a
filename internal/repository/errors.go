// Package repository implements MySQL persistence for events, users,
// tokens and reservations.  This file defines sentinel error values that
// are reused across repositories so higher layers can distinguish
// failure scenarios without inspecting SQL errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrEventNotFound is returned when an event does not exist or has been
// soft-deleted.
var ErrEventNotFound = errors.New("event not found")

// ErrInsufficientTickets is returned by the conditional capacity
// decrement when fewer tickets remain than were requested.  The losing
// side of a race for the last tickets sees this error rather than an
// oversell.
var ErrInsufficientTickets = errors.New("insufficient tickets available")

// ErrEmailExists is returned when registering with an email that is
// already taken.
var ErrEmailExists = errors.New("email already exists")
