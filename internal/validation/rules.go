// Package validation contains the pure predicate rules that gate every
// state mutation in the reservation engine.  Each rule is side-effect free
// and returns a Result that accumulates all failures rather than stopping
// at the first one, so callers can surface every problem at once.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/avetisk/event-ticketing/internal/model"
)

// Error codes attached to FieldError.  Handlers and the API client use
// these to classify failures without parsing messages.
const (
	CodeInvalidQuantity          = "INVALID_QUANTITY"
	CodeLimitExceeded            = "LIMIT_EXCEEDED"
	CodeInsufficientAvailability = "INSUFFICIENT_AVAILABILITY"
	CodeRequired                 = "REQUIRED"
	CodeInvalidEmail             = "INVALID_EMAIL"
	CodeWeakPassword             = "WEAK_PASSWORD"
	CodeInvalidLength            = "INVALID_LENGTH"
	CodeOutOfRange               = "OUT_OF_RANGE"
	CodeInvalidDate              = "INVALID_DATE"
	CodeDateNotFuture            = "DATE_NOT_FUTURE"
)

// FieldError is a single validation failure with a stable code and a
// human-readable message.
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result collects the outcome of one or more validation rules.
type Result struct {
	Valid  bool         `json:"is_valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// ok returns a passing result.
func ok() Result { return Result{Valid: true} }

// fail builds a failing result from the given errors.
func fail(errs ...FieldError) Result { return Result{Valid: false, Errors: errs} }

// Merge combines two results; the combination is valid only when both are.
func (r Result) Merge(other Result) Result {
	return Result{
		Valid:  r.Valid && other.Valid,
		Errors: append(append([]FieldError{}, r.Errors...), other.Errors...),
	}
}

// Messages returns just the message strings, for error envelopes.
func (r Result) Messages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// HasCode reports whether any accumulated error carries the given code.
func (r Result) HasCode(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// TicketQuantity checks a requested ticket quantity against the per-order
// limit and the event's current availability.  Failures accumulate: a
// request for 0 tickets against a sold-out event reports both the
// positive-number requirement and the availability problem.
func TicketQuantity(quantity, availableTickets int) Result {
	var errs []FieldError
	if quantity <= 0 {
		errs = append(errs, FieldError{
			Code:    CodeInvalidQuantity,
			Message: "ticket quantity must be a positive number",
		})
	}
	if quantity > model.MaxTicketsPerReservation {
		errs = append(errs, FieldError{
			Code:    CodeLimitExceeded,
			Message: fmt.Sprintf("maximum %d tickets per reservation", model.MaxTicketsPerReservation),
		})
	}
	if quantity > availableTickets {
		errs = append(errs, FieldError{
			Code:    CodeInsufficientAvailability,
			Message: fmt.Sprintf("only %d tickets available", availableTickets),
		})
	}
	if len(errs) > 0 {
		return fail(errs...)
	}
	return ok()
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email checks basic email address shape.
func Email(email string) Result {
	email = strings.TrimSpace(email)
	if email == "" {
		return fail(FieldError{Code: CodeRequired, Message: "email is required"})
	}
	if !emailPattern.MatchString(email) {
		return fail(FieldError{Code: CodeInvalidEmail, Message: "email address is not valid"})
	}
	return ok()
}

// Password enforces length bounds of 8 to 128 characters and requires at
// least one upper-case letter, one lower-case letter and one digit.
// Failures accumulate.
func Password(password string) Result {
	var errs []FieldError
	if len(password) < 8 || len(password) > 128 {
		errs = append(errs, FieldError{
			Code:    CodeInvalidLength,
			Message: "password must be between 8 and 128 characters",
		})
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		errs = append(errs, FieldError{
			Code:    CodeWeakPassword,
			Message: "password must contain an upper-case letter, a lower-case letter and a digit",
		})
	}
	if len(errs) > 0 {
		return fail(errs...)
	}
	return ok()
}

// Required checks that a string field is non-blank.
func Required(field, value string) Result {
	if strings.TrimSpace(value) == "" {
		return fail(FieldError{Code: CodeRequired, Message: field + " is required"})
	}
	return ok()
}

// Length checks that a string's length lies within [min, max].
func Length(field, value string, min, max int) Result {
	if n := len(value); n < min || n > max {
		return fail(FieldError{
			Code:    CodeInvalidLength,
			Message: fmt.Sprintf("%s must be between %d and %d characters", field, min, max),
		})
	}
	return ok()
}

// Range checks that an integer lies within [min, max].
func Range(field string, value, min, max int64) Result {
	if value < min || value > max {
		return fail(FieldError{
			Code:    CodeOutOfRange,
			Message: fmt.Sprintf("%s must be between %d and %d", field, min, max),
		})
	}
	return ok()
}

// EventDate checks that a date string parses as RFC3339 and lies strictly
// in the future.
func EventDate(value string, now time.Time) Result {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return fail(FieldError{Code: CodeInvalidDate, Message: "event date must be a valid RFC3339 timestamp"})
	}
	if !t.After(now) {
		return fail(FieldError{Code: CodeDateNotFuture, Message: "event date must be in the future"})
	}
	return ok()
}
