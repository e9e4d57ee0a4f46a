package validation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avetisk/event-ticketing/internal/validation"
)

func TestTicketQuantityAccepted(t *testing.T) {
	for _, qty := range []int{1, 5, 10} {
		res := validation.TicketQuantity(qty, 10)
		require.True(t, res.Valid, "quantity %d should be valid", qty)
		require.Empty(t, res.Errors)
	}
}

func TestTicketQuantityZeroOrNegative(t *testing.T) {
	res := validation.TicketQuantity(0, 10)
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeInvalidQuantity))
	require.Contains(t, res.Messages(), "ticket quantity must be a positive number")

	res = validation.TicketQuantity(-3, 10)
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeInvalidQuantity))
}

func TestTicketQuantityOverLimit(t *testing.T) {
	res := validation.TicketQuantity(11, 100)
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeLimitExceeded))
	require.Contains(t, res.Messages(), "maximum 10 tickets per reservation")
}

func TestTicketQuantityInsufficientAvailability(t *testing.T) {
	res := validation.TicketQuantity(5, 3)
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeInsufficientAvailability))
	require.Contains(t, res.Messages(), "only 3 tickets available")
}

func TestTicketQuantityAccumulatesFailures(t *testing.T) {
	// 0 against a sold-out event reports both problems at once.
	res := validation.TicketQuantity(0, 0)
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeInvalidQuantity))
	require.Len(t, res.Errors, 1) // 0 > 0 is false, availability not flagged

	res = validation.TicketQuantity(20, 4)
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeLimitExceeded))
	require.True(t, res.HasCode(validation.CodeInsufficientAvailability))
	require.Len(t, res.Errors, 2)
}

func TestEmail(t *testing.T) {
	require.True(t, validation.Email("user@example.com").Valid)
	require.True(t, validation.Email("first.last+tag@sub.domain.org").Valid)

	res := validation.Email("")
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeRequired))

	for _, bad := range []string{"plain", "missing@tld", "@example.com", "user@.com"} {
		res := validation.Email(bad)
		require.False(t, res.Valid, "email %q should be rejected", bad)
		require.True(t, res.HasCode(validation.CodeInvalidEmail))
	}
}

func TestPassword(t *testing.T) {
	require.True(t, validation.Password("Sup3rSecret").Valid)

	res := validation.Password("short")
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeInvalidLength))
	require.True(t, res.HasCode(validation.CodeWeakPassword)) // no upper, no digit
	require.Len(t, res.Errors, 2)

	res = validation.Password("alllowercase1234")
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeWeakPassword))
	require.False(t, res.HasCode(validation.CodeInvalidLength))
}

func TestRequiredAndLength(t *testing.T) {
	require.True(t, validation.Required("full_name", "Ada").Valid)
	res := validation.Required("full_name", "   ")
	require.False(t, res.Valid)
	require.Contains(t, res.Messages(), "full_name is required")

	require.True(t, validation.Length("title", "Concert", 3, 200).Valid)
	res = validation.Length("title", "ab", 3, 200)
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeInvalidLength))
}

func TestRange(t *testing.T) {
	require.True(t, validation.Range("total_capacity", 100, 1, 1_000_000).Valid)
	res := validation.Range("total_capacity", 0, 1, 1_000_000)
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeOutOfRange))
}

func TestEventDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	res := validation.EventDate("2026-06-15T20:00:00Z", now)
	require.True(t, res.Valid)

	res = validation.EventDate("not-a-date", now)
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeInvalidDate))

	// Boundary: exactly now is not strictly future.
	res = validation.EventDate("2026-03-01T12:00:00Z", now)
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeDateNotFuture))

	res = validation.EventDate("2025-01-01T00:00:00Z", now)
	require.False(t, res.Valid)
	require.True(t, res.HasCode(validation.CodeDateNotFuture))
}

func TestResultMerge(t *testing.T) {
	a := validation.TicketQuantity(1, 10)
	b := validation.TicketQuantity(11, 10)
	merged := a.Merge(b)
	require.False(t, merged.Valid)
	require.True(t, merged.HasCode(validation.CodeLimitExceeded))

	both := validation.TicketQuantity(1, 10).Merge(validation.TicketQuantity(2, 10))
	require.True(t, both.Valid)
}
