package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avetisk/event-ticketing/internal/model"
	"github.com/avetisk/event-ticketing/internal/repository"
	"github.com/avetisk/event-ticketing/internal/service"
	"github.com/avetisk/event-ticketing/internal/validation"
)

// fixture wires the engine to a memStore with a steppable clock.
type fixture struct {
	store *memStore
	svc   *service.ReservationService
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }
	f.store = newMemStore(clock)
	f.svc = service.NewReservationService(f.store, service.NewSimulatedGateway(), service.WithClock(clock))
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) addEvent(id uint64, capacity, available int, priceCents int64) {
	f.store.addEvent(&model.Event{
		ID:               id,
		Title:            "Jazz Night",
		EventDate:        f.now.Add(30 * 24 * time.Hour),
		VenueName:        "Blue Note",
		TotalCapacity:    capacity,
		AvailableTickets: available,
		TicketPriceCents: priceCents,
		IsActive:         true,
	})
}

// activeTickets sums quantities of reservations still counting against
// capacity.
func (f *fixture) activeTickets(eventID uint64) int {
	total := 0
	for _, res := range f.store.reservations {
		if res.EventID == eventID && res.IsActive() {
			total += res.TicketQuantity
		}
	}
	return total
}

const user = uint64(7)

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 100, 100, 50)

	res, err := f.svc.CreateReservation(context.Background(), user, 1, 2)
	require.NoError(t, err)
	require.Equal(t, model.ReservationPending, res.Status)
	require.Equal(t, model.PaymentPending, res.PaymentStatus)
	require.Equal(t, int64(50), res.UnitPriceCents)
	require.Equal(t, int64(100), res.TotalAmountCents, "total is unit price times quantity")
	require.Equal(t, f.now.Add(model.HoldWindow), res.HoldExpiresAt)
	require.Equal(t, 98, f.store.event(1).AvailableTickets)
}

func TestCreateReservationPriceSnapshot(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 100, 100, 2500)

	res, err := f.svc.CreateReservation(context.Background(), user, 1, 1)
	require.NoError(t, err)

	// A later price change must not alter what the reservation owes.
	ev := f.store.event(1)
	ev.TicketPriceCents = 9900
	f.store.addEvent(&ev)

	got := f.store.reservation(res.ID)
	require.Equal(t, int64(2500), got.UnitPriceCents)
	require.Equal(t, int64(2500), got.TotalAmountCents)
}

func TestCreateReservationQuantityValidation(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 100, 100, 50)

	var vErr *service.ValidationError
	_, err := f.svc.CreateReservation(context.Background(), user, 1, 0)
	require.ErrorAs(t, err, &vErr)
	require.True(t, vErr.Result.HasCode(validation.CodeInvalidQuantity))

	_, err = f.svc.CreateReservation(context.Background(), user, 1, 11)
	require.ErrorAs(t, err, &vErr)
	require.True(t, vErr.Result.HasCode(validation.CodeLimitExceeded))

	// Nothing was reserved by the failed attempts.
	require.Equal(t, 100, f.store.event(1).AvailableTickets)
	require.Empty(t, f.store.reservations)
}

func TestCreateReservationInsufficientAvailability(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 2, 50)

	var vErr *service.ValidationError
	_, err := f.svc.CreateReservation(context.Background(), user, 1, 5)
	require.ErrorAs(t, err, &vErr)
	require.True(t, vErr.Result.HasCode(validation.CodeInsufficientAvailability))
	require.Contains(t, strings.Join(vErr.Result.Messages(), " "), "only 2 tickets available")

	// The losing request leaves the event untouched.
	require.Equal(t, 2, f.store.event(1).AvailableTickets)
}

func TestCreateReservationSoldOut(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 0, 50)

	_, err := f.svc.CreateReservation(context.Background(), user, 1, 1)
	require.ErrorIs(t, err, service.ErrEventSoldOut)
}

func TestCreateReservationPastEvent(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	f.advance(31 * 24 * time.Hour)

	_, err := f.svc.CreateReservation(context.Background(), user, 1, 1)
	require.ErrorIs(t, err, service.ErrEventPast)
}

func TestCreateReservationUnknownEvent(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateReservation(context.Background(), user, 42, 1)
	require.ErrorIs(t, err, repository.ErrEventNotFound)
}

func TestLastTicketsScenario(t *testing.T) {
	// Capacity 10 with 8 already sold: a request for 3 loses, a request
	// for 2 wins and sells the event out.
	f := newFixture(t)
	f.addEvent(1, 10, 2, 50)

	_, err := f.svc.CreateReservation(context.Background(), user, 1, 3)
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)

	res, err := f.svc.CreateReservation(context.Background(), user, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.TicketQuantity)

	ev := f.store.event(1)
	require.Equal(t, 0, ev.AvailableTickets)
	require.True(t, ev.IsSoldOut())

	_, err = f.svc.CreateReservation(context.Background(), user, 1, 1)
	require.ErrorIs(t, err, service.ErrEventSoldOut)
}

func TestProcessPaymentSuccess(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 2)
	require.NoError(t, err)

	paid, err := f.svc.ProcessPayment(context.Background(), user, res.ID, service.PaymentRequest{Method: "card"})
	require.NoError(t, err)
	require.Equal(t, model.ReservationConfirmed, paid.Status)
	require.Equal(t, model.PaymentCompleted, paid.PaymentStatus)
	require.True(t, strings.HasPrefix(paid.PaymentReference, "PAY-"))

	// Confirmed tickets stay counted against capacity.
	require.Equal(t, 8, f.store.event(1).AvailableTickets)
}

func TestProcessPaymentKeepsSuppliedReference(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 1)
	require.NoError(t, err)

	paid, err := f.svc.ProcessPayment(context.Background(), user, res.ID,
		service.PaymentRequest{Method: "card", Reference: "EXT-123"})
	require.NoError(t, err)
	require.Equal(t, "EXT-123", paid.PaymentReference)
}

func TestProcessPaymentDeclined(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 3)
	require.NoError(t, err)

	_, err = f.svc.ProcessPayment(context.Background(), user, res.ID, service.PaymentRequest{Method: "card_declined"})
	require.ErrorIs(t, err, service.ErrPaymentDeclined)

	// The decline is committed: reservation cancelled, payment failed,
	// tickets back in the pool.
	got := f.store.reservation(res.ID)
	require.Equal(t, model.ReservationCancelled, got.Status)
	require.Equal(t, model.PaymentFailed, got.PaymentStatus)
	require.Equal(t, 10, f.store.event(1).AvailableTickets)
}

func TestProcessPaymentExpiredHold(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 4)
	require.NoError(t, err)
	require.Equal(t, 6, f.store.event(1).AvailableTickets)

	f.advance(model.HoldWindow + time.Minute)

	_, err = f.svc.ProcessPayment(context.Background(), user, res.ID, service.PaymentRequest{Method: "card"})
	require.ErrorIs(t, err, service.ErrHoldExpired)

	got := f.store.reservation(res.ID)
	require.Equal(t, model.ReservationCancelled, got.Status)
	require.Equal(t, model.PaymentFailed, got.PaymentStatus)
	require.Equal(t, 10, f.store.event(1).AvailableTickets)
}

func TestProcessPaymentWrongState(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 1)
	require.NoError(t, err)
	_, err = f.svc.ProcessPayment(context.Background(), user, res.ID, service.PaymentRequest{Method: "card"})
	require.NoError(t, err)

	// Paying twice is rejected without touching the reservation.
	_, err = f.svc.ProcessPayment(context.Background(), user, res.ID, service.PaymentRequest{Method: "card"})
	require.ErrorIs(t, err, service.ErrInvalidState)
	require.Equal(t, model.ReservationConfirmed, f.store.reservation(res.ID).Status)
}

func TestProcessPaymentOwnership(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 1)
	require.NoError(t, err)

	_, err = f.svc.ProcessPayment(context.Background(), user+1, res.ID, service.PaymentRequest{Method: "card"})
	require.ErrorIs(t, err, repository.ErrForbidden)

	_, err = f.svc.ProcessPayment(context.Background(), user, 999, service.PaymentRequest{Method: "card"})
	require.ErrorIs(t, err, repository.ErrReservationNotFound)
}

func TestCancelPendingReservation(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 3)
	require.NoError(t, err)

	cancelled, changed, err := f.svc.CancelReservation(context.Background(), user, res.ID)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, model.ReservationCancelled, cancelled.Status)
	// Payment never completed, so nothing to refund.
	require.Equal(t, model.PaymentPending, cancelled.PaymentStatus)
	require.Equal(t, 10, f.store.event(1).AvailableTickets)
}

func TestCancelConfirmedRefunds(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 2)
	require.NoError(t, err)
	_, err = f.svc.ProcessPayment(context.Background(), user, res.ID, service.PaymentRequest{Method: "card"})
	require.NoError(t, err)

	cancelled, changed, err := f.svc.CancelReservation(context.Background(), user, res.ID)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, model.ReservationCancelled, cancelled.Status)
	require.Equal(t, model.PaymentRefunded, cancelled.PaymentStatus)
	require.Equal(t, 10, f.store.event(1).AvailableTickets)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 4)
	require.NoError(t, err)

	_, changed, err := f.svc.CancelReservation(context.Background(), user, res.ID)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 10, f.store.event(1).AvailableTickets)

	// A second cancel is a no-op: no release, and no transition for the
	// caller to announce.
	again, changed, err := f.svc.CancelReservation(context.Background(), user, res.ID)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, model.ReservationCancelled, again.Status)
	require.Equal(t, 10, f.store.event(1).AvailableTickets)
}

func TestCancelAfterEventOccurred(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 1)
	require.NoError(t, err)
	_, err = f.svc.ProcessPayment(context.Background(), user, res.ID, service.PaymentRequest{Method: "card"})
	require.NoError(t, err)

	f.advance(31 * 24 * time.Hour)

	_, _, err = f.svc.CancelReservation(context.Background(), user, res.ID)
	require.ErrorIs(t, err, service.ErrInvalidState)
	require.Equal(t, model.ReservationConfirmed, f.store.reservation(res.ID).Status)
}

func TestGetReservationLazyExpiry(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 2)
	require.NoError(t, err)

	// Within the hold window the reservation reads back as pending.
	got, err := f.svc.GetReservation(context.Background(), user, res.ID)
	require.NoError(t, err)
	require.Equal(t, model.ReservationPending, got.Status)
	require.NotNil(t, got.Event)

	// Past the window the read itself settles the expiry.
	f.advance(model.HoldWindow)
	got, err = f.svc.GetReservation(context.Background(), user, res.ID)
	require.NoError(t, err)
	require.Equal(t, model.ReservationCancelled, got.Status)
	require.Equal(t, 10, f.store.event(1).AvailableTickets)
}

func TestListReservationsNewestFirstWithSweep(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 20, 20, 50)

	first, err := f.svc.CreateReservation(context.Background(), user, 1, 1)
	require.NoError(t, err)
	f.advance(time.Minute)
	second, err := f.svc.CreateReservation(context.Background(), user, 1, 2)
	require.NoError(t, err)
	f.advance(time.Minute)
	third, err := f.svc.CreateReservation(context.Background(), user, 1, 3)
	require.NoError(t, err)
	_, err = f.svc.ProcessPayment(context.Background(), user, third.ID, service.PaymentRequest{Method: "card"})
	require.NoError(t, err)

	// Let the first two holds lapse; the confirmed one is untouched.
	f.advance(model.HoldWindow)

	list, err := f.svc.ListReservations(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, third.ID, list[0].ID)
	require.Equal(t, second.ID, list[1].ID)
	require.Equal(t, first.ID, list[2].ID)

	require.Equal(t, model.ReservationConfirmed, list[0].Status)
	require.Equal(t, model.ReservationCancelled, list[1].Status)
	require.Equal(t, model.ReservationCancelled, list[2].Status)

	// 20 capacity minus the 3 confirmed tickets.
	require.Equal(t, 17, f.store.event(1).AvailableTickets)
}

func TestCapacityConservation(t *testing.T) {
	// After an arbitrary mix of creates, payments, cancellations and
	// expiries, capacity always equals available plus active holds.
	f := newFixture(t)
	f.addEvent(1, 30, 30, 100)

	check := func() {
		ev := f.store.event(1)
		require.Equal(t, ev.TotalCapacity, ev.AvailableTickets+f.activeTickets(1),
			"capacity conservation violated")
		require.GreaterOrEqual(t, ev.AvailableTickets, 0)
	}

	a, err := f.svc.CreateReservation(context.Background(), user, 1, 5)
	require.NoError(t, err)
	check()
	b, err := f.svc.CreateReservation(context.Background(), user, 1, 10)
	require.NoError(t, err)
	check()
	c, err := f.svc.CreateReservation(context.Background(), user, 1, 8)
	require.NoError(t, err)
	check()

	_, err = f.svc.ProcessPayment(context.Background(), user, a.ID, service.PaymentRequest{Method: "card"})
	require.NoError(t, err)
	check()
	_, err = f.svc.ProcessPayment(context.Background(), user, b.ID, service.PaymentRequest{Method: "card_declined"})
	require.ErrorIs(t, err, service.ErrPaymentDeclined)
	check()
	_, _, err = f.svc.CancelReservation(context.Background(), user, c.ID)
	require.NoError(t, err)
	check()

	d, err := f.svc.CreateReservation(context.Background(), user, 1, 6)
	require.NoError(t, err)
	check()
	f.advance(model.HoldWindow + time.Second)
	_, err = f.svc.GetReservation(context.Background(), user, d.ID)
	require.NoError(t, err)
	check()

	// Cancel the confirmed one too; everything is back in the pool.
	_, _, err = f.svc.CancelReservation(context.Background(), user, a.ID)
	require.NoError(t, err)
	check()
	require.Equal(t, 30, f.store.event(1).AvailableTickets)
}

func TestFailedTransactionRollsBack(t *testing.T) {
	f := newFixture(t)
	f.addEvent(1, 10, 10, 50)
	res, err := f.svc.CreateReservation(context.Background(), user, 1, 2)
	require.NoError(t, err)

	// A charge error (not a decline) aborts the transaction entirely.
	failing := service.NewReservationService(f.store, chargeFailer{}, service.WithClock(func() time.Time { return f.now }))
	_, err = failing.ProcessPayment(context.Background(), user, res.ID, service.PaymentRequest{Method: "card"})
	require.Error(t, err)

	got := f.store.reservation(res.ID)
	require.Equal(t, model.ReservationPending, got.Status)
	require.Equal(t, 8, f.store.event(1).AvailableTickets)
}

type chargeFailer struct{}

func (chargeFailer) Charge(context.Context, service.PaymentRequest) (service.PaymentOutcome, error) {
	return nil, errors.New("gateway unreachable")
}
