package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avetisk/event-ticketing/internal/model"
	"github.com/avetisk/event-ticketing/internal/repository"
	"github.com/avetisk/event-ticketing/internal/validation"
)

// Sentinel errors for reservation workflows.  Handlers translate these
// into HTTP responses; callers may also match them with errors.Is.
var (
	// ErrEventPast rejects work on an event whose date has passed.
	ErrEventPast = errors.New("event has already occurred")
	// ErrEventSoldOut rejects a create when no tickets remain.
	ErrEventSoldOut = errors.New("event is sold out")
	// ErrInvalidState rejects a transition the reservation's current
	// status does not allow.
	ErrInvalidState = errors.New("reservation state does not allow this operation")
	// ErrHoldExpired reports that the reservation's hold lapsed before
	// payment; the reservation has been cancelled and tickets released.
	ErrHoldExpired = errors.New("reservation hold has expired")
	// ErrPaymentDeclined reports a gateway decline; the reservation has
	// been cancelled and tickets released.
	ErrPaymentDeclined = errors.New("payment was declined")
)

// ValidationError carries accumulated field validation failures out of
// a workflow.  The reservation state is untouched when it is returned.
type ValidationError struct {
	Field  string
	Result validation.Result
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Result.Messages(), "; ")
}

// ReservationService runs the reservation lifecycle: create with an
// optimistic hold, settle payment, cancel, and read with lazy hold
// expiry.  Every operation is all-or-nothing within one transaction.
type ReservationService struct {
	store    repository.Store
	payments PaymentProcessor
	now      func() time.Time
}

// Option configures a ReservationService.
type Option func(*ReservationService)

// WithClock substitutes the time source, letting tests step through
// hold expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

// NewReservationService wires the service to its store and payment
// processor.
func NewReservationService(store repository.Store, payments PaymentProcessor, opts ...Option) *ReservationService {
	s := &ReservationService{store: store, payments: payments, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateReservation places a PENDING hold of qty tickets on the event
// for the user.  The unit price is snapshotted from the event at this
// moment and never refreshed.  Lapsed holds on the event are swept
// first so the availability the validation sees is current.
func (s *ReservationService) CreateReservation(ctx context.Context, userID, eventID uint64, qty int) (*model.Reservation, error) {
	var res *model.Reservation
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		ev, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := s.sweepEvent(ctx, tx, ev, now); err != nil {
			return err
		}
		if !ev.UpcomingAt(now) {
			return ErrEventPast
		}
		if ev.AvailableTickets == 0 {
			return ErrEventSoldOut
		}
		if v := validation.TicketQuantity(qty, ev.AvailableTickets); !v.Valid {
			return &ValidationError{Field: "ticket_quantity", Result: v}
		}
		if err := tx.ReserveTickets(ctx, eventID, qty); err != nil {
			return err
		}
		res = &model.Reservation{
			UserID:           userID,
			EventID:          eventID,
			TicketQuantity:   qty,
			UnitPriceCents:   ev.TicketPriceCents,
			TotalAmountCents: ev.TicketPriceCents * int64(qty),
			Status:           model.ReservationPending,
			PaymentStatus:    model.PaymentPending,
			HoldExpiresAt:    now.Add(model.HoldWindow),
		}
		return tx.InsertReservation(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ProcessPayment settles a PENDING reservation.  A gateway success
// confirms it; a decline or a lapsed hold cancels it and releases its
// tickets.  Both outcomes are committed, so a returned ErrHoldExpired
// or ErrPaymentDeclined describes state that has already been saved.
func (s *ReservationService) ProcessPayment(ctx context.Context, userID, reservationID uint64, req PaymentRequest) (*model.Reservation, error) {
	var res *model.Reservation
	var settled error
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ReservationForUpdate(ctx, reservationID, userID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if res.Status != model.ReservationPending {
			return ErrInvalidState
		}
		ev, err := tx.AnyEventForUpdate(ctx, res.EventID)
		if err != nil {
			return err
		}
		res.Event = ev
		if res.IsExpired(now) {
			if err := s.releaseAndCancel(ctx, tx, res, model.PaymentFailed); err != nil {
				return err
			}
			settled = ErrHoldExpired
			return nil
		}
		req.AmountCents = res.TotalAmountCents
		outcome, err := s.payments.Charge(ctx, req)
		if err != nil {
			return err
		}
		switch o := outcome.(type) {
		case PaymentSuccess:
			res.Status = model.ReservationConfirmed
			res.PaymentStatus = model.PaymentCompleted
			res.PaymentReference = o.Reference
			return tx.UpdateReservation(ctx, res)
		case PaymentFailure:
			if err := s.releaseAndCancel(ctx, tx, res, model.PaymentFailed); err != nil {
				return err
			}
			settled = ErrPaymentDeclined
			return nil
		default:
			return errors.New("unknown payment outcome")
		}
	})
	if err != nil {
		return nil, err
	}
	if settled != nil {
		return res, settled
	}
	return res, nil
}

// CancelReservation cancels the user's reservation and releases its
// tickets.  A COMPLETED payment becomes REFUNDED; any other payment
// status is left as-is.  Cancelling an already cancelled reservation is
// a no-op returning the reservation unchanged; the second return value
// reports whether a transition actually happened, so callers publish
// the cancellation event at most once.
func (s *ReservationService) CancelReservation(ctx context.Context, userID, reservationID uint64) (*model.Reservation, bool, error) {
	var res *model.Reservation
	var changed bool
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ReservationForUpdate(ctx, reservationID, userID)
		if err != nil {
			return err
		}
		if res.Status == model.ReservationCancelled {
			return nil
		}
		ev, err := tx.AnyEventForUpdate(ctx, res.EventID)
		if err != nil {
			return err
		}
		res.Event = ev
		now := s.now().UTC()
		if res.IsExpired(now) {
			changed = true
			return s.releaseAndCancel(ctx, tx, res, model.PaymentFailed)
		}
		if !res.CanBeCancelled(ev, now) {
			return ErrInvalidState
		}
		next := res.PaymentStatus
		if res.PaymentStatus == model.PaymentCompleted {
			next = model.PaymentRefunded
		}
		changed = true
		return s.releaseAndCancel(ctx, tx, res, next)
	})
	if err != nil {
		return nil, false, err
	}
	return res, changed, nil
}

// GetReservation returns the user's reservation with its event
// attached, applying lazy hold expiry first.
func (s *ReservationService) GetReservation(ctx context.Context, userID, reservationID uint64) (*model.Reservation, error) {
	var res *model.Reservation
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ReservationForUpdate(ctx, reservationID, userID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if res.IsExpired(now) {
			if err := s.releaseAndCancel(ctx, tx, res, model.PaymentFailed); err != nil {
				return err
			}
		}
		ev, err := tx.AnyEventForUpdate(ctx, res.EventID)
		if err != nil {
			return err
		}
		res.Event = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListReservations returns the user's reservations newest first, after
// sweeping the user's lapsed holds.
func (s *ReservationService) ListReservations(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.ExpireHoldsForUser(ctx, userID, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return s.store.ListByUser(ctx, userID)
}

// sweepEvent cancels the event's lapsed holds and folds the released
// quantity back into the in-memory availability.
func (s *ReservationService) sweepEvent(ctx context.Context, tx repository.Tx, ev *model.Event, now time.Time) error {
	released, err := tx.ExpireHolds(ctx, ev.ID, now)
	if err != nil {
		return err
	}
	if released == 0 {
		return nil
	}
	if err := tx.ReleaseTickets(ctx, ev.ID, released); err != nil {
		return err
	}
	ev.AvailableTickets += released
	if ev.AvailableTickets > ev.TotalCapacity {
		ev.AvailableTickets = ev.TotalCapacity
	}
	return nil
}

// releaseAndCancel returns the reservation's tickets to the event and
// marks it CANCELLED with the given payment status.  Tickets are
// released exactly once because callers only reach here from a
// non-CANCELLED status.
func (s *ReservationService) releaseAndCancel(ctx context.Context, tx repository.Tx, res *model.Reservation, payment model.PaymentStatus) error {
	if err := tx.ReleaseTickets(ctx, res.EventID, res.TicketQuantity); err != nil {
		return err
	}
	res.Status = model.ReservationCancelled
	res.PaymentStatus = payment
	return tx.UpdateReservation(ctx, res)
}
