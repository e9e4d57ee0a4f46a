package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avetisk/event-ticketing/internal/model"
)

// Store runs reservation workflows inside a single transaction.  The
// function passed to InTx sees a consistent snapshot with row locks;
// returning an error rolls everything back.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// ListByUser reads a user's reservations newest first, outside of
	// any write transaction.
	ListByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error)
}

// Tx exposes the row-level operations a reservation workflow needs.
// Implementations lock the rows they return so concurrent workflows on
// the same event or reservation serialize.
type Tx interface {
	// EventForUpdate locks and returns an active event.
	EventForUpdate(ctx context.Context, eventID uint64) (*model.Event, error)

	// AnyEventForUpdate locks and returns an event regardless of its
	// active flag.  Settlement of existing reservations must keep
	// working after an event is deactivated.
	AnyEventForUpdate(ctx context.Context, eventID uint64) (*model.Event, error)

	// ReserveTickets atomically decrements availability.  It returns
	// ErrInsufficientTickets when fewer than qty tickets remain,
	// leaving the row untouched.
	ReserveTickets(ctx context.Context, eventID uint64, qty int) error

	// ReleaseTickets returns qty tickets to the event, capped at the
	// event's total capacity.
	ReleaseTickets(ctx context.Context, eventID uint64, qty int) error

	// InsertReservation persists a new reservation and fills in its
	// generated ID and timestamps.
	InsertReservation(ctx context.Context, res *model.Reservation) error

	// ReservationForUpdate locks and returns a reservation owned by
	// the given user.
	ReservationForUpdate(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error)

	// UpdateReservation persists a status transition.
	UpdateReservation(ctx context.Context, res *model.Reservation) error

	// ExpireHolds cancels the event's lapsed PENDING holds and returns
	// the ticket quantity to release.
	ExpireHolds(ctx context.Context, eventID uint64, now time.Time) (int, error)

	// ExpireHoldsForUser sweeps all of one user's lapsed holds,
	// releasing tickets back to each affected event.
	ExpireHoldsForUser(ctx context.Context, userID uint64, now time.Time) error
}

// SQLStore bundles the event and reservation repositories behind the
// Store facade so the service layer never touches database/sql.
type SQLStore struct {
	db           *sql.DB
	events       *EventRepo
	reservations *ReservationRepo
}

// NewSQLStore returns a store over the given repositories.  Both must
// be bound to the same database handle.
func NewSQLStore(db *sql.DB, events *EventRepo, reservations *ReservationRepo) *SQLStore {
	return &SQLStore{db: db, events: events, reservations: reservations}
}

// sqlTx is the per-transaction view handed to workflow callbacks.
type sqlTx struct {
	tx    *sql.Tx
	store *SQLStore
}

// InTx begins a transaction, invokes fn with a transactional view and
// commits on success.  Any error from fn rolls the transaction back and
// is returned unchanged so sentinel checks keep working.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&sqlTx{tx: tx, store: s}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListByUser reads a user's reservations newest first.
func (s *SQLStore) ListByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	return s.reservations.ListByUser(ctx, userID)
}

func (t *sqlTx) EventForUpdate(ctx context.Context, eventID uint64) (*model.Event, error) {
	return t.store.events.GetByIDTx(ctx, t.tx, eventID)
}

func (t *sqlTx) AnyEventForUpdate(ctx context.Context, eventID uint64) (*model.Event, error) {
	return t.store.events.GetAnyByIDTx(ctx, t.tx, eventID)
}

func (t *sqlTx) ReserveTickets(ctx context.Context, eventID uint64, qty int) error {
	return t.store.events.ReserveTicketsTx(ctx, t.tx, eventID, qty)
}

func (t *sqlTx) ReleaseTickets(ctx context.Context, eventID uint64, qty int) error {
	return t.store.events.ReleaseTicketsTx(ctx, t.tx, eventID, qty)
}

func (t *sqlTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	return t.store.reservations.CreateTx(ctx, t.tx, res)
}

func (t *sqlTx) ReservationForUpdate(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	return t.store.reservations.GetForUserTx(ctx, t.tx, reservationID, userID)
}

func (t *sqlTx) UpdateReservation(ctx context.Context, res *model.Reservation) error {
	return t.store.reservations.UpdateStatusTx(ctx, t.tx, res)
}

func (t *sqlTx) ExpireHolds(ctx context.Context, eventID uint64, now time.Time) (int, error) {
	return t.store.reservations.ExpireHoldsByEventTx(ctx, t.tx, eventID, now)
}

func (t *sqlTx) ExpireHoldsForUser(ctx context.Context, userID uint64, now time.Time) error {
	return t.store.reservations.ExpireHoldsByUserTx(ctx, t.tx, t.store.events, userID, now)
}
