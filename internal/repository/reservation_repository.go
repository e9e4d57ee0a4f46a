package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avetisk/event-ticketing/internal/model"
)

// ErrReservationNotFound is returned when a reservation does not exist
// or is not visible to the calling user.
var ErrReservationNotFound = errors.New("reservation not found")

// ReservationRepo provides data access for the reservations table.  All
// state transitions run inside a caller-supplied transaction together
// with the matching availability change on the events row, so the two
// can never diverge.  Timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given
// database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, event_id, ticket_quantity, unit_price_cents,
	total_amount_cents, reservation_status, payment_status, payment_reference,
	hold_expires_at, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var res model.Reservation
	var ref sql.NullString
	if err := row.Scan(
		&res.ID, &res.UserID, &res.EventID, &res.TicketQuantity, &res.UnitPriceCents,
		&res.TotalAmountCents, &res.Status, &res.PaymentStatus, &ref,
		&res.HoldExpiresAt, &res.CreatedAt, &res.UpdatedAt,
	); err != nil {
		return nil, err
	}
	res.PaymentReference = ref.String
	return &res, nil
}

// CreateTx inserts a new reservation within an existing transaction and
// populates the generated ID and timestamps on the provided model.  The
// caller must have already decremented the event's availability in the
// same transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
		(user_id, event_id, ticket_quantity, unit_price_cents, total_amount_cents,
		 reservation_status, payment_status, hold_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.UserID, res.EventID, res.TicketQuantity, res.UnitPriceCents, res.TotalAmountCents,
		res.Status, res.PaymentStatus, res.HoldExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults.
	row := tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, res.ID)
	got, err := scanReservation(row)
	if err != nil {
		return err
	}
	*res = *got
	return nil
}

// GetForUserTx loads a reservation by ID with a row lock, enforcing
// ownership.  ErrReservationNotFound is returned when no row exists;
// ErrForbidden when the row belongs to a different user.
func (r *ReservationRepo) GetForUserTx(ctx context.Context, tx *sql.Tx, reservationID, userID uint64) (*model.Reservation, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, reservationID)
	res, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, ErrForbidden
	}
	return res, nil
}

// UpdateStatusTx persists a status transition.  Reservation status,
// payment status, payment reference and updated_at move together in one
// statement so the paired statuses cannot be half-applied.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	var ref any
	if res.PaymentReference != "" {
		ref = res.PaymentReference
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE reservations
		 SET reservation_status = ?, payment_status = ?, payment_reference = ?, updated_at = UTC_TIMESTAMP()
		 WHERE id = ?`,
		res.Status, res.PaymentStatus, ref, res.ID)
	if err != nil {
		return err
	}
	// Reload updated_at so callers return the persisted timestamp.
	return tx.QueryRowContext(ctx,
		`SELECT updated_at FROM reservations WHERE id = ?`, res.ID).Scan(&res.UpdatedAt)
}

// ExpireHoldsByEventTx cancels every PENDING reservation on the event
// whose hold has lapsed and returns the total quantity released.  The
// caller must return that quantity to the event's availability within
// the same transaction.  Re-running the sweep is a no-op because
// already cancelled rows no longer match.
func (r *ReservationRepo) ExpireHoldsByEventTx(ctx context.Context, tx *sql.Tx, eventID uint64, now time.Time) (int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, ticket_quantity FROM reservations
		 WHERE event_id = ? AND reservation_status = ? AND hold_expires_at <= ?
		 FOR UPDATE`,
		eventID, model.ReservationPending, now.UTC())
	if err != nil {
		return 0, err
	}
	released := 0
	matched := 0
	for rows.Next() {
		var id uint64
		var qty int
		if scanErr := rows.Scan(&id, &qty); scanErr != nil {
			rows.Close()
			return 0, scanErr
		}
		matched++
		released += qty
	}
	if err = rows.Close(); err != nil {
		return 0, err
	}
	if matched == 0 {
		return 0, nil
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE reservations SET reservation_status = ?, updated_at = UTC_TIMESTAMP()
		 WHERE event_id = ? AND reservation_status = ? AND hold_expires_at <= ?`,
		model.ReservationCancelled, eventID, model.ReservationPending, now.UTC())
	if err != nil {
		return 0, err
	}
	return released, nil
}

// ExpireHoldsByUserTx is the per-user variant of the lazy sweep, run
// before listing a user's reservations.  It cancels the user's lapsed
// PENDING holds and releases their tickets event by event.
func (r *ReservationRepo) ExpireHoldsByUserTx(ctx context.Context, tx *sql.Tx, events *EventRepo, userID uint64, now time.Time) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, event_id, ticket_quantity FROM reservations
		 WHERE user_id = ? AND reservation_status = ? AND hold_expires_at <= ?
		 FOR UPDATE`,
		userID, model.ReservationPending, now.UTC())
	if err != nil {
		return err
	}
	type expired struct {
		id      uint64
		eventID uint64
		qty     int
	}
	var lapsed []expired
	for rows.Next() {
		var e expired
		if scanErr := rows.Scan(&e.id, &e.eventID, &e.qty); scanErr != nil {
			rows.Close()
			return scanErr
		}
		lapsed = append(lapsed, e)
	}
	if err = rows.Close(); err != nil {
		return err
	}
	for _, e := range lapsed {
		if _, err := tx.ExecContext(ctx,
			`UPDATE reservations SET reservation_status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
			model.ReservationCancelled, e.id); err != nil {
			return err
		}
		if err := events.ReleaseTicketsTx(ctx, tx, e.eventID, e.qty); err != nil {
			return err
		}
	}
	return nil
}

// ListByUser returns all of a user's reservations newest first, with the
// owning event attached to each so clients can render without a second
// round trip.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	const q = `SELECT r.id, r.user_id, r.event_id, r.ticket_quantity, r.unit_price_cents,
			r.total_amount_cents, r.reservation_status, r.payment_status, r.payment_reference,
			r.hold_expires_at, r.created_at, r.updated_at,
			e.id, e.title, e.description, e.event_date, e.venue_name, e.venue_address,
			e.total_capacity, e.available_tickets, e.ticket_price_cents, e.is_active,
			e.created_at, e.updated_at
		FROM reservations r
		JOIN events e ON e.id = r.event_id
		WHERE r.user_id = ?
		ORDER BY r.created_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]*model.Reservation, 0)
	for rows.Next() {
		var res model.Reservation
		var ev model.Event
		var ref, desc sql.NullString
		if err := rows.Scan(
			&res.ID, &res.UserID, &res.EventID, &res.TicketQuantity, &res.UnitPriceCents,
			&res.TotalAmountCents, &res.Status, &res.PaymentStatus, &ref,
			&res.HoldExpiresAt, &res.CreatedAt, &res.UpdatedAt,
			&ev.ID, &ev.Title, &desc, &ev.EventDate, &ev.VenueName, &ev.VenueAddress,
			&ev.TotalCapacity, &ev.AvailableTickets, &ev.TicketPriceCents, &ev.IsActive,
			&ev.CreatedAt, &ev.UpdatedAt,
		); err != nil {
			return nil, err
		}
		res.PaymentReference = ref.String
		ev.Description = desc.String
		res.Event = &ev
		list = append(list, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
