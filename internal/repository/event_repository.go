package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/avetisk/event-ticketing/internal/model"
)

// EventRepo provides data access for the events table.  Availability is
// mutated only through ReserveTicketsTx and ReleaseTicketsTx so that it
// changes in the same transaction as the reservation rows that justify
// the change.  All timestamps are stored in UTC.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions
// spanning multiple repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, title, description, event_date, venue_name, venue_address,
	total_capacity, available_tickets, ticket_price_cents, is_active, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var ev model.Event
	var desc sql.NullString
	if err := row.Scan(
		&ev.ID, &ev.Title, &desc, &ev.EventDate, &ev.VenueName, &ev.VenueAddress,
		&ev.TotalCapacity, &ev.AvailableTickets, &ev.TicketPriceCents, &ev.IsActive,
		&ev.CreatedAt, &ev.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ev.Description = desc.String
	return &ev, nil
}

// Create inserts a new event.  All tickets start available: the caller
// provides the capacity and the row is initialized with
// available_tickets equal to it.  The generated ID and timestamps are
// populated on the provided model.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events
		(title, description, event_date, venue_name, venue_address,
		 total_capacity, available_tickets, ticket_price_cents, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE)`
	res, err := r.db.ExecContext(ctx, q,
		ev.Title, ev.Description, ev.EventDate.UTC(), ev.VenueName, ev.VenueAddress,
		ev.TotalCapacity, ev.TotalCapacity, ev.TicketPriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults.
	got, err := r.GetByID(ctx, ev.ID)
	if err != nil {
		return err
	}
	*ev = *got
	return nil
}

// GetByID returns an active event by ID, or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? AND is_active = TRUE`, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	return ev, err
}

// GetByIDTx is GetByID inside an existing transaction with a row lock,
// used by the reservation engine so capacity checks and decrements see a
// consistent row.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? AND is_active = TRUE FOR UPDATE`, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	return ev, err
}

// GetAnyByIDTx loads an event inside a transaction with a row lock,
// including soft-deleted events.  Reservation settlement (payment,
// cancellation, hold expiry) must keep working after an event is
// deactivated, since reservations still reference the row.
func (r *EventRepo) GetAnyByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? FOR UPDATE`, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	return ev, err
}

// ListFilter narrows and pages the public event listing.
type ListFilter struct {
	Search        string // matches title, description or venue name
	UpcomingOnly  bool
	AvailableOnly bool
	Page          int // 1-based
	PerPage       int
}

// List returns active events ordered by event date ascending, applying
// the filter, plus the total row count for pagination metadata.
func (r *EventRepo) List(ctx context.Context, f ListFilter) ([]*model.Event, int, error) {
	where := []string{"is_active = TRUE"}
	args := []any{}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(title LIKE ? OR description LIKE ? OR venue_name LIKE ?)")
		pat := "%" + s + "%"
		args = append(args, pat, pat, pat)
	}
	if f.UpcomingOnly {
		where = append(where, "event_date > UTC_TIMESTAMP()")
	}
	if f.AvailableOnly {
		where = append(where, "available_tickets > 0")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	q := `SELECT ` + eventColumns + ` FROM events WHERE ` + cond +
		` ORDER BY event_date ASC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	events := make([]*model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// Update modifies the mutable fields of an event.  Capacity is immutable
// once the event exists; availability moves only with reservations.
func (r *EventRepo) Update(ctx context.Context, ev *model.Event) error {
	const q = `UPDATE events SET title = ?, description = ?, event_date = ?,
		venue_name = ?, venue_address = ?, ticket_price_cents = ?
		WHERE id = ? AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, q,
		ev.Title, ev.Description, ev.EventDate.UTC(), ev.VenueName, ev.VenueAddress,
		ev.TicketPriceCents, ev.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// SoftDelete marks an event inactive.  Rows are never removed while
// reservations reference them.
func (r *EventRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET is_active = FALSE WHERE id = ? AND is_active = TRUE`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ReserveTicketsTx decrements availability by qty, but only when at
// least qty tickets remain.  The WHERE clause is the tie-break for the
// last tickets: whichever transaction commits this update first wins and
// the loser gets ErrInsufficientTickets, so available_tickets can never
// go negative.
func (r *EventRepo) ReserveTicketsTx(ctx context.Context, tx *sql.Tx, eventID uint64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET available_tickets = available_tickets - ?
		 WHERE id = ? AND available_tickets >= ?`,
		qty, eventID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientTickets
	}
	return nil
}

// ReleaseTicketsTx returns qty tickets to the available pool, capped at
// total capacity so a double release can never inflate availability.
func (r *EventRepo) ReleaseTicketsTx(ctx context.Context, tx *sql.Tx, eventID uint64, qty int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE events SET available_tickets = LEAST(available_tickets + ?, total_capacity)
		 WHERE id = ?`,
		qty, eventID)
	return err
}
