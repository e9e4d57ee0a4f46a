package model

import (
	"encoding/json"
	"math"
	"time"
)

// Event represents a ticketed event with a finite capacity.  Pricing is
// stored in integer cents so that unit price times quantity is always
// exact.  AvailableTickets is maintained in the same transaction as every
// reservation state change; the derived figures (tickets sold, occupancy,
// sold out) are never stored and are always computed from capacity and
// the current availability so they cannot drift apart.
//
// Fields:
//  ID               – primary key identifier.
//  Title            – public name of the event.
//  Description      – optional long-form description.
//  EventDate        – when the event takes place (UTC).
//  VenueName        – venue display name.
//  VenueAddress     – venue street address.
//  TotalCapacity    – immutable once the event is created.
//  AvailableTickets – capacity minus tickets held by non-cancelled
//                     reservations with live holds.
//  TicketPriceCents – current price per ticket in cents.
//  IsActive         – soft-delete flag; inactive events are hidden.
type Event struct {
	ID               uint64    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	EventDate        time.Time `json:"event_date"`
	VenueName        string    `json:"venue_name"`
	VenueAddress     string    `json:"venue_address"`
	TotalCapacity    int       `json:"total_capacity"`
	AvailableTickets int       `json:"available_tickets"`
	TicketPriceCents int64     `json:"ticket_price_cents"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TicketsSold returns how many tickets are currently counted against
// capacity, i.e. held by PENDING or CONFIRMED reservations.
func (e *Event) TicketsSold() int {
	return e.TotalCapacity - e.AvailableTickets
}

// OccupancyRate returns the sold percentage of capacity, rounded to two
// decimals.  A zero-capacity event reports 0 rather than dividing by zero.
func (e *Event) OccupancyRate() float64 {
	if e.TotalCapacity == 0 {
		return 0
	}
	rate := float64(e.TicketsSold()) / float64(e.TotalCapacity) * 100
	return math.Round(rate*100) / 100
}

// IsSoldOut reports whether no tickets remain available.
func (e *Event) IsSoldOut() bool {
	return e.AvailableTickets <= 0
}

// IsUpcoming reports whether the event has not yet taken place.
func (e *Event) IsUpcoming() bool {
	return e.UpcomingAt(time.Now().UTC())
}

// UpcomingAt is the pure form of IsUpcoming for callers that carry their
// own clock (the lifecycle engine and tests).
func (e *Event) UpcomingAt(now time.Time) bool {
	return e.EventDate.After(now)
}

// CanReserveTickets reports whether the requested quantity could be
// reserved right now: the event must be active, upcoming and have at
// least that many tickets left.
func (e *Event) CanReserveTickets(quantity int, now time.Time) bool {
	return e.IsActive && e.UpcomingAt(now) && quantity > 0 && e.AvailableTickets >= quantity
}

// MarshalJSON emits the stored fields along with the derived availability
// figures so API consumers never have to recompute them.  The derived
// values are produced at marshal time from capacity and availability.
func (e *Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		*alias
		TicketsSold   int     `json:"tickets_sold"`
		OccupancyRate float64 `json:"occupancy_rate"`
		IsSoldOut     bool    `json:"is_sold_out"`
		IsUpcoming    bool    `json:"is_upcoming"`
	}{
		alias:         (*alias)(e),
		TicketsSold:   e.TicketsSold(),
		OccupancyRate: e.OccupancyRate(),
		IsSoldOut:     e.IsSoldOut(),
		IsUpcoming:    e.IsUpcoming(),
	})
}
