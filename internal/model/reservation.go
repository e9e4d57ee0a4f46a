package model

import "time"

// ReservationStatus enumerates the lifecycle states of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"   // tickets held, payment outstanding
	ReservationConfirmed ReservationStatus = "CONFIRMED" // payment completed
	ReservationCancelled ReservationStatus = "CANCELLED" // cancelled by user, payment failure or hold expiry
)

// PaymentStatus enumerates the payment processing states.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// HoldWindow is how long a PENDING reservation keeps its tickets claimed
// before it becomes eligible for lazy cancellation.
const HoldWindow = 15 * time.Minute

// MaxTicketsPerReservation caps the quantity of a single reservation.
const MaxTicketsPerReservation = 10

// Reservation links a user to an event with a ticket quantity and payment
// tracking.  UnitPriceCents is a snapshot of the event's price taken at
// creation time and never refreshed, so later price changes cannot alter
// what an existing reservation owes.  TotalAmountCents is always
// UnitPriceCents times TicketQuantity.
//
// A reservation's quantity counts against its event's capacity while the
// status is PENDING (with a live hold) or CONFIRMED.  CANCELLED releases
// the tickets exactly once and is terminal.
type Reservation struct {
	ID               uint64            `json:"id"`
	UserID           uint64            `json:"user_id"`
	EventID          uint64            `json:"event_id"`
	TicketQuantity   int               `json:"ticket_quantity"`
	UnitPriceCents   int64             `json:"unit_price_cents"`
	TotalAmountCents int64             `json:"total_amount_cents"`
	Status           ReservationStatus `json:"reservation_status"`
	PaymentStatus    PaymentStatus     `json:"payment_status"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	HoldExpiresAt    time.Time         `json:"hold_expires_at"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`

	// Related entities; populated on API responses, nil when the caller
	// only has the bare row.
	Event *Event `json:"event,omitempty"`
	User  *User  `json:"user,omitempty"`
}

// IsActive reports whether the reservation still counts against its
// event's capacity.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationPending || r.Status == ReservationConfirmed
}

// IsExpired reports whether a PENDING reservation's hold has lapsed at
// the given instant.  Non-pending reservations never expire; their
// outcome is already settled.
func (r *Reservation) IsExpired(now time.Time) bool {
	if r.Status != ReservationPending {
		return false
	}
	return !now.Before(r.HoldExpiresAt)
}

// CanBeCancelled reports whether cancellation is permitted: the
// reservation must not already be cancelled and the event must not have
// occurred.  The event parameter may be nil when the caller has no event
// loaded, in which case only the status rule is applied.
func (r *Reservation) CanBeCancelled(ev *Event, now time.Time) bool {
	if r.Status == ReservationCancelled {
		return false
	}
	if ev != nil && !ev.UpcomingAt(now) {
		return false
	}
	return true
}

// reservationStatusLabels maps each reservation status to its display
// string.  FormatReservationStatus falls back to the raw value for
// unknown statuses so the function is total.
var reservationStatusLabels = map[ReservationStatus]string{
	ReservationPending:   "Pending Payment",
	ReservationConfirmed: "Confirmed",
	ReservationCancelled: "Cancelled",
}

var paymentStatusLabels = map[PaymentStatus]string{
	PaymentPending:   "Payment Pending",
	PaymentCompleted: "Paid",
	PaymentFailed:    "Payment Failed",
	PaymentRefunded:  "Refunded",
}

// FormatReservationStatus returns a human-readable label for a
// reservation status.  Unknown values pass through unchanged.
func FormatReservationStatus(s ReservationStatus) string {
	if label, ok := reservationStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// FormatPaymentStatus returns a human-readable label for a payment
// status.  Unknown values pass through unchanged.
func FormatPaymentStatus(s PaymentStatus) string {
	if label, ok := paymentStatusLabels[s]; ok {
		return label
	}
	return string(s)
}
