// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationConfirmedEvent is published when a reservation's payment
// settles.  It carries enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary
// database.
type ReservationConfirmedEvent struct {
	ReservationID    uint64 `json:"reservation_id"`
	UserID           uint64 `json:"user_id"`
	EventID          uint64 `json:"event_id"`
	EventTitle       string `json:"event_title"`
	EventDate        string `json:"event_date"`
	VenueName        string `json:"venue_name"`
	TicketQuantity   int    `json:"ticket_quantity"`
	TotalAmountCents int64  `json:"total_amount_cents"`
	PaymentReference string `json:"payment_reference"`
	ConfirmedAt      string `json:"confirmed_at"`
}

// ReservationCancelledEvent is published when a reservation is
// cancelled, whether by the user, a payment failure, or hold expiry.
type ReservationCancelledEvent struct {
	ReservationID    uint64 `json:"reservation_id"`
	UserID           uint64 `json:"user_id"`
	EventID          uint64 `json:"event_id"`
	EventTitle       string `json:"event_title"`
	TicketQuantity   int    `json:"ticket_quantity"`
	TotalAmountCents int64  `json:"total_amount_cents"`
	PaymentStatus    string `json:"payment_status"`
	CancelledAt      string `json:"cancelled_at"`
}
