package ticket_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avetisk/event-ticketing/internal/model"
	"github.com/avetisk/event-ticketing/internal/ticket"
)

// stubQR records what it was asked to encode instead of producing a
// real image.
type stubQR struct {
	data string
	size int
}

func (s *stubQR) Generate(data string, size int) ([]byte, error) {
	s.data = data
	s.size = size
	return []byte("png-bytes"), nil
}

func confirmedFixture() (*model.Reservation, *model.Event, *model.User) {
	date := time.Date(2026, 7, 4, 19, 30, 0, 0, time.UTC)
	res := &model.Reservation{
		ID:               42,
		Status:           model.ReservationConfirmed,
		PaymentStatus:    model.PaymentCompleted,
		PaymentReference: "PAY-abc",
		TicketQuantity:   3,
		UnitPriceCents:   2500,
		TotalAmountCents: 7500,
	}
	ev := &model.Event{
		ID:           9,
		Title:        "Jazz Night",
		EventDate:    date,
		VenueName:    "Blue Note",
		VenueAddress: "131 W 3rd St",
	}
	holder := &model.User{FullName: "Ada Lovelace", Email: "ada@example.test"}
	return res, ev, holder
}

func TestIssueConfirmedReservation(t *testing.T) {
	res, ev, holder := confirmedFixture()
	qr := &stubQR{}
	art, err := ticket.NewIssuer(qr).Issue(res, ev, holder)
	require.NoError(t, err)

	// The QR encodes exactly the JSON payload.
	require.Equal(t, string(art.Payload), qr.data)
	require.Equal(t, 512, qr.size)
	require.Equal(t, []byte("png-bytes"), art.QRPNG)

	var p ticket.VerificationPayload
	require.NoError(t, json.Unmarshal(art.Payload, &p))
	require.Equal(t, uint64(42), p.ReservationID)
	require.Equal(t, uint64(9), p.EventID)
	require.Equal(t, "Jazz Night", p.EventTitle)
	require.Equal(t, "2026-07-04T19:30:00Z", p.EventDate)
	require.Equal(t, "Ada Lovelace", p.HolderName)
	require.Equal(t, 3, p.TicketQuantity)
	require.Equal(t, "PAY-abc", p.PaymentReference)
	require.True(t, p.Verified)

	require.Contains(t, art.Document, "EVENT TICKET")
	require.Contains(t, art.Document, "Reservation : #42")
	require.Contains(t, art.Document, "Jazz Night")
	require.Contains(t, art.Document, "131 W 3rd St")
	require.Contains(t, art.Document, "3 x $25.00")
	require.Contains(t, art.Document, "Total       : $75.00")
	require.Contains(t, art.Document, "PAY-abc")
}

func TestIssueRejectsUnconfirmed(t *testing.T) {
	res, ev, holder := confirmedFixture()
	issuer := ticket.NewIssuer(&stubQR{})

	for _, status := range []model.ReservationStatus{model.ReservationPending, model.ReservationCancelled} {
		res.Status = status
		_, err := issuer.Issue(res, ev, holder)
		require.ErrorIs(t, err, ticket.ErrNotConfirmed)
	}
}

func TestIssueOmitsEmptyOptionalFields(t *testing.T) {
	res, ev, holder := confirmedFixture()
	ev.VenueAddress = ""
	res.PaymentReference = ""

	art, err := ticket.NewIssuer(&stubQR{}).Issue(res, ev, holder)
	require.NoError(t, err)
	require.NotContains(t, art.Document, "Address")
	require.NotContains(t, art.Document, "Payment ref")
	require.NotContains(t, string(art.Payload), "venue_address")
	require.NotContains(t, string(art.Payload), "payment_reference")
}

func TestValidateTicketDataRoundTrip(t *testing.T) {
	res, ev, holder := confirmedFixture()
	art, err := ticket.NewIssuer(&stubQR{}).Issue(res, ev, holder)
	require.NoError(t, err)

	p, err := ticket.ValidateTicketData(art.Payload)
	require.NoError(t, err)
	require.Equal(t, uint64(42), p.ReservationID)
	require.Equal(t, "Blue Note", p.VenueName)
}

func TestValidateTicketDataRejections(t *testing.T) {
	res, ev, holder := confirmedFixture()
	art, err := ticket.NewIssuer(&stubQR{}).Issue(res, ev, holder)
	require.NoError(t, err)

	mutate := func(fn func(m map[string]any)) []byte {
		var m map[string]any
		require.NoError(t, json.Unmarshal(art.Payload, &m))
		fn(m)
		out, err := json.Marshal(m)
		require.NoError(t, err)
		return out
	}

	cases := []struct {
		name string
		raw  []byte
	}{
		{"not json", []byte("{nope")},
		{"unverified", mutate(func(m map[string]any) { m["verified"] = false })},
		{"missing reservation", mutate(func(m map[string]any) { delete(m, "reservation_id") })},
		{"missing event title", mutate(func(m map[string]any) { m["event_title"] = "" })},
		{"missing holder", mutate(func(m map[string]any) { m["holder_email"] = "" })},
		{"zero quantity", mutate(func(m map[string]any) { m["ticket_quantity"] = 0 })},
		{"bad date", mutate(func(m map[string]any) { m["event_date"] = "next friday" })},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ticket.ValidateTicketData(tc.raw)
			require.Error(t, err)
		})
	}
}
