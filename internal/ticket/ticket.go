// Package ticket builds printable ticket artifacts for confirmed
// reservations.  Everything here is pure: inputs in, document and
// verification payload out, no storage or network access.
package ticket

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/avetisk/event-ticketing/internal/model"
)

// ErrNotConfirmed is returned when a ticket is requested for a
// reservation that is not CONFIRMED.
var ErrNotConfirmed = errors.New("reservation is not confirmed")

// QRCodeGenerator renders the verification payload as a QR image.
// The default implementation wraps skip2/go-qrcode; tests may substitute
// a stub.
type QRCodeGenerator interface {
	Generate(data string, size int) ([]byte, error)
}

// DefaultQRCodeGenerator encodes PNG QR codes at high recovery level so
// tickets survive crumpled printouts.
type DefaultQRCodeGenerator struct{}

func (DefaultQRCodeGenerator) Generate(data string, size int) ([]byte, error) {
	return qrcode.Encode(data, qrcode.High, size)
}

// VerificationPayload is the machine-readable side of a ticket.  Gate
// scanners parse it from the QR code.  The Verified flag marks the
// payload as issued by this service; ValidateTicketData checks shape,
// not authenticity.
type VerificationPayload struct {
	ReservationID    uint64 `json:"reservation_id"`
	EventID          uint64 `json:"event_id"`
	EventTitle       string `json:"event_title"`
	EventDate        string `json:"event_date"`
	VenueName        string `json:"venue_name"`
	VenueAddress     string `json:"venue_address,omitempty"`
	HolderName       string `json:"holder_name"`
	HolderEmail      string `json:"holder_email"`
	TicketQuantity   int    `json:"ticket_quantity"`
	PaymentReference string `json:"payment_reference,omitempty"`
	Verified         bool   `json:"verified"`
	IssuedAt         string `json:"issued_at"`
}

// Artifact bundles the three renditions of one ticket: a printable
// document, the JSON verification payload, and that payload as a QR
// PNG.
type Artifact struct {
	Document string
	Payload  []byte
	QRPNG    []byte
}

// Issuer produces ticket artifacts.  The zero value is not usable; use
// NewIssuer.
type Issuer struct {
	qr  QRCodeGenerator
	now func() time.Time
}

// NewIssuer returns an Issuer using the given QR generator, or the
// default one when nil.
func NewIssuer(qr QRCodeGenerator) *Issuer {
	if qr == nil {
		qr = DefaultQRCodeGenerator{}
	}
	return &Issuer{qr: qr, now: time.Now}
}

// Issue builds the ticket artifact for a CONFIRMED reservation.  The
// event and holder must be the reservation's own; the function does not
// cross-check IDs.  Non-CONFIRMED reservations fail with
// ErrNotConfirmed.
func (i *Issuer) Issue(res *model.Reservation, ev *model.Event, holder *model.User) (*Artifact, error) {
	if res.Status != model.ReservationConfirmed {
		return nil, ErrNotConfirmed
	}
	payload := VerificationPayload{
		ReservationID:    res.ID,
		EventID:          ev.ID,
		EventTitle:       ev.Title,
		EventDate:        ev.EventDate.UTC().Format(time.RFC3339),
		VenueName:        ev.VenueName,
		VenueAddress:     ev.VenueAddress,
		HolderName:       holder.FullName,
		HolderEmail:      holder.Email,
		TicketQuantity:   res.TicketQuantity,
		PaymentReference: res.PaymentReference,
		Verified:         true,
		IssuedAt:         i.now().UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	png, err := i.qr.Generate(string(raw), 512)
	if err != nil {
		return nil, fmt.Errorf("generate qr: %w", err)
	}
	return &Artifact{
		Document: renderDocument(res, ev, holder, payload.IssuedAt),
		Payload:  raw,
		QRPNG:    png,
	}, nil
}

func renderDocument(res *model.Reservation, ev *model.Event, holder *model.User, issuedAt string) string {
	var b strings.Builder
	rule := strings.Repeat("=", 46)
	b.WriteString(rule + "\n")
	b.WriteString("                EVENT TICKET\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Reservation : #%d\n", res.ID)
	fmt.Fprintf(&b, "Event       : %s\n", ev.Title)
	fmt.Fprintf(&b, "Date        : %s\n", ev.EventDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&b, "Venue       : %s\n", ev.VenueName)
	if ev.VenueAddress != "" {
		fmt.Fprintf(&b, "Address     : %s\n", ev.VenueAddress)
	}
	fmt.Fprintf(&b, "Holder      : %s <%s>\n", holder.FullName, holder.Email)
	fmt.Fprintf(&b, "Tickets     : %d x %s\n", res.TicketQuantity, formatCents(res.UnitPriceCents))
	fmt.Fprintf(&b, "Total       : %s\n", formatCents(res.TotalAmountCents))
	fmt.Fprintf(&b, "Status      : %s / %s\n",
		model.FormatReservationStatus(res.Status), model.FormatPaymentStatus(res.PaymentStatus))
	if res.PaymentReference != "" {
		fmt.Fprintf(&b, "Payment ref : %s\n", res.PaymentReference)
	}
	fmt.Fprintf(&b, "Issued      : %s\n", issuedAt)
	b.WriteString(rule + "\n")
	b.WriteString("Present the QR code at the entrance.\n")
	return b.String()
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// ValidateTicketData checks that raw bytes parse as a verification
// payload with all required fields present and the verified flag set.
// It is a format check, not a cryptographic proof of authenticity.
func ValidateTicketData(raw []byte) (*VerificationPayload, error) {
	var p VerificationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed ticket payload: %w", err)
	}
	switch {
	case !p.Verified:
		return nil, errors.New("ticket payload is not marked verified")
	case p.ReservationID == 0:
		return nil, errors.New("ticket payload missing reservation id")
	case p.EventID == 0 || p.EventTitle == "":
		return nil, errors.New("ticket payload missing event identity")
	case p.EventDate == "":
		return nil, errors.New("ticket payload missing event date")
	case p.HolderName == "" || p.HolderEmail == "":
		return nil, errors.New("ticket payload missing holder identity")
	case p.TicketQuantity <= 0:
		return nil, errors.New("ticket payload has invalid quantity")
	}
	if _, err := time.Parse(time.RFC3339, p.EventDate); err != nil {
		return nil, fmt.Errorf("ticket payload has invalid event date: %w", err)
	}
	return &p, nil
}
