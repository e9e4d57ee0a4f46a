package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avetisk/event-ticketing/internal/model"
	"github.com/avetisk/event-ticketing/internal/queue"
	"github.com/avetisk/event-ticketing/internal/repository"
	"github.com/avetisk/event-ticketing/internal/service"
	"github.com/avetisk/event-ticketing/internal/ticket"
)

// ReservationHandler exposes the reservation lifecycle over HTTP.  All
// routes require authentication; ownership is enforced by the service.
type ReservationHandler struct {
	Reservations *service.ReservationService
	Users        *repository.UserRepo
	Tickets      *ticket.Issuer
}

func NewReservationHandler(svc *service.ReservationService, users *repository.UserRepo, issuer *ticket.Issuer) *ReservationHandler {
	return &ReservationHandler{Reservations: svc, Users: users, Tickets: issuer}
}

type createReservationReq struct {
	EventID        uint64 `json:"event_id"`
	TicketQuantity int    `json:"ticket_quantity"`
}

type paymentReq struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

// Create places a PENDING hold: POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.EventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Reservations.CreateReservation(ctx, uid, req.EventID, req.TicketQuantity)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"reservation": res})
}

// List returns the caller's reservations newest first:
// GET /v1/reservations.
func (h *ReservationHandler) List(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	list, err := h.Reservations.ListReservations(ctx, uid)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list, "total": len(list)})
}

// Get returns one reservation with its event:
// GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Reservations.GetReservation(ctx, uid, id)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": res})
}

// Payment settles a pending reservation:
// POST /v1/reservations/:id/payment.
func (h *ReservationHandler) Payment(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req paymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Reservations.ProcessPayment(ctx, uid, id,
		service.PaymentRequest{Method: req.Method, Reference: req.Reference})
	if err != nil {
		// The declined and expired outcomes are committed before the
		// error is returned, so the cancellation event still goes out.
		if res != nil && (errors.Is(err, service.ErrPaymentDeclined) || errors.Is(err, service.ErrHoldExpired)) {
			h.publishCancelled(res)
		}
		return h.mapError(c, err)
	}

	h.publishConfirmed(res)
	return c.JSON(http.StatusOK, echo.Map{"reservation": res})
}

// Cancel cancels a reservation: POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, changed, err := h.Reservations.CancelReservation(ctx, uid, id)
	if err != nil {
		return h.mapError(c, err)
	}
	// Repeating a cancel is fine, but only the transition itself emits
	// an event.
	if changed {
		h.publishCancelled(res)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": res})
}

// Ticket renders the printable artifact for a confirmed reservation:
// GET /v1/reservations/:id/ticket.
func (h *ReservationHandler) Ticket(c echo.Context) error {
	uid := currentUserID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Reservations.GetReservation(ctx, uid, id)
	if err != nil {
		return h.mapError(c, err)
	}
	holder, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	art, err := h.Tickets.Issue(res, res.Event, &holder)
	if err != nil {
		if errors.Is(err, ticket.ErrNotConfirmed) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not confirmed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue ticket failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"document":    art.Document,
		"payload":     json.RawMessage(art.Payload),
		"qr_code_png": base64.StdEncoding.EncodeToString(art.QRPNG),
	})
}

// mapError translates service and repository sentinels into the HTTP
// error envelope.
func (h *ReservationHandler) mapError(c echo.Context, err error) error {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "validation failed",
			"errors": map[string][]string{vErr.Field: vErr.Result.Messages()},
		})
	case errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrInsufficientTickets):
		return c.JSON(http.StatusConflict, echo.Map{"error": "not enough tickets available"})
	case errors.Is(err, service.ErrEventSoldOut):
		return c.JSON(http.StatusConflict, echo.Map{"error": "event is sold out"})
	case errors.Is(err, service.ErrEventPast):
		return c.JSON(http.StatusConflict, echo.Map{"error": "event has already occurred"})
	case errors.Is(err, service.ErrHoldExpired):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation hold has expired"})
	case errors.Is(err, service.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation state does not allow this operation"})
	case errors.Is(err, service.ErrPaymentDeclined):
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment was declined"})
	}
	log.Printf("reservation handler: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// publishConfirmed emits the confirmed event.  Broker failures are
// logged inside the publisher and deliberately not surfaced: the
// reservation is already committed.
func (h *ReservationHandler) publishConfirmed(res *model.Reservation) {
	ev := queue.ReservationConfirmedEvent{
		ReservationID:    res.ID,
		UserID:           res.UserID,
		EventID:          res.EventID,
		TicketQuantity:   res.TicketQuantity,
		TotalAmountCents: res.TotalAmountCents,
		PaymentReference: res.PaymentReference,
		ConfirmedAt:      res.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if res.Event != nil {
		ev.EventTitle = res.Event.Title
		ev.EventDate = res.Event.EventDate.UTC().Format(time.RFC3339)
		ev.VenueName = res.Event.VenueName
	}
	go func() { _ = queue.PublishReservationConfirmed(context.Background(), ev) }()
}

func (h *ReservationHandler) publishCancelled(res *model.Reservation) {
	ev := queue.ReservationCancelledEvent{
		ReservationID:    res.ID,
		UserID:           res.UserID,
		EventID:          res.EventID,
		TicketQuantity:   res.TicketQuantity,
		TotalAmountCents: res.TotalAmountCents,
		PaymentStatus:    string(res.PaymentStatus),
		CancelledAt:      res.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if res.Event != nil {
		ev.EventTitle = res.Event.Title
	}
	go func() { _ = queue.PublishReservationCancelled(context.Background(), ev) }()
}
