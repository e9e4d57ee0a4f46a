package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avetisk/event-ticketing/internal/model"
	"github.com/avetisk/event-ticketing/internal/repository"
	"github.com/avetisk/event-ticketing/internal/validation"
)

// EventHandler serves the public event catalogue and the admin-only
// management endpoints.
type EventHandler struct {
	Events *repository.EventRepo
}

func NewEventHandler(events *repository.EventRepo) *EventHandler {
	return &EventHandler{Events: events}
}

type eventReq struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	EventDate        string `json:"event_date"` // RFC3339
	VenueName        string `json:"venue_name"`
	VenueAddress     string `json:"venue_address"`
	TotalCapacity    int    `json:"total_capacity"`
	TicketPriceCents int64  `json:"ticket_price_cents"`
}

// validate accumulates all field problems so a form can show everything
// at once.  forCreate additionally checks capacity, which is immutable
// on update.
func (r *eventReq) validate(now time.Time, forCreate bool) map[string][]string {
	fields := map[string][]string{}
	if v := validation.Length("title", r.Title, 3, 200); !v.Valid {
		fields["title"] = v.Messages()
	}
	if v := validation.EventDate(r.EventDate, now); !v.Valid {
		fields["event_date"] = v.Messages()
	}
	if v := validation.Required("venue_name", r.VenueName); !v.Valid {
		fields["venue_name"] = v.Messages()
	}
	if forCreate {
		if v := validation.Range("total_capacity", int64(r.TotalCapacity), 1, 1_000_000); !v.Valid {
			fields["total_capacity"] = v.Messages()
		}
	}
	if v := validation.Range("ticket_price_cents", r.TicketPriceCents, 0, 100_000_000); !v.Valid {
		fields["ticket_price_cents"] = v.Messages()
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// List is the public catalogue: GET /v1/events with optional search,
// upcoming_only, available_only, page and per_page query parameters.
func (h *EventHandler) List(c echo.Context) error {
	f := repository.ListFilter{
		Search:        c.QueryParam("search"),
		UpcomingOnly:  boolParam(c, "upcoming_only"),
		AvailableOnly: boolParam(c, "available_only"),
		Page:          intParam(c, "page", 1),
		PerPage:       intParam(c, "per_page", 20),
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	events, total, err := h.Events.List(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list events failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"events":   events,
		"total":    total,
		"page":     f.Page,
		"per_page": f.PerPage,
	})
}

// Get returns a single active event with its derived availability
// fields.
func (h *EventHandler) Get(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"event": ev})
}

// Create adds a new event.  Admin only (enforced by route middleware).
func (h *EventHandler) Create(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if fields := req.validate(time.Now().UTC(), true); fields != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "errors": fields})
	}
	date, _ := time.Parse(time.RFC3339, req.EventDate)

	ev := &model.Event{
		Title:            strings.TrimSpace(req.Title),
		Description:      strings.TrimSpace(req.Description),
		EventDate:        date.UTC(),
		VenueName:        strings.TrimSpace(req.VenueName),
		VenueAddress:     strings.TrimSpace(req.VenueAddress),
		TotalCapacity:    req.TotalCapacity,
		TicketPriceCents: req.TicketPriceCents,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Events.Create(ctx, ev); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create event failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"event": ev})
}

// Update modifies an event's mutable fields.  Capacity is immutable
// once created, so any submitted total_capacity is ignored.
func (h *EventHandler) Update(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if fields := req.validate(time.Now().UTC(), false); fields != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "errors": fields})
	}
	date, _ := time.Parse(time.RFC3339, req.EventDate)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}

	ev.Title = strings.TrimSpace(req.Title)
	ev.Description = strings.TrimSpace(req.Description)
	ev.EventDate = date.UTC()
	ev.VenueName = strings.TrimSpace(req.VenueName)
	ev.VenueAddress = strings.TrimSpace(req.VenueAddress)
	ev.TicketPriceCents = req.TicketPriceCents

	if err := h.Events.Update(ctx, ev); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update event failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"event": ev})
}

// Delete soft-deletes an event.  Existing reservations keep working;
// the event just disappears from the public catalogue.
func (h *EventHandler) Delete(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Events.GetByID(ctx, id); err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	if err := h.Events.SoftDelete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete event failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

func boolParam(c echo.Context, name string) bool {
	v := strings.ToLower(c.QueryParam(name))
	return v == "1" || v == "true" || v == "yes"
}

func intParam(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
