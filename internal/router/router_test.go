package router_test

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/avetisk/event-ticketing/internal/config"
	"github.com/avetisk/event-ticketing/internal/handler"
	"github.com/avetisk/event-ticketing/internal/router"
)

func TestRegisterWiresFullRouteTable(t *testing.T) {
	e := echo.New()
	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(config.Config{}, nil, nil),
		Events:       handler.NewEventHandler(nil),
		Reservations: handler.NewReservationHandler(nil, nil, nil),
	}, config.Config{}, nil)

	registered := map[string]bool{}
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	want := []string{
		http.MethodGet + " /healthz",
		http.MethodPost + " /v1/auth/register",
		http.MethodPost + " /v1/auth/login",
		http.MethodPost + " /v1/auth/refresh",
		http.MethodPost + " /v1/auth/refresh-access",
		http.MethodPost + " /v1/auth/logout",
		http.MethodGet + " /v1/events",
		http.MethodGet + " /v1/events/:id",
		http.MethodGet + " /v1/me",
		http.MethodPost + " /v1/reservations",
		http.MethodGet + " /v1/reservations",
		http.MethodGet + " /v1/reservations/:id",
		http.MethodPost + " /v1/reservations/:id/payment",
		http.MethodPost + " /v1/reservations/:id/cancel",
		http.MethodGet + " /v1/reservations/:id/ticket",
		http.MethodPost + " /v1/events",
		http.MethodPut + " /v1/events/:id",
		http.MethodDelete + " /v1/events/:id",
	}
	for _, route := range want {
		require.True(t, registered[route], "route %s not registered", route)
	}
}
