// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/avetisk/event-ticketing/internal/config"
	"github.com/avetisk/event-ticketing/internal/handler"
	"github.com/avetisk/event-ticketing/internal/middleware"
	"github.com/avetisk/event-ticketing/internal/model"
)

// Handlers bundles everything the route table needs.
type Handlers struct {
	Auth         *handler.AuthHandler
	Events       *handler.EventHandler
	Reservations *handler.ReservationHandler
}

// Register wires the full route table onto the Echo instance.
//
// Public:     health check, auth endpoints, event catalogue.
// Customer:   reservation lifecycle and profile, behind JWTAuth.
// Admin:      event management, additionally behind RequireRole(ADMIN).
//
// The Redis-backed response cache and rate limiter wrap only the public
// catalogue, where responses are shareable across users.
func Register(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	// Auth endpoints that do not require an existing session.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/refresh-access", h.Auth.RefreshAccess)
	// Logout works with either a bearer token or a refresh_token body,
	// so it stays outside the JWT middleware.
	auth.POST("/logout", h.Auth.Logout)

	// Public event catalogue, cached and rate limited.
	public := e.Group("/v1")
	if rdb != nil {
		public.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
		public.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	}
	public.GET("/events", h.Events.List)
	public.GET("/events/:id", h.Events.Get)

	// Authenticated endpoints.
	user := e.Group("/v1")
	user.Use(middleware.JWTAuth(cfg.JWTSecret))
	user.Use(middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	user.GET("/me", h.Auth.Me)
	user.POST("/reservations", h.Reservations.Create)
	user.GET("/reservations", h.Reservations.List)
	user.GET("/reservations/:id", h.Reservations.Get)
	user.POST("/reservations/:id/payment", h.Reservations.Payment)
	user.POST("/reservations/:id/cancel", h.Reservations.Cancel)
	user.GET("/reservations/:id/ticket", h.Reservations.Ticket)

	// Event management is admin only.
	admin := e.Group("/v1")
	admin.Use(middleware.JWTAuth(cfg.JWTSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/events", h.Events.Create)
	admin.PUT("/events/:id", h.Events.Update)
	admin.DELETE("/events/:id", h.Events.Delete)
}
