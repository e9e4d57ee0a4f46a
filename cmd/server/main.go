package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/avetisk/event-ticketing/internal/config"
	"github.com/avetisk/event-ticketing/internal/database"
	"github.com/avetisk/event-ticketing/internal/handler"
	"github.com/avetisk/event-ticketing/internal/queue"
	"github.com/avetisk/event-ticketing/internal/repository"
	"github.com/avetisk/event-ticketing/internal/router"
	"github.com/avetisk/event-ticketing/internal/service"
	"github.com/avetisk/event-ticketing/internal/ticket"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	events := repository.NewEventRepo(db)
	reservations := repository.NewReservationRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	store := repository.NewSQLStore(db, events, reservations)

	svc := service.NewReservationService(store, service.NewSimulatedGateway())
	issuer := ticket.NewIssuer(nil)

	rdb := config.NewRedisClient()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, users, tokens),
		Events:       handler.NewEventHandler(events),
		Reservations: handler.NewReservationHandler(svc, users, issuer),
	}, cfg, rdb)

	// Background audit-log consumer; reconnects on its own.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
