package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/acadops/room-scheduler/internal/config"
	"github.com/acadops/room-scheduler/internal/database"
	"github.com/acadops/room-scheduler/internal/handler"
	"github.com/acadops/room-scheduler/internal/queue"
	"github.com/acadops/room-scheduler/internal/repository"
	"github.com/acadops/room-scheduler/internal/router"
	"github.com/acadops/room-scheduler/internal/service"
)

func main() {
	// .env is optional; real deployments inject variables directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: a nil client disables the rate limiter and the
	// response cache, nothing else.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("[redis] unavailable, rate limiting and response cache disabled")
	}

	rooms := repository.NewRoomRepo(db)
	classes := repository.NewClassRepo(db)
	sessions := repository.NewSessionRepo(db)
	audit := repository.NewAuditRepo(db)
	publisher := queue.NewPublisher()

	sched := service.NewScheduler(sessions, rooms, classes, publisher, audit)
	h := handler.NewScheduleHandler(sched, sessions, rooms)

	// The occupancy consumer runs inside the same binary for small
	// deployments.  It reconnects on broker failure and never blocks the
	// HTTP server.
	go func() {
		if err := queue.StartOccupancyConsumer(); err != nil {
			log.Printf("[consumer] stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterSchedule(e, h, cfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
