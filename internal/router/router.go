package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // the Echo web framework handles routing
	"github.com/redis/go-redis/v9"

	"github.com/acadops/room-scheduler/internal/config"
	"github.com/acadops/room-scheduler/internal/handler"
	"github.com/acadops/room-scheduler/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// The GET request at path "/healthz" maps to the Health handler.  Load
	// balancers and monitoring use this endpoint to verify that the service
	// is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterSchedule registers the room and session routes.
//
// Read endpoints under /v1/rooms are open: timetable screens in hallways and
// student apps consume them without accounts.  They sit behind the redis
// response cache because the same availability question is asked many times
// per minute during enrolment weeks.
//
// Mutating endpoints require a JWT issued by the campus account service with
// the REGISTRAR or ADMIN role, plus the token-bucket rate limiter.  The bulk
// recurring route is reserved for the curriculum import job and is guarded
// by the machine API key instead of a user token.
func RegisterSchedule(e *echo.Echo, h *handler.ScheduleHandler, cfg config.Config, rdb *redis.Client) {
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// Public reads.
	rooms := e.Group("/v1/rooms", cache)
	rooms.GET("", h.ListRooms)
	rooms.GET("/:id/sessions", h.ListRoomSessions)
	rooms.GET("/:id/availability", h.GetRoomAvailability)
	rooms.GET("/:id/lock", h.GetRoomLock)

	// Booking writes.
	sessions := e.Group("/v1/sessions")
	sessions.Use(middleware.JWTAuth(cfg.JWTSecret))
	sessions.Use(middleware.RequireRole("REGISTRAR", "ADMIN"))
	sessions.Use(limit)
	sessions.POST("", h.CreateSession)
	sessions.PATCH("/:id", h.UpdateSession)
	sessions.DELETE("/:id", h.CancelSession)

	// Bulk import.  Registered outside of the JWT group: the import job
	// authenticates with X-Api-Key, not a user token.
	e.POST("/v1/sessions/recurring", h.CreateRecurringSessions,
		middleware.APIKeyAuth(cfg.APIKeyHash), limit)
}
