package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe used by load balancers and monitoring.
// It deliberately touches neither the database nor the broker: the
// engine degrades gracefully without them and should not be restarted
// because a collaborator is down.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
