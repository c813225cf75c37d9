package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyAuth guards machine-to-machine routes such as bulk recurring
// bookings pushed by the curriculum import job. The caller presents the raw
// key in X-Api-Key; only its bcrypt hash is kept in configuration, so a
// leaked environment dump does not reveal the key itself. An empty
// configured hash disables the route entirely.
func APIKeyAuth(keyHash string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if keyHash == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "api key access not configured"})
			}
			key := c.Request().Header.Get("X-Api-Key")
			if key == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing api key"})
			}
			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid api key"})
			}
			c.Set("user_id", "api-key")
			return next(c)
		}
	}
}
