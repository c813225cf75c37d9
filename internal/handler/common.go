package handler // handler defines the HTTP handlers of the scheduling engine

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// actor extracts a human-readable actor identifier for the audit trail.
// JWT-protected routes carry the subject claim in context; the machine
// route authenticated by API key falls back to a fixed label.
func actor(c echo.Context) string {
	if v := c.Get("user_id"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "api-key"
}

// pathID parses a numeric path parameter. Zero is rejected along with
// anything non-numeric.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// queryID parses an optional numeric query parameter, returning nil when
// the parameter is absent. The second return is false on a malformed value.
func queryID(c echo.Context, name string) (*uint64, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, false
	}
	return &id, true
}

// parseRFC3339 parses a required RFC3339 timestamp and normalizes it to UTC.
func parseRFC3339(raw string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// parseDate parses a calendar date in YYYY-MM-DD form as midnight UTC.
func parseDate(raw string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// parseClock parses a wall-clock time in HH:MM form.
func parseClock(raw string) (hour, minute int, ok bool) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}
