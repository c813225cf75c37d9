package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acadops/room-scheduler/internal/model"
)

// ListRooms handles GET /v1/rooms. It returns every room including those
// under maintenance, with the flag exposed so the UI can grey them out.
func (h *ScheduleHandler) ListRooms(c echo.Context) error {
	rooms, err := h.RoomRepo.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load rooms"})
	}
	items := make([]echo.Map, 0, len(rooms))
	for _, r := range rooms {
		items = append(items, echo.Map{
			"id":                r.ID,
			"name":              r.Name,
			"capacity":          r.Capacity,
			"location":          r.Location,
			"under_maintenance": r.UnderMaintenance,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListRoomSessions handles GET /v1/rooms/:id/sessions. Optional from/to
// query parameters (RFC3339) bound the listing to sessions overlapping
// that range; the polling UI calls this with the visible week.
func (h *ScheduleHandler) ListRoomSessions(c echo.Context) error {
	roomID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	ctx := c.Request().Context()
	if ok, err := h.RoomRepo.Exists(ctx, roomID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	} else if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	var from, to *time.Time
	if raw := c.QueryParam("from"); raw != "" {
		t, ok := parseRFC3339(raw)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be RFC3339"})
		}
		from = &t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, ok := parseRFC3339(raw)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be RFC3339"})
		}
		to = &t
	}
	items, err := h.SessionRepo.ListByRoom(ctx, roomID, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load sessions"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetRoomAvailability handles GET /v1/rooms/:id/availability. Required
// starts_at/ends_at (RFC3339) describe the candidate window; optional
// exclude_session and exclude_class apply the same exclusion rules as
// the booking path. The response carries conflicting-session details so
// schedulers can tell the caller which class holds the room.
func (h *ScheduleHandler) GetRoomAvailability(c echo.Context) error {
	roomID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	start, ok := parseRFC3339(c.QueryParam("starts_at"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}
	end, ok := parseRFC3339(c.QueryParam("ends_at"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be RFC3339"})
	}
	excludeSession, ok := queryID(c, "exclude_session")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid exclude_session"})
	}
	excludeClass, ok := queryID(c, "exclude_class")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid exclude_class"})
	}
	av, err := h.Scheduler.RoomAvailability(c.Request().Context(), roomID, model.NewTimeWindow(start, end), excludeSession, excludeClass)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, av)
}

// GetRoomLock handles GET /v1/rooms/:id/lock. The optional at parameter
// (RFC3339) defaults to now. Lock state is computed from stored sessions
// on every call; the 30-second UI poller hits this endpoint through the
// response cache.
func (h *ScheduleHandler) GetRoomLock(c echo.Context) error {
	roomID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	at := time.Now().UTC()
	if raw := c.QueryParam("at"); raw != "" {
		t, ok := parseRFC3339(raw)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "at must be RFC3339"})
		}
		at = t
	}
	locked, err := h.Scheduler.IsRoomCurrentlyLocked(c.Request().Context(), roomID, at)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"room_id": roomID,
		"at":      at.Format(time.RFC3339),
		"locked":  locked,
	})
}
