package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acadops/room-scheduler/internal/model"
	"github.com/acadops/room-scheduler/internal/repository"
	"github.com/acadops/room-scheduler/internal/service"
)

// ScheduleHandler exposes the booking operations of the scheduling
// engine over HTTP. All mutating routes assume authentication middleware
// already ran; the handler only reads the actor for the audit trail.
type ScheduleHandler struct {
	Scheduler   *service.Scheduler
	SessionRepo *repository.SessionRepo // read-only listing alongside the orchestrated writes
	RoomRepo    *repository.RoomRepo
}

// NewScheduleHandler constructs a ScheduleHandler and panics if any
// dependency is nil.
func NewScheduleHandler(sched *service.Scheduler, sessionRepo *repository.SessionRepo, roomRepo *repository.RoomRepo) *ScheduleHandler {
	if sched == nil || sessionRepo == nil || roomRepo == nil {
		panic("nil dependency passed to NewScheduleHandler")
	}
	return &ScheduleHandler{Scheduler: sched, SessionRepo: sessionRepo, RoomRepo: roomRepo}
}

// sessionJSON is the wire shape of a session.
type sessionJSON struct {
	ID       uint64              `json:"id"`
	ClassID  uint64              `json:"class_id"`
	RoomID   uint64              `json:"room_id"`
	StartsAt string              `json:"starts_at"`
	EndsAt   string              `json:"ends_at"`
	Kind     model.SessionKind   `json:"kind"`
	Status   model.SessionStatus `json:"status"`
}

func toSessionJSON(s *model.Session) sessionJSON {
	return sessionJSON{
		ID:       s.ID,
		ClassID:  s.ClassID,
		RoomID:   s.RoomID,
		StartsAt: s.StartsAt.Format(time.RFC3339),
		EndsAt:   s.EndsAt.Format(time.RFC3339),
		Kind:     s.Kind,
		Status:   s.Status,
	}
}

// CreateSession handles POST /v1/sessions. The body carries the owning
// class, the room and an RFC3339 window. On success it returns 201 with
// the persisted session; an overlapping booking by another class yields
// 409 with the conflicting sessions attached.
func (h *ScheduleHandler) CreateSession(c echo.Context) error {
	var body struct {
		ClassID  uint64 `json:"class_id"`
		RoomID   uint64 `json:"room_id"`
		StartsAt string `json:"starts_at"`
		EndsAt   string `json:"ends_at"`
		Kind     string `json:"kind"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ClassID == 0 || body.RoomID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "class_id and room_id are required"})
	}
	start, ok := parseRFC3339(body.StartsAt)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}
	end, ok := parseRFC3339(body.EndsAt)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be RFC3339"})
	}
	kind := model.SessionKind(body.Kind)
	if body.Kind == "" {
		kind = model.KindMain
	}
	if !kind.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be MAIN, MAKEUP or EXAM"})
	}

	ctx := c.Request().Context()
	s, err := h.Scheduler.CreateSingle(ctx, actor(c), body.ClassID, body.RoomID, model.NewTimeWindow(start, end), kind)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// re-read the conflicting sessions for the response body; the
			// booking itself already aborted atomically
			conflicts, cerr := h.SessionRepo.FindConflicts(ctx, body.RoomID, model.NewTimeWindow(start, end), nil, nil)
			if cerr != nil {
				conflicts = nil
			}
			return c.JSON(http.StatusConflict, echo.Map{
				"error":     "room already booked for an overlapping window",
				"conflicts": conflicts,
			})
		}
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"session": toSessionJSON(s)})
}

// CreateRecurringSessions handles POST /v1/sessions/recurring. It
// expands the recurrence spec and books each candidate window in order,
// returning a per-window outcome so callers can reconcile partial
// success. The batch never aborts on a conflict; 200 is returned even
// when some windows were skipped.
func (h *ScheduleHandler) CreateRecurringSessions(c echo.Context) error {
	var body struct {
		ClassID    uint64 `json:"class_id"`
		RoomID     uint64 `json:"room_id"`
		AnchorDate string `json:"anchor_date"` // YYYY-MM-DD
		Mode       string `json:"mode"`
		Weekdays   []int  `json:"weekdays,omitempty"` // 0=Sunday .. 6=Saturday
		StartTime  string `json:"start_time"`         // HH:MM
		EndTime    string `json:"end_time"`           // HH:MM
		EndDate    string `json:"end_date,omitempty"` // YYYY-MM-DD, inclusive
		Count      int    `json:"count,omitempty"`
		Kind       string `json:"kind"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ClassID == 0 || body.RoomID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "class_id and room_id are required"})
	}
	anchor, ok := parseDate(body.AnchorDate)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "anchor_date must be YYYY-MM-DD"})
	}
	startH, startM, ok := parseClock(body.StartTime)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be HH:MM"})
	}
	endH, endM, ok := parseClock(body.EndTime)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be HH:MM"})
	}
	spec := model.RecurrenceSpec{
		Mode:      model.RepeatMode(body.Mode),
		StartTime: model.TimeOfDay{Hour: startH, Minute: startM},
		EndTime:   model.TimeOfDay{Hour: endH, Minute: endM},
		Count:     body.Count,
	}
	for _, d := range body.Weekdays {
		if d < 0 || d > 6 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "weekdays must be 0 (Sunday) through 6 (Saturday)"})
		}
		spec.Weekdays = append(spec.Weekdays, time.Weekday(d))
	}
	if body.EndDate != "" {
		endDate, ok := parseDate(body.EndDate)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date must be YYYY-MM-DD"})
		}
		spec.EndDate = &endDate
	}
	kind := model.SessionKind(body.Kind)
	if body.Kind == "" {
		kind = model.KindMain
	}
	if !kind.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be MAIN, MAKEUP or EXAM"})
	}

	res, err := h.Scheduler.CreateRecurring(c.Request().Context(), actor(c), body.ClassID, body.RoomID, anchor, spec, kind)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// UpdateSession handles PATCH /v1/sessions/:id. Absent fields keep their
// current value; the patched placement is re-validated against all other
// ACTIVE sessions in the target room.
func (h *ScheduleHandler) UpdateSession(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var body struct {
		RoomID   *uint64 `json:"room_id"`
		StartsAt *string `json:"starts_at"`
		EndsAt   *string `json:"ends_at"`
		Kind     *string `json:"kind"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	var patch repository.SessionPatch
	patch.RoomID = body.RoomID
	if body.StartsAt != nil {
		t, ok := parseRFC3339(*body.StartsAt)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
		}
		patch.StartsAt = &t
	}
	if body.EndsAt != nil {
		t, ok := parseRFC3339(*body.EndsAt)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be RFC3339"})
		}
		patch.EndsAt = &t
	}
	if body.Kind != nil {
		kind := model.SessionKind(*body.Kind)
		if !kind.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be MAIN, MAKEUP or EXAM"})
		}
		patch.Kind = &kind
	}

	s, err := h.Scheduler.Update(c.Request().Context(), actor(c), id, patch)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session": toSessionJSON(s)})
}

// CancelSession handles DELETE /v1/sessions/:id. The session row is kept
// with status CANCELLED; repeating the call is a no-op success.
func (h *ScheduleHandler) CancelSession(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	s, err := h.Scheduler.Cancel(c.Request().Context(), actor(c), id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session": toSessionJSON(s)})
}

// errorResponse translates service and repository errors into HTTP
// responses. Unknown errors become 500 without leaking internals.
func (h *ScheduleHandler) errorResponse(c echo.Context, err error) error {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Reason, "field": verr.Field})
	case errors.Is(err, repository.ErrRoomNotFound),
		errors.Is(err, repository.ErrClassNotFound),
		errors.Is(err, repository.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrSessionCancelled),
		errors.Is(err, repository.ErrRoomUnderMaintenance):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
