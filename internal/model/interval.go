package model

import "time"

// TimeWindow is a half-open interval [Start, End) on the absolute UTC
// timeline.  All scheduling comparisons in the engine go through this type
// so that boundary semantics stay in one place: a session ending at T and
// another starting at T do not overlap.
// NOTE: instants are stored and compared in UTC; any civil-time display
// conversion happens outside this engine.
type TimeWindow struct {
	Start time.Time // inclusive lower bound
	End   time.Time // exclusive upper bound
}

// NewTimeWindow builds a window with both instants normalized to UTC.
func NewTimeWindow(start, end time.Time) TimeWindow {
	return TimeWindow{Start: start.UTC(), End: end.UTC()}
}

// Valid reports whether the window is well formed, i.e. Start is strictly
// before End.  A zero-length or inverted window is never bookable.
func (w TimeWindow) Valid() bool {
	return w.Start.Before(w.End)
}

// Overlaps reports whether two half-open windows share at least one instant.
// Touching boundaries (w.End == o.Start or vice versa) do not overlap, which
// is what allows back-to-back bookings in the same room.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether the instant falls inside the window under
// half-open semantics: true at Start, false at End.  Used by the
// "currently occupied" queries.
func (w TimeWindow) Contains(at time.Time) bool {
	at = at.UTC()
	return !at.Before(w.Start) && at.Before(w.End)
}

// Duration returns End minus Start.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
