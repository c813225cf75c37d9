package model

import "time"

// SessionStatus is the lifecycle state of a session.  Only ACTIVE sessions
// participate in conflict checks; CANCELLED is terminal and kept for audit
// history, never hard-deleted by this engine.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCancelled SessionStatus = "CANCELLED"
)

// Valid reports whether s is one of the known lifecycle states.  Rows are
// written through this engine only, but status still gets validated at the
// boundary so a bad value can never reach a conflict scan.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionCancelled:
		return true
	}
	return false
}

// SessionKind classifies what a booked session is for.  It is informational
// only and has no effect on conflict rules.
type SessionKind string

const (
	KindMain   SessionKind = "MAIN"
	KindMakeup SessionKind = "MAKEUP"
	KindExam   SessionKind = "EXAM"
)

// Valid reports whether k is one of the known session kinds.
func (k SessionKind) Valid() bool {
	switch k {
	case KindMain, KindMakeup, KindExam:
		return true
	}
	return false
}

// Session is a scheduled booking of a room by a class for a concrete time
// window.  Each recurrence expansion produces independent Session rows;
// there is no back-reference to the recurrence run that created one.
//
// Invariant: for any room, the ACTIVE sessions are pairwise non-overlapping
// under half-open [StartsAt, EndsAt) semantics.  The repository enforces
// this inside the check-and-insert transaction.
type Session struct {
	ID        uint64        // sessions.id
	ClassID   uint64        // sessions.class_id, owning class
	RoomID    uint64        // sessions.room_id
	StartsAt  time.Time     // sessions.starts_at (UTC)
	EndsAt    time.Time     // sessions.ends_at (UTC), strictly after StartsAt
	Kind      SessionKind   // sessions.kind
	Status    SessionStatus // sessions.status
	CreatedAt time.Time     // sessions.created_at
	UpdatedAt time.Time     // sessions.updated_at
}

// Window returns the session's booking window.
func (s Session) Window() TimeWindow {
	return TimeWindow{Start: s.StartsAt, End: s.EndsAt}
}
