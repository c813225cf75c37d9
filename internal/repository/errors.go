// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting database driver errors. For example, ErrConflict signals
// that a candidate window overlaps an ACTIVE session in the target
// room, while the not-found values name the missing entity.
package repository

import "errors"

// ErrConflict is returned when a create or update cannot proceed because
// an ACTIVE session of a different class already occupies the target room
// at an overlapping time. Handlers should translate this into an HTTP
// 409 response.
var ErrConflict = errors.New("room already booked for an overlapping window")

// ErrRoomNotFound indicates that a referenced room does not exist.
var ErrRoomNotFound = errors.New("room not found")

// ErrClassNotFound indicates that a referenced class does not exist.
var ErrClassNotFound = errors.New("class not found")

// ErrSessionNotFound indicates that a referenced session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionCancelled is returned when an update targets a CANCELLED
// session. Cancellation is terminal; there is no reactivation.
var ErrSessionCancelled = errors.New("session is cancelled")

// ErrRoomUnderMaintenance is returned when a booking targets a room that
// the admin component has flagged for maintenance. Existing bookings in
// such a room are unaffected.
var ErrRoomUnderMaintenance = errors.New("room is under maintenance")
