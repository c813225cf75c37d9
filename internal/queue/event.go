// Package queue defines message payloads exchanged over the message broker
// and the AMQP publisher/consumer for room occupancy facts.
package queue

// OccupancyChangedEvent is published when a room's occupancy changes: a
// session was booked (OCCUPIED) or cancelled (AVAILABLE). It carries
// enough information for the external notification component to render
// the change without querying the primary database.
type OccupancyChangedEvent struct {
	RoomID    uint64 `json:"room_id"`
	ClassID   uint64 `json:"class_id"`
	Status    string `json:"status"`    // OCCUPIED or AVAILABLE
	StartsAt  string `json:"starts_at"` // RFC3339 UTC
	EndsAt    string `json:"ends_at"`   // RFC3339 UTC
	EmittedAt string `json:"emitted_at"`
}
