package model

// OccupancyStatus marks which way a room's occupancy changed.
type OccupancyStatus string

const (
	Occupied  OccupancyStatus = "OCCUPIED"  // a booking now claims the window
	Available OccupancyStatus = "AVAILABLE" // the window was released
)

// OccupancyFact is a point-in-time statement that a room is occupied or
// available for a given window.  Facts are emitted to the external
// notification sink after successful bookings and cancellations; this
// engine never stores them.
type OccupancyFact struct {
	RoomID  uint64
	ClassID uint64
	Window  TimeWindow
	Status  OccupancyStatus
}
