package model

import "time"

// Room represents a physical room that can be booked for class sessions.
// Rooms are created and updated by the external admin component; this
// engine treats them as read-only.  A room under maintenance is excluded
// from new availability but its existing bookings stay in place.
type Room struct {
	ID               uint64    // rooms.id
	Name             string    // rooms.name, display name
	Capacity         uint32    // rooms.capacity, seating capacity
	Location         string    // rooms.location, free-form label (building/floor)
	UnderMaintenance bool      // rooms.under_maintenance
	CreatedAt        time.Time // rooms.created_at
	UpdatedAt        time.Time // rooms.updated_at
}

// Class is the owning entity of a session, managed by the external
// enrollment component.  Only the fields the scheduler needs for lookups
// and conflict descriptions are mapped here.
type Class struct {
	ID          uint64 // classes.id
	Name        string // classes.name
	SubjectName string // classes.subject_name, shown in conflict details
}
