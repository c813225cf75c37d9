// Package repository contains data access logic for the scheduling
// engine. This file covers rooms, which are owned by the external admin
// component: the engine only ever reads them.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/acadops/room-scheduler/internal/model"
)

// RoomRepo provides read-only access to the rooms table.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// GetByID loads a single room. It returns ErrRoomNotFound when no row
// with the given ID exists.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	const q = `SELECT id, name, capacity, location, under_maintenance, created_at, updated_at
	           FROM rooms WHERE id = ?`
	var rm model.Room
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&rm.ID, &rm.Name, &rm.Capacity, &rm.Location, &rm.UnderMaintenance,
		&rm.CreatedAt, &rm.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// Exists reports whether a room with the given ID exists.
func (r *RoomRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM rooms WHERE id = ?)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// IsUnderMaintenance reports whether the room is currently flagged for
// maintenance. It returns ErrRoomNotFound when the room does not exist.
func (r *RoomRepo) IsUnderMaintenance(ctx context.Context, id uint64) (bool, error) {
	const q = `SELECT under_maintenance FROM rooms WHERE id = ?`
	var flag bool
	err := r.db.QueryRowContext(ctx, q, id).Scan(&flag)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrRoomNotFound
		}
		return false, err
	}
	return flag, nil
}

// List returns all rooms ordered by name. Rooms under maintenance are
// included; callers decide whether to surface or filter them.
func (r *RoomRepo) List(ctx context.Context) ([]model.Room, error) {
	const q = `SELECT id, name, capacity, location, under_maintenance, created_at, updated_at
	           FROM rooms ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Room, 0)
	for rows.Next() {
		var rm model.Room
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.Capacity, &rm.Location, &rm.UnderMaintenance,
			&rm.CreatedAt, &rm.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
