package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/acadops/room-scheduler/internal/model"
)

// ClassRepo provides read-only access to the classes table. Classes are
// managed by the external enrollment component; the scheduler only needs
// existence checks and display names for conflict descriptions.
type ClassRepo struct {
	db *sql.DB
}

// NewClassRepo returns a new ClassRepo bound to the given database.
func NewClassRepo(db *sql.DB) *ClassRepo { return &ClassRepo{db: db} }

// Exists reports whether a class with the given ID exists.
func (r *ClassRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM classes WHERE id = ?)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// GetByID loads a single class. It returns ErrClassNotFound when no row
// with the given ID exists.
func (r *ClassRepo) GetByID(ctx context.Context, id uint64) (*model.Class, error) {
	const q = `SELECT id, name, subject_name FROM classes WHERE id = ?`
	var cl model.Class
	err := r.db.QueryRowContext(ctx, q, id).Scan(&cl.ID, &cl.Name, &cl.SubjectName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return &cl, nil
}
