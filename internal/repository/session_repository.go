package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/acadops/room-scheduler/internal/model"
)

// SessionRepo is the booking store. It owns the sessions table and
// provides the atomic check-and-insert semantics the scheduler relies
// on: for every write, the conflict scan and the row mutation happen in
// one transaction that first locks the target room's row. That per-room
// lock serializes concurrent writers against the same room, so two
// requests can never both pass the conflict check against a stale
// snapshot and both insert.
//
// All timestamps are stored as DATETIME in UTC; the connection string
// sets parseTime=true and loc=UTC so rows scan directly into time.Time.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// ConflictDetail describes one ACTIVE session that overlaps a candidate
// window. It carries the owning class and subject names so callers can
// render a user-facing conflict description without extra lookups.
type ConflictDetail struct {
	SessionID   uint64            `json:"session_id"`
	ClassID     uint64            `json:"class_id"`
	ClassName   string            `json:"class_name"`
	SubjectName string            `json:"subject_name"`
	StartsAt    time.Time         `json:"starts_at"`
	EndsAt      time.Time         `json:"ends_at"`
	Kind        model.SessionKind `json:"kind"`
}

// SessionPatch carries the mutable fields of an update. Nil fields keep
// the current value. The owning class of a session never changes.
type SessionPatch struct {
	RoomID   *uint64
	StartsAt *time.Time
	EndsAt   *time.Time
	Kind     *model.SessionKind
}

// FindConflicts returns every ACTIVE session in the room whose window
// overlaps the candidate under half-open semantics, joined with class
// details for display. excludeSessionID lets an update check against all
// other sessions; excludeClassID suppresses sessions of the given class
// so a recurrence series can re-use its own room slot pattern. Both are
// optional. The scan is read-only and takes no locks.
func (r *SessionRepo) FindConflicts(ctx context.Context, roomID uint64, w model.TimeWindow, excludeSessionID, excludeClassID *uint64) ([]ConflictDetail, error) {
	q := `SELECT s.id, s.class_id, c.name, c.subject_name, s.starts_at, s.ends_at, s.kind
	      FROM sessions s
	      JOIN classes c ON c.id = s.class_id
	      WHERE s.room_id = ? AND s.status = 'ACTIVE'
	        AND s.starts_at < ? AND s.ends_at > ?`
	args := []interface{}{roomID, w.End, w.Start}
	if excludeSessionID != nil {
		q += ` AND s.id <> ?`
		args = append(args, *excludeSessionID)
	}
	if excludeClassID != nil {
		q += ` AND s.class_id <> ?`
		args = append(args, *excludeClassID)
	}
	q += ` ORDER BY s.starts_at`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ConflictDetail, 0)
	for rows.Next() {
		var d ConflictDetail
		var kind string
		if err := rows.Scan(&d.SessionID, &d.ClassID, &d.ClassName, &d.SubjectName,
			&d.StartsAt, &d.EndsAt, &kind); err != nil {
			return nil, err
		}
		d.Kind = model.SessionKind(kind)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// TryCreate inserts a new ACTIVE session if and only if no conflicting
// ACTIVE session exists in the target room. The conflict check and the
// insert run in a single transaction; the room row is locked first so
// concurrent creates against the same room serialize even when the room
// has no bookings yet. On success the generated ID and DB-default fields
// are populated on the given session.
//
// excludeClassID, when non-nil, lets sessions of that class coexist with
// the candidate; recurrence batches pass the owning class here so the
// series does not trip over sibling rows it inserted moments earlier.
//
// Returns a *model.ValidationError for a malformed window or kind,
// ErrRoomNotFound when the room row is missing, and ErrConflict when an
// overlap exists. Nothing is persisted on any error.
func (r *SessionRepo) TryCreate(ctx context.Context, s *model.Session, excludeClassID *uint64) error {
	if !s.Window().Valid() {
		return &model.ValidationError{Field: "ends_at", Reason: "must be after starts_at"}
	}
	if !s.Kind.Valid() {
		return &model.ValidationError{Field: "kind", Reason: "unknown session kind"}
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := lockRoomTx(ctx, tx, s.RoomID); err != nil {
		return err
	}
	ok, err := hasConflictTx(ctx, tx, s.RoomID, s.Window(), nil, excludeClassID)
	if err != nil {
		return err
	}
	if ok {
		return ErrConflict
	}
	const ins = `INSERT INTO sessions (class_id, room_id, starts_at, ends_at, kind, status)
	             VALUES (?, ?, ?, ?, ?, 'ACTIVE')`
	res, err := tx.ExecContext(ctx, ins, s.ClassID, s.RoomID, s.StartsAt.UTC(), s.EndsAt.UTC(), string(s.Kind))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	// Query back the full row to populate status and timestamps.
	if err := scanSessionTx(ctx, tx, s.ID, s); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// TryUpdate applies the patch to an ACTIVE session after re-running the
// conflict check against all other ACTIVE sessions in the (possibly new)
// target room. The whole operation is one transaction: the session row
// is locked, the target room row is locked, the overlap scan excludes
// the session itself, and only then is the row updated.
//
// It returns the session as it was before the patch alongside the
// updated row so callers can tell whether the room or window actually
// changed. Errors: ErrSessionNotFound, ErrSessionCancelled (updates
// never resurrect a cancelled session), ErrRoomNotFound, ErrConflict,
// or a *model.ValidationError for a malformed patched window.
func (r *SessionRepo) TryUpdate(ctx context.Context, sessionID uint64, patch SessionPatch) (updated, prev *model.Session, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var cur model.Session
	if err := scanSessionForUpdateTx(ctx, tx, sessionID, &cur); err != nil {
		return nil, nil, err
	}
	if cur.Status == model.SessionCancelled {
		return nil, nil, ErrSessionCancelled
	}
	before := cur

	next := cur
	if patch.RoomID != nil {
		next.RoomID = *patch.RoomID
	}
	if patch.StartsAt != nil {
		next.StartsAt = patch.StartsAt.UTC()
	}
	if patch.EndsAt != nil {
		next.EndsAt = patch.EndsAt.UTC()
	}
	if patch.Kind != nil {
		next.Kind = *patch.Kind
	}
	if !next.Window().Valid() {
		return nil, nil, &model.ValidationError{Field: "ends_at", Reason: "must be after starts_at"}
	}
	if !next.Kind.Valid() {
		return nil, nil, &model.ValidationError{Field: "kind", Reason: "unknown session kind"}
	}

	if err := lockRoomTx(ctx, tx, next.RoomID); err != nil {
		return nil, nil, err
	}
	self := next.ID
	ok, err := hasConflictTx(ctx, tx, next.RoomID, next.Window(), &self, nil)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		return nil, nil, ErrConflict
	}

	const upd = `UPDATE sessions SET room_id = ?, starts_at = ?, ends_at = ?, kind = ?, updated_at = UTC_TIMESTAMP()
	             WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, next.RoomID, next.StartsAt, next.EndsAt, string(next.Kind), next.ID); err != nil {
		return nil, nil, err
	}
	if err := scanSessionTx(ctx, tx, next.ID, &next); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	committed = true
	return &next, &before, nil
}

// Cancel flips an ACTIVE session to CANCELLED. The row is retained for
// audit history; this engine never hard-deletes sessions. Cancelling an
// already-CANCELLED session is a no-op success: the current state comes
// back with changed=false and no error.
func (r *SessionRepo) Cancel(ctx context.Context, sessionID uint64) (s *model.Session, changed bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var cur model.Session
	if err := scanSessionForUpdateTx(ctx, tx, sessionID, &cur); err != nil {
		return nil, false, err
	}
	if cur.Status == model.SessionCancelled {
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		committed = true
		return &cur, false, nil
	}
	const upd = `UPDATE sessions SET status = 'CANCELLED', updated_at = UTC_TIMESTAMP() WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, sessionID); err != nil {
		return nil, false, err
	}
	if err := scanSessionTx(ctx, tx, sessionID, &cur); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	return &cur, true, nil
}

// GetByID loads a single session. It returns ErrSessionNotFound when no
// row with the given ID exists.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	const q = `SELECT id, class_id, room_id, starts_at, ends_at, kind, status, created_at, updated_at
	           FROM sessions WHERE id = ?`
	var s model.Session
	var kind, status string
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.ClassID, &s.RoomID, &s.StartsAt, &s.EndsAt, &kind, &status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	s.Kind = model.SessionKind(kind)
	s.Status = model.SessionStatus(status)
	return &s, nil
}

// IsRoomLockedAt reports whether an ACTIVE session in the room contains
// the given instant under half-open semantics: true exactly at a
// session's start, false exactly at its end. Lock state is computed on
// read from stored instants; nothing is persisted and no background job
// expires anything.
func (r *SessionRepo) IsRoomLockedAt(ctx context.Context, roomID uint64, at time.Time) (bool, error) {
	const q = `SELECT EXISTS(
	             SELECT 1 FROM sessions
	             WHERE room_id = ? AND status = 'ACTIVE' AND starts_at <= ? AND ends_at > ?
	           )`
	at = at.UTC()
	var locked bool
	if err := r.db.QueryRowContext(ctx, q, roomID, at, at).Scan(&locked); err != nil {
		return false, err
	}
	return locked, nil
}

// SessionDetail is a session joined with its class for list endpoints.
type SessionDetail struct {
	ID          uint64              `json:"id"`
	ClassID     uint64              `json:"class_id"`
	ClassName   string              `json:"class_name"`
	SubjectName string              `json:"subject_name"`
	RoomID      uint64              `json:"room_id"`
	StartsAt    time.Time           `json:"starts_at"`
	EndsAt      time.Time           `json:"ends_at"`
	Kind        model.SessionKind   `json:"kind"`
	Status      model.SessionStatus `json:"status"`
}

// ListByRoom returns the room's sessions joined with class details,
// ordered by start time. Optional from/to bound the listing to sessions
// overlapping [from, to); nil leaves that side unbounded. Cancelled
// sessions are included so the UI can show history; callers filter by
// status when they only want the active timetable.
func (r *SessionRepo) ListByRoom(ctx context.Context, roomID uint64, from, to *time.Time) ([]SessionDetail, error) {
	q := `SELECT s.id, s.class_id, c.name, c.subject_name, s.room_id, s.starts_at, s.ends_at, s.kind, s.status
	      FROM sessions s
	      JOIN classes c ON c.id = s.class_id
	      WHERE s.room_id = ?`
	args := []interface{}{roomID}
	if to != nil {
		q += ` AND s.starts_at < ?`
		args = append(args, to.UTC())
	}
	if from != nil {
		q += ` AND s.ends_at > ?`
		args = append(args, from.UTC())
	}
	q += ` ORDER BY s.starts_at, s.id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]SessionDetail, 0)
	for rows.Next() {
		var d SessionDetail
		var kind, status string
		if err := rows.Scan(&d.ID, &d.ClassID, &d.ClassName, &d.SubjectName, &d.RoomID,
			&d.StartsAt, &d.EndsAt, &kind, &status); err != nil {
			return nil, err
		}
		d.Kind = model.SessionKind(kind)
		d.Status = model.SessionStatus(status)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// lockRoomTx takes a row lock on the target room for the duration of the
// transaction. Every writer goes through this before scanning for
// overlaps, which serializes check-and-insert per room. Returns
// ErrRoomNotFound when the room row is missing.
func lockRoomTx(ctx context.Context, tx *sql.Tx, roomID uint64) error {
	const q = `SELECT id FROM rooms WHERE id = ? FOR UPDATE`
	var id uint64
	if err := tx.QueryRowContext(ctx, q, roomID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoomNotFound
		}
		return err
	}
	return nil
}

// hasConflictTx runs the overlap scan inside the caller's transaction.
// It queries the sessions table alone (no join) so the statement stays
// FOR UPDATE friendly; MySQL disallows locking reads on some joined
// shapes and the lock on the room row already covers serialization.
func hasConflictTx(ctx context.Context, tx *sql.Tx, roomID uint64, w model.TimeWindow, excludeSessionID, excludeClassID *uint64) (bool, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT COUNT(*) FROM sessions
	                WHERE room_id = ? AND status = 'ACTIVE'
	                  AND starts_at < ? AND ends_at > ?`)
	args := []interface{}{roomID, w.End, w.Start}
	if excludeSessionID != nil {
		sb.WriteString(` AND id <> ?`)
		args = append(args, *excludeSessionID)
	}
	if excludeClassID != nil {
		sb.WriteString(` AND class_id <> ?`)
		args = append(args, *excludeClassID)
	}
	var n int
	if err := tx.QueryRowContext(ctx, sb.String(), args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// scanSessionTx loads a session row inside the transaction.
func scanSessionTx(ctx context.Context, tx *sql.Tx, id uint64, dst *model.Session) error {
	const q = `SELECT id, class_id, room_id, starts_at, ends_at, kind, status, created_at, updated_at
	           FROM sessions WHERE id = ?`
	return scanSessionRow(tx.QueryRowContext(ctx, q, id), dst)
}

// scanSessionForUpdateTx loads a session row and locks it for the rest
// of the transaction. Returns ErrSessionNotFound for a missing row.
func scanSessionForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64, dst *model.Session) error {
	const q = `SELECT id, class_id, room_id, starts_at, ends_at, kind, status, created_at, updated_at
	           FROM sessions WHERE id = ? FOR UPDATE`
	if err := scanSessionRow(tx.QueryRowContext(ctx, q, id), dst); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

func scanSessionRow(row *sql.Row, dst *model.Session) error {
	var kind, status string
	if err := row.Scan(&dst.ID, &dst.ClassID, &dst.RoomID, &dst.StartsAt, &dst.EndsAt,
		&kind, &status, &dst.CreatedAt, &dst.UpdatedAt); err != nil {
		return err
	}
	dst.Kind = model.SessionKind(kind)
	dst.Status = model.SessionStatus(status)
	return nil
}
