package repository

import (
	"context"
	"database/sql"
	"log"
)

// AuditEvent is one row of the scheduling audit trail: who did what to
// which session/room. Detail is a short free-form summary (e.g. the
// booked window or the batch outcome counts).
type AuditEvent struct {
	Actor     string // JWT subject or "api-key" for machine callers
	Action    string // session.create, session.update, session.cancel, session.batch
	RoomID    uint64
	SessionID uint64 // zero for batch-level events
	Detail    string
}

// AuditRepo persists audit events. Recording is advisory: a failed
// insert is logged and dropped so the booking operation that triggered
// it is never affected.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record inserts an audit row. Errors are swallowed after logging.
func (r *AuditRepo) Record(ctx context.Context, ev AuditEvent) {
	const q = `INSERT INTO audit_events (actor, action, room_id, session_id, detail)
	           VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, ev.Actor, ev.Action, ev.RoomID, ev.SessionID, ev.Detail); err != nil {
		log.Printf("audit: record failed (action=%s session=%d): %v", ev.Action, ev.SessionID, err)
	}
}
