// Package service implements the scheduling orchestrator: the component
// that composes the recurrence expander, the booking store, the external
// room/class directory and the occupancy publisher into the engine's
// create/update/cancel/bulk-generate operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acadops/room-scheduler/internal/model"
	"github.com/acadops/room-scheduler/internal/repository"
	"github.com/acadops/room-scheduler/internal/schedule"
)

// SessionStore is the booking store contract the orchestrator depends
// on. repository.SessionRepo is the production implementation; tests
// inject an in-memory fake.
type SessionStore interface {
	TryCreate(ctx context.Context, s *model.Session, excludeClassID *uint64) error
	TryUpdate(ctx context.Context, sessionID uint64, patch repository.SessionPatch) (updated, prev *model.Session, err error)
	Cancel(ctx context.Context, sessionID uint64) (s *model.Session, changed bool, err error)
	FindConflicts(ctx context.Context, roomID uint64, w model.TimeWindow, excludeSessionID, excludeClassID *uint64) ([]repository.ConflictDetail, error)
	IsRoomLockedAt(ctx context.Context, roomID uint64, at time.Time) (bool, error)
}

// RoomDirectory is the read-only lookup contract against the external
// room admin component.
type RoomDirectory interface {
	Exists(ctx context.Context, id uint64) (bool, error)
	IsUnderMaintenance(ctx context.Context, id uint64) (bool, error)
}

// ClassDirectory is the read-only lookup contract against the external
// enrollment component.
type ClassDirectory interface {
	Exists(ctx context.Context, id uint64) (bool, error)
}

// OccupancyPublisher emits occupancy facts to the external notification
// sink. Delivery is best effort: the orchestrator discards the returned
// error after the implementation has logged it.
type OccupancyPublisher interface {
	Publish(ctx context.Context, fact model.OccupancyFact) error
}

// AuditRecorder records scheduling actions. Injected rather than a
// process-wide singleton so the engine tests without a logging
// dependency; NopAudit satisfies it for that purpose.
type AuditRecorder interface {
	Record(ctx context.Context, ev repository.AuditEvent)
}

// NopAudit discards every event.
type NopAudit struct{}

// Record implements AuditRecorder.
func (NopAudit) Record(context.Context, repository.AuditEvent) {}

// Scheduler is the scheduling service. It holds no mutable state of its
// own; every invariant lives in the store, so concurrent handlers can
// share one instance freely.
type Scheduler struct {
	store          SessionStore
	rooms          RoomDirectory
	classes        ClassDirectory
	publisher      OccupancyPublisher
	audit          AuditRecorder
	publishTimeout time.Duration
}

// NewScheduler wires the orchestrator. All dependencies must be non-nil;
// pass NopAudit{} when no audit trail is wanted.
func NewScheduler(store SessionStore, rooms RoomDirectory, classes ClassDirectory, publisher OccupancyPublisher, audit AuditRecorder) *Scheduler {
	if store == nil || rooms == nil || classes == nil || publisher == nil || audit == nil {
		panic("nil dependency passed to NewScheduler")
	}
	return &Scheduler{
		store:          store,
		rooms:          rooms,
		classes:        classes,
		publisher:      publisher,
		audit:          audit,
		publishTimeout: 3 * time.Second,
	}
}

// CreateSingle books one session. It validates that the class exists and
// the room exists and is not under maintenance, then defers the conflict
// check to the store's atomic check-and-insert. On success an OCCUPIED
// fact is emitted best-effort.
func (sc *Scheduler) CreateSingle(ctx context.Context, actor string, classID, roomID uint64, w model.TimeWindow, kind model.SessionKind) (*model.Session, error) {
	if !w.Valid() {
		return nil, &model.ValidationError{Field: "ends_at", Reason: "must be after starts_at"}
	}
	if err := sc.checkRoomBookable(ctx, roomID); err != nil {
		return nil, err
	}
	if err := sc.checkClassExists(ctx, classID); err != nil {
		return nil, err
	}
	s := &model.Session{
		ClassID:  classID,
		RoomID:   roomID,
		StartsAt: w.Start.UTC(),
		EndsAt:   w.End.UTC(),
		Kind:     kind,
	}
	if err := sc.store.TryCreate(ctx, s, nil); err != nil {
		return nil, err
	}
	sc.audit.Record(ctx, repository.AuditEvent{
		Actor: actor, Action: "session.create", RoomID: s.RoomID, SessionID: s.ID,
		Detail: fmt.Sprintf("class=%d window=%s..%s", s.ClassID, s.StartsAt.Format(time.RFC3339), s.EndsAt.Format(time.RFC3339)),
	})
	sc.publish(model.OccupancyFact{RoomID: s.RoomID, ClassID: s.ClassID, Window: s.Window(), Status: model.Occupied})
	return s, nil
}

// BatchOutcomeStatus classifies the result of one candidate window in a
// recurrence batch.
type BatchOutcomeStatus string

const (
	BatchCreated BatchOutcomeStatus = "CREATED"
	BatchSkipped BatchOutcomeStatus = "SKIPPED" // window conflicted, batch continued
	BatchFailed  BatchOutcomeStatus = "FAILED"  // unexpected store error
)

// BatchOutcome is the per-window result of a recurrence run.
type BatchOutcome struct {
	Window    model.TimeWindow   `json:"-"`
	StartsAt  time.Time          `json:"starts_at"`
	EndsAt    time.Time          `json:"ends_at"`
	Status    BatchOutcomeStatus `json:"status"`
	SessionID uint64             `json:"session_id,omitempty"`
	Reason    string             `json:"reason,omitempty"`
}

// BatchResult is the structured outcome of CreateRecurring so callers
// can reconcile partial success.
type BatchResult struct {
	Created  int            `json:"created"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Outcomes []BatchOutcome `json:"outcomes"`
}

// CreateRecurring expands the recurrence spec from the anchor date and
// attempts one check-and-insert per candidate window, in order. Windows
// that conflict with another class are skipped and the batch continues;
// the result reports each window's fate. This is deliberately best
// effort rather than all-or-nothing: a term's worth of bookings should
// not be discarded because one Wednesday is taken.
//
// Candidates run sequentially so earlier insertions in the batch are
// visible to later conflict checks. Sibling sessions of the same class
// never count as conflicts within the run.
func (sc *Scheduler) CreateRecurring(ctx context.Context, actor string, classID, roomID uint64, anchor time.Time, spec model.RecurrenceSpec, kind model.SessionKind) (*BatchResult, error) {
	if err := sc.checkRoomBookable(ctx, roomID); err != nil {
		return nil, err
	}
	if err := sc.checkClassExists(ctx, classID); err != nil {
		return nil, err
	}
	windows, err := schedule.Expand(anchor, spec)
	if err != nil {
		return nil, err
	}
	res := &BatchResult{Outcomes: make([]BatchOutcome, 0, len(windows))}
	for _, w := range windows {
		out := BatchOutcome{Window: w, StartsAt: w.Start, EndsAt: w.End}
		s := &model.Session{
			ClassID:  classID,
			RoomID:   roomID,
			StartsAt: w.Start,
			EndsAt:   w.End,
			Kind:     kind,
		}
		err := sc.store.TryCreate(ctx, s, &classID)
		switch {
		case err == nil:
			out.Status = BatchCreated
			out.SessionID = s.ID
			res.Created++
			sc.publish(model.OccupancyFact{RoomID: roomID, ClassID: classID, Window: w, Status: model.Occupied})
		case errors.Is(err, repository.ErrConflict):
			out.Status = BatchSkipped
			out.Reason = "room already booked by another class"
			res.Skipped++
		default:
			out.Status = BatchFailed
			out.Reason = err.Error()
			res.Failed++
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	sc.audit.Record(ctx, repository.AuditEvent{
		Actor: actor, Action: "session.batch", RoomID: roomID,
		Detail: fmt.Sprintf("class=%d mode=%s created=%d skipped=%d failed=%d", classID, spec.Mode, res.Created, res.Skipped, res.Failed),
	})
	return res, nil
}

// Update changes a session's room, window or kind, re-validated against
// the non-overlap invariant with the session itself excluded. Occupancy
// facts are emitted only when the room or window actually changed: the
// old placement is released and the new one claimed.
func (sc *Scheduler) Update(ctx context.Context, actor string, sessionID uint64, patch repository.SessionPatch) (*model.Session, error) {
	if patch.RoomID != nil {
		if err := sc.checkRoomBookable(ctx, *patch.RoomID); err != nil {
			return nil, err
		}
	}
	updated, prev, err := sc.store.TryUpdate(ctx, sessionID, patch)
	if err != nil {
		return nil, err
	}
	sc.audit.Record(ctx, repository.AuditEvent{
		Actor: actor, Action: "session.update", RoomID: updated.RoomID, SessionID: updated.ID,
		Detail: fmt.Sprintf("window=%s..%s", updated.StartsAt.Format(time.RFC3339), updated.EndsAt.Format(time.RFC3339)),
	})
	placementChanged := prev.RoomID != updated.RoomID || !prev.StartsAt.Equal(updated.StartsAt) || !prev.EndsAt.Equal(updated.EndsAt)
	if placementChanged {
		sc.publish(model.OccupancyFact{RoomID: prev.RoomID, ClassID: prev.ClassID, Window: prev.Window(), Status: model.Available})
		sc.publish(model.OccupancyFact{RoomID: updated.RoomID, ClassID: updated.ClassID, Window: updated.Window(), Status: model.Occupied})
	}
	return updated, nil
}

// Cancel flips a session to CANCELLED. Cancelling an already-cancelled
// session succeeds idempotently and emits nothing.
func (sc *Scheduler) Cancel(ctx context.Context, actor string, sessionID uint64) (*model.Session, error) {
	s, changed, err := sc.store.Cancel(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if changed {
		sc.audit.Record(ctx, repository.AuditEvent{
			Actor: actor, Action: "session.cancel", RoomID: s.RoomID, SessionID: s.ID,
		})
		sc.publish(model.OccupancyFact{RoomID: s.RoomID, ClassID: s.ClassID, Window: s.Window(), Status: model.Available})
	}
	return s, nil
}

// Availability is the answer to the room-availability query: available
// or the list of conflicting sessions with user-facing details.
type Availability struct {
	Available bool                        `json:"available"`
	Conflicts []repository.ConflictDetail `json:"conflicts"`
}

// RoomAvailability reports whether the window is free in the room, with
// conflict details when it is not. Pure read; rooms under maintenance
// report unavailable without a conflict scan.
func (sc *Scheduler) RoomAvailability(ctx context.Context, roomID uint64, w model.TimeWindow, excludeSessionID, excludeClassID *uint64) (*Availability, error) {
	if !w.Valid() {
		return nil, &model.ValidationError{Field: "ends_at", Reason: "must be after starts_at"}
	}
	maint, err := sc.rooms.IsUnderMaintenance(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if maint {
		return &Availability{Available: false, Conflicts: []repository.ConflictDetail{}}, nil
	}
	conflicts, err := sc.store.FindConflicts(ctx, roomID, w, excludeSessionID, excludeClassID)
	if err != nil {
		return nil, err
	}
	return &Availability{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// IsRoomCurrentlyLocked reports whether an ACTIVE session contains the
// instant. Lock state is derived from stored session rows at query time;
// nothing is persisted that could drift from reality.
func (sc *Scheduler) IsRoomCurrentlyLocked(ctx context.Context, roomID uint64, at time.Time) (bool, error) {
	ok, err := sc.rooms.Exists(ctx, roomID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, repository.ErrRoomNotFound
	}
	return sc.store.IsRoomLockedAt(ctx, roomID, at)
}

// publish emits one fact on a best-effort synchronous call with a short
// timeout, detached from the request context so a cancelled request
// cannot abort a fact for work that already committed. The error has
// already been logged by the publisher; it is discarded here because a
// missed occupancy update must never fail the booking that caused it.
func (sc *Scheduler) publish(fact model.OccupancyFact) {
	ctx, cancel := context.WithTimeout(context.Background(), sc.publishTimeout)
	defer cancel()
	_ = sc.publisher.Publish(ctx, fact)
}

func (sc *Scheduler) checkRoomBookable(ctx context.Context, roomID uint64) error {
	maint, err := sc.rooms.IsUnderMaintenance(ctx, roomID)
	if err != nil {
		return err
	}
	if maint {
		return repository.ErrRoomUnderMaintenance
	}
	return nil
}

func (sc *Scheduler) checkClassExists(ctx context.Context, classID uint64) error {
	ok, err := sc.classes.Exists(ctx, classID)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrClassNotFound
	}
	return nil
}
