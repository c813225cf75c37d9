package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/acadops/room-scheduler/internal/model"
	"github.com/acadops/room-scheduler/internal/repository"
)

// fakeStore is an in-memory SessionStore that mirrors the production
// repository's semantics: atomic check-and-insert guarded by a mutex,
// half-open overlap checks, idempotent cancel.
type fakeStore struct {
	mu       sync.Mutex
	nextID   uint64
	sessions map[uint64]*model.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, sessions: make(map[uint64]*model.Session)}
}

func (f *fakeStore) conflictsLocked(roomID uint64, w model.TimeWindow, excludeSessionID, excludeClassID *uint64) []*model.Session {
	var out []*model.Session
	for _, s := range f.sessions {
		if s.RoomID != roomID || s.Status != model.SessionActive {
			continue
		}
		if excludeSessionID != nil && s.ID == *excludeSessionID {
			continue
		}
		if excludeClassID != nil && s.ClassID == *excludeClassID {
			continue
		}
		if s.Window().Overlaps(w) {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeStore) TryCreate(ctx context.Context, s *model.Session, excludeClassID *uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !s.Window().Valid() {
		return &model.ValidationError{Field: "ends_at", Reason: "must be after starts_at"}
	}
	if len(f.conflictsLocked(s.RoomID, s.Window(), nil, excludeClassID)) > 0 {
		return repository.ErrConflict
	}
	s.ID = f.nextID
	f.nextID++
	s.Status = model.SessionActive
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeStore) TryUpdate(ctx context.Context, sessionID uint64, patch repository.SessionPatch) (*model.Session, *model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.sessions[sessionID]
	if !ok {
		return nil, nil, repository.ErrSessionNotFound
	}
	if cur.Status == model.SessionCancelled {
		return nil, nil, repository.ErrSessionCancelled
	}
	before := *cur
	next := *cur
	if patch.RoomID != nil {
		next.RoomID = *patch.RoomID
	}
	if patch.StartsAt != nil {
		next.StartsAt = *patch.StartsAt
	}
	if patch.EndsAt != nil {
		next.EndsAt = *patch.EndsAt
	}
	if patch.Kind != nil {
		next.Kind = *patch.Kind
	}
	if !next.Window().Valid() {
		return nil, nil, &model.ValidationError{Field: "ends_at", Reason: "must be after starts_at"}
	}
	self := next.ID
	if len(f.conflictsLocked(next.RoomID, next.Window(), &self, nil)) > 0 {
		return nil, nil, repository.ErrConflict
	}
	*cur = next
	out := next
	return &out, &before, nil
}

func (f *fakeStore) Cancel(ctx context.Context, sessionID uint64) (*model.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.sessions[sessionID]
	if !ok {
		return nil, false, repository.ErrSessionNotFound
	}
	if cur.Status == model.SessionCancelled {
		out := *cur
		return &out, false, nil
	}
	cur.Status = model.SessionCancelled
	out := *cur
	return &out, true, nil
}

func (f *fakeStore) FindConflicts(ctx context.Context, roomID uint64, w model.TimeWindow, excludeSessionID, excludeClassID *uint64) ([]repository.ConflictDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.ConflictDetail, 0)
	for _, s := range f.conflictsLocked(roomID, w, excludeSessionID, excludeClassID) {
		out = append(out, repository.ConflictDetail{
			SessionID: s.ID, ClassID: s.ClassID, StartsAt: s.StartsAt, EndsAt: s.EndsAt, Kind: s.Kind,
		})
	}
	return out, nil
}

func (f *fakeStore) IsRoomLockedAt(ctx context.Context, roomID uint64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.RoomID == roomID && s.Status == model.SessionActive && s.Window().Contains(at) {
			return true, nil
		}
	}
	return false, nil
}

// fakeDirectory serves room lookups from a fixed set; the map value is
// the room's maintenance flag.
type fakeDirectory struct {
	rooms map[uint64]bool
}

func (f *fakeDirectory) Exists(ctx context.Context, id uint64) (bool, error) {
	_, ok := f.rooms[id]
	return ok, nil
}

func (f *fakeDirectory) IsUnderMaintenance(ctx context.Context, id uint64) (bool, error) {
	maint, ok := f.rooms[id]
	if !ok {
		return false, repository.ErrRoomNotFound
	}
	return maint, nil
}

type fakeClasses struct{ ids map[uint64]bool }

func (f *fakeClasses) Exists(ctx context.Context, id uint64) (bool, error) { return f.ids[id], nil }

// fakePublisher records emitted facts.
type fakePublisher struct {
	mu    sync.Mutex
	facts []model.OccupancyFact
}

func (f *fakePublisher) Publish(ctx context.Context, fact model.OccupancyFact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facts = append(f.facts, fact)
	return nil
}

func (f *fakePublisher) recorded() []model.OccupancyFact {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.OccupancyFact, len(f.facts))
	copy(out, f.facts)
	return out
}

func newTestScheduler() (*Scheduler, *fakeStore, *fakePublisher) {
	store := newFakeStore()
	pub := &fakePublisher{}
	rooms := &fakeDirectory{rooms: map[uint64]bool{1: false, 2: false, 9: true}}
	classes := &fakeClasses{ids: map[uint64]bool{10: true, 11: true, 12: true}}
	sc := NewScheduler(store, rooms, classes, pub, NopAudit{})
	return sc, store, pub
}

func win(start, end string) model.TimeWindow {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		panic(err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		panic(err)
	}
	return model.TimeWindow{Start: s, End: e}
}

func TestCreateSingle(t *testing.T) {
	sc, _, pub := newTestScheduler()
	ctx := context.Background()

	s, err := sc.CreateSingle(ctx, "reg1", 10, 1, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.NoError(t, err)
	assert.NotZero(t, s.ID)
	assert.Equal(t, model.SessionActive, s.Status)

	facts := pub.recorded()
	if assert.Len(t, facts, 1) {
		assert.Equal(t, model.Occupied, facts[0].Status)
		assert.Equal(t, uint64(1), facts[0].RoomID)
	}

	// overlapping window for another class conflicts; first booking stands
	_, err = sc.CreateSingle(ctx, "reg1", 11, 1, win("2024-05-01T10:30:00Z", "2024-05-01T11:30:00Z"), model.KindMain)
	assert.ErrorIs(t, err, repository.ErrConflict)

	// touching the end boundary must succeed
	_, err = sc.CreateSingle(ctx, "reg1", 12, 1, win("2024-05-01T11:00:00Z", "2024-05-01T12:00:00Z"), model.KindMain)
	assert.NoError(t, err)
}

func TestCreateSingleValidation(t *testing.T) {
	sc, _, pub := newTestScheduler()
	ctx := context.Background()

	_, err := sc.CreateSingle(ctx, "reg1", 10, 1, win("2024-05-01T11:00:00Z", "2024-05-01T10:00:00Z"), model.KindMain)
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = sc.CreateSingle(ctx, "reg1", 10, 9, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.ErrorIs(t, err, repository.ErrRoomUnderMaintenance)

	_, err = sc.CreateSingle(ctx, "reg1", 10, 404, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	_, err = sc.CreateSingle(ctx, "reg1", 404, 1, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.ErrorIs(t, err, repository.ErrClassNotFound)

	// nothing was persisted, nothing published
	assert.Empty(t, pub.recorded())
}

func TestCancelThenRebook(t *testing.T) {
	sc, _, _ := newTestScheduler()
	ctx := context.Background()

	a, err := sc.CreateSingle(ctx, "reg1", 10, 1, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.NoError(t, err)

	// same window for a different class is blocked while A is active
	_, err = sc.CreateSingle(ctx, "reg1", 11, 1, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.ErrorIs(t, err, repository.ErrConflict)

	cancelled, err := sc.Cancel(ctx, "reg1", a.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.SessionCancelled, cancelled.Status)

	// cancelled sessions no longer participate in conflict checks
	_, err = sc.CreateSingle(ctx, "reg1", 11, 1, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.NoError(t, err)
}

func TestCancelIdempotent(t *testing.T) {
	sc, _, pub := newTestScheduler()
	ctx := context.Background()

	s, err := sc.CreateSingle(ctx, "reg1", 10, 1, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.NoError(t, err)

	first, err := sc.Cancel(ctx, "reg1", s.ID)
	assert.NoError(t, err)
	second, err := sc.Cancel(ctx, "reg1", s.ID)
	assert.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)

	// one occupied on create plus exactly one available on first cancel
	facts := pub.recorded()
	assert.Len(t, facts, 2)
	assert.Equal(t, model.Available, facts[1].Status)
}

func TestUpdateExcludesSelf(t *testing.T) {
	sc, _, pub := newTestScheduler()
	ctx := context.Background()

	s, err := sc.CreateSingle(ctx, "reg1", 10, 1, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.NoError(t, err)

	// shifting a session within its own old window must not conflict with itself
	newStart := mustTime("2024-05-01T10:30:00Z")
	newEnd := mustTime("2024-05-01T11:30:00Z")
	updated, err := sc.Update(ctx, "reg1", s.ID, repository.SessionPatch{StartsAt: &newStart, EndsAt: &newEnd})
	assert.NoError(t, err)
	assert.Equal(t, newStart, updated.StartsAt)

	// window changed: old placement released, new claimed
	facts := pub.recorded()
	if assert.Len(t, facts, 3) {
		assert.Equal(t, model.Available, facts[1].Status)
		assert.Equal(t, model.Occupied, facts[2].Status)
	}
}

func TestUpdateKindOnlyPublishesNothing(t *testing.T) {
	sc, _, pub := newTestScheduler()
	ctx := context.Background()

	s, err := sc.CreateSingle(ctx, "reg1", 10, 1, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.NoError(t, err)
	before := len(pub.recorded())

	kind := model.KindExam
	_, err = sc.Update(ctx, "reg1", s.ID, repository.SessionPatch{Kind: &kind})
	assert.NoError(t, err)
	assert.Len(t, pub.recorded(), before, "a kind-only update must not emit occupancy facts")
}

func TestUpdateCancelledSession(t *testing.T) {
	sc, _, _ := newTestScheduler()
	ctx := context.Background()

	s, err := sc.CreateSingle(ctx, "reg1", 10, 1, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.NoError(t, err)
	_, err = sc.Cancel(ctx, "reg1", s.ID)
	assert.NoError(t, err)

	kind := model.KindExam
	_, err = sc.Update(ctx, "reg1", s.ID, repository.SessionPatch{Kind: &kind})
	assert.ErrorIs(t, err, repository.ErrSessionCancelled)
}

func TestCreateRecurringPartialSuccess(t *testing.T) {
	sc, _, _ := newTestScheduler()
	ctx := context.Background()

	// pre-book the second Monday for another class
	_, err := sc.CreateSingle(ctx, "reg1", 11, 1, win("2024-05-13T09:30:00Z", "2024-05-13T10:00:00Z"), model.KindMain)
	assert.NoError(t, err)

	spec := model.RecurrenceSpec{
		Mode:      model.RepeatWeekly,
		StartTime: model.TimeOfDay{Hour: 9, Minute: 0},
		EndTime:   model.TimeOfDay{Hour: 10, Minute: 30},
		Count:     4,
	}
	res, err := sc.CreateRecurring(ctx, "reg1", 10, 1, mustTime("2024-05-06T00:00:00Z"), spec, model.KindMain)
	assert.NoError(t, err)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Failed)
	assert.Len(t, res.Outcomes, 4)
	assert.Equal(t, BatchSkipped, res.Outcomes[1].Status)
	assert.Equal(t, BatchCreated, res.Outcomes[0].Status)
}

func TestCreateRecurringSiblingWindowsAllowed(t *testing.T) {
	sc, _, _ := newTestScheduler()
	ctx := context.Background()

	// the same class already holds a slot that overlaps the series; the
	// exclude-class rule keeps the series from tripping over it
	_, err := sc.CreateSingle(ctx, "reg1", 10, 1, win("2024-05-06T09:00:00Z", "2024-05-06T10:00:00Z"), model.KindMain)
	assert.NoError(t, err)

	spec := model.RecurrenceSpec{
		Mode:      model.RepeatWeekly,
		StartTime: model.TimeOfDay{Hour: 9, Minute: 0},
		EndTime:   model.TimeOfDay{Hour: 10, Minute: 30},
		Count:     2,
	}
	res, err := sc.CreateRecurring(ctx, "reg1", 10, 1, mustTime("2024-05-06T00:00:00Z"), spec, model.KindMain)
	assert.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Skipped)
}

func TestRoomAvailability(t *testing.T) {
	sc, _, _ := newTestScheduler()
	ctx := context.Background()

	s, err := sc.CreateSingle(ctx, "reg1", 10, 1, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.NoError(t, err)

	av, err := sc.RoomAvailability(ctx, 1, win("2024-05-01T10:30:00Z", "2024-05-01T11:30:00Z"), nil, nil)
	assert.NoError(t, err)
	assert.False(t, av.Available)
	assert.Len(t, av.Conflicts, 1)

	// excluding the session itself frees the window
	av, err = sc.RoomAvailability(ctx, 1, win("2024-05-01T10:30:00Z", "2024-05-01T11:30:00Z"), &s.ID, nil)
	assert.NoError(t, err)
	assert.True(t, av.Available)

	// maintenance rooms are never available
	av, err = sc.RoomAvailability(ctx, 9, win("2024-05-01T10:30:00Z", "2024-05-01T11:30:00Z"), nil, nil)
	assert.NoError(t, err)
	assert.False(t, av.Available)
	assert.Empty(t, av.Conflicts)
}

func TestIsRoomCurrentlyLocked(t *testing.T) {
	sc, _, _ := newTestScheduler()
	ctx := context.Background()

	_, err := sc.CreateSingle(ctx, "reg1", 10, 1, win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z"), model.KindMain)
	assert.NoError(t, err)

	tests := []struct {
		name string
		at   string
		want bool
	}{
		{name: "inside the session", at: "2024-05-01T10:15:00Z", want: true},
		{name: "exactly at start", at: "2024-05-01T10:00:00Z", want: true},
		{name: "exactly at end", at: "2024-05-01T11:00:00Z", want: false},
		{name: "after the session", at: "2024-05-01T11:30:00Z", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locked, err := sc.IsRoomCurrentlyLocked(ctx, 1, mustTime(tt.at))
			assert.NoError(t, err)
			assert.Equal(t, tt.want, locked)
		})
	}

	_, err = sc.IsRoomCurrentlyLocked(ctx, 404, mustTime("2024-05-01T10:15:00Z"))
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestConcurrentCreateSingleOneWinner(t *testing.T) {
	sc, store, _ := newTestScheduler()
	ctx := context.Background()

	const n = 16
	w := win("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z")
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		classID := uint64(10 + i%3)
		go func(classID uint64) {
			defer wg.Done()
			_, err := sc.CreateSingle(ctx, "reg1", classID, 1, w, model.KindMain)
			errs <- err
		}(classID)
	}
	wg.Wait()
	close(errs)

	succeeded, conflicted := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			assert.ErrorIs(t, err, repository.ErrConflict)
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicted)

	// the invariant holds afterwards: active sessions in the room are
	// pairwise non-overlapping
	active := make([]*model.Session, 0)
	for _, s := range store.sessions {
		if s.RoomID == 1 && s.Status == model.SessionActive {
			active = append(active, s)
		}
	}
	for i := range active {
		for j := i + 1; j < len(active); j++ {
			assert.False(t, active[i].Window().Overlaps(active[j].Window()))
		}
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
