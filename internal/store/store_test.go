package store_test

import (
	"context"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
	"github.com/pkordes/wine-catalog/backend/internal/filter"
	"github.com/pkordes/wine-catalog/backend/internal/live"
	"github.com/pkordes/wine-catalog/backend/internal/repo"
	"github.com/pkordes/wine-catalog/backend/internal/store"
	"github.com/pkordes/wine-catalog/backend/testutil"
)

const waitFor = 2 * time.Second

// ---- helpers ---------------------------------------------------------------

func newRepo(t *testing.T) repo.WineRepo {
	t.Helper()
	return repo.NewSQLiteWineRepo(testutil.NewSQLiteDB(t))
}

// openStore returns an opened Store over r that is closed when the test ends.
func openStore(t *testing.T, r repo.WineRepo) *store.Store {
	t.Helper()
	s := store.New(r, slog.New(slog.DiscardHandler))
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func wait(t *testing.T, op *store.Op) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	return op.Wait(ctx)
}

// await reads from sub until pred accepts a value, failing the test on timeout.
func await[T any](t *testing.T, sub *live.Subscription[T], pred func(T) bool) T {
	t.Helper()
	timeout := time.After(waitFor)
	for {
		select {
		case v, ok := <-sub.C():
			require.True(t, ok, "subscription closed before the expected value arrived")
			if pred(v) {
				return v
			}
		case <-timeout:
			t.Fatal("timed out waiting for the expected value")
		}
	}
}

func wine(name string) domain.Wine {
	w := domain.NewWine()
	w.Name = name
	return w
}

func ids(ws []domain.Wine) []uuid.UUID {
	out := make([]uuid.UUID, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}

// gatedRepo blocks Insert until release is closed, to hold a write in flight.
type gatedRepo struct {
	repo.WineRepo
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRepo) Insert(ctx context.Context, w domain.Wine) error {
	close(g.entered)
	<-g.release
	return g.WineRepo.Insert(ctx, w)
}

// ---- lifecycle -------------------------------------------------------------

func TestStore_NotInitialized(t *testing.T) {
	s := store.New(newRepo(t), slog.New(slog.DiscardHandler))

	_, err := s.ObserveAll()
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = s.ObserveOne(uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = s.Snapshot()
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	_, err = s.Get(uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.ErrorIs(t, wait(t, s.Add(context.Background(), wine("x"))), domain.ErrNotInitialized)
}

func TestStore_ClosedBehavesAsNotInitialized(t *testing.T) {
	s := store.New(newRepo(t), slog.New(slog.DiscardHandler))
	require.NoError(t, s.Open(context.Background()))
	require.NoError(t, s.Close())

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.ErrorIs(t, wait(t, s.Save(context.Background(), wine("x"))), domain.ErrNotInitialized)
}

func TestStore_OpenTwice(t *testing.T) {
	s := openStore(t, newRepo(t))

	assert.Error(t, s.Open(context.Background()))
}

func TestStore_OpenLoadsExistingRows(t *testing.T) {
	r := newRepo(t)
	a, b := wine("Merlot"), wine("Shiraz")
	require.NoError(t, r.Insert(context.Background(), a))
	require.NoError(t, r.Insert(context.Background(), b))

	s := openStore(t, r)

	got, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []domain.Wine{a, b}, got)
}

func TestStore_CloseDrainsQueueAndEndsSubscriptions(t *testing.T) {
	r := newRepo(t)
	s := store.New(r, slog.New(slog.DiscardHandler))
	require.NoError(t, s.Open(context.Background()))
	sub, err := s.ObserveAll()
	require.NoError(t, err)

	var ops []*store.Op
	for i := range 10 {
		ops = append(ops, s.Add(context.Background(), wine(strconv.Itoa(i))))
	}
	require.NoError(t, s.Close())

	for _, op := range ops {
		select {
		case <-op.Done():
			assert.NoError(t, op.Err())
		default:
			t.Fatal("Close returned before a queued mutation finished")
		}
	}
	stored, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 10)

	for range sub.C() {
		// drain until the channel is closed by Close
	}
}

// ---- add / update / delete -------------------------------------------------

func TestStore_AddThenObserveAll(t *testing.T) {
	s := openStore(t, newRepo(t))
	e := wine("Merlot")
	e.AlcoholType, e.OriginCountry, e.Producer = "Red", "France", "Duboeuf"

	require.NoError(t, wait(t, s.Add(context.Background(), e)))

	sub, err := s.ObserveAll()
	require.NoError(t, err)
	defer sub.Unsubscribe()
	got := await(t, sub, func(ws []domain.Wine) bool { return len(ws) > 0 })
	assert.Equal(t, []domain.Wine{e}, got)
}

func TestStore_ObserveAll_ReceivesEveryCommit(t *testing.T) {
	s := openStore(t, newRepo(t))
	sub, err := s.ObserveAll()
	require.NoError(t, err)
	defer sub.Unsubscribe()

	initial := await(t, sub, func([]domain.Wine) bool { return true })
	assert.Empty(t, initial)

	a := wine("Merlot")
	s.Add(context.Background(), a)
	got := await(t, sub, func(ws []domain.Wine) bool { return len(ws) == 1 })
	assert.Equal(t, a, got[0])
}

func TestStore_Add_Duplicate(t *testing.T) {
	s := openStore(t, newRepo(t))
	e := wine("Merlot")
	require.NoError(t, wait(t, s.Add(context.Background(), e)))

	err := wait(t, s.Add(context.Background(), e))

	assert.ErrorIs(t, err, domain.ErrConstraintViolation)
	got, err := s.Snapshot()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_Update_Existing(t *testing.T) {
	s := openStore(t, newRepo(t))
	e := wine("Shiraz")
	require.NoError(t, wait(t, s.Add(context.Background(), e)))
	sub, err := s.ObserveOne(e.ID)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	updated := e
	updated.Name = "Shiraz Reserve"
	updated.Producer = "Penfolds"
	s.Update(context.Background(), updated)

	got := await(t, sub, func(l store.Lookup) bool { return l.Found && l.Wine.Name == "Shiraz Reserve" })
	assert.Equal(t, updated, got.Wine)
}

func TestStore_Update_MissingIsNoOp(t *testing.T) {
	r := newRepo(t)
	s := openStore(t, r)

	err := wait(t, s.Update(context.Background(), wine("ghost")))

	require.NoError(t, err)
	got, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, got)
	stored, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored, "update must never create a row")
}

func TestStore_Delete(t *testing.T) {
	s := openStore(t, newRepo(t))
	a, b := wine("Merlot"), wine("Shiraz")
	require.NoError(t, wait(t, s.Add(context.Background(), a)))
	require.NoError(t, wait(t, s.Add(context.Background(), b)))
	one, err := s.ObserveOne(a.ID)
	require.NoError(t, err)
	defer one.Unsubscribe()
	all, err := s.ObserveAll()
	require.NoError(t, err)
	defer all.Unsubscribe()

	s.Delete(context.Background(), a)

	await(t, one, func(l store.Lookup) bool { return !l.Found })
	got := await(t, all, func(ws []domain.Wine) bool { return len(ws) == 1 })
	assert.Equal(t, []uuid.UUID{b.ID}, ids(got))
}

func TestStore_Delete_MissingIsNoOp(t *testing.T) {
	s := openStore(t, newRepo(t))

	assert.NoError(t, wait(t, s.Delete(context.Background(), wine("ghost"))))
}

func TestStore_ObserveOne_AbsentID(t *testing.T) {
	s := openStore(t, newRepo(t))
	sub, err := s.ObserveOne(uuid.New())
	require.NoError(t, err)
	defer sub.Unsubscribe()

	got := await(t, sub, func(store.Lookup) bool { return true })
	assert.False(t, got.Found)
}

func TestStore_ObserveOne_IgnoresOtherEntries(t *testing.T) {
	s := openStore(t, newRepo(t))
	watched := wine("Merlot")
	require.NoError(t, wait(t, s.Add(context.Background(), watched)))
	sub, err := s.ObserveOne(watched.ID)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	await(t, sub, func(l store.Lookup) bool { return l.Found })

	require.NoError(t, wait(t, s.Add(context.Background(), wine("Shiraz"))))

	select {
	case v := <-sub.C():
		t.Fatalf("unexpected emission for an unrelated change: %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_Save_AddsThenUpdates(t *testing.T) {
	s := openStore(t, newRepo(t))
	e := wine("Malbec")

	require.NoError(t, wait(t, s.Save(context.Background(), e)))
	e.Producer = "Catena"
	require.NoError(t, wait(t, s.Save(context.Background(), e)))

	got, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []domain.Wine{e}, got)
}

// ---- ordering & concurrency ------------------------------------------------

func TestStore_WritesApplyInSubmissionOrder(t *testing.T) {
	s := openStore(t, newRepo(t))
	e := wine("v0")
	require.NoError(t, wait(t, s.Add(context.Background(), e)))

	var last *store.Op
	for i := 1; i <= 50; i++ {
		e.Name = "v" + strconv.Itoa(i)
		last = s.Update(context.Background(), e)
	}
	require.NoError(t, wait(t, last))

	got, err := s.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "v50", got.Wine.Name)
}

func TestStore_AddThenDeleteQueuedBackToBack(t *testing.T) {
	s := openStore(t, newRepo(t))
	e := wine("Merlot")

	s.Add(context.Background(), e)
	require.NoError(t, wait(t, s.Delete(context.Background(), e)))

	got, err := s.Get(e.ID)
	require.NoError(t, err)
	assert.False(t, got.Found)
}

func TestStore_ReadsDoNotWaitForPendingWrites(t *testing.T) {
	g := &gatedRepo{WineRepo: newRepo(t), entered: make(chan struct{}), release: make(chan struct{})}
	s := openStore(t, g)

	op := s.Add(context.Background(), wine("Merlot"))
	<-g.entered

	got, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, got, "reads see the last committed state")
	assert.NoError(t, op.Err(), "a pending op reports no error yet")

	close(g.release)
	require.NoError(t, wait(t, op))
	got, err = s.Snapshot()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_CancelledContextAppliesNothing(t *testing.T) {
	r := newRepo(t)
	s := openStore(t, r)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := wait(t, s.Add(ctx, wine("Merlot")))

	assert.ErrorIs(t, err, context.Canceled)
	stored, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := openStore(t, newRepo(t))
	require.NoError(t, wait(t, s.Add(context.Background(), wine("Merlot"))))

	got, err := s.Snapshot()
	require.NoError(t, err)
	got[0].Name = "tampered"

	again, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "Merlot", again[0].Name)
}

// TestStore_Scenario walks through add, filter, delete and update on one store.
func TestStore_Scenario(t *testing.T) {
	s := openStore(t, newRepo(t))
	ctx := context.Background()
	a, b := wine("Merlot"), wine("Shiraz")

	require.NoError(t, wait(t, s.Add(ctx, a)))
	require.NoError(t, wait(t, s.Add(ctx, b)))
	all, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, ids(filter.Apply(all, "sh")))

	require.NoError(t, wait(t, s.Delete(ctx, a)))
	all, err = s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, ids(all))

	b.Name = "Shiraz Reserve"
	require.NoError(t, wait(t, s.Update(ctx, b)))
	all, err = s.Snapshot()
	require.NoError(t, err)
	got := filter.Apply(all, "sh")
	require.Len(t, got, 1)
	assert.Equal(t, b, got[0])
}
