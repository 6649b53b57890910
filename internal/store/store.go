// Package store owns the durable collection of wine entries.
//
// Reads are served from an immutable in-memory snapshot of the last committed
// state and never wait for queued writes. Writes are queued onto a single
// worker goroutine, applied to the repo in submission order, and each
// committed change publishes a new snapshot to every live observer.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
	"github.com/pkordes/wine-catalog/backend/internal/live"
	"github.com/pkordes/wine-catalog/backend/internal/repo"
)

const defaultQueueSize = 64

// Lookup is the result of a single-entry read. Found is false when no entry
// with the requested ID exists.
type Lookup struct {
	Wine  domain.Wine
	Found bool
}

// snapshot is an immutable view of the collection. A new one is built for
// every committed change; published snapshots are never modified.
type snapshot struct {
	list  []domain.Wine
	index map[uuid.UUID]int
}

func newSnapshot(list []domain.Wine) snapshot {
	index := make(map[uuid.UUID]int, len(list))
	for i, w := range list {
		index[w.ID] = i
	}
	return snapshot{list: list, index: index}
}

func (s snapshot) lookup(id uuid.UUID) Lookup {
	if i, ok := s.index[id]; ok {
		return Lookup{Wine: s.list[i], Found: true}
	}
	return Lookup{}
}

type state int

const (
	stateNew state = iota
	stateOpen
	stateClosed
)

// Option configures a Store.
type Option func(*Store)

// WithQueueSize sets how many mutations may be queued before Add, Update,
// Delete and Save start waiting for the worker.
func WithQueueSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// Store is the single owner and writer of the wine collection.
// Construct exactly one per process with New, call Open once at startup and
// pass the *Store to every consumer.
type Store struct {
	repo      repo.WineRepo
	log       *slog.Logger
	queueSize int

	lifeMu sync.RWMutex
	state  state
	jobs   chan job
	done   chan struct{}

	snap *live.Subject[snapshot]
}

// New constructs a Store over r. The store is unusable until Open succeeds.
func New(r repo.WineRepo, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		repo:      r,
		log:       log,
		queueSize: defaultQueueSize,
		snap:      live.NewSubject[snapshot](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the collection from the repo, publishes it to observers and
// starts the write worker. It may only be called once.
func (s *Store) Open(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.state != stateNew {
		return errors.New("store.Store.Open: already opened")
	}

	list, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("store.Store.Open: %w", err)
	}
	s.snap.Publish(newSnapshot(list))

	s.jobs = make(chan job, s.queueSize)
	s.done = make(chan struct{})
	go s.run()

	s.state = stateOpen
	s.log.InfoContext(ctx, "wine store opened", "entries", len(list))
	return nil
}

// Close stops accepting mutations, waits for every queued one to finish and
// then ends all live subscriptions. Closing an unopened store just marks it
// closed.
func (s *Store) Close() error {
	s.lifeMu.Lock()
	prev := s.state
	s.state = stateClosed
	if prev == stateOpen {
		close(s.jobs)
	}
	s.lifeMu.Unlock()

	if prev == stateOpen {
		<-s.done
	}
	s.snap.Close()
	return nil
}

// ObserveAll returns a subscription that delivers the current collection
// immediately and again after every committed mutation. Delivered slices are
// shared between observers and must not be modified.
func (s *Store) ObserveAll() (*live.Subscription[[]domain.Wine], error) {
	if err := s.ready("ObserveAll"); err != nil {
		return nil, err
	}
	return live.SubscribeMap(s.snap, func(v snapshot) []domain.Wine { return v.list }, nil), nil
}

// ObserveOne returns a subscription scoped to one identifier. It delivers
// Found=false when the entry does not exist or is later deleted. A value is
// only delivered when it differs from the previous one.
func (s *Store) ObserveOne(id uuid.UUID) (*live.Subscription[Lookup], error) {
	if err := s.ready("ObserveOne"); err != nil {
		return nil, err
	}
	return live.SubscribeMap(s.snap,
		func(v snapshot) Lookup { return v.lookup(id) },
		func(a, b Lookup) bool { return a == b },
	), nil
}

// Snapshot returns a copy of the last committed collection in storage order.
func (s *Store) Snapshot() ([]domain.Wine, error) {
	if err := s.ready("Snapshot"); err != nil {
		return nil, err
	}
	v, _ := s.snap.Value()
	return slices.Clone(v.list), nil
}

// Get returns the committed state of a single entry.
func (s *Store) Get(id uuid.UUID) (Lookup, error) {
	if err := s.ready("Get"); err != nil {
		return Lookup{}, err
	}
	v, _ := s.snap.Value()
	return v.lookup(id), nil
}

// Add queues the insertion of a new entry. The Op fails with
// domain.ErrConstraintViolation if the ID already exists.
func (s *Store) Add(ctx context.Context, w domain.Wine) *Op {
	return s.enqueue(ctx, opAdd, w)
}

// Update queues the replacement of every mutable field of the entry with
// w.ID. Updating a missing entry completes successfully without effect.
func (s *Store) Update(ctx context.Context, w domain.Wine) *Op {
	return s.enqueue(ctx, opUpdate, w)
}

// Delete queues the removal of the entry with w.ID. Deleting a missing entry
// completes successfully without effect. The photo file is left alone.
func (s *Store) Delete(ctx context.Context, w domain.Wine) *Op {
	return s.enqueue(ctx, opDelete, w)
}

// Save queues an Update when w.ID is already stored and an Add otherwise.
// The choice is made by the worker, so it sees every earlier mutation.
func (s *Store) Save(ctx context.Context, w domain.Wine) *Op {
	return s.enqueue(ctx, opSave, w)
}

func (s *Store) ready(method string) error {
	s.lifeMu.RLock()
	defer s.lifeMu.RUnlock()
	if s.state != stateOpen {
		return fmt.Errorf("store.Store.%s: %w", method, domain.ErrNotInitialized)
	}
	return nil
}

func (s *Store) enqueue(ctx context.Context, kind opKind, w domain.Wine) *Op {
	s.lifeMu.RLock()
	defer s.lifeMu.RUnlock()

	if s.state != stateOpen {
		return failedOp(fmt.Errorf("store.Store.%s: %w", kind, domain.ErrNotInitialized))
	}

	op := newOp()
	select {
	case s.jobs <- job{ctx: ctx, kind: kind, wine: w, op: op}:
		return op
	case <-ctx.Done():
		return failedOp(fmt.Errorf("store.Store.%s: %w", kind, ctx.Err()))
	}
}

// run is the write worker. It is the only goroutine that touches the repo's
// write methods or publishes snapshots.
func (s *Store) run() {
	defer close(s.done)
	for j := range s.jobs {
		j.op.finish(s.apply(j))
	}
}

func (s *Store) apply(j job) error {
	if err := j.ctx.Err(); err != nil {
		return fmt.Errorf("store.Store.%s: %w", j.kind, err)
	}

	current, _ := s.snap.Value()
	kind := j.kind
	if kind == opSave {
		if current.lookup(j.wine.ID).Found {
			kind = opUpdate
		} else {
			kind = opAdd
		}
	}

	var err error
	switch kind {
	case opAdd:
		err = s.repo.Insert(j.ctx, j.wine)
	case opUpdate:
		err = s.repo.Update(j.ctx, j.wine)
	case opDelete:
		err = s.repo.Delete(j.ctx, j.wine.ID)
	}

	if errors.Is(err, domain.ErrNotFound) {
		// The entry vanished between the caller's read and this write.
		s.log.DebugContext(j.ctx, "mutation of missing wine ignored", "op", j.kind.String(), "id", j.wine.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("store.Store.%s: %w", j.kind, err)
	}

	s.snap.Publish(newSnapshot(nextList(current, kind, j.wine)))
	return nil
}

// nextList returns a new slice reflecting a committed mutation. current.list
// is shared with observers, so it is copied rather than modified.
func nextList(current snapshot, kind opKind, w domain.Wine) []domain.Wine {
	i, exists := current.index[w.ID]
	switch {
	case kind == opAdd:
		return append(slices.Clone(current.list), w)
	case kind == opUpdate && exists:
		out := slices.Clone(current.list)
		out[i] = w
		return out
	case kind == opDelete && exists:
		return slices.Delete(slices.Clone(current.list), i, i+1)
	}
	return current.list
}
