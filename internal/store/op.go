package store

import (
	"context"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
)

type opKind int

const (
	opAdd opKind = iota
	opUpdate
	opDelete
	opSave
)

func (k opKind) String() string {
	switch k {
	case opAdd:
		return "Add"
	case opUpdate:
		return "Update"
	case opDelete:
		return "Delete"
	case opSave:
		return "Save"
	}
	return "unknown"
}

type job struct {
	ctx  context.Context
	kind opKind
	wine domain.Wine
	op   *Op
}

// Op tracks one queued mutation. Callers observe completion through Done or
// Wait; nothing forces them to block.
type Op struct {
	done chan struct{}
	err  error
}

func newOp() *Op {
	return &Op{done: make(chan struct{})}
}

func failedOp(err error) *Op {
	op := newOp()
	op.finish(err)
	return op
}

// Finished returns an Op that has already completed with err. It lets code
// holding an interface over Store return synchronous results, and tests fake
// the store.
func Finished(err error) *Op {
	return failedOp(err)
}

func (o *Op) finish(err error) {
	o.err = err
	close(o.done)
}

// Done is closed once the mutation has been committed or has failed.
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Err returns the outcome of the mutation. It returns nil while the
// mutation is still pending.
func (o *Op) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Wait blocks until the mutation completes or ctx is done. A ctx expiry only
// stops the wait; the mutation itself still runs.
func (o *Op) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
