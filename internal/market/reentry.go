package market

import (
	"context"
	"sync"
)

// opKey tags a context with the operation that owns the registry lock.
type opKey struct{}

// operation is the token handed to collaborators through their context.
// A collaborator that calls back into the registry with that context runs
// inside the owning operation instead of waiting on opMu, and observes the
// state the owner has already mutated.
//
// Holding the context is not enough to mutate state. turn is held by
// whichever call is executing registry code and is released only for the
// duration of a collaborator call, so a goroutine that kept the context
// waits until the owner is parked in a call out, or has finished.
type operation struct {
	owner *registryImpl
	turn  sync.Mutex
	done  bool
}

// enter starts a mutating operation. The returned func must be deferred.
func (r *registryImpl) enter(ctx context.Context) (context.Context, func()) {
	if op, ok := ctx.Value(opKey{}).(*operation); ok && op.owner == r {
		op.turn.Lock()
		if !op.done {
			return ctx, op.turn.Unlock
		}
		op.turn.Unlock()
	}

	r.opMu.Lock()
	op := &operation{owner: r}
	op.turn.Lock()
	return context.WithValue(ctx, opKey{}, op), func() {
		op.done = true
		op.turn.Unlock()
		r.opMu.Unlock()
	}
}

// callOut runs a collaborator call with the turn released so the
// collaborator may re-enter the registry with ctx.
func callOut(ctx context.Context, fn func() error) error {
	op, ok := ctx.Value(opKey{}).(*operation)
	if !ok {
		return fn()
	}
	op.turn.Unlock()
	defer op.turn.Lock()
	return fn()
}
