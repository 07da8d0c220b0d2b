package process

import (
	"sync/atomic"

	"github.com/fedsim/fedsim-go/pkg/broker"
	"github.com/fedsim/fedsim-go/pkg/core"
	"github.com/fedsim/fedsim-go/pkg/federate"
)

// counted is a registered object shared by every reference to it. All
// fields but value are guarded by Context.mu.
type counted[T any] struct {
	name      string
	value     T
	refs      int
	protected bool
	dead      bool

	// drop removes the object from its registry. Requires Context.mu.
	drop func()

	// close tears the object down. Called without Context.mu.
	close func(T) error
}

// Ref is a reference-counted handle on an object of a Context. The object
// is torn down when its last reference is released, unless it is
// protected.
type Ref[T any] struct {
	pc       *Context
	obj      *counted[T]
	released atomic.Bool
}

// CoreRef is a reference on a core.
type CoreRef = Ref[*core.Core]

// BrokerRef is a reference on a broker.
type BrokerRef = Ref[*broker.Broker]

// FederateRef is a reference on a federate.
type FederateRef = Ref[*federate.Federate]

// Get returns the referenced object, the zero value once the reference is
// released.
func (r *Ref[T]) Get() T {
	if r == nil || r.released.Load() {
		var zero T
		return zero
	}
	return r.obj.value
}

// Name returns the registered name of the object.
func (r *Ref[T]) Name() string {
	if r == nil {
		return ""
	}
	return r.obj.name
}

// IsValid reports whether the reference is unreleased and the object is
// still alive.
func (r *Ref[T]) IsValid() bool {
	if r == nil || r.released.Load() {
		return false
	}
	r.pc.mu.Lock()
	defer r.pc.mu.Unlock()
	return !r.obj.dead
}

// Clone returns a new reference on the same object.
func (r *Ref[T]) Clone() (*Ref[T], error) {
	if r == nil || r.released.Load() {
		return nil, ErrReleased
	}
	r.pc.mu.Lock()
	defer r.pc.mu.Unlock()
	if r.obj.dead {
		return nil, ErrReleased
	}
	return acquire(r.pc, r.obj), nil
}

// Release drops the reference. The last release of an unprotected object
// tears it down and returns the teardown error.
func (r *Ref[T]) Release() error {
	if r == nil || r.released.Swap(true) {
		return ErrReleased
	}
	r.pc.mu.Lock()
	r.obj.refs--
	last := r.obj.refs <= 0 && !r.obj.protected && !r.obj.dead
	if last {
		r.obj.dead = true
		r.obj.drop()
	}
	r.pc.mu.Unlock()
	if !last {
		return nil
	}
	return r.obj.close(r.obj.value)
}

// acquire returns a new reference on obj. Requires pc.mu.
func acquire[T any](pc *Context, obj *counted[T]) *Ref[T] {
	obj.refs++
	return &Ref[T]{pc: pc, obj: obj}
}
