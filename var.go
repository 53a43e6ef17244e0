package stm

import "sync"

// A Var holds a transactional variable: a committed value plus the waiters
// currently parked on it. The value only changes when a transaction commits,
// while the runtime's commit gate is held.
type Var[T any] struct {
	rt *Runtime
	id uint64

	// mu guards val and version so Value can read without the commit gate.
	mu      sync.Mutex
	val     T
	version uint64

	// changed reports whether a publish of new over old invalidates readers.
	// nil means every publish does.
	changed func(old, new T) bool

	// waiters is keyed by attempt id and mutated only under the commit gate.
	waiters map[uint64]*waiter
}

// NewVar returns a new Var committed with val. Every Set of the Var, even to
// an equal value, invalidates concurrent readers and wakes parked waiters.
func NewVar[T any](rt *Runtime, val T) *Var[T] {
	return &Var[T]{
		rt:      rt,
		id:      rt.varIDs.Add(1),
		val:     val,
		waiters: make(map[uint64]*waiter),
	}
}

// NewCustomVar is like NewVar, but a publish for which changed(old, new)
// reports false stores the value without invalidating readers or waking
// waiters. changed must be pure.
func NewCustomVar[T any](rt *Runtime, val T, changed func(old, new T) bool) *Var[T] {
	v := NewVar(rt, val)
	v.changed = changed
	return v
}

// NewBuiltinEqVar returns a Var that uses built-in equality to decide
// whether a publish invalidates readers.
func NewBuiltinEqVar[T comparable](rt *Runtime, val T) *Var[T] {
	return NewCustomVar(rt, val, func(old, new T) bool {
		return old != new
	})
}

// Value returns the last committed value of v without running a
// transaction. It does not take the commit gate and never blocks on other
// transactions; use it from tests and instrumentation to observe state.
func (v *Var[T]) Value() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.val
}

// cell is the type-erased capability a Txn leaf carries for a Var. The
// executor and commit protocol drive Vars exclusively through it; methods
// suffixed Locked require the runtime's commit gate.
type cell interface {
	cellID() uint64
	owner() *Runtime
	loadLocked() (val any, version uint64)
	// storeLocked publishes val and reports whether readers were
	// invalidated (and hence whether waiters should be collected).
	storeLocked(val any) bool
	addWaiterLocked(w *waiter)
	removeWaiterLocked(txnID uint64)
	waitersLocked() []*waiter
}

func (v *Var[T]) cellID() uint64  { return v.id }
func (v *Var[T]) owner() *Runtime { return v.rt }

func (v *Var[T]) loadLocked() (any, uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.val, v.version
}

func (v *Var[T]) storeLocked(val any) bool {
	nv := val.(T)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.changed != nil && !v.changed(v.val, nv) {
		v.val = nv
		return false
	}
	v.val = nv
	v.version++
	return true
}

func (v *Var[T]) addWaiterLocked(w *waiter) {
	v.waiters[w.txnID] = w
}

func (v *Var[T]) removeWaiterLocked(txnID uint64) {
	delete(v.waiters, txnID)
}

func (v *Var[T]) waitersLocked() []*waiter {
	if len(v.waiters) == 0 {
		return nil
	}
	ws := make([]*waiter, 0, len(v.waiters))
	for _, w := range v.waiters {
		ws = append(ws, w)
	}
	return ws
}
