package stm

import (
	"context"
	"sync"

	"github.com/alecthomas/atomic"
	"go.uber.org/zap"
)

// A Runtime owns everything shared between the transactions of one STM
// instance: the commit gate serializing validation and publish, the id
// streams for Vars and attempts, and counters. Runtimes are isolated from
// each other; a Var may only be used with the Runtime that created it.
type Runtime struct {
	// gate totally orders commit attempts. All cell mutation, waiter
	// bookkeeping and evaluation-time snapshots happen under it.
	gate sync.Mutex

	varIDs atomic.Uint64
	txnIDs atomic.Uint64

	logger *zap.Logger

	commits   atomic.Int64
	conflicts atomic.Int64
	parks     atomic.Int64
	wakes     atomic.Int64
}

// An Option configures a Runtime.
type Option func(*Runtime)

// WithLogger makes the Runtime log commit conflicts, parks and wakeups at
// Debug level. The default logger is a no-op.
func WithLogger(l *zap.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = l
	}
}

// New returns a fresh, isolated Runtime.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		varIDs:    atomic.NewUint64(0),
		txnIDs:    atomic.NewUint64(0),
		logger:    zap.NewNop(),
		commits:   atomic.NewInt64(0),
		conflicts: atomic.NewInt64(0),
		parks:     atomic.NewInt64(0),
		wakes:     atomic.NewInt64(0),
	}
	for _, o := range opts {
		o(rt)
	}
	return rt
}

// Stats is a snapshot of a Runtime's counters.
type Stats struct {
	// Commits is the number of transactions that published successfully.
	Commits int64
	// Conflicts counts commit attempts rejected by read-set validation
	// and rerun. Conflicts are invisible to callers.
	Conflicts int64
	// Parks counts attempts that blocked on Retry.
	Parks int64
	// Wakes counts parked attempts woken by a commit.
	Wakes int64
}

func (rt *Runtime) Stats() Stats {
	return Stats{
		Commits:   rt.commits.Load(),
		Conflicts: rt.conflicts.Load(),
		Parks:     rt.parks.Load(),
		Wakes:     rt.wakes.Load(),
	}
}

// Atomically commits txn: it evaluates it against a private log and
// publishes all of its writes at once, or none of them. It reruns the
// transaction transparently when a concurrent commit invalidates its
// reads, and blocks when the transaction retries, resuming once one of
// the Vars it read changes. The transaction's result is returned on
// success; Abort and escaped panics surface as *AbortError and
// *FailureError with nothing published.
func (rt *Runtime) Atomically(txn Txn) (any, error) {
	return rt.AtomicallyCtx(context.Background(), txn)
}

// AtomicallyCtx is Atomically with cancellation. Once ctx is done no
// further evaluation or publish happens for this call, any installed
// waiters are removed, and ctx.Err() is returned. Cancellation is
// idempotent and cannot revoke a commit that already published.
func (rt *Runtime) AtomicallyCtx(ctx context.Context, txn Txn) (any, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a := rt.newAttempt()
		res := a.eval(txn)
		switch res.kind {
		case evalOK:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if rt.commitAttempt(a) {
				return res.val, nil
			}
			rt.conflicts.Add(1)
			rt.logger.Debug("commit conflict, rerunning",
				zap.Uint64("txn", a.id))
		case evalRetry:
			w := rt.park(a)
			if w == nil {
				// The read set is already stale; rerun immediately.
				continue
			}
			select {
			case <-w.ch:
				rt.wakes.Add(1)
				rt.logger.Debug("woken", zap.Uint64("txn", a.id))
			case <-ctx.Done():
				rt.unpark(w)
				return nil, ctx.Err()
			}
		case evalAbort:
			return nil, &AbortError{Err: res.err}
		case evalFailed:
			return nil, &FailureError{Err: res.err}
		}
	}
}

// snapshot takes a gate-consistent point read of c during evaluation.
func (rt *Runtime) snapshot(c cell) (any, uint64) {
	rt.gate.Lock()
	val, version := c.loadLocked()
	rt.gate.Unlock()
	return val, version
}

// commitAttempt validates a's read set under the gate and, if it is still
// current, publishes the write set. Claimed waiters are woken only after
// the gate is released.
func (rt *Runtime) commitAttempt(a *attempt) bool {
	rt.gate.Lock()
	if !a.validateLocked() {
		rt.gate.Unlock()
		return false
	}
	toWake := a.publishLocked()
	rt.gate.Unlock()
	rt.commits.Add(1)
	for _, w := range toWake {
		close(w.ch)
	}
	return true
}

// park installs a waiter for a on every cell in its read set, including
// reads from OrElse branches unwound by the retry. It returns nil if any
// of those cells changed since the attempt observed it, in which case the
// transaction should simply rerun.
func (rt *Runtime) park(a *attempt) *waiter {
	set := a.readSet()
	w := newWaiter(a.id)
	rt.gate.Lock()
	for _, e := range set {
		if _, version := e.c.loadLocked(); version != e.version {
			rt.gate.Unlock()
			return nil
		}
	}
	for _, e := range set {
		e.c.addWaiterLocked(w)
		w.cells = append(w.cells, e.c)
	}
	rt.gate.Unlock()
	rt.parks.Add(1)
	rt.logger.Debug("parked on retry",
		zap.Uint64("txn", a.id), zap.Int("cells", len(set)))
	return w
}

// unpark removes a cancelled waiter from every cell it sits on. Safe to
// call regardless of whether a commit claimed the waiter first.
func (rt *Runtime) unpark(w *waiter) {
	rt.gate.Lock()
	w.claimLocked()
	rt.gate.Unlock()
}
