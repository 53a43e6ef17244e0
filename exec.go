package stm

import "fmt"

// evalKind classifies the outcome of evaluating a Txn node. Retry, abort
// and failure are ordinary return values, not unwinding; they propagate
// through Bind without running continuations.
type evalKind int

const (
	evalOK evalKind = iota
	evalRetry
	evalAbort
	evalFailed
)

type evalResult struct {
	kind evalKind
	val  any
	err  error
}

// An attempt is one concrete execution of a Txn: a fresh id, a fresh log.
// Committing the same Txn twice yields two independent attempts.
type attempt struct {
	rt  *Runtime
	id  uint64
	log txnLog

	// retryReads collects the read sets of OrElse branches that were
	// unwound by a retry. They no longer count for commit validation, but
	// a park must cover them: the discarded branch could succeed once any
	// of them changes.
	retryReads map[uint64]*logEntry
}

func (rt *Runtime) newAttempt() *attempt {
	return &attempt{
		rt:  rt,
		id:  rt.txnIDs.Add(1),
		log: make(txnLog),
	}
}

// entry returns the log entry for c, seeding it with a gate-consistent
// snapshot on first contact.
func (a *attempt) entry(c cell) *logEntry {
	if c.owner() != a.rt {
		panic("stm: Var belongs to a different Runtime")
	}
	if e, ok := a.log[c.cellID()]; ok {
		return e
	}
	val, version := a.rt.snapshot(c)
	e := &logEntry{c: c, observed: val, version: version, current: val}
	a.log[c.cellID()] = e
	return e
}

func (a *attempt) read(c cell) any {
	return a.entry(c).current
}

func (a *attempt) write(c cell, val any) {
	e := a.entry(c)
	e.current = val
	e.touched = true
}

// eval walks the Txn tree. The node set is closed, so this switch is the
// whole interpreter.
func (a *attempt) eval(t Txn) evalResult {
	switch n := t.(type) {
	case pureNode:
		return evalResult{kind: evalOK, val: n.val}
	case readNode:
		return evalResult{kind: evalOK, val: a.read(n.c)}
	case writeNode:
		a.write(n.c, n.val)
		return evalResult{kind: evalOK}
	case bindNode:
		r := a.eval(n.m)
		if r.kind != evalOK {
			return r
		}
		next, err := callCont(n.k, r.val)
		if err != nil {
			return evalResult{kind: evalFailed, err: err}
		}
		if next == nil {
			panic("stm: Bind continuation returned nil Txn")
		}
		return a.eval(next)
	case retryNode:
		return evalResult{kind: evalRetry}
	case orElseNode:
		saved := a.log.clone()
		r := a.eval(n.left)
		if r.kind != evalRetry {
			return r
		}
		a.stashReads()
		a.log = saved
		return a.eval(n.right)
	case abortNode:
		return evalResult{kind: evalAbort, err: n.err}
	case nil:
		panic("stm: nil Txn")
	default:
		panic(fmt.Sprintf("stm: unknown Txn node %T", t))
	}
}

// callCont runs a caller-supplied continuation, converting a panic into a
// failure outcome so that no write is ever published for the attempt.
func callCont(k func(any) Txn, val any) (next Txn, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	return k(val), nil
}

// stashReads preserves the current log's read observations before an
// OrElse unwinds it, for wakeup registration. First observation wins.
func (a *attempt) stashReads() {
	if a.retryReads == nil {
		a.retryReads = make(map[uint64]*logEntry, len(a.log))
	}
	for id, e := range a.log {
		if _, ok := a.retryReads[id]; !ok {
			a.retryReads[id] = &logEntry{c: e.c, observed: e.observed, version: e.version}
		}
	}
}

// readSet is the union of live log entries and reads stashed from unwound
// OrElse branches: everything a park must subscribe to and revalidate.
func (a *attempt) readSet() []*logEntry {
	set := make([]*logEntry, 0, len(a.log)+len(a.retryReads))
	for _, e := range a.log {
		set = append(set, e)
	}
	for id, e := range a.retryReads {
		if _, ok := a.log[id]; !ok {
			set = append(set, e)
		}
	}
	return set
}

// validateLocked confirms, under the commit gate, that every cell in the log
// still holds the version the attempt first observed.
func (a *attempt) validateLocked() bool {
	for _, e := range a.log {
		if _, version := e.c.loadLocked(); version != e.version {
			return false
		}
	}
	return true
}

// publishLocked writes every touched entry into its cell and claims the
// waiters of each cell whose readers were invalidated. The claimed waiters
// are woken by the caller after the gate is released.
func (a *attempt) publishLocked() []*waiter {
	var toWake []*waiter
	for _, e := range a.log {
		if !e.touched {
			continue
		}
		if !e.c.storeLocked(e.current) {
			continue
		}
		for _, w := range e.c.waitersLocked() {
			if w.claimLocked() {
				toWake = append(toWake, w)
			}
		}
	}
	return toWake
}
