package stm

// A waiter is a single-shot subscription installed on every cell a parked
// attempt read. The first commit that invalidates any of those cells (or a
// cancellation) claims it by flipping fired under the commit gate; the
// claimant removes it from all its cells. A claiming commit closes ch once
// the gate is released; a cancellation leaves ch open.
type waiter struct {
	txnID uint64
	fired bool // guarded by the commit gate
	ch    chan struct{}
	cells []cell
}

func newWaiter(txnID uint64) *waiter {
	return &waiter{
		txnID: txnID,
		ch:    make(chan struct{}),
	}
}

// claimLocked marks w fired and detaches it from every cell it sits on.
// It reports false if w was already claimed. Requires the commit gate.
func (w *waiter) claimLocked() bool {
	if w.fired {
		return false
	}
	w.fired = true
	for _, c := range w.cells {
		c.removeWaiterLocked(w.txnID)
	}
	return true
}
