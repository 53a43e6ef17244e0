package stm

// Compose sequences any number of transactions into one, yielding the
// result of the last. An empty Compose yields nil.
func Compose(txns ...Txn) Txn {
	switch len(txns) {
	case 0:
		return Pure(nil)
	case 1:
		return txns[0]
	default:
		return Bind(txns[0], func(any) Txn {
			return Compose(txns[1:]...)
		})
	}
}

// Select tries the supplied transactions in order, settling on the first
// that does not retry. If all of them retry, the whole selection retries.
// An empty Select blocks forever.
func Select(txns ...Txn) Txn {
	switch len(txns) {
	case 0:
		return Retry
	case 1:
		return txns[0]
	default:
		return OrElse(txns[0], Select(txns[1:]...))
	}
}

// AtomicGet is a helper function that atomically reads a value.
func AtomicGet[T any](v *Var[T]) T {
	// Since we're only doing one read, we don't need a full transaction.
	return v.Value()
}

// AtomicSet is a helper function that atomically writes a value.
func AtomicSet[T any](v *Var[T], val T) {
	// A single-write transaction cannot retry, abort or fail; conflicts
	// are rerun internally.
	_, _ = v.rt.Atomically(v.Set(val))
}
