package stm

// An AbortError is returned from Atomically when the transaction evaluated
// an Abort node. Err is the error passed to Abort, verbatim.
type AbortError struct {
	Err error
}

func (e *AbortError) Error() string {
	return "transaction aborted: " + e.Err.Error()
}

func (e *AbortError) Unwrap() error { return e.Err }

// A FailureError is returned from Atomically when a panic escaped one of
// the caller's functions inside the transaction. It is equivalent to an
// abort in that nothing was published, but distinguishable so diagnostics
// can tell a deliberate Abort from an escaped failure.
type FailureError struct {
	Err error
}

func (e *FailureError) Error() string {
	return "transaction failed: " + e.Err.Error()
}

func (e *FailureError) Unwrap() error { return e.Err }
