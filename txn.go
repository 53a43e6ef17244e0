package stm

// A Txn is a pure description of a transaction: reads and writes of Vars
// glued together with Bind and OrElse. Building a Txn has no effect; a
// Runtime interprets it when it is passed to Atomically. Txn values are
// immutable and may be committed any number of times, concurrently.
type Txn interface {
	txnNode()
}

type pureNode struct{ val any }

type readNode struct{ c cell }

type writeNode struct {
	c   cell
	val any
}

type bindNode struct {
	m Txn
	k func(any) Txn
}

type retryNode struct{}

type orElseNode struct{ left, right Txn }

type abortNode struct{ err error }

func (pureNode) txnNode()   {}
func (readNode) txnNode()   {}
func (writeNode) txnNode()  {}
func (bindNode) txnNode()   {}
func (retryNode) txnNode()  {}
func (orElseNode) txnNode() {}
func (abortNode) txnNode()  {}

// Retry blocks the transaction until one of the Vars it has read changes,
// then reruns it from the start.
var Retry Txn = retryNode{}

// Pure yields val without touching any Var.
func Pure(val any) Txn {
	return pureNode{val: val}
}

// Bind runs m and feeds its result to k, running the transaction k returns.
// If m retries or aborts, k is not called.
func Bind(m Txn, k func(any) Txn) Txn {
	return bindNode{m: m, k: k}
}

// OrElse runs left. If left retries, its writes are discarded and right
// runs in its place. An abort in left is final; right is not tried.
func OrElse(left, right Txn) Txn {
	return orElseNode{left: left, right: right}
}

// Abort fails the transaction with err. No writes are published and the
// error is surfaced from Atomically wrapped in *AbortError.
func Abort(err error) Txn {
	return abortNode{err: err}
}

// Check retries the transaction unless ok holds. Combined with Bind it is
// the usual way to block on a condition over Vars.
func Check(ok bool) Txn {
	if ok {
		return Pure(nil)
	}
	return Retry
}

// Get yields the value of v: the transaction's own pending write if it has
// one, otherwise the committed value at first read.
func (v *Var[T]) Get() Txn {
	return readNode{c: v}
}

// Set records a write of val to v, published if the transaction commits.
func (v *Var[T]) Set(val T) Txn {
	return writeNode{c: v, val: val}
}

// Modify replaces the value of v with f applied to it.
func (v *Var[T]) Modify(f func(T) T) Txn {
	return Bind(v.Get(), func(cur any) Txn {
		return v.Set(f(cur.(T)))
	})
}
