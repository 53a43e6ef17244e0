/*
Package stm provides Software Transactional Memory for Go. It is an
alternative to the standard way of writing concurrent code (channels and
mutexes) for state that several goroutines read and modify together. STM
makes it easy to perform arbitrarily complex operations in an atomic
fashion, and unlike locking the pieces stay composable: two transactions
can be glued into a bigger one that still commits all-or-nothing.

A transaction is a value of type Txn describing reads and writes of Vars.
Building a Txn performs no work; it only runs when handed to a Runtime:

	rt := stm.New()
	x := stm.NewVar(rt, 3)

	// atomically decrement x
	_, _ = rt.Atomically(x.Modify(func(v int) int { return v - 1 }))

Transactions sequence with Bind, which feeds the result of one step to a
function producing the next:

	transfer := stm.Bind(from.Get(), func(v any) stm.Txn {
		amount := v.(int)
		return stm.Bind(from.Set(0), func(any) stm.Txn {
			return to.Modify(func(cur int) int { return cur + amount })
		})
	})

An important part of STM is retrying. A transaction that evaluates Retry
(usually via Check) blocks until another transaction commits a change to
one of the Vars it read, and then reruns:

	// block until x is positive, then take one
	dec := stm.Bind(x.Get(), func(v any) stm.Txn {
		return stm.Bind(stm.Check(v.(int) > 0), func(any) stm.Txn {
			return x.Set(v.(int) - 1)
		})
	})

OrElse composes alternatives: it runs its left side and, only if that side
retries, discards its effects and runs the right side instead. Select
folds OrElse over any number of transactions.

Abort fails a transaction with a caller-supplied error. Neither Abort, nor
a panic escaping one of the caller's functions, nor a blocked Retry ever
publishes a write: Vars only change when a transaction commits as a whole.

Because a transaction may run several times before it commits, functions
passed to Bind and Modify should be idempotent, or side effects should be
deferred until Atomically returns.

Each Runtime is fully isolated, with its own cells, commit ordering and
id streams; independent subsystems (and tests) can run their own.
*/
package stm
