package stmutil

import (
	"context"
	"sync"

	stm "github.com/alexandervanhecke/cats-stm"
)

type ctxKey struct {
	rt  *stm.Runtime
	ctx context.Context
}

var (
	mu      sync.Mutex
	ctxVars = map[ctxKey]*stm.Var[bool]{}
)

// ContextDoneVar returns a Var that becomes true when ctx is done, so
// transactions on rt can select on cancellation the way they select on any
// other condition. Vars are cached per (rt, ctx) pair.
func ContextDoneVar(rt *stm.Runtime, ctx context.Context) (*stm.Var[bool], func()) {
	key := ctxKey{rt, ctx}
	mu.Lock()
	defer mu.Unlock()
	if v, ok := ctxVars[key]; ok {
		return v, func() {}
	}
	if ctx.Err() != nil {
		v := stm.NewVar(rt, true)
		ctxVars[key] = v
		return v, func() {}
	}
	v := stm.NewVar(rt, false)
	go func() {
		<-ctx.Done()
		stm.AtomicSet(v, true)
	}()
	ctxVars[key] = v
	return v, func() {}
}
