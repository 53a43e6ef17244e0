package rate

import (
	"context"
	"errors"
	"math"
	"time"

	stm "github.com/alexandervanhecke/cats-stm"
	"github.com/alexandervanhecke/cats-stm/stmutil"
)

type numTokens = int

// A Limiter is a token-bucket rate limiter whose state lives in STM Vars,
// so taking tokens composes with any other transaction on the same
// Runtime.
type Limiter struct {
	rt      *stm.Runtime
	max     *stm.Var[numTokens]
	cur     *stm.Var[numTokens]
	lastAdd *stm.Var[time.Time]
	rate    Limit
}

const Inf = Limit(math.MaxFloat64)

type Limit float64

func (l Limit) interval() time.Duration {
	return time.Duration(Limit(1*time.Second) / l)
}

func Every(interval time.Duration) Limit {
	if interval == 0 {
		return Inf
	}
	return Limit(time.Second / interval)
}

var ErrBurstExceeded = errors.New("burst exceeded")

func NewLimiter(rt *stm.Runtime, rate Limit, burst numTokens) *Limiter {
	rl := &Limiter{
		rt:      rt,
		max:     stm.NewVar(rt, burst),
		cur:     stm.NewBuiltinEqVar(rt, burst),
		lastAdd: stm.NewVar(rt, time.Now()),
		rate:    rate,
	}
	if rate != Inf {
		go rl.tokenGenerator(rate.interval())
	}
	return rl
}

func (rl *Limiter) tokenGenerator(interval time.Duration) {
	for {
		lastAdd := stm.AtomicGet(rl.lastAdd)
		time.Sleep(time.Until(lastAdd.Add(interval)))
		now := time.Now()
		available := numTokens(now.Sub(lastAdd) / interval)
		if available < 1 {
			continue
		}
		_, _ = rl.rt.Atomically(stm.Bind(rl.cur.Get(), func(curv any) stm.Txn {
			cur := curv.(numTokens)
			return stm.Bind(rl.max.Get(), func(maxv any) stm.Txn {
				max := maxv.(numTokens)
				return stm.Bind(stm.Check(cur < max), func(any) stm.Txn {
					newCur := cur + available
					if newCur > max {
						newCur = max
					}
					bump := rl.lastAdd.Set(lastAdd.Add(interval * time.Duration(available)))
					if newCur != cur {
						return stm.Compose(rl.cur.Set(newCur), bump)
					}
					return bump
				})
			})
		}))
	}
}

func (rl *Limiter) Allow() bool {
	return rl.AllowN(1)
}

func (rl *Limiter) AllowN(n numTokens) bool {
	taken, _ := rl.rt.Atomically(rl.TakeTokens(n))
	return taken.(bool)
}

// TakeTokens yields true after deducting n tokens, or false without
// deducting anything, so callers can fold a rate check into their own
// transactions.
func (rl *Limiter) TakeTokens(n numTokens) stm.Txn {
	if rl.rate == Inf {
		return stm.Pure(true)
	}
	return stm.Bind(rl.cur.Get(), func(curv any) stm.Txn {
		cur := curv.(numTokens)
		if cur >= n {
			return stm.Compose(rl.cur.Set(cur-n), stm.Pure(true))
		}
		return stm.Pure(false)
	})
}

func (rl *Limiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN blocks until n tokens are available and takes them. It fails with
// ErrBurstExceeded if n can never be satisfied, and respects both ctx
// cancellation and its deadline.
func (rl *Limiter) WaitN(ctx context.Context, n int) error {
	ctxDone, cancel := stmutil.ContextDoneVar(rl.rt, ctx)
	defer cancel()
	txn := stm.Bind(ctxDone.Get(), func(done any) stm.Txn {
		if done.(bool) {
			return stm.Abort(ctx.Err())
		}
		return stm.Bind(rl.TakeTokens(n), func(taken any) stm.Txn {
			if taken.(bool) {
				return stm.Pure(nil)
			}
			return stm.Bind(rl.max.Get(), func(maxv any) stm.Txn {
				if n > maxv.(numTokens) {
					return stm.Abort(ErrBurstExceeded)
				}
				dl, ok := ctx.Deadline()
				if !ok {
					return stm.Retry
				}
				return stm.Bind(rl.cur.Get(), func(curv any) stm.Txn {
					return stm.Bind(rl.lastAdd.Get(), func(lastv any) stm.Txn {
						tokensByDeadline := curv.(numTokens) +
							numTokens(dl.Sub(lastv.(time.Time))/rl.rate.interval())
						if tokensByDeadline < n {
							return stm.Abort(context.DeadlineExceeded)
						}
						return stm.Retry
					})
				})
			})
		})
	})
	_, err := rl.rt.AtomicallyCtx(ctx, txn)
	var abort *stm.AbortError
	if errors.As(err, &abort) {
		return abort.Err
	}
	return err
}
