package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stm "github.com/alexandervanhecke/cats-stm"
)

func TestInfAlwaysAllows(t *testing.T) {
	rl := NewLimiter(stm.New(), Inf, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow())
	}
}

func TestBurstDrains(t *testing.T) {
	// a slow limiter with burst 2: two immediate tokens, then nothing
	rl := NewLimiter(stm.New(), Limit(1e-9), 2)
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
}

func TestAllowNAtomicity(t *testing.T) {
	rl := NewLimiter(stm.New(), Limit(1e-9), 3)
	assert.False(t, rl.AllowN(4))
	// the failed AllowN must not have taken anything
	assert.True(t, rl.AllowN(3))
	assert.False(t, rl.Allow())
}

func TestWaitBurstExceeded(t *testing.T) {
	rl := NewLimiter(stm.New(), Limit(1e-9), 1)
	err := rl.WaitN(context.Background(), 2)
	require.ErrorIs(t, err, ErrBurstExceeded)
}

func TestWaitDeadlineExceeded(t *testing.T) {
	rl := NewLimiter(stm.New(), Limit(1e-9), 5)
	require.NoError(t, rl.Wait(context.Background()))
	// drain the rest of the burst
	require.True(t, rl.AllowN(4))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := rl.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitCancel(t *testing.T) {
	rl := NewLimiter(stm.New(), Limit(1e-9), 1)
	require.True(t, rl.Allow())
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- rl.Wait(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errs:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Wait did not observe cancellation")
	}
}

func TestWaitRefill(t *testing.T) {
	rl := NewLimiter(stm.New(), Every(10*time.Millisecond), 1)
	require.True(t, rl.Allow())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rl.Wait(ctx))
}
