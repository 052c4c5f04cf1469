package chain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	mu        sync.Mutex
	value     int
	snapshots int
}

func (c *counter) Snapshot() func() {
	c.mu.Lock()
	c.snapshots++
	saved := c.value
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.value = saved
		c.mu.Unlock()
	}
}

func (c *counter) add(n int) {
	c.mu.Lock()
	c.value += n
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func TestExecuteCommitsAndReverts(t *testing.T) {
	c := New(nil)
	j := &counter{}
	c.Register(j)

	require.NoError(t, c.Execute(context.Background(), func(ctx context.Context) error {
		j.add(5)
		return nil
	}))
	assert.Equal(t, 5, j.get())
	assert.Equal(t, uint64(1), c.Height())

	boom := errors.New("boom")
	err := c.Execute(context.Background(), func(ctx context.Context) error {
		j.add(100)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 5, j.get())
	assert.Equal(t, uint64(1), c.Height())
}

func TestNestedExecutionRunsInline(t *testing.T) {
	c := New(nil)
	j := &counter{}
	c.Register(j)

	err := c.Execute(context.Background(), func(ctx context.Context) error {
		assert.True(t, c.InExecution(ctx))
		j.add(1)

		// Try undoes only its own effects so the outer call can carry on
		inner := c.Try(ctx, func(ctx context.Context) error {
			j.add(10)
			return errors.New("inner")
		})
		require.Error(t, inner)
		assert.Equal(t, 1, j.get())

		return c.Execute(ctx, func(ctx context.Context) error {
			j.add(2)
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 3, j.get())
	assert.Equal(t, uint64(1), c.Height())
	assert.False(t, c.InExecution(context.Background()))
}

func TestNestedExecutionSnapshotsOnce(t *testing.T) {
	c := New(nil)
	j := &counter{}
	c.Register(j)

	var depth func(ctx context.Context, n int) error
	depth = func(ctx context.Context, n int) error {
		return c.Execute(ctx, func(ctx context.Context) error {
			j.add(1)
			if n == 0 {
				return nil
			}
			return depth(ctx, n-1)
		})
	}
	require.NoError(t, depth(context.Background(), 20))
	assert.Equal(t, 21, j.get())
	assert.Equal(t, 1, j.snapshots)

	// a nested failure unwinds to the top-level call, which reverts all of it
	err := c.Execute(context.Background(), func(ctx context.Context) error {
		j.add(5)
		return c.Execute(ctx, func(ctx context.Context) error {
			j.add(5)
			return errors.New("inner")
		})
	})
	require.Error(t, err)
	assert.Equal(t, 21, j.get())
	assert.Equal(t, 2, j.snapshots)
}

func TestExecuteRevertsOnPanic(t *testing.T) {
	c := New(nil)
	j := &counter{}
	c.Register(j)

	assert.Panics(t, func() {
		_ = c.Execute(context.Background(), func(ctx context.Context) error {
			j.add(7)
			panic("unexpected")
		})
	})
	assert.Equal(t, 0, j.get())

	// the lock was released by the panicking execution
	require.NoError(t, c.Execute(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestExecuteSerializesConcurrentCallers(t *testing.T) {
	c := New(nil)
	j := &counter{}
	c.Register(j)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Execute(context.Background(), func(ctx context.Context) error {
				j.add(1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, j.get())
	assert.Equal(t, uint64(50), c.Height())
}

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	c := New(clock)

	assert.Equal(t, start, c.Now())
	clock.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), c.Now())
}
