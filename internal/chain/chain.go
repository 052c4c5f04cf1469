/*

Package chain is the sequential ledger every state-changing operation runs on.

Operations are totally ordered by a single lock. Before a top-level operation runs, every
registered Journal is asked for a snapshot; if the operation returns an error (or panics) every
journal is restored, so a failed operation leaves no trace. Calls made from inside a running
operation (broker -> vault -> token ledger) find the active execution in their context and run
inline without snapshots of their own: their errors unwind to the top-level call, which reverts
everything. A caller that wants to recover from an inner failure and carry on wraps it in Try.

*/

package chain

import (
	"context"
	"sync"
	"time"

	"github.com/revo-market/contracts/internal/logger"
	"github.com/rs/zerolog"
)

// Journal is any component whose state must be rolled back together with a failed operation.
type Journal interface {
	// Snapshot captures the current state and returns a function that puts it back.
	Snapshot() (restore func())
}

// Clock supplies the block time used for deadline checks.
type Clock interface {
	Now() time.Time
}

type executionKey struct{}

// Chain serializes operations and keeps them atomic.
type Chain struct {
	logger zerolog.Logger
	clock  Clock

	execMu sync.Mutex // held for the whole of a top-level execution

	mu       sync.RWMutex
	journals []Journal
	height   uint64
}

// New creates a chain that reads time from clock. A nil clock means the system clock.
func New(clock Clock) *Chain {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Chain{
		logger: logger.GetForComponent("chain"),
		clock:  clock,
	}
}

// Register adds a journal to the set snapshotted around every execution.
func (c *Chain) Register(j Journal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.journals = append(c.journals, j)
}

// Now returns the current block time.
func (c *Chain) Now() time.Time {
	return c.clock.Now()
}

// Height is the number of executions committed so far.
func (c *Chain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

// InExecution reports whether ctx belongs to an execution running on this chain.
func (c *Chain) InExecution(ctx context.Context) bool {
	active, _ := ctx.Value(executionKey{}).(*Chain)
	return active == c
}

// Execute runs fn as one all-or-nothing operation. Inside a running execution fn simply runs
// inline.
func (c *Chain) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.InExecution(ctx) {
		return fn(ctx)
	}
	return c.execute(ctx, fn)
}

// Try is Execute with a savepoint: inside a running execution, a failing fn is undone on its
// own so the caller can handle the error and continue.
func (c *Chain) Try(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.InExecution(ctx) {
		return c.run(ctx, fn)
	}
	return c.execute(ctx, fn)
}

func (c *Chain) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	if err := c.run(context.WithValue(ctx, executionKey{}, c), fn); err != nil {
		return err
	}

	c.mu.Lock()
	c.height++
	c.mu.Unlock()
	return nil
}

func (c *Chain) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	c.mu.RLock()
	journals := make([]Journal, len(c.journals))
	copy(journals, c.journals)
	c.mu.RUnlock()

	restores := make([]func(), len(journals))
	for i, j := range journals {
		restores[i] = j.Snapshot()
	}

	revert := func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			revert()
			panic(r)
		}
	}()

	if err = fn(ctx); err != nil {
		revert()
		c.logger.Debug().Err(err).Msg("Execution reverted")
		return err
	}
	return nil
}
