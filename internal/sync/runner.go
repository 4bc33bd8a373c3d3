package sync

import (
	"context"
	"sync/atomic"

	"github.com/HerbigniauxBenoit/spsync/internal/types"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
)

// Runner serializes engine runs: at most one reconciliation pass per process.
// Trigger requests and cron fires share one Runner, so an overlapping request
// is rejected rather than queued.
type Runner struct {
	engine  *Engine
	running atomic.Bool
}

func NewRunner(engine *Engine) *Runner {
	return &Runner{engine: engine}
}

// Busy reports whether a run is currently active.
func (r *Runner) Busy() bool {
	return r.running.Load()
}

// Run executes one pass unless another is already active, in which case it
// fails with ErrCodeRunInProgress without touching the engine.
func (r *Runner) Run(ctx context.Context, opts Options) (types.RunStats, error) {
	if !r.running.CompareAndSwap(false, true) {
		return types.RunStats{}, utils.NewAppError(utils.ErrCodeRunInProgress,
			"a sync run is already in progress", nil)
	}
	defer r.running.Store(false)

	return r.engine.Run(ctx, opts)
}
