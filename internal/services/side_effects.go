package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SideEffect is one post-commit step of an action, such as a cart sync or a
// broadcast.
type SideEffect struct {
	Name string
	Fn   func(ctx context.Context) error
}

// SideEffectRunner executes the steps of a single action in order. A failing
// step is logged and the next one still runs.
type SideEffectRunner interface {
	Run(ctx context.Context, steps []SideEffect)
	// Wait blocks until every scheduled step has finished.
	Wait()
}

func runSteps(ctx context.Context, logger zerolog.Logger, steps []SideEffect) {
	for _, step := range steps {
		if err := step.Fn(ctx); err != nil {
			logger.Warn().Err(err).Str("step", step.Name).Msg("side effect failed")
		}
	}
}

// InlineRunner runs steps on the calling goroutine.
type InlineRunner struct {
	Logger zerolog.Logger
}

func (r InlineRunner) Run(ctx context.Context, steps []SideEffect) {
	runSteps(ctx, r.Logger, steps)
}

func (InlineRunner) Wait() {}

// AsyncRunner runs the steps of each action on their own goroutine so the
// caller gets its response without waiting for collaborators. The request
// context's cancellation is dropped; each batch gets Timeout instead.
type AsyncRunner struct {
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewAsyncRunner creates an AsyncRunner.
func NewAsyncRunner(timeout time.Duration, logger zerolog.Logger) *AsyncRunner {
	return &AsyncRunner{timeout: timeout, logger: logger.With().Str("component", "side_effects").Logger()}
}

func (r *AsyncRunner) Run(ctx context.Context, steps []SideEffect) {
	if len(steps) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()
		runSteps(ctx, r.logger, steps)
	}()
}

func (r *AsyncRunner) Wait() {
	r.wg.Wait()
}
