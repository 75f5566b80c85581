// internal/agent/controller.go

// Package agent drives the task loop: it turns a natural-language task
// into a sequence of observed-decide-act rounds against a live page,
// bounded by step and time budgets and stoppable by the user at any
// suspension point.
package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/api/schemas"
	"github.com/mvoss9k/tabpilot/internal/config"
	"github.com/mvoss9k/tabpilot/internal/poll"
)

// navigateSettle is the fixed pause after a privileged navigation before
// the page is considered stable enough to observe.
const navigateSettle = 2 * time.Second

// Controller owns the Run and is the only writer to it. One Controller
// drives at most one Run at a time; the loop is strictly sequential and
// each iteration completes before the next begins.
type Controller struct {
	cfg    config.AgentConfig
	gw     Gateway
	exec   Executor
	obs    ObservationSource
	logger *zap.Logger

	paused atomic.Bool
	mu     sync.Mutex
	cancel context.CancelFunc

	settle time.Duration
	now    func() time.Time
}

func New(cfg config.AgentConfig, gw Gateway, exec Executor, obs ObservationSource, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		gw:     gw,
		exec:   exec,
		obs:    obs,
		logger: logger.Named("controller"),
		settle: navigateSettle,
		now:    time.Now,
	}
}

// Stop cancels the active run. The loop observes the cancellation at its
// next suspension point; an in-flight gateway request is aborted.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
}

// Pause flags the run to stop at the next loop check. Paused runs do not
// resume; the run terminates as stopped with reason "paused".
func (c *Controller) Pause() {
	c.paused.Store(true)
}

// Start executes the task loop synchronously and returns the terminal
// Run. first may be nil, in which case the initial observation is fetched
// before the first decision round.
func (c *Controller) Start(ctx context.Context, task string, first *schemas.Observation) *schemas.Run {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	run := &schemas.Run{
		ID:        uuid.NewString(),
		Task:      task,
		Steps:     make([]schemas.Step, 0, c.cfg.MaxSteps),
		MaxSteps:  c.cfg.MaxSteps,
		StartedAt: c.now(),
		Timeout:   c.cfg.Timeout,
		Status:    schemas.StatusRunning,
	}
	c.logger.Info("run started",
		zap.String("run_id", run.ID),
		zap.String("task", task),
		zap.Int("max_steps", run.MaxSteps),
		zap.Duration("timeout", run.Timeout))

	obs := first
	for {
		if cause := c.shouldStop(runCtx, run); cause != nil {
			c.finish(run, cause)
			return run
		}

		if obs == nil {
			fresh, err := c.obs.Observe(runCtx, ObserveOptions{ForceRefresh: true})
			if err != nil {
				c.fail(run, err)
				return run
			}
			obs = fresh
		}

		reply, err := c.gw.Decide(runCtx, buildDecisionRequest(task, obs, run.Steps))
		if err != nil {
			c.fail(run, err)
			return run
		}

		decision, err := ParseDecision(reply)
		if err != nil {
			c.fail(run, err)
			return run
		}

		step := schemas.Step{
			ID:        run.StepCount() + 1,
			RunID:     run.ID,
			Thought:   decision.Thought,
			Action:    decision.Action,
			CreatedAt: c.now(),
		}

		if decision.IsDone() {
			step.Result = &schemas.ActionResult{Success: true, Data: decision.Action.Summary}
			run.Steps = append(run.Steps, step)
			run.Status = schemas.StatusDone
			c.logger.Info("run complete",
				zap.String("run_id", run.ID),
				zap.Int("steps", run.StepCount()),
				zap.String("summary", decision.Action.Summary))
			return run
		}

		if runCtx.Err() != nil {
			c.finish(run, &UserAbort{Reason: "stopped by user"})
			return run
		}

		result := c.executeStep(runCtx, decision.Action)
		step.Result = &result
		run.Steps = append(run.Steps, step)

		if result.Success {
			c.logger.Debug("step complete",
				zap.Int("step", step.ID),
				zap.String("action", string(decision.Action.Type)))
		} else {
			c.logger.Warn("step failed",
				zap.Int("step", step.ID),
				zap.String("action", string(decision.Action.Type)),
				zap.Error(resultError(result, decision.Action.Target())))
		}

		// Inter-step settle, then a fresh observation for the next round.
		// A cancellation during either is picked up at the top of the loop.
		if err := poll.Sleep(runCtx, c.cfg.StepDelay); err != nil {
			obs = nil
			continue
		}
		fresh, err := c.obs.Observe(runCtx, ObserveOptions{ForceRefresh: true})
		if err != nil {
			c.fail(run, err)
			return run
		}
		obs = fresh
	}
}

// executeStep routes one action. Navigation never resolves in-document:
// it is a privileged tab-level operation followed by a fixed settle wait.
func (c *Controller) executeStep(ctx context.Context, action schemas.Action) schemas.ActionResult {
	if action.Type == schemas.ActionNavigate {
		result := c.exec.Navigate(ctx, action.URL)
		if result.Success {
			_ = poll.Sleep(ctx, c.settle)
		}
		return result
	}
	return c.exec.Execute(ctx, action)
}

// shouldStop evaluates the stop predicates in their defined order. Any
// non-nil cause ends the loop without contacting the model.
func (c *Controller) shouldStop(ctx context.Context, run *schemas.Run) error {
	if run.StepCount() >= run.MaxSteps {
		return &LimitError{Limit: "steps"}
	}
	if c.now().Sub(run.StartedAt) > run.Timeout {
		return &LimitError{Limit: "time"}
	}
	if c.paused.Load() {
		return &UserAbort{Reason: "paused"}
	}
	if ctx.Err() != nil {
		return &UserAbort{Reason: "stopped by user"}
	}
	return nil
}

// finish records a graceful stop: limits and user aborts carry a reason
// but no error flag.
func (c *Controller) finish(run *schemas.Run, cause error) {
	var limit *LimitError
	var abort *UserAbort
	switch {
	case errors.As(cause, &limit):
		if limit.Limit == "time" {
			run.Status = schemas.StatusTimedOut
			run.StopReason = "timed out"
		} else {
			run.Status = schemas.StatusStopped
			run.StopReason = "max steps"
		}
	case errors.As(cause, &abort):
		run.Status = schemas.StatusStopped
		run.StopReason = abort.Reason
	default:
		run.Status = schemas.StatusStopped
		run.StopReason = cause.Error()
	}
	c.logger.Info("run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.String("reason", run.StopReason),
		zap.Int("steps", run.StepCount()))
}

// fail records an aborting failure: gateway, parse, and observation
// errors end the run as errored and are never retried at this layer. A
// failure caused by cancellation is a user stop, not an error.
func (c *Controller) fail(run *schemas.Run, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.finish(run, &UserAbort{Reason: "stopped by user"})
		return
	}
	run.Status = schemas.StatusErrored
	run.Error = err.Error()
	c.logger.Error("run errored",
		zap.String("run_id", run.ID),
		zap.Int("steps", run.StepCount()),
		zap.Error(err))
}
