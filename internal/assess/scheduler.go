/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package assess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fulmenhq/codescore/pkg/logger"
)

const (
	DefaultTaskTimeout  = 8 * time.Second
	DefaultStageTimeout = 15 * time.Second
)

// Task is one deferred engine invocation. The context carries the task's
// own deadline and must be passed to any subprocess or network call.
type Task func(ctx context.Context) (any, error)

// OutcomeStatus is the settled state of a task
type OutcomeStatus string

const (
	StatusFulfilled OutcomeStatus = "fulfilled"
	StatusRejected  OutcomeStatus = "rejected"
	StatusTimeout   OutcomeStatus = "timeout"
)

// StageOutcome is the result of one registered task.
type StageOutcome struct {
	Label    string        `json:"label" yaml:"label"`
	Status   OutcomeStatus `json:"status" yaml:"status"`
	Value    any           `json:"-" yaml:"-"`
	Err      error         `json:"-" yaml:"-"`
	Duration time.Duration `json:"-" yaml:"-"`
}

// DurationMs returns the task's wall time in milliseconds.
func (o StageOutcome) DurationMs() int64 { return o.Duration.Milliseconds() }

type scheduledTask struct {
	label string
	run   Task
}

// Scheduler runs a stage of labeled tasks concurrently. Every registered
// task yields exactly one StageOutcome, in registration order, and no task
// can affect the outcome of another.
type Scheduler struct {
	tasks       []scheduledTask
	concurrency int
	log         *logger.Logger
}

// NewScheduler creates an empty stage. A nil logger discards output.
func NewScheduler(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{log: log}
}

// SetConcurrency bounds how many tasks run at once; n <= 0 means unbounded.
func (s *Scheduler) SetConcurrency(n int) { s.concurrency = n }

// Register appends a labeled task to the stage.
func (s *Scheduler) Register(label string, task Task) {
	s.tasks = append(s.tasks, scheduledTask{label: label, run: task})
}

// Len reports the number of registered tasks.
func (s *Scheduler) Len() int { return len(s.tasks) }

type settled struct {
	index   int
	outcome StageOutcome
}

// Run executes every registered task. A zero or negative timeout disables
// that deadline. When the stage deadline fires first, outcomes that already
// settled are returned unchanged and the rest are marked StatusTimeout.
func (s *Scheduler) Run(ctx context.Context, taskTimeout, stageTimeout time.Duration) []StageOutcome {
	n := len(s.tasks)
	outcomes := make([]StageOutcome, n)
	if n == 0 {
		return outcomes
	}

	stageCtx, cancel := withDeadline(ctx, stageTimeout)
	defer cancel()

	results := make(chan settled, n)
	started := time.Now()

	go func() {
		var g errgroup.Group
		if s.concurrency > 0 {
			g.SetLimit(s.concurrency)
		}
		for i, t := range s.tasks {
			g.Go(func() error {
				results <- settled{index: i, outcome: runTask(stageCtx, t, taskTimeout)}
				return nil
			})
		}
		_ = g.Wait()
	}()

	done := make([]bool, n)
	remaining := n
	for remaining > 0 {
		select {
		case r := <-results:
			outcomes[r.index] = r.outcome
			done[r.index] = true
			remaining--
			s.logOutcome(r.outcome)
		case <-stageCtx.Done():
			// Keep anything that settled in the same instant.
			for drained := false; !drained; {
				select {
				case r := <-results:
					outcomes[r.index] = r.outcome
					done[r.index] = true
					s.logOutcome(r.outcome)
				default:
					drained = true
				}
			}
			elapsed := time.Since(started)
			for i, t := range s.tasks {
				if done[i] {
					continue
				}
				outcomes[i] = StageOutcome{
					Label:    t.label,
					Status:   StatusTimeout,
					Err:      fmt.Errorf("stage deadline exceeded: %w", stageCtx.Err()),
					Duration: elapsed,
				}
				s.log.Warn("Task still pending at stage deadline", logger.String("label", t.label))
			}
			return outcomes
		}
	}
	return outcomes
}

func (s *Scheduler) logOutcome(o StageOutcome) {
	fields := []logger.Field{
		logger.String("label", o.Label),
		logger.String("status", string(o.Status)),
		logger.Duration("duration", o.Duration),
	}
	if o.Err != nil {
		fields = append(fields, logger.Err(o.Err))
		s.log.Debug("Task settled with error", fields...)
		return
	}
	s.log.Debug("Task settled", fields...)
}

// runTask races one task against its own deadline. Panics and errors
// become StatusRejected; an expired deadline becomes StatusTimeout.
func runTask(ctx context.Context, t scheduledTask, timeout time.Duration) StageOutcome {
	start := time.Now()
	out := StageOutcome{Label: t.label}

	if err := ctx.Err(); err != nil {
		out.Status = StatusTimeout
		out.Err = err
		return out
	}

	tctx, cancel := withDeadline(ctx, timeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("%w: %v", ErrTaskPanicked, r)}
			}
		}()
		v, err := t.run(tctx)
		ch <- result{value: v, err: err}
	}()

	select {
	case r := <-ch:
		out.Duration = time.Since(start)
		switch {
		case r.err == nil:
			out.Status = StatusFulfilled
			out.Value = r.value
		case tctx.Err() != nil && errors.Is(r.err, context.DeadlineExceeded):
			out.Status = StatusTimeout
			out.Err = r.err
		default:
			out.Status = StatusRejected
			out.Err = r.err
		}
	case <-tctx.Done():
		out.Duration = time.Since(start)
		out.Status = StatusTimeout
		out.Err = tctx.Err()
	}
	return out
}

func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
