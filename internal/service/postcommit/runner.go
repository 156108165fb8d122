// Package postcommit runs the side effects of a committed booking change.
// Their failures are reported to the caller but never undo the change.
package postcommit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"sessionbook/backend/internal/domain"
)

const defaultTimeout = 10 * time.Second

type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Failure is one task that returned an error, panicked or ran out of time.
// Err always wraps domain.ErrCollaboratorFailed.
type Failure struct {
	Task string
	Err  error
}

func (f Failure) Error() string {
	return f.Err.Error()
}

func (f Failure) Unwrap() error {
	return f.Err
}

type Runner struct {
	timeout time.Duration
	log     *slog.Logger
}

func NewRunner(timeout time.Duration, log *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{timeout: timeout, log: log.With(slog.String("component", "postcommit"))}
}

// Run starts every task concurrently and waits for all of them. Each task
// gets its own deadline and survives cancellation of ctx, since the change
// it follows up on is already committed.
func (r *Runner) Run(ctx context.Context, tasks ...Task) []Failure {
	if len(tasks) == 0 {
		return nil
	}

	base := context.WithoutCancel(ctx)

	var (
		mu       sync.Mutex
		failures []Failure
	)
	p := pool.New().WithMaxGoroutines(len(tasks))
	for _, task := range tasks {
		p.Go(func() {
			err := r.runOne(base, task)
			if err == nil {
				return
			}
			f := Failure{Task: task.Name, Err: fmt.Errorf("%w: %s: %w", domain.ErrCollaboratorFailed, task.Name, err)}
			r.log.Warn("post-commit task failed", slog.String("task", task.Name), slog.Any("err", err))

			mu.Lock()
			failures = append(failures, f)
			mu.Unlock()
		})
	}
	p.Wait()

	return failures
}

func (r *Runner) runOne(ctx context.Context, task Task) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var err error
	var pc panics.Catcher
	pc.Try(func() {
		err = task.Run(ctx)
	})
	if rec := pc.Recovered(); rec != nil {
		return rec.AsError()
	}
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Messages flattens failures into the strings returned to API callers.
func Messages(failures []Failure) []string {
	if len(failures) == 0 {
		return nil
	}
	out := make([]string, 0, len(failures))
	for _, f := range failures {
		out = append(out, f.Error())
	}
	return out
}
