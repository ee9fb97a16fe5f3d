package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/kalambet/creatorswipe/internal/storage"
)

// DefaultPollInterval is used when NewWorker is given a non-positive interval.
const DefaultPollInterval = 500 * time.Millisecond

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Publisher delivers a decision event to one downstream consumer.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, ev Event) error
}

// Worker drains decision_relay jobs and publishes each event to every
// publisher. A job fails, and is retried with backoff, if any publisher
// fails; publishers must therefore tolerate duplicates.
type Worker struct {
	store      JobStore
	publishers []Publisher
	poll       time.Duration
	logger     *slog.Logger
}

func NewWorker(store JobStore, publishers []Publisher, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Worker{
		store:      store,
		publishers: publishers,
		poll:       pollInterval,
		logger:     slog.Default(),
	}
}

func (w *Worker) WithLogger(l *slog.Logger) *Worker {
	w.logger = l
	return w
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("relay iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and publishes a single job. It reports whether a job was
// claimed, regardless of whether publishing succeeded.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.publish(ctx, job); err != nil {
		w.logger.Warn("relay job failed", "job_id", job.ID, "attempt", job.Attempts+1, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) publish(ctx context.Context, job *storage.Job) error {
	var ev Event
	if err := json.Unmarshal([]byte(job.PayloadJSON), &ev); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if len(w.publishers) == 0 {
		return nil
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(len(w.publishers))
	for _, pub := range w.publishers {
		p.Go(func(ctx context.Context) error {
			if err := pub.Publish(ctx, ev); err != nil {
				return fmt.Errorf("%s: %w", pub.Name(), err)
			}
			return nil
		})
	}
	return p.Wait()
}
