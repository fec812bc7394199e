package grading

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"emprendo-intake/internal/domain"
)

// DefaultParallelism is used when a batch does not set one.
const DefaultParallelism = 4

// RunLog accumulates the progress and per-row failures of a batch.
type RunLog struct {
	mu       sync.Mutex
	runID    string
	formSlug string
	total    int
	done     int
	failures []domain.RunFailure
	finished bool
}

// NewRunLog starts an empty log for total rows.
func NewRunLog(runID, formSlug string, total int) *RunLog {
	return &RunLog{runID: runID, formSlug: formSlug, total: total}
}

func (l *RunLog) record(key string, err error) domain.RunProgress {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done++
	if err != nil {
		l.failures = append(l.failures, domain.RunFailure{Key: key, Error: err.Error()})
	}
	return l.snapshotLocked()
}

func (l *RunLog) finish() domain.RunProgress {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = true
	return l.snapshotLocked()
}

// Snapshot returns a copy of the current progress.
func (l *RunLog) Snapshot() domain.RunProgress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *RunLog) snapshotLocked() domain.RunProgress {
	return domain.RunProgress{
		RunID:     l.runID,
		FormSlug:  l.formSlug,
		Total:     l.total,
		Done:      l.done,
		Failed:    len(l.failures),
		Failures:  append([]domain.RunFailure(nil), l.failures...),
		Finished:  l.finished,
		UpdatedAt: time.Now().UTC(),
	}
}

// BatchOptions tune RunBatch.
type BatchOptions struct {
	Parallelism int
	// OnProgress is called after every row and once when the batch ends.
	OnProgress func(domain.RunProgress)
}

// RunBatch applies fn to every item with bounded parallelism. Row errors are
// recorded in runLog and never stop the batch. Cancelling ctx stops launching
// rows; rows already finished keep their results. The returned error is the
// context error, if any.
func RunBatch[T any](ctx context.Context, runLog *RunLog, items []T, key func(T) string, fn func(context.Context, T) error, opts BatchOptions) error {
	limit := opts.Parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}
	notify := opts.OnProgress
	if notify == nil {
		notify = func(domain.RunProgress) {}
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			err := fn(ctx, item)
			notify(runLog.record(key(item), err))
			return nil
		})
	}
	_ = g.Wait()
	notify(runLog.finish())
	return ctx.Err()
}
