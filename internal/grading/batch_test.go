package grading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emprendo-intake/internal/domain"
)

func TestRunBatchRecordsFailures(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	runLog := NewRunLog("run-1", "G6_E_A2", len(items))

	var mu sync.Mutex
	var progress []domain.RunProgress
	err := RunBatch(context.Background(), runLog, items,
		func(i int) string { return fmt.Sprintf("app-%d", i) },
		func(_ context.Context, i int) error {
			if i%3 == 0 {
				return errors.New("bad row")
			}
			return nil
		},
		BatchOptions{Parallelism: 2, OnProgress: func(p domain.RunProgress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		}},
	)
	require.NoError(t, err)

	snap := runLog.Snapshot()
	assert.Equal(t, 6, snap.Done)
	assert.Equal(t, 2, snap.Failed)
	assert.True(t, snap.Finished)
	assert.ElementsMatch(t, []string{"app-3", "app-6"}, []string{snap.Failures[0].Key, snap.Failures[1].Key})
	assert.Len(t, progress, 7, "one update per row plus the final one")
	assert.True(t, progress[len(progress)-1].Finished)
}

func TestRunBatchBoundsParallelism(t *testing.T) {
	items := make([]int, 20)
	var running, peak int32

	err := RunBatch(context.Background(), NewRunLog("r", "f", len(items)), items,
		func(int) string { return "" },
		func(context.Context, int) error {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			atomic.AddInt32(&running, -1)
			return nil
		},
		BatchOptions{Parallelism: 3},
	)

	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestRunBatchStopsOnCancel(t *testing.T) {
	items := make([]int, 10)
	ctx, cancel := context.WithCancel(context.Background())
	runLog := NewRunLog("r", "f", len(items))

	var calls int32
	err := RunBatch(ctx, runLog, items,
		func(int) string { return "" },
		func(context.Context, int) error {
			if atomic.AddInt32(&calls, 1) == 2 {
				cancel()
			}
			return nil
		},
		BatchOptions{Parallelism: 1},
	)

	assert.ErrorIs(t, err, context.Canceled)
	snap := runLog.Snapshot()
	assert.Equal(t, 2, snap.Done, "completed rows stay recorded")
	assert.True(t, snap.Finished)
}
