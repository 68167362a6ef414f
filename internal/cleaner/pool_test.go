package cleaner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biot9999/newtdata/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func TestPool_AllTasksYieldRecords(t *testing.T) {
	pool := NewPool("test", 3, 20, testLogger(t))

	pool.Start(context.Background(), func(ctx context.Context, task Task) []ActionRecord {
		return []ActionRecord{{TargetID: task.Target.ID, Status: StatusSuccess}}
	})

	const tasks = 10
	go func() {
		for i := 0; i < tasks; i++ {
			pool.Submit(Task{Target: &Target{ID: int64(i)}})
		}
		pool.Close()
	}()

	seen := make(map[int64]bool)
	for rec := range pool.Results() {
		seen[rec.TargetID] = true
	}
	assert.Len(t, seen, tasks)
}

func TestPool_ConcurrencyCeilingHolds(t *testing.T) {
	const ceiling = 2

	var inflight, peak atomic.Int32
	var mu sync.Mutex

	pool := NewPool("test", ceiling, 50, testLogger(t))
	pool.Start(context.Background(), func(ctx context.Context, task Task) []ActionRecord {
		n := inflight.Add(1)
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return []ActionRecord{{TargetID: task.Target.ID}}
	})

	go func() {
		for i := 0; i < 20; i++ {
			pool.Submit(Task{Target: &Target{ID: int64(i)}})
		}
		pool.Close()
	}()

	count := 0
	for range pool.Results() {
		count++
	}

	assert.Equal(t, 20, count)
	assert.LessOrEqual(t, peak.Load(), int32(ceiling))
}

func TestPool_CancelledContextSkipsQueuedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed atomic.Int32
	pool := NewPool("test", 2, 10, testLogger(t))
	pool.Start(ctx, func(ctx context.Context, task Task) []ActionRecord {
		executed.Add(1)
		return []ActionRecord{{TargetID: task.Target.ID}}
	})

	go func() {
		for i := 0; i < 5; i++ {
			pool.Submit(Task{Target: &Target{ID: int64(i)}})
		}
		pool.Close()
	}()

	for range pool.Results() {
	}

	assert.Equal(t, int32(0), executed.Load())
}

func TestPool_RecoversFromExecutorPanic(t *testing.T) {
	pool := NewPool("test", 1, 10, testLogger(t))
	pool.Start(context.Background(), func(ctx context.Context, task Task) []ActionRecord {
		panic("executor blew up")
	})

	pool.Submit(Task{Target: &Target{ID: 1}})
	pool.Close()

	done := make(chan struct{})
	go func() {
		for range pool.Results() {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not shut down after executor panic")
	}
}

func TestPool_ContactBatchYieldsMultipleRecords(t *testing.T) {
	pool := NewPool("test", 1, 10, testLogger(t))
	pool.Start(context.Background(), func(ctx context.Context, task Task) []ActionRecord {
		records := make([]ActionRecord, 0, len(task.Contacts))
		for _, c := range task.Contacts {
			records = append(records, ActionRecord{TargetID: c.UserID})
		}
		return records
	})

	go func() {
		pool.Submit(Task{Contacts: makeContacts(3)})
		pool.Close()
	}()

	count := 0
	for range pool.Results() {
		count++
	}
	assert.Equal(t, 3, count)
}
