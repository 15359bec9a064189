package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noterang/internal/config"
	"noterang/internal/logging"
	"noterang/internal/workflow"
)

func testOrchestrator(maxWorkers int) *Orchestrator {
	o := New(config.Default(), maxWorkers, logging.Nop())
	o.authFn = func(ctx context.Context) error { return nil }
	return o
}

func topics(titles ...string) []Topic {
	out := make([]Topic, len(titles))
	for i, title := range titles {
		out[i] = Topic{Title: title}
	}
	return out
}

func TestRunPreservesInputOrder(t *testing.T) {
	o := testOrchestrator(2)
	o.SetRunner(func(ctx context.Context, cfg *config.Config, topic Topic) workflow.Result {
		// Later topics finish first.
		if topic.Title == "first" {
			time.Sleep(50 * time.Millisecond)
		}
		return workflow.Result{OK: true, NotebookID: topic.Title}
	})

	results := o.Run(context.Background(), topics("first", "second", "third"))
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].NotebookID)
	assert.Equal(t, "second", results[1].NotebookID)
	assert.Equal(t, "third", results[2].NotebookID)
}

func TestRunBoundsConcurrency(t *testing.T) {
	const maxWorkers = 2
	o := testOrchestrator(maxWorkers)

	var current, peak int64
	o.SetRunner(func(ctx context.Context, cfg *config.Config, topic Topic) workflow.Result {
		n := atomic.AddInt64(&current, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return workflow.Result{OK: true}
	})

	o.Run(context.Background(), topics("a", "b", "c", "d", "e"))
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(maxWorkers))
	assert.Equal(t, int64(maxWorkers), atomic.LoadInt64(&peak), "pool should saturate")
}

func TestRunWorkersGetDistinctProfiles(t *testing.T) {
	o := testOrchestrator(3)

	var mu sync.Mutex
	profiles := map[string]bool{}
	o.SetRunner(func(ctx context.Context, cfg *config.Config, topic Topic) workflow.Result {
		mu.Lock()
		profiles[cfg.ProfileDir()] = true
		mu.Unlock()
		return workflow.Result{OK: true}
	})

	o.Run(context.Background(), topics("a", "b", "c"))
	assert.Len(t, profiles, 3, "each worker derives its own browser profile")
}

func TestRunIsolatesPanics(t *testing.T) {
	o := testOrchestrator(2)
	o.SetRunner(func(ctx context.Context, cfg *config.Config, topic Topic) workflow.Result {
		if topic.Title == "boom" {
			panic("browser exploded")
		}
		return workflow.Result{OK: true, NotebookID: topic.Title}
	})

	results := o.Run(context.Background(), topics("ok1", "boom", "ok2"))
	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.Contains(t, results[1].Error, "panic")
	assert.True(t, results[2].OK)
}

func TestRunFailedAuthFailsEveryTopic(t *testing.T) {
	o := testOrchestrator(2)
	o.authFn = func(ctx context.Context) error { return errors.New("no cookies") }
	o.SetRunner(func(ctx context.Context, cfg *config.Config, topic Topic) workflow.Result {
		t.Error("runner must not be called when auth fails")
		return workflow.Result{}
	})

	results := o.Run(context.Background(), topics("a", "b"))
	require.Len(t, results, 2)
	for _, res := range results {
		assert.False(t, res.OK)
		assert.Contains(t, res.Error, "authentication")
	}
}

func TestRunCanceledContext(t *testing.T) {
	o := testOrchestrator(1)

	started := make(chan struct{})
	release := make(chan struct{})
	o.SetRunner(func(ctx context.Context, cfg *config.Config, topic Topic) workflow.Result {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return workflow.Result{OK: true}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan []workflow.Result, 1)
	go func() {
		done <- o.Run(ctx, topics("long", "starved"))
	}()

	<-started
	cancel()
	close(release)

	results := <-done
	require.Len(t, results, 2)
	assert.Contains(t, results[1].Error, "canceled")
}

func TestRunEmptyTopics(t *testing.T) {
	o := testOrchestrator(2)
	assert.Nil(t, o.Run(context.Background(), nil))
}
