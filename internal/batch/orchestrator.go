// Package batch runs many topics concurrently, each worker on its own
// browser profile, after a single shared authentication pass.
package batch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"

	"noterang/internal/auth"
	"noterang/internal/config"
	"noterang/internal/logging"
	"noterang/internal/nlm"
	"noterang/internal/workflow"
)

// Topic is one batch entry.
type Topic struct {
	Title    string   `json:"title" yaml:"title"`
	URLs     []string `json:"urls,omitempty" yaml:"urls,omitempty"`
	Queries  []string `json:"queries,omitempty" yaml:"queries,omitempty"`
	Focus    string   `json:"focus,omitempty" yaml:"focus,omitempty"`
	Language string   `json:"language,omitempty" yaml:"language,omitempty"`
	Style    string   `json:"style,omitempty" yaml:"style,omitempty"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
}

// Runner executes one topic's workflow. The default runner builds a
// Workflow per worker; tests substitute their own.
type Runner func(ctx context.Context, cfg *config.Config, topic Topic) workflow.Result

// Orchestrator gates topic workers with a counting semaphore.
type Orchestrator struct {
	cfg        *config.Config
	log        logging.Logger
	maxWorkers int
	runner     Runner
	authFn     func(ctx context.Context) error
}

// New returns an Orchestrator with the production runner.
func New(cfg *config.Config, maxWorkers int, log logging.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		log:        logging.OrNop(log),
		maxWorkers: maxWorkers,
	}
	o.runner = o.runTopic
	o.authFn = o.authenticateOnce
	return o
}

// SetRunner overrides the per-topic runner.
func (o *Orchestrator) SetRunner(r Runner) { o.runner = r }

// Run executes every topic with at most maxWorkers concurrent workers.
// Results come back in input order; a panicking or failing worker
// yields a failed result and never stops its siblings.
func (o *Orchestrator) Run(ctx context.Context, topics []Topic) []workflow.Result {
	if len(topics) == 0 {
		return nil
	}

	// One authentication pass before any worker starts. Workers share the
	// written artifact read-only; a failure here fails fast for all.
	if err := o.authFn(ctx); err != nil {
		o.log.Error("shared authentication failed: %v", err)
		results := make([]workflow.Result, len(topics))
		for i := range results {
			results[i] = workflow.Result{Error: fmt.Sprintf("authentication: %v", err)}
		}
		return results
	}

	sem := semaphore.NewWeighted(int64(o.maxWorkers))
	results := make([]workflow.Result, len(topics))
	var wg sync.WaitGroup

	for i, topic := range topics {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = workflow.Result{Error: fmt.Sprintf("canceled: %v", err)}
			continue
		}
		wg.Add(1)
		go func(i int, topic Topic) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = o.safeRun(ctx, i, topic)
		}(i, topic)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) safeRun(ctx context.Context, workerID int, topic Topic) (res workflow.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("worker %d panicked on %q: %v\n%s", workerID, topic.Title, r, debug.Stack())
			res = workflow.Result{Error: fmt.Sprintf("worker panic: %v", r)}
		}
	}()

	// Each worker gets its own profile directory via the worker id.
	cfg := o.cfg.ForWorker(workerID)
	o.log.Info("worker %d starting %q (profile %s)", workerID, topic.Title, cfg.ProfileDir())
	return o.runner(ctx, cfg, topic)
}

// runTopic is the production runner: a fresh session, pool, and
// workflow per worker, torn down when the topic finishes.
func (o *Orchestrator) runTopic(ctx context.Context, cfg *config.Config, topic Topic) workflow.Result {
	session := auth.NewSession(cfg, o.log)
	defer session.Close()
	pool := nlm.NewPool(session.Store(), o.log)
	defer pool.Close()

	wf := workflow.New(cfg, session, pool, o.log)
	return wf.Run(ctx, workflow.Options{
		Title:    topic.Title,
		URLs:     topic.URLs,
		Queries:  topic.Queries,
		Focus:    topic.Focus,
		Language: topic.Language,
		Style:    topic.Style,
		Category: topic.Category,
	})
}

// authenticateOnce logs in with the default profile so workers start
// from a fresh shared artifact.
func (o *Orchestrator) authenticateOnce(ctx context.Context) error {
	session := auth.NewSession(o.cfg, o.log)
	defer session.Close()
	pool := nlm.NewPool(session.Store(), o.log)
	defer pool.Close()
	return session.EnsureAuth(ctx, pool)
}
