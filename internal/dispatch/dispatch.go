// Package dispatch fans independent per-image refinement runs out across a
// bounded worker pool. All workers pull from a single shared queue, so load
// balances naturally via channel semantics.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/visionforge/foundry/internal/refine"
)

// DefaultConcurrency stays at 1 because the inference service's
// requests-per-minute quota is shared across every in-flight loop;
// oversubscribing turns into cascading rate-limit failures that eat each
// worker's retry budget.
const DefaultConcurrency = 1

// Runner runs one image's refinement to a terminal state.
// *refine.Loop is the production implementation.
type Runner interface {
	Run(ctx context.Context, imageRef string, labels []string) *refine.Outcome
}

// Config configures a Dispatcher.
type Config struct {
	Runner      Runner
	Concurrency int
	Logger      *slog.Logger
}

// Dispatcher runs refinement loops across images. Parallelism exists only
// across images; within one image the annotate→validate chain is strictly
// sequential.
type Dispatcher struct {
	runner      Runner
	concurrency int
	logger      *slog.Logger
}

// New validates the concurrency limit and builds a dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("dispatch: runner is required")
	}
	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("dispatch: concurrency must be >= 1, got %d", cfg.Concurrency)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		runner:      cfg.Runner,
		concurrency: concurrency,
		logger:      logger.With("component", "dispatch"),
	}, nil
}

// result pairs one finished image with its outcome.
type result struct {
	imageRef string
	outcome  *refine.Outcome
}

// Dispatch runs the refinement loop once per image and returns a mapping
// that covers every input image, in whatever order the loops complete. A
// FAILED outcome on one image never blocks or aborts the others. Context
// cancellation stops workers from picking up new images; images never
// started are reported as FAILED so the mapping stays complete.
func (d *Dispatcher) Dispatch(ctx context.Context, images []string, labels []string) map[string]*refine.Outcome {
	outcomes := make(map[string]*refine.Outcome, len(images))
	if len(images) == 0 {
		return outcomes
	}

	workers := d.concurrency
	if workers > len(images) {
		workers = len(images)
	}
	d.logger.Info("dispatching refinement runs",
		"images", len(images), "workers", workers, "labels", labels)

	queue := make(chan string)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for imageRef := range queue {
				d.logger.Debug("worker picked up image", "worker", id, "image", imageRef)
				results <- result{imageRef: imageRef, outcome: d.runner.Run(ctx, imageRef, labels)}
			}
		}(i)
	}

	go func() {
		defer close(queue)
		for _, imageRef := range images {
			select {
			case queue <- imageRef:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		outcomes[res.imageRef] = res.outcome
	}

	// Anything skipped by cancellation still gets an entry.
	reason := "dispatch cancelled"
	if err := context.Cause(ctx); err != nil {
		reason = err.Error()
	}
	for _, imageRef := range images {
		if _, ok := outcomes[imageRef]; !ok {
			outcomes[imageRef] = &refine.Outcome{
				FinalStatus: refine.StatusFailed,
				History: []refine.HistoryEntry{{
					Iteration: 1,
					Err:       reason,
				}},
			}
		}
	}

	return outcomes
}
