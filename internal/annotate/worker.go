// Package annotate wraps one image+prompt inference round trip, turning a
// free-text vision-model completion into shape- and geometry-validated
// detection records with a bounded retry budget.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/visionforge/foundry/internal/detect"
	"github.com/visionforge/foundry/internal/metrics"
	"github.com/visionforge/foundry/internal/parsing"
	"github.com/visionforge/foundry/internal/providers"
	"github.com/visionforge/foundry/internal/render"
)

// maxAttempts is the per-call retry ceiling. Fixed: the refinement loop
// depends on the worker exhausting its own budget before reporting failure.
const maxAttempts = 3

// ErrUnparseable is returned when every attempt yields an empty or failed
// parse.
var ErrUnparseable = errors.New("annotation-unparseable")

// Backoff is the fixed inter-attempt delay schedule. Not exponential: the
// 1s/2s escalation matches the annotation service's rate-limit cadence.
type Backoff struct {
	Delays []time.Duration
}

// DefaultBackoff returns the 1s/2s schedule.
func DefaultBackoff() Backoff {
	return Backoff{Delays: []time.Duration{time.Second, 2 * time.Second}}
}

// delayFor returns the base delay before retry n (0-based).
func (b Backoff) delayFor(n uint) time.Duration {
	if len(b.Delays) == 0 {
		return time.Second
	}
	if int(n) >= len(b.Delays) {
		return b.Delays[len(b.Delays)-1]
	}
	return b.Delays[n]
}

// Config configures a Worker. Metrics is optional.
type Config struct {
	Client  providers.VisionClient
	Images  *render.ImageCache
	Logger  *slog.Logger
	Backoff Backoff
	Metrics *metrics.Recorder
}

// Worker performs annotation round trips against one vision client.
// Safe for concurrent use.
type Worker struct {
	client  providers.VisionClient
	images  *render.ImageCache
	logger  *slog.Logger
	backoff Backoff
	metrics *metrics.Recorder
}

// NewWorker creates an annotation worker.
func NewWorker(cfg Config) (*Worker, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("annotate: client is required")
	}
	if cfg.Images == nil {
		cfg.Images = render.NewImageCache()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backoff := cfg.Backoff
	if len(backoff.Delays) == 0 {
		backoff = DefaultBackoff()
	}
	return &Worker{
		client:  cfg.Client,
		images:  cfg.Images,
		logger:  logger.With("component", "annotate"),
		backoff: backoff,
		metrics: cfg.Metrics,
	}, nil
}

// Annotate runs up to three attempts of prompt→infer→parse→filter for one
// image. An attempt succeeds once the parser recovers a non-empty record
// sequence; geometric filtering may still reduce that to zero records, which
// is a success with an empty result, not a failure. Transient provider
// errors and unparseable output both consume attempts from the same budget;
// rate-limit errors add at least one extra second on top of the base delay.
func (w *Worker) Annotate(ctx context.Context, imageRef string, labels []string, priorFeedback string, iteration int) (*detect.AnnotationResult, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("annotate: no target labels for %s", imageRef)
	}

	imageData, err := w.images.LoadBytes(imageRef)
	if err != nil {
		// Unreadable input is not something a retry fixes.
		return nil, err
	}

	attempt := 0
	var result *detect.AnnotationResult

	err = retry.Do(
		func() error {
			attempt++
			res, attemptErr := w.attempt(ctx, imageRef, imageData, labels, priorFeedback, attempt, iteration)
			if attemptErr != nil {
				w.logger.Warn("annotation attempt failed",
					"image", imageRef, "attempt", attempt, "error", attemptErr)
				return attemptErr
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return providers.IsRetryable(err)
		}),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			if w.metrics != nil {
				w.metrics.RecordRetry()
			}
			delay := w.backoff.delayFor(n)
			if providers.IsRateLimited(err) {
				extra := providers.RetryAfterHint(err)
				if extra < time.Second {
					extra = time.Second
				}
				delay += extra
			}
			return delay
		}),
	)
	if err != nil {
		if errors.Is(err, parsing.ErrUnparseable) {
			return nil, fmt.Errorf("%w: %s after %d attempts", ErrUnparseable, imageRef, maxAttempts)
		}
		return nil, fmt.Errorf("annotation failed for %s: %w", imageRef, err)
	}

	return result, nil
}

// attempt is one full prompt→infer→parse→filter cycle.
func (w *Worker) attempt(ctx context.Context, imageRef string, imageData []byte, labels []string, priorFeedback string, attempt, iteration int) (*detect.AnnotationResult, error) {
	prompt := buildPrompt(labels, priorFeedback, attempt)

	res, err := w.client.Generate(ctx, &providers.InferRequest{
		Prompt:    prompt,
		Image:     imageData,
		ImageMIME: render.MIMEForPath(imageRef),
		RequestID: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	if w.metrics != nil {
		w.metrics.RecordInference(res.PromptTokens, res.CompletionTokens, res.Elapsed)
	}

	records, strategy, err := parsing.ParseRecords(res.Text, parsing.Options{FallbackLabel: labels[0]})
	if err != nil {
		return nil, fmt.Errorf("%w: attempt %d", parsing.ErrUnparseable, attempt)
	}
	if len(records) == 0 {
		// An empty parse gives the refinement loop nothing to validate;
		// treat like a failed parse and spend another attempt.
		return nil, fmt.Errorf("%w: empty record list on attempt %d", parsing.ErrUnparseable, attempt)
	}

	valid, dropped := detect.FilterRecords(records)
	w.logger.Debug("annotation attempt parsed",
		"image", imageRef,
		"attempt", attempt,
		"strategy", strategy.String(),
		"records", len(valid),
		"dropped", len(dropped))

	return &detect.AnnotationResult{
		ImageRef:   imageRef,
		Records:    valid,
		SourceText: res.Text,
		Iteration:  iteration,
	}, nil
}
