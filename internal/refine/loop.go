// Package refine drives the annotate→validate→feedback cycle for one image
// until the verdict approves, the iteration budget runs out, or annotation
// fails outright.
package refine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/visionforge/foundry/internal/detect"
	"github.com/visionforge/foundry/internal/quality"
)

// FinalStatus is the terminal state of one image's refinement run.
type FinalStatus string

const (
	StatusApproved         FinalStatus = "APPROVED"
	StatusNeedsImprovement FinalStatus = "NEEDS_IMPROVEMENT"
	StatusExhausted        FinalStatus = "EXHAUSTED"
	StatusFailed           FinalStatus = "FAILED"
)

const (
	// DefaultMaxIterations keeps the common case cheap: one shot plus one
	// feedback-guided correction.
	DefaultMaxIterations = 2
	// MaxIterationsCeiling caps API spend on a model that never converges.
	MaxIterationsCeiling = 5
)

// HistoryEntry records one iteration. Err is set instead of Verdict when the
// iteration died at the inference or parsing layer.
type HistoryEntry struct {
	Iteration  int             `json:"iteration"`
	NumRecords int             `json:"num_records"`
	Verdict    *detect.Verdict `json:"verdict,omitempty"`
	Err        string          `json:"error,omitempty"`
}

// Outcome is the loop's result for one image. Best holds the last-produced
// annotation even when it was never approved; History is append-only and
// ordered by iteration.
type Outcome struct {
	Best        *detect.AnnotationResult
	History     []HistoryEntry
	FinalStatus FinalStatus
}

// Annotator produces one annotation attempt chain for an image.
// *annotate.Worker is the production implementation.
type Annotator interface {
	Annotate(ctx context.Context, imageRef string, labels []string, priorFeedback string, iteration int) (*detect.AnnotationResult, error)
}

// Config configures a Loop.
type Config struct {
	Annotator     Annotator
	Validator     quality.Validator
	MaxIterations int
	Logger        *slog.Logger
}

// Loop runs refinement for individual images. Safe for concurrent use; each
// Run owns its Outcome exclusively.
type Loop struct {
	annotator     Annotator
	validator     quality.Validator
	maxIterations int
	logger        *slog.Logger
}

// NewLoop validates the iteration budget and builds a loop. A zero
// MaxIterations means DefaultMaxIterations; anything above the ceiling is
// refused rather than clamped, since a silent clamp hides a config mistake
// that multiplies API cost.
func NewLoop(cfg Config) (*Loop, error) {
	if cfg.Annotator == nil {
		return nil, fmt.Errorf("refine: annotator is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("refine: validator is required")
	}
	max := cfg.MaxIterations
	if max == 0 {
		max = DefaultMaxIterations
	}
	if max < 1 || max > MaxIterationsCeiling {
		return nil, fmt.Errorf("refine: max_iterations must be 1..%d, got %d", MaxIterationsCeiling, cfg.MaxIterations)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		annotator:     cfg.Annotator,
		validator:     cfg.Validator,
		maxIterations: max,
		logger:        logger.With("component", "refine"),
	}, nil
}

// Run refines one image to a terminal state. Verdict feedback from a
// rejected iteration is threaded into the next annotation call so the model
// corrects the stated problems instead of re-guessing. An annotation failure
// ends the run immediately: the worker already spent its own retry budget.
func (l *Loop) Run(ctx context.Context, imageRef string, labels []string) *Outcome {
	outcome := &Outcome{}
	feedback := ""

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		result, err := l.annotator.Annotate(ctx, imageRef, labels, feedback, iteration)
		if err != nil {
			l.logger.Warn("annotation failed, ending refinement",
				"image", imageRef, "iteration", iteration, "error", err)
			outcome.History = append(outcome.History, HistoryEntry{
				Iteration: iteration,
				Err:       err.Error(),
			})
			outcome.FinalStatus = StatusFailed
			return outcome
		}

		outcome.Best = result
		verdict := l.validator.Validate(ctx, imageRef, labels, result.Records)
		outcome.History = append(outcome.History, HistoryEntry{
			Iteration:  iteration,
			NumRecords: len(result.Records),
			Verdict:    &verdict,
		})

		if verdict.Approved() {
			l.logger.Info("annotations approved",
				"image", imageRef, "iteration", iteration, "records", len(result.Records))
			outcome.FinalStatus = StatusApproved
			return outcome
		}

		l.logger.Info("annotations need improvement",
			"image", imageRef, "iteration", iteration, "feedback", verdict.Feedback)
		feedback = verdict.Feedback
	}

	outcome.FinalStatus = StatusExhausted
	return outcome
}
