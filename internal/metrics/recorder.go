// Package metrics tracks per-run pipeline counters and inference usage.
package metrics

import (
	"log/slog"
	"sync"
	"time"
)

// Recorder accumulates counters for one pipeline run. Safe for concurrent
// use; every refinement worker shares one recorder.
type Recorder struct {
	mu sync.Mutex

	started time.Time

	imagesProcessed int
	approved        int
	exhausted       int
	failed          int

	inferenceCalls   int
	retries          int
	promptTokens     int
	completionTokens int
	inferenceTime    time.Duration
}

// NewRecorder starts a recorder for a run beginning now.
func NewRecorder() *Recorder {
	return &Recorder{started: time.Now()}
}

// RecordOutcome tallies one image's terminal status.
func (r *Recorder) RecordOutcome(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imagesProcessed++
	switch status {
	case "APPROVED":
		r.approved++
	case "EXHAUSTED":
		r.exhausted++
	case "FAILED":
		r.failed++
	}
}

// RecordInference tallies one inference round trip.
func (r *Recorder) RecordInference(promptTokens, completionTokens int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inferenceCalls++
	r.promptTokens += promptTokens
	r.completionTokens += completionTokens
	r.inferenceTime += elapsed
}

// RecordRetry tallies one retried attempt.
func (r *Recorder) RecordRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

// Snapshot is a point-in-time copy of the run's counters.
type Snapshot struct {
	Elapsed          time.Duration `json:"elapsed"`
	ImagesProcessed  int           `json:"images_processed"`
	Approved         int           `json:"approved"`
	Exhausted        int           `json:"exhausted"`
	Failed           int           `json:"failed"`
	InferenceCalls   int           `json:"inference_calls"`
	Retries          int           `json:"retries"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	InferenceTime    time.Duration `json:"inference_time"`
}

// ApprovalRate is the fraction of processed images that ended approved.
func (s Snapshot) ApprovalRate() float64 {
	if s.ImagesProcessed == 0 {
		return 0
	}
	return float64(s.Approved) / float64(s.ImagesProcessed)
}

// Snapshot returns the current counters.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Elapsed:          time.Since(r.started),
		ImagesProcessed:  r.imagesProcessed,
		Approved:         r.approved,
		Exhausted:        r.exhausted,
		Failed:           r.failed,
		InferenceCalls:   r.inferenceCalls,
		Retries:          r.retries,
		PromptTokens:     r.promptTokens,
		CompletionTokens: r.completionTokens,
		InferenceTime:    r.inferenceTime,
	}
}

// Log writes the current counters through the given logger.
func (r *Recorder) Log(logger *slog.Logger) {
	s := r.Snapshot()
	logger.Info("run metrics",
		"elapsed", s.Elapsed.Round(time.Millisecond),
		"images", s.ImagesProcessed,
		"approved", s.Approved,
		"exhausted", s.Exhausted,
		"failed", s.Failed,
		"approval_rate", s.ApprovalRate(),
		"inference_calls", s.InferenceCalls,
		"retries", s.Retries,
		"prompt_tokens", s.PromptTokens,
		"completion_tokens", s.CompletionTokens,
		"inference_time", s.InferenceTime.Round(time.Millisecond))
}
