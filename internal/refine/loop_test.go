package refine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/visionforge/foundry/internal/detect"
	"github.com/visionforge/foundry/internal/quality"
)

// stubAnnotator scripts per-iteration results and records threaded feedback.
type stubAnnotator struct {
	results  []*detect.AnnotationResult
	errs     []error
	feedback []string
	calls    int
}

func (s *stubAnnotator) Annotate(_ context.Context, imageRef string, _ []string, priorFeedback string, iteration int) (*detect.AnnotationResult, error) {
	s.calls++
	s.feedback = append(s.feedback, priorFeedback)
	idx := iteration - 1
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	if idx < len(s.results) {
		return s.results[idx], nil
	}
	return &detect.AnnotationResult{
		ImageRef:  imageRef,
		Records:   []detect.Record{{Label: "dog", Box: detect.Box{1, 1, 2, 2}}},
		Iteration: iteration,
	}, nil
}

// stubValidator returns scripted verdicts in call order.
type stubValidator struct {
	verdicts []detect.Verdict
	calls    int
}

func (s *stubValidator) Method() quality.Method { return quality.MethodCoordinate }

func (s *stubValidator) Validate(context.Context, string, []string, []detect.Record) detect.Verdict {
	idx := s.calls
	s.calls++
	if idx < len(s.verdicts) {
		return s.verdicts[idx]
	}
	return detect.Verdict{Status: detect.StatusNeedsImprovement, Feedback: "try again"}
}

func reject(feedback string) detect.Verdict {
	return detect.Verdict{Status: detect.StatusNeedsImprovement, Feedback: feedback}
}

func approve() detect.Verdict {
	return detect.Verdict{Status: detect.StatusApproved}
}

func newLoop(t *testing.T, annotator Annotator, validator quality.Validator, maxIterations int) *Loop {
	t.Helper()
	l, err := NewLoop(Config{Annotator: annotator, Validator: validator, MaxIterations: maxIterations})
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}
	return l
}

func TestNewLoop_IterationBounds(t *testing.T) {
	ann := &stubAnnotator{}
	val := &stubValidator{}

	for _, n := range []int{1, 2, 5} {
		if _, err := NewLoop(Config{Annotator: ann, Validator: val, MaxIterations: n}); err != nil {
			t.Errorf("max_iterations=%d should be accepted: %v", n, err)
		}
	}
	for _, n := range []int{-1, 6, 100} {
		if _, err := NewLoop(Config{Annotator: ann, Validator: val, MaxIterations: n}); err == nil {
			t.Errorf("max_iterations=%d should be rejected", n)
		}
	}

	l, err := NewLoop(Config{Annotator: ann, Validator: val})
	if err != nil {
		t.Fatalf("zero max_iterations should default: %v", err)
	}
	if l.maxIterations != DefaultMaxIterations {
		t.Errorf("expected default %d, got %d", DefaultMaxIterations, l.maxIterations)
	}
}

func TestRun_StopsAtCapWithExhausted(t *testing.T) {
	ann := &stubAnnotator{}
	val := &stubValidator{} // always rejects
	l := newLoop(t, ann, val, 3)

	outcome := l.Run(context.Background(), "img.jpg", []string{"dog"})
	if outcome.FinalStatus != StatusExhausted {
		t.Fatalf("expected EXHAUSTED, got %s", outcome.FinalStatus)
	}
	if len(outcome.History) != 3 {
		t.Errorf("history length must equal the cap, got %d", len(outcome.History))
	}
	if ann.calls != 3 {
		t.Errorf("expected 3 annotation calls, got %d", ann.calls)
	}
	if outcome.Best == nil {
		t.Error("exhausted runs keep the last-produced annotation")
	}
}

func TestRun_EarlyApproval(t *testing.T) {
	ann := &stubAnnotator{}
	val := &stubValidator{verdicts: []detect.Verdict{reject("tighten the box"), approve()}}
	l := newLoop(t, ann, val, 5)

	outcome := l.Run(context.Background(), "img.jpg", []string{"dog"})
	if outcome.FinalStatus != StatusApproved {
		t.Fatalf("expected APPROVED, got %s", outcome.FinalStatus)
	}
	if len(outcome.History) != 2 {
		t.Errorf("approval on iteration 2 means history length 2, got %d", len(outcome.History))
	}
	if outcome.Best == nil || outcome.Best.Iteration != 2 {
		t.Errorf("best must be the approved iteration's result: %+v", outcome.Best)
	}
	if ann.calls != 2 {
		t.Errorf("loop must stop after approval, got %d calls", ann.calls)
	}
}

func TestRun_ThreadsFeedbackForward(t *testing.T) {
	ann := &stubAnnotator{}
	val := &stubValidator{verdicts: []detect.Verdict{reject("missed second dog"), approve()}}
	l := newLoop(t, ann, val, 3)

	l.Run(context.Background(), "img.jpg", []string{"dog"})

	if ann.feedback[0] != "" {
		t.Errorf("first iteration starts cold, got feedback %q", ann.feedback[0])
	}
	if ann.feedback[1] != "missed second dog" {
		t.Errorf("rejection feedback not threaded: %q", ann.feedback[1])
	}
}

func TestRun_AnnotationFailureEndsImmediately(t *testing.T) {
	ann := &stubAnnotator{errs: []error{errors.New("annotation-unparseable")}}
	val := &stubValidator{}
	l := newLoop(t, ann, val, 5)

	outcome := l.Run(context.Background(), "img.jpg", []string{"dog"})
	if outcome.FinalStatus != StatusFailed {
		t.Fatalf("expected FAILED, got %s", outcome.FinalStatus)
	}
	if ann.calls != 1 {
		t.Errorf("a worker failure must not consume more iterations, got %d calls", ann.calls)
	}
	if val.calls != 0 {
		t.Error("nothing to validate after a failed annotation")
	}
	if len(outcome.History) != 1 {
		t.Fatalf("expected a single history entry, got %d", len(outcome.History))
	}
	entry := outcome.History[0]
	if entry.Err == "" || entry.Verdict != nil {
		t.Errorf("failure entries carry an error instead of a verdict: %+v", entry)
	}
	if outcome.Best != nil {
		t.Error("no annotation was ever produced")
	}
}

func TestRun_FailureAfterSuccessKeepsEarlierBest(t *testing.T) {
	first := &detect.AnnotationResult{
		ImageRef:  "img.jpg",
		Records:   []detect.Record{{Label: "dog", Box: detect.Box{1, 1, 2, 2}}},
		Iteration: 1,
	}
	ann := &stubAnnotator{
		results: []*detect.AnnotationResult{first},
		errs:    []error{nil, errors.New("provider down")},
	}
	val := &stubValidator{} // rejects, forcing iteration 2
	l := newLoop(t, ann, val, 3)

	outcome := l.Run(context.Background(), "img.jpg", []string{"dog"})
	if outcome.FinalStatus != StatusFailed {
		t.Fatalf("expected FAILED, got %s", outcome.FinalStatus)
	}
	if outcome.Best != first {
		t.Error("the iteration-1 result should survive a later failure")
	}
	if len(outcome.History) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(outcome.History))
	}
}

func TestRun_HistoryOrderedAndComplete(t *testing.T) {
	ann := &stubAnnotator{}
	val := &stubValidator{}
	l := newLoop(t, ann, val, 4)

	outcome := l.Run(context.Background(), "img.jpg", []string{"dog"})
	for i, entry := range outcome.History {
		if entry.Iteration != i+1 {
			t.Errorf("entry %d has iteration %d", i, entry.Iteration)
		}
		if entry.Verdict == nil {
			t.Errorf("entry %d missing verdict", i)
		}
		if entry.NumRecords != 1 {
			t.Errorf("entry %d has %d records, want 1", i, entry.NumRecords)
		}
	}
}

func TestRun_LastProducedIsBestWhenExhausted(t *testing.T) {
	results := make([]*detect.AnnotationResult, 3)
	for i := range results {
		results[i] = &detect.AnnotationResult{
			ImageRef:  "img.jpg",
			Records:   []detect.Record{{Label: fmt.Sprintf("dog-%d", i+1), Box: detect.Box{1, 1, 2, 2}}},
			Iteration: i + 1,
		}
	}
	ann := &stubAnnotator{results: results}
	val := &stubValidator{}
	l := newLoop(t, ann, val, 3)

	outcome := l.Run(context.Background(), "img.jpg", []string{"dog"})
	if outcome.Best != results[2] {
		t.Errorf("best must be the last-produced result, got %+v", outcome.Best)
	}
}
