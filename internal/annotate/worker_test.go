package annotate

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/visionforge/foundry/internal/providers"
	"github.com/visionforge/foundry/internal/render"
)

func testImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.jpg")
	if err := os.WriteFile(path, []byte("not-really-a-jpeg"), 0o644); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}

func testWorker(t *testing.T, mock *providers.MockClient) *Worker {
	t.Helper()
	w, err := NewWorker(Config{
		Client:  mock,
		Images:  render.NewImageCache(),
		Logger:  slog.Default(),
		Backoff: Backoff{Delays: []time.Duration{time.Millisecond, time.Millisecond}},
	})
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}
	return w
}

func TestAnnotate_FirstAttemptSuccess(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = `[{"label": "dog", "box": [100, 100, 300, 300]}]`
	w := testWorker(t, mock)

	result, err := w.Annotate(context.Background(), testImage(t), []string{"dog"}, "", 1)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if len(result.Records) != 1 || result.Records[0].Label != "dog" {
		t.Fatalf("unexpected records: %+v", result.Records)
	}
	if result.Iteration != 1 {
		t.Errorf("expected iteration 1, got %d", result.Iteration)
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected 1 inference call, got %d", mock.CallCount())
	}
}

func TestAnnotate_EscalatesPromptAcrossAttempts(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Script = []providers.MockReply{
		{Text: "I cannot find any JSON to give you"},
		{Text: "still just prose"},
		{Text: `[{"label": "dog", "box": [100, 100, 300, 300]}]`},
	}
	w := testWorker(t, mock)

	result, err := w.Annotate(context.Background(), testImage(t), []string{"dog"}, "", 1)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}

	reqs := mock.Requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(reqs))
	}
	if strings.Contains(reqs[0].Prompt, "exactly four numbers") {
		t.Error("attempt 1 should use the base prompt")
	}
	if !strings.Contains(reqs[1].Prompt, "exactly four numbers") {
		t.Error("attempt 2 should repeat the required JSON shape")
	}
	if !strings.Contains(reqs[2].Prompt, "Return ONLY the JSON array") {
		t.Error("attempt 3 should demand only-JSON output")
	}
}

func TestAnnotate_UnparseableAfterBudget(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = "no structured data whatsoever"
	w := testWorker(t, mock)

	_, err := w.Annotate(context.Background(), testImage(t), []string{"dog"}, "", 1)
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
	if mock.CallCount() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", mock.CallCount())
	}
}

func TestAnnotate_TransientErrorsShareBudget(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Script = []providers.MockReply{
		{Err: &providers.InferError{Kind: providers.KindTransient, Provider: "mock", Err: errors.New("timeout")}},
		{Err: &providers.InferError{Kind: providers.KindRateLimited, Provider: "mock", Err: errors.New("429")}},
		{Text: `[{"label": "dog", "box": [1, 2, 3, 4]}]`},
	}
	// Rate-limit adds >=1s; keep the test fast by only hitting it once.
	w, err := NewWorker(Config{
		Client:  mock,
		Backoff: Backoff{Delays: []time.Duration{time.Millisecond, time.Millisecond}},
	})
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}

	start := time.Now()
	result, err := w.Annotate(context.Background(), testImage(t), []string{"dog"}, "", 1)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("rate-limit signal must add at least 1s wait, elapsed %v", elapsed)
	}
}

func TestAnnotate_PermanentErrorAbortsEarly(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Err = &providers.InferError{Kind: providers.KindPermanent, Provider: "mock", Err: errors.New("bad api key")}
	w := testWorker(t, mock)

	_, err := w.Annotate(context.Background(), testImage(t), []string{"dog"}, "", 1)
	if err == nil {
		t.Fatal("expected failure")
	}
	if mock.CallCount() != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", mock.CallCount())
	}
}

// Fenced JSON whose only record is geometrically invalid: the parse attempt
// succeeds, the box validator drops the record, and the worker reports
// success with zero records rather than a failure.
func TestAnnotate_GeometricRejectionIsNotFailure(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = "Sure! Here you go:\n```json\n[{\"label\": \"dog\", \"box\": [100, 200, 300, 200]}]\n```"
	w := testWorker(t, mock)

	result, err := w.Annotate(context.Background(), testImage(t), []string{"dog"}, "", 1)
	if err != nil {
		t.Fatalf("expected success with empty records, got %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("zero-width box should have been dropped, got %+v", result.Records)
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected a single attempt, got %d", mock.CallCount())
	}
}

func TestAnnotate_ThreadsPriorFeedback(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = `[{"label": "dog", "box": [1, 2, 3, 4]}]`
	w := testWorker(t, mock)

	_, err := w.Annotate(context.Background(), testImage(t), []string{"dog"}, "the box misses the tail", 2)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	prompt := mock.Requests()[0].Prompt
	if !strings.Contains(prompt, "the box misses the tail") {
		t.Error("prior feedback not threaded into the prompt")
	}
	if !strings.Contains(prompt, "Improve the annotations") {
		t.Error("prompt should instruct the model to act on the feedback")
	}
}

func TestAnnotate_MissingImage(t *testing.T) {
	mock := providers.NewMockClient()
	w := testWorker(t, mock)

	_, err := w.Annotate(context.Background(), "/does/not/exist.jpg", []string{"dog"}, "", 1)
	if err == nil {
		t.Fatal("expected error for unreadable image")
	}
	if mock.CallCount() != 0 {
		t.Error("no inference calls should happen for unreadable input")
	}
}
