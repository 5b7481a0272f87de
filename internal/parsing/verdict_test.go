package parsing

import (
	"errors"
	"testing"

	"github.com/visionforge/foundry/internal/detect"
)

func TestParseVerdict_Strict(t *testing.T) {
	verdict, strategy, err := ParseVerdict(`{"status": "APPROVED", "feedback": "", "issues": []}`)
	if err != nil {
		t.Fatalf("ParseVerdict failed: %v", err)
	}
	if strategy != StrategyStrict {
		t.Errorf("expected strict strategy, got %s", strategy)
	}
	if !verdict.Approved() {
		t.Errorf("expected approval, got %+v", verdict)
	}
}

func TestParseVerdict_NeedsImprovementWithIssues(t *testing.T) {
	verdict, _, err := ParseVerdict(`{"status": "NEEDS_IMPROVEMENT", "feedback": "missed the second dog", "issues": ["missing-instance", "loose-box"]}`)
	if err != nil {
		t.Fatalf("ParseVerdict failed: %v", err)
	}
	if verdict.Approved() {
		t.Fatal("expected rejection")
	}
	if verdict.Feedback != "missed the second dog" {
		t.Errorf("unexpected feedback: %q", verdict.Feedback)
	}
	if len(verdict.Issues) != 2 {
		t.Errorf("expected 2 issues, got %v", verdict.Issues)
	}
}

func TestParseVerdict_Fenced(t *testing.T) {
	text := "```json\n{\"status\": \"NEEDS_IMPROVEMENT\", \"feedback\": \"boxes too loose\", \"issues\": []}\n```"
	verdict, strategy, err := ParseVerdict(text)
	if err != nil {
		t.Fatalf("ParseVerdict failed: %v", err)
	}
	if strategy != StrategyFence {
		t.Errorf("expected fence strategy, got %s", strategy)
	}
	if verdict.Feedback != "boxes too loose" {
		t.Errorf("unexpected feedback: %q", verdict.Feedback)
	}
}

func TestParseVerdict_UnknownStatusRejects(t *testing.T) {
	verdict, _, err := ParseVerdict(`{"status": "ERROR", "feedback": "validator crashed"}`)
	if err != nil {
		t.Fatalf("ParseVerdict failed: %v", err)
	}
	if verdict.Status != detect.StatusNeedsImprovement {
		t.Errorf("unknown status must map to NEEDS_IMPROVEMENT, got %s", verdict.Status)
	}
}

func TestParseVerdict_ApprovedFeedbackCleared(t *testing.T) {
	verdict, _, err := ParseVerdict(`{"status": "approved", "feedback": "looks great!"}`)
	if err != nil {
		t.Fatalf("ParseVerdict failed: %v", err)
	}
	if !verdict.Approved() {
		t.Fatal("case-insensitive APPROVED not accepted")
	}
	if verdict.Feedback != "" {
		t.Errorf("approved verdicts carry empty feedback, got %q", verdict.Feedback)
	}
}

func TestParseVerdict_KeywordFallback(t *testing.T) {
	verdict, strategy, err := ParseVerdict("The annotations look correct. APPROVED.")
	if err != nil {
		t.Fatalf("ParseVerdict failed: %v", err)
	}
	if strategy != StrategyReconstruct {
		t.Errorf("expected reconstruct strategy, got %s", strategy)
	}
	if !verdict.Approved() {
		t.Error("keyword fallback should approve")
	}

	verdict, _, err = ParseVerdict("The first box misses half the dog.")
	if err != nil {
		t.Fatalf("ParseVerdict failed: %v", err)
	}
	if verdict.Approved() {
		t.Error("non-approving prose must reject")
	}
	if verdict.Feedback == "" {
		t.Error("prose rejection should carry the text as feedback")
	}
}

func TestParseVerdict_EmptyInput(t *testing.T) {
	_, _, err := ParseVerdict("   ")
	if !errors.Is(err, ErrUnparseable) {
		t.Errorf("expected ErrUnparseable, got %v", err)
	}
}
