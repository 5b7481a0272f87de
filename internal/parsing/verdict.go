package parsing

import (
	"encoding/json"
	"strings"

	"github.com/visionforge/foundry/internal/detect"
)

// ParseVerdict recovers a quality-validation verdict from raw model output
// using the same strategy ladder as ParseRecords, adapted to the verdict
// object shape. The final fallback is a keyword scan: an "APPROVED" anywhere
// in the text approves, anything else becomes NEEDS_IMPROVEMENT carrying the
// raw text as feedback. It only fails on empty input.
func ParseVerdict(text string) (detect.Verdict, Strategy, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return detect.Verdict{}, StrategyNone, ErrUnparseable
	}

	candidates := []candidate{{StrategyStrict, trimmed}}

	fenced := stripCodeFences(trimmed)
	if fenced != "" {
		candidates = append(candidates, candidate{StrategyFence, fenced})
	}

	fixBase := trimmed
	if fenced != "" {
		fixBase = fenced
	}
	if fixed := autoFix(fixBase); fixed != "" {
		candidates = append(candidates, candidate{StrategyAutoFix, fixed})
	}

	if extracted := extractObject(trimmed); extracted != "" {
		candidates = append(candidates, candidate{StrategyExtract, autoFix(extracted)})
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c.text == "" {
			continue
		}
		if _, dup := seen[c.text]; dup {
			continue
		}
		seen[c.text] = struct{}{}

		if verdict, ok := decodeVerdict(c.text); ok {
			return verdict, c.strategy, nil
		}
	}

	// Keyword reconstruction.
	if strings.Contains(strings.ToUpper(trimmed), "APPROVED") &&
		!strings.Contains(strings.ToUpper(trimmed), "NOT APPROVED") {
		return detect.Verdict{
			Status:   detect.StatusApproved,
			Feedback: "",
			Issues:   nil,
		}, StrategyReconstruct, nil
	}
	return detect.Verdict{
		Status:   detect.StatusNeedsImprovement,
		Feedback: trimmed,
		Issues:   []string{"review-needed"},
	}, StrategyReconstruct, nil
}

// decodeVerdict parses and schema-checks one candidate.
func decodeVerdict(text string) (detect.Verdict, bool) {
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return detect.Verdict{}, false
	}
	if err := verdictSchema.Validate(doc); err != nil {
		return detect.Verdict{}, false
	}

	m := doc.(map[string]any)
	status, _ := m["status"].(string)
	verdict := detect.Verdict{}

	// Any status other than APPROVED is a rejection; the loop needs a binary
	// decision to act on.
	if strings.EqualFold(strings.TrimSpace(status), string(detect.StatusApproved)) {
		verdict.Status = detect.StatusApproved
	} else {
		verdict.Status = detect.StatusNeedsImprovement
	}

	if feedback, ok := m["feedback"].(string); ok && verdict.Status != detect.StatusApproved {
		verdict.Feedback = feedback
	}
	if rawIssues, ok := m["issues"].([]any); ok {
		for _, ri := range rawIssues {
			if issue, ok := ri.(string); ok && issue != "" {
				verdict.Issues = append(verdict.Issues, issue)
			}
		}
	}
	return verdict, true
}

// extractObject returns the substring spanning the first '{' to the last '}'.
func extractObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}
