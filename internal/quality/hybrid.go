package quality

import (
	"context"
	"strings"

	"github.com/visionforge/foundry/internal/detect"
)

// hybridValidator runs the coordinate and visual checks and approves only
// when both do. On rejection the feedback strings are joined and the issue
// sets unioned, so the next annotation attempt sees everything either check
// found. Double the inference cost of a single strategy.
type hybridValidator struct {
	coordinate Validator
	visual     Validator
}

func (v *hybridValidator) Method() Method { return MethodHybrid }

func (v *hybridValidator) Validate(ctx context.Context, imageRef string, labels []string, records []detect.Record) detect.Verdict {
	coord := v.coordinate.Validate(ctx, imageRef, labels, records)
	visual := v.visual.Validate(ctx, imageRef, labels, records)

	if coord.Approved() && visual.Approved() {
		return detect.Verdict{Status: detect.StatusApproved}
	}

	var feedback []string
	var issues []string
	for _, verdict := range []detect.Verdict{coord, visual} {
		if verdict.Approved() {
			continue
		}
		if verdict.Feedback != "" {
			feedback = append(feedback, verdict.Feedback)
		}
		issues = append(issues, verdict.Issues...)
	}

	return detect.Verdict{
		Status:   detect.StatusNeedsImprovement,
		Feedback: strings.Join(feedback, " | "),
		Issues:   dedupe(issues),
	}
}

// dedupe removes duplicate issue tags, keeping first-seen order.
func dedupe(issues []string) []string {
	if len(issues) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(issues))
	out := issues[:0]
	for _, issue := range issues {
		if _, ok := seen[issue]; ok {
			continue
		}
		seen[issue] = struct{}{}
		out = append(out, issue)
	}
	return out
}
