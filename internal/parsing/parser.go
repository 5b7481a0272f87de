// Package parsing recovers structured detection data from free-text model
// output. Vision models routinely wrap JSON in markdown, use single quotes,
// leave trailing commas, or bury the payload in prose; the parser applies
// five fallback strategies in order of increasing cost and decreasing
// precision, stopping at the first success.
package parsing

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/visionforge/foundry/internal/detect"
)

// ErrUnparseable is returned when every strategy fails to recover output.
var ErrUnparseable = errors.New("no parsing strategy recovered structured output")

// Strategy identifies which fallback recovered the payload. Exposed for
// logging and tests; lower-numbered strategies are cheaper and more exact.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyStrict
	StrategyFence
	StrategyAutoFix
	StrategyExtract
	StrategyReconstruct
)

func (s Strategy) String() string {
	switch s {
	case StrategyStrict:
		return "strict"
	case StrategyFence:
		return "fence"
	case StrategyAutoFix:
		return "autofix"
	case StrategyExtract:
		return "extract"
	case StrategyReconstruct:
		return "reconstruct"
	default:
		return "none"
	}
}

// Options tunes record parsing.
type Options struct {
	// FallbackLabel is assigned by the reconstruction strategy when a box has
	// no recoverable label. Defaults to "unknown".
	FallbackLabel string
}

var (
	fenceRe        = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	arrayRe        = regexp.MustCompile(`\[\s*\{[\s\S]*\}\s*\]`)
	trailingObjRe  = regexp.MustCompile(`,\s*}`)
	trailingArrRe  = regexp.MustCompile(`,\s*]`)
	boxPatternRe   = regexp.MustCompile(`\[\s*\d+(?:\.\d+)?\s*,\s*\d+(?:\.\d+)?\s*,\s*\d+(?:\.\d+)?\s*,\s*\d+(?:\.\d+)?\s*\]`)
	labelPatternRe = regexp.MustCompile(`(?i)["']?label["']?\s*:\s*["']([^"']+)["']`)
)

// candidate pairs a strategy with the text it would parse.
type candidate struct {
	strategy Strategy
	text     string
}

// ParseRecords turns raw model output into detection records. It never
// panics and never returns partial garbage as an error: a strategy succeeds
// once its candidate is syntactically valid JSON in the array-of-objects
// shape, and individual items missing a label or a 4-element numeric box are
// dropped rather than failing the call. Geometric validity is the caller's
// concern, not the parser's.
func ParseRecords(text string, opts Options) ([]detect.Record, Strategy, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, StrategyNone, ErrUnparseable
	}

	candidates := []candidate{{StrategyStrict, trimmed}}

	fenced := stripCodeFences(trimmed)
	if fenced != "" {
		candidates = append(candidates, candidate{StrategyFence, fenced})
	}

	// Auto-fixes apply to the fence-stripped text when a fence was found,
	// otherwise to the raw text.
	fixBase := trimmed
	if fenced != "" {
		fixBase = fenced
	}
	if fixed := autoFix(fixBase); fixed != "" {
		candidates = append(candidates, candidate{StrategyAutoFix, fixed})
	}

	if extracted := arrayRe.FindString(trimmed); extracted != "" {
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

		if records, ok := decodeRecords(c.text); ok {
			return records, c.strategy, nil
		}
	}

	// Last resort: synthesize records from label/box fragments, bypassing
	// JSON parsing entirely.
	if records := reconstructRecords(trimmed, opts); len(records) > 0 {
		return records, StrategyReconstruct, nil
	}

	return nil, StrategyNone, ErrUnparseable
}

// decodeRecords parses a candidate string and applies the record-shape check.
// The second return is false when the candidate is not a schema-valid JSON
// array of objects; items failing the per-record shape check are dropped.
func decodeRecords(text string) ([]detect.Record, bool) {
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, false
	}
	if err := recordArraySchema.Validate(doc); err != nil {
		return nil, false
	}

	items := doc.([]any)
	records := make([]detect.Record, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		label, ok := m["label"].(string)
		if !ok {
			continue
		}
		// Models flip between "box" and "bbox" regardless of what the prompt
		// asks for; accept either.
		rawBox, present := m["box"]
		if !present {
			rawBox = m["bbox"]
		}
		box, ok := shapeBox(rawBox)
		if !ok {
			continue
		}
		records = append(records, detect.Record{Label: label, Box: box})
	}
	return records, true
}

// shapeBox checks for a 4-element all-numeric box.
func shapeBox(v any) (detect.Box, bool) {
	raw, ok := v.([]any)
	if !ok || len(raw) != 4 {
		return detect.Box{}, false
	}
	var box detect.Box
	for i, elem := range raw {
		num, ok := elem.(float64)
		if !ok {
			return detect.Box{}, false
		}
		box[i] = num
	}
	return box, true
}

// stripCodeFences extracts the body of the first markdown code fence,
// including fences embedded mid-prose. Returns "" when no fence is present.
func stripCodeFences(text string) string {
	m := fenceRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// autoFix applies textual repairs for the common model mistakes: single
// quotes as string delimiters, trailing commas before } or ], and prose
// before/after the JSON payload.
func autoFix(text string) string {
	fixed := strings.ReplaceAll(text, "'", `"`)
	fixed = trailingObjRe.ReplaceAllString(fixed, "}")
	fixed = trailingArrRe.ReplaceAllString(fixed, "]")
	if i := strings.IndexAny(fixed, "[{"); i >= 0 {
		fixed = fixed[i:]
	}
	if i := strings.LastIndexAny(fixed, "]}"); i >= 0 {
		fixed = fixed[:i+1]
	}
	return strings.TrimSpace(fixed)
}

// reconstructRecords scans for box-shaped number quadruples and nearby label
// fragments, pairing them up positionally. Expensive and heuristic, but it
// salvages responses that are otherwise a total loss.
func reconstructRecords(text string, opts Options) []detect.Record {
	boxMatches := boxPatternRe.FindAllString(text, -1)
	if len(boxMatches) == 0 {
		return nil
	}
	labelMatches := labelPatternRe.FindAllStringSubmatch(text, -1)

	fallback := opts.FallbackLabel
	if fallback == "" {
		fallback = "unknown"
	}

	records := make([]detect.Record, 0, len(boxMatches))
	for i, boxStr := range boxMatches {
		var raw []float64
		if err := json.Unmarshal([]byte(boxStr), &raw); err != nil || len(raw) != 4 {
			continue
		}
		label := fallback
		if i < len(labelMatches) {
			label = labelMatches[i][1]
		}
		records = append(records, detect.Record{
			Label: label,
			Box:   detect.Box{raw[0], raw[1], raw[2], raw[3]},
		})
	}
	return records
}
