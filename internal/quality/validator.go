// Package quality judges annotation results, either from the raw numbers,
// from a rendered overlay, or both. Every strategy always returns a usable
// verdict: validator-side failures degrade to NEEDS_IMPROVEMENT so the
// refinement loop never stalls on a broken check.
package quality

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/visionforge/foundry/internal/detect"
	"github.com/visionforge/foundry/internal/providers"
	"github.com/visionforge/foundry/internal/render"
)

// Method selects a validation strategy.
type Method string

const (
	MethodCoordinate Method = "coordinate"
	MethodVisual     Method = "visual"
	MethodHybrid     Method = "hybrid"
)

// ParseMethod maps a config string to a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodCoordinate, MethodVisual, MethodHybrid:
		return Method(s), nil
	case "":
		return MethodCoordinate, nil
	default:
		return "", fmt.Errorf("unknown validation method %q (want coordinate, visual, or hybrid)", s)
	}
}

// Validator renders a verdict on one image's detection records.
//
// Implementations never return an error: an inference failure or an
// unreadable response becomes a NEEDS_IMPROVEMENT verdict with empty
// feedback, costing the caller an iteration instead of the whole run.
type Validator interface {
	Validate(ctx context.Context, imageRef string, labels []string, records []detect.Record) detect.Verdict
	Method() Method
}

// Config carries the shared dependencies of all strategies.
type Config struct {
	Client providers.VisionClient
	Images *render.ImageCache
	Logger *slog.Logger
	Style  render.Style
}

// New builds the validator for method.
func New(method Method, cfg Config) (Validator, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("quality: client is required")
	}
	if cfg.Images == nil {
		cfg.Images = render.NewImageCache()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Style.StrokeColor == "" {
		cfg.Style = render.DefaultStyle()
	}

	switch method {
	case MethodCoordinate:
		return &coordinateValidator{cfg: cfg, logger: cfg.Logger.With("validator", "coordinate")}, nil
	case MethodVisual:
		return &visualValidator{cfg: cfg, logger: cfg.Logger.With("validator", "visual")}, nil
	case MethodHybrid:
		coord, err := New(MethodCoordinate, cfg)
		if err != nil {
			return nil, err
		}
		visual, err := New(MethodVisual, cfg)
		if err != nil {
			return nil, err
		}
		return &hybridValidator{coordinate: coord, visual: visual}, nil
	default:
		return nil, fmt.Errorf("quality: unknown method %q", method)
	}
}

// needsWork is the degraded verdict used when the validator itself failed.
// Feedback stays empty so the next annotation attempt is not steered by an
// error message that has nothing to do with the boxes.
func needsWork() detect.Verdict {
	return detect.Verdict{Status: detect.StatusNeedsImprovement}
}
