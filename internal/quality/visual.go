package quality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/visionforge/foundry/internal/detect"
	"github.com/visionforge/foundry/internal/parsing"
	"github.com/visionforge/foundry/internal/providers"
	"github.com/visionforge/foundry/internal/render"
)

// visualValidator draws the candidate boxes onto a copy of the source image
// and asks the model to judge the annotated picture instead of the numbers.
// This grounds the verdict visually and catches coordinate hallucination the
// numeric check cannot see. One render plus one inference call per verdict.
type visualValidator struct {
	cfg    Config
	logger *slog.Logger
}

func (v *visualValidator) Method() Method { return MethodVisual }

func (v *visualValidator) Validate(ctx context.Context, imageRef string, labels []string, records []detect.Record) detect.Verdict {
	img, err := v.cfg.Images.Load(imageRef)
	if err != nil {
		v.logger.Error("could not load image for validation", "image", imageRef, "error", err)
		return needsWork()
	}

	annotated, err := render.DrawBoxes(img, records, v.cfg.Style)
	if err != nil {
		v.logger.Error("overlay render failed", "image", imageRef, "error", err)
		return needsWork()
	}
	encoded, err := render.EncodeJPEG(annotated)
	if err != nil {
		v.logger.Error("overlay encode failed", "image", imageRef, "error", err)
		return needsWork()
	}

	res, err := v.cfg.Client.Generate(ctx, &providers.InferRequest{
		Prompt:    visualPrompt(labels, len(records)),
		Image:     encoded,
		ImageMIME: "image/jpeg",
		RequestID: uuid.NewString(),
	})
	if err != nil {
		v.logger.Warn("validation inference failed", "image", imageRef, "error", err)
		return needsWork()
	}

	verdict, strategy, err := parsing.ParseVerdict(res.Text)
	if err != nil {
		v.logger.Warn("validation response unreadable", "image", imageRef, "error", err)
		return needsWork()
	}
	v.logger.Debug("visual verdict",
		"image", imageRef, "status", verdict.Status, "strategy", strategy.String())
	return verdict
}

func visualPrompt(labels []string, numBoxes int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "This image shows bounding box annotations for '%s'.\n", strings.Join(labels, ", "))
	sb.WriteString("The RED BOXES show the detected objects.\n")
	fmt.Fprintf(&sb, "Number of boxes: %d\n\n", numBoxes)
	sb.WriteString("Evaluate the annotations:\n")
	sb.WriteString("1. Are all instances of the object detected?\n")
	sb.WriteString("2. Do the boxes properly cover the entire object?\n")
	sb.WriteString("3. Are there any false positives (boxes on wrong objects)?\n\n")
	sb.WriteString("Return JSON: ")
	sb.WriteString(verdictShape)
	return sb.String()
}
