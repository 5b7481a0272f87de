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

// coordinateValidator sends the raw box numbers alongside the original image
// and asks the model to judge them. One inference call per verdict.
type coordinateValidator struct {
	cfg    Config
	logger *slog.Logger
}

func (v *coordinateValidator) Method() Method { return MethodCoordinate }

func (v *coordinateValidator) Validate(ctx context.Context, imageRef string, labels []string, records []detect.Record) detect.Verdict {
	boxes, err := detect.MarshalRecords(records)
	if err != nil {
		v.logger.Error("could not serialize records for validation", "image", imageRef, "error", err)
		return needsWork()
	}

	imageData, err := v.cfg.Images.LoadBytes(imageRef)
	if err != nil {
		v.logger.Error("could not read image for validation", "image", imageRef, "error", err)
		return needsWork()
	}

	prompt := coordinatePrompt(labels, len(records), boxes)

	res, err := v.cfg.Client.Generate(ctx, &providers.InferRequest{
		Prompt:    prompt,
		Image:     imageData,
		ImageMIME: render.MIMEForPath(imageRef),
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
	v.logger.Debug("coordinate verdict",
		"image", imageRef, "status", verdict.Status, "strategy", strategy.String())
	return verdict
}

// verdictShape is the response shape every validation prompt pins down.
const verdictShape = `{"status": "APPROVED" or "NEEDS_IMPROVEMENT", "feedback": "detailed feedback if improvements needed", "issues": ["list of specific issues"]}`

func coordinatePrompt(labels []string, numBoxes int, boxes string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Validate these bounding box annotations for '%s':\n", strings.Join(labels, ", "))
	fmt.Fprintf(&sb, "Number of boxes: %d\n", numBoxes)
	fmt.Fprintf(&sb, "Bounding boxes: %s\n\n", boxes)
	sb.WriteString("Check for:\n")
	sb.WriteString("1. Completeness: Are all objects detected?\n")
	sb.WriteString("2. Accuracy: Are boxes properly fitted?\n")
	sb.WriteString("3. Correctness: No false positives?\n\n")
	sb.WriteString("Return JSON: ")
	sb.WriteString(verdictShape)
	return sb.String()
}
