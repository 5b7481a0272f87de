// Package detect defines the shared data model for object-detection
// annotations: detection records, per-iteration annotation results, and
// quality-validation verdicts.
package detect

import (
	"encoding/json"
	"fmt"
)

// CoordMax is the upper bound of the normalized coordinate space. Box
// coordinates express position as a fraction of image width/height scaled to
// 0-1000, independent of actual pixel dimensions.
const CoordMax = 1000

// Box is a bounding box in normalized coordinate space, ordered
// [ymin, xmin, ymax, xmax] on the wire.
type Box [4]float64

// Accessors for the wire ordering.
func (b Box) YMin() float64 { return b[0] }
func (b Box) XMin() float64 { return b[1] }
func (b Box) YMax() float64 { return b[2] }
func (b Box) XMax() float64 { return b[3] }

func (b Box) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b[0], b[1], b[2], b[3])
}

// Record is one identified object instance in an image.
type Record struct {
	Label string `json:"label"`
	Box   Box    `json:"box"`
}

// AnnotationResult is one image's detection output at one refinement
// iteration. Immutable once produced; owned by a single refinement loop run.
type AnnotationResult struct {
	// ImageRef is the opaque image handle (typically a file path).
	ImageRef string `json:"image_ref"`

	// Records holds the validated detections. Order is not significant.
	Records []Record `json:"records"`

	// SourceText is the raw model output, retained for diagnostics.
	SourceText string `json:"source_text,omitempty"`

	// Iteration is the 1-based refinement iteration that produced this result.
	Iteration int `json:"iteration"`
}

// Status is the outcome of a quality-validation call.
type Status string

const (
	StatusApproved         Status = "APPROVED"
	StatusNeedsImprovement Status = "NEEDS_IMPROVEMENT"
)

// Verdict is the structured outcome of one quality-validation call.
// Created once per iteration and never mutated.
type Verdict struct {
	Status   Status   `json:"status"`
	Feedback string   `json:"feedback"`
	Issues   []string `json:"issues"`
}

// Approved reports whether the verdict accepts the annotation.
func (v Verdict) Approved() bool { return v.Status == StatusApproved }

// MarshalRecords serializes records in the wire shape the inference service
// is prompted to produce. Used when feeding boxes back to the coordinate
// validator.
func MarshalRecords(records []Record) (string, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to marshal records: %w", err)
	}
	return string(data), nil
}
