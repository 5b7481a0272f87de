package annotate

import (
	"fmt"
	"strings"
)

// recordShape is the wire shape every prompt pins down.
const recordShape = `[{"label": "object_name", "box": [ymin, xmin, ymax, xmax]}]`

// buildPrompt assembles the annotation instruction for one attempt. Attempts
// escalate: the second repeats the required JSON shape, the third adds an
// explicit only-JSON instruction. Prior feedback from a rejected iteration is
// threaded in so the model fixes the stated issues instead of re-guessing.
func buildPrompt(labels []string, priorFeedback string, attempt int) string {
	var sb strings.Builder

	if len(labels) == 1 {
		fmt.Fprintf(&sb, "Return bounding boxes for ALL instances of %s in this image. ", labels[0])
	} else {
		fmt.Fprintf(&sb, "Return bounding boxes for ALL instances of these objects in this image: %s. ", strings.Join(labels, ", "))
		sb.WriteString("Detect and label each object separately. ")
	}

	if priorFeedback != "" {
		fmt.Fprintf(&sb, "Previous feedback: %s ", priorFeedback)
		sb.WriteString("Improve the annotations based on this feedback. ")
	}

	sb.WriteString("Output ONLY valid JSON with double quotes: ")
	sb.WriteString(recordShape)
	sb.WriteString(". Use normalized coordinates (0-1000 range).")

	switch {
	case attempt >= 3:
		sb.WriteString(" Each entry must have 'label' and 'box' keys, with 'box' holding exactly four numbers.")
		sb.WriteString(` Example: [{"label": "dog", "box": [100, 200, 300, 400]}].`)
		sb.WriteString(" Return ONLY the JSON array, with no explanation or other text before or after it.")
	case attempt == 2:
		sb.WriteString(" Each entry must have 'label' and 'box' keys, with 'box' holding exactly four numbers.")
	}

	return sb.String()
}
