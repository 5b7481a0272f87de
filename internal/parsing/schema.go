package parsing

import "github.com/santhosh-tekuri/jsonschema/v5"

// Schemas gate which candidates count as a strategy success. They check the
// container shape only; per-item checks live in code so one malformed item
// drops that item, not the whole call.
var (
	recordArraySchema = jsonschema.MustCompileString("records.json", `{
		"type": "array",
		"items": { "type": "object" }
	}`)

	verdictSchema = jsonschema.MustCompileString("verdict.json", `{
		"type": "object",
		"required": ["status"],
		"properties": {
			"status":   { "type": "string" },
			"feedback": { "type": "string" },
			"issues":   { "type": "array", "items": { "type": "string" } }
		}
	}`)
)
