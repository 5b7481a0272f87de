// Package providers wraps vision-language inference services behind a single
// client interface. Clients are defensive: they classify transport failures
// into retryable and permanent kinds so callers can apply their own retry
// budgets.
package providers

import (
	"context"
	"time"
)

// VisionClient is the primary interface for vision-model completion requests.
type VisionClient interface {
	// Generate sends a prompt (optionally with an image) and returns the raw
	// text completion. Errors are *InferError where classification is possible.
	Generate(ctx context.Context, req *InferRequest) (*InferResult, error)

	// Name returns the client identifier (e.g. "gemini", "openai").
	Name() string

	// RequestsPerMinute returns the provider's rate-limit quota.
	RequestsPerMinute() int
}

// InferRequest is a single inference call.
type InferRequest struct {
	// Prompt is the full instruction text.
	Prompt string

	// Image holds encoded image bytes (JPEG/PNG). Nil for text-only calls.
	Image []byte

	// ImageMIME is the MIME type of Image (default "image/jpeg").
	ImageMIME string

	// Temperature overrides the model default when non-nil.
	Temperature *float32

	// Timeout bounds the call. Zero means the client default applies. A
	// call-level timeout is mandatory for loop safety: an inference call that
	// never returns is the one unbounded blocking risk in the pipeline.
	Timeout time.Duration

	// RequestID tracks the call through logs. Assigned by the caller.
	RequestID string
}

// InferResult is the raw completion plus accounting.
type InferResult struct {
	Text string `json:"text"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	Provider  string        `json:"provider"`
	ModelUsed string        `json:"model_used"`
	RequestID string        `json:"request_id"`
	Elapsed   time.Duration `json:"elapsed"`
}
