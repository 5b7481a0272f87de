package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	GeminiName         = "gemini"
	geminiDefaultModel = "gemini-2.0-flash"

	geminiDefaultTimeout = 120 * time.Second
	geminiDefaultRPM     = 15 // free-tier quota
)

// GeminiConfig holds configuration for the Gemini vision client.
type GeminiConfig struct {
	APIKey            string
	Model             string
	SystemInstruction string
	RequestsPerMinute int
	Timeout           time.Duration
}

// GeminiClient implements VisionClient using the Google generative AI SDK.
type GeminiClient struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	modelID string
	rpm     int
	timeout time.Duration
}

// NewGeminiClient creates a Gemini client. The caller owns the lifecycle and
// should Close it when done.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: api key is empty")
	}
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = geminiDefaultRPM
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = geminiDefaultTimeout
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	if cfg.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(cfg.SystemInstruction)},
		}
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		modelID: cfg.Model,
		rpm:     cfg.RequestsPerMinute,
		timeout: cfg.Timeout,
	}, nil
}

// Name returns the client identifier.
func (c *GeminiClient) Name() string { return GeminiName }

// RequestsPerMinute returns the configured quota.
func (c *GeminiClient) RequestsPerMinute() int { return c.rpm }

// Close releases the underlying SDK client.
func (c *GeminiClient) Close() error { return c.client.Close() }

// Generate sends the prompt (and image, when present) and returns the raw
// completion text.
func (c *GeminiClient) Generate(ctx context.Context, req *InferRequest) (*InferResult, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	parts := []genai.Part{genai.Text(req.Prompt)}
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, &genai.Blob{MIMEType: mime, Data: req.Image})
	}

	model := c.model
	if req.Temperature != nil {
		// GenerativeModel is shared; clone before mutating generation config.
		clone := *c.model
		clone.GenerationConfig.Temperature = req.Temperature
		model = &clone
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, c.classify(err)
	}

	text := geminiText(resp)
	if text == "" {
		return nil, &InferError{
			Kind:     KindTransient,
			Provider: GeminiName,
			Err:      fmt.Errorf("empty completion"),
		}
	}

	result := &InferResult{
		Text:      text,
		Provider:  GeminiName,
		ModelUsed: c.modelID,
		RequestID: req.RequestID,
		Elapsed:   time.Since(start),
	}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

// classify maps SDK errors onto the shared error taxonomy.
func (c *GeminiClient) classify(err error) error {
	kind := KindTransient
	var retryAfter time.Duration

	var gerr *googleapi.Error
	switch {
	case errors.As(err, &gerr):
		kind = classifyStatus(gerr.Code)
		if kind == KindRateLimited {
			retryAfter = time.Second
		}
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTransient
	case errors.Is(err, context.Canceled):
		kind = KindPermanent
	}

	return &InferError{Kind: kind, Provider: GeminiName, Err: err, RetryAfter: retryAfter}
}

// geminiText concatenates the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String())
}
