package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"

	openAIDefaultTimeout = 120 * time.Second
	openAIDefaultRPM     = 60
)

// OpenAIConfig holds configuration for the OpenAI-compatible vision client.
type OpenAIConfig struct {
	APIKey            string
	Model             string
	BaseURL           string // optional, for OpenAI-compatible gateways
	RequestsPerMinute int
	Timeout           time.Duration
}

// OpenAIClient implements VisionClient using the official OpenAI SDK with
// image parts on chat completions.
type OpenAIClient struct {
	client  openai.Client
	model   string
	rpm     int
	timeout time.Duration
}

// NewOpenAIClient creates an OpenAI vision client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: api key is empty")
	}
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = openAIDefaultRPM
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = openAIDefaultTimeout
	}

	// SDK retries are disabled: the annotation worker owns the attempt budget.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		rpm:     cfg.RequestsPerMinute,
		timeout: cfg.Timeout,
	}, nil
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string { return OpenAIName }

// RequestsPerMinute returns the configured quota.
func (c *OpenAIClient) RequestsPerMinute() int { return c.rpm }

// Generate sends the prompt (and image, when present) as a single user
// message and returns the raw completion text.
func (c *OpenAIClient) Generate(ctx context.Context, req *InferRequest) (*InferResult, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Prompt),
	}
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(req.Image))
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL,
		}))
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(float64(*req.Temperature))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &InferError{
			Kind:     KindTransient,
			Provider: OpenAIName,
			Err:      fmt.Errorf("no choices in response"),
		}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, &InferError{
			Kind:     KindTransient,
			Provider: OpenAIName,
			Err:      fmt.Errorf("empty completion"),
		}
	}

	return &InferResult{
		Text:             text,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		Provider:         OpenAIName,
		ModelUsed:        resp.Model,
		RequestID:        req.RequestID,
		Elapsed:          time.Since(start),
	}, nil
}

// classify maps SDK errors onto the shared error taxonomy.
func (c *OpenAIClient) classify(err error) error {
	kind := KindTransient
	var retryAfter time.Duration

	var apierr *openai.Error
	switch {
	case errors.As(err, &apierr):
		kind = classifyStatus(apierr.StatusCode)
		if kind == KindRateLimited {
			retryAfter = time.Second
		}
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTransient
	case errors.Is(err, context.Canceled):
		kind = KindPermanent
	}

	return &InferError{Kind: kind, Provider: OpenAIName, Err: err, RetryAfter: retryAfter}
}
