package providers

import (
	"context"
	"sync"
	"time"
)

const MockClientName = "mock"

// MockReply is one scripted response from a MockClient.
type MockReply struct {
	Text string
	Err  error
}

// MockClient is a VisionClient for testing. Replies are served from Script in
// order; once the script is exhausted (or empty), ResponseText/Err apply.
// All requests are recorded so tests can assert on prompt contents.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ResponseText string
	Err          error
	Script       []MockReply
	RPM          int

	mu       sync.Mutex
	calls    int
	requests []InferRequest
}

// NewMockClient creates a mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "[]",
		RPM:          600,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string { return MockClientName }

// RequestsPerMinute returns the mock quota.
func (c *MockClient) RequestsPerMinute() int {
	if c.RPM <= 0 {
		return 600
	}
	return c.RPM
}

// Generate serves the next scripted reply.
func (c *MockClient) Generate(ctx context.Context, req *InferRequest) (*InferResult, error) {
	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.Latency):
		}
	}

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	idx := c.calls
	c.calls++
	c.mu.Unlock()

	text, err := c.ResponseText, c.Err
	if idx < len(c.Script) {
		text, err = c.Script[idx].Text, c.Script[idx].Err
	}
	if err != nil {
		return nil, err
	}
	return &InferResult{
		Text:      text,
		Provider:  MockClientName,
		ModelUsed: "mock-model",
		RequestID: req.RequestID,
	}, nil
}

// CallCount returns how many Generate calls were made.
func (c *MockClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Requests returns a copy of all recorded requests.
func (c *MockClient) Requests() []InferRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]InferRequest, len(c.requests))
	copy(out, c.requests)
	return out
}
