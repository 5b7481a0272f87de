package providers

import "context"

// LimitedClient wraps a VisionClient with a shared RateLimiter. Concurrent
// refinement loops go through one LimitedClient per provider so the
// requests-per-minute quota is enforced across all of them.
type LimitedClient struct {
	client  VisionClient
	limiter *RateLimiter
}

// NewLimitedClient wraps client with a token-bucket limiter sized to the
// client's quota.
func NewLimitedClient(client VisionClient) *LimitedClient {
	return &LimitedClient{
		client:  client,
		limiter: NewRateLimiter(client.RequestsPerMinute()),
	}
}

// Name returns the wrapped client's identifier.
func (c *LimitedClient) Name() string { return c.client.Name() }

// RequestsPerMinute returns the wrapped client's quota.
func (c *LimitedClient) RequestsPerMinute() int { return c.client.RequestsPerMinute() }

// LimiterStatus returns the shared limiter state.
func (c *LimitedClient) LimiterStatus() RateLimiterStatus { return c.limiter.Status() }

// Generate waits for a token, forwards the call, and drains the bucket when
// the provider reports quota exhaustion.
func (c *LimitedClient) Generate(ctx context.Context, req *InferRequest) (*InferResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := c.client.Generate(ctx, req)
	if IsRateLimited(err) {
		c.limiter.Record429()
	}
	return result, err
}
