package client

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HTTPClient is an interface matching the Do method of *http.Client.
// Tests inject mock clients through it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RateLimitedHTTPClient wraps an HTTPClient and enforces a minimum interval
// between outgoing requests. Waiting honors the request context.
type RateLimitedHTTPClient struct {
	underlying      HTTPClient
	requestInterval time.Duration
	nextSlot        time.Time
	mu              sync.Mutex
}

// NewRateLimitedHTTPClient creates a rate-limited HTTP client that enforces
// the given minimum interval between requests. A zero interval disables
// limiting.
func NewRateLimitedHTTPClient(underlying HTTPClient, requestInterval time.Duration) *RateLimitedHTTPClient {
	return &RateLimitedHTTPClient{
		underlying:      underlying,
		requestInterval: requestInterval,
	}
}

// Do waits for the next free slot, then sends the request.
func (rateLimitedClient *RateLimitedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if err := rateLimitedClient.wait(req.Context()); err != nil {
		return nil, err
	}
	return rateLimitedClient.underlying.Do(req)
}

// wait reserves a slot under the lock and sleeps outside it, so concurrent
// callers queue up one interval apart.
func (rateLimitedClient *RateLimitedHTTPClient) wait(ctx context.Context) error {
	if rateLimitedClient.requestInterval <= 0 {
		return nil
	}

	rateLimitedClient.mu.Lock()
	now := time.Now()
	slot := rateLimitedClient.nextSlot
	if slot.Before(now) {
		slot = now
	}
	rateLimitedClient.nextSlot = slot.Add(rateLimitedClient.requestInterval)
	rateLimitedClient.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// newDefaultHTTPClient builds the transport used when Config.HTTPClient is
// nil. Per-attempt deadlines come from the request context, so the client
// itself carries no timeout.
func newDefaultHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
