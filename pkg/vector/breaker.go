package vector

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kgrail/kgrail/pkg/types"
)

// BreakerSettings tunes the circuit breaker wrapper.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// DefaultBreakerSettings trips after 3+ requests with a 60% failure rate.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

// CircuitBreakerClient wraps a Client with circuit breaking so a dead
// vector backend fails fast instead of stalling every request.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewCircuitBreakerClient wraps client under the given settings.
func NewCircuitBreakerClient(client Client, name string, cfg BreakerSettings, logger *slog.Logger) *CircuitBreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Error("circuit breaker tripped", "name", name, "from", from.String(), "to", to.String())
			}
		},
	}
	return &CircuitBreakerClient{client: client, cb: gobreaker.NewCircuitBreaker(st), logger: logger}
}

// Search implements Client.
func (c *CircuitBreakerClient) Search(ctx context.Context, queryText string, topK int, docTypeFilter string) ([]types.ScoredChunk, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Search(ctx, queryText, topK, docTypeFilter)
	})
	if err != nil {
		return nil, err
	}
	return resp.([]types.ScoredChunk), nil
}

// Index implements Client.
func (c *CircuitBreakerClient) Index(ctx context.Context, chunks []types.Chunk) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.client.Index(ctx, chunks)
	})
	return err
}

// Close implements Client.
func (c *CircuitBreakerClient) Close() error { return c.client.Close() }
