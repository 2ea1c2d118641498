package lookup

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/justestif/go-spotify-song-recommender/internal/features"
)

// BreakerSettings configures the circuit breaker around a provider.
type BreakerSettings struct {
	Name string
	// MaxRequests allowed while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts reset.
	Interval time.Duration
	// Timeout before an open breaker becomes half-open.
	Timeout time.Duration
	// ConsecutiveFailures that open the breaker.
	ConsecutiveFailures uint32
	Logger              *zap.Logger
	// OnStateChange is called after every transition, if set.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerSettings returns the settings used when none are configured.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "song-lookup",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

type breakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[*features.Observation]
}

// WithBreaker wraps next in a circuit breaker. ErrSeedNotFound and context
// cancellation are not counted as failures. While the breaker is open calls
// fail fast with gobreaker.ErrOpenState.
func WithBreaker(next Provider, s BreakerSettings) Provider {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := s.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultBreakerSettings().ConsecutiveFailures
	}

	cb := gobreaker.NewCircuitBreaker[*features.Observation](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("lookup circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if s.OnStateChange != nil {
				s.OnStateChange(name, from, to)
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrSeedNotFound) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &breakerProvider{next: next, cb: cb}
}

func (p *breakerProvider) Lookup(ctx context.Context, song, artist string) (*features.Observation, error) {
	return p.cb.Execute(func() (*features.Observation, error) {
		return p.next.Lookup(ctx, song, artist)
	})
}
