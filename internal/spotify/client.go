// Package spotify resolves songs into raw audio observations through the
// Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/justestif/go-spotify-song-recommender/internal/lookup"
)

// DefaultRequestPause is the minimum spacing between API calls.
const DefaultRequestPause = 500 * time.Millisecond

// ErrMissingCredentials is returned when the client ID or secret is empty.
var ErrMissingCredentials = errors.New("missing Spotify API credentials")

// Client implements lookup.Provider on top of the Spotify API.
type Client struct {
	api     *spotify.Client
	limiter *rate.Limiter
	retry   lookup.RetryPolicy
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRetryPolicy sets the retry policy applied to each API call.
func WithRetryPolicy(p lookup.RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithRequestPause sets the minimum spacing between API calls.
// A zero pause disables pacing.
func WithRequestPause(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// New creates a Client around an API client that is already authenticated.
func New(api *spotify.Client, opts ...Option) *Client {
	c := &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(DefaultRequestPause), 1),
		retry:   lookup.DefaultRetryPolicy(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithCredentials authenticates with the client credentials flow.
// Tokens are fetched lazily and refreshed by the returned client.
func NewWithCredentials(ctx context.Context, clientID, clientSecret string, opts ...Option) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}

	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(ctx)
	httpClient.Timeout = 10 * time.Second

	return New(spotify.New(httpClient), opts...), nil
}

// call waits for the limiter and runs fn under the retry policy.
func (c *Client) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return lookup.Permanent(err)
		}
		err := fn(ctx)
		if err != nil && !retryable(err) {
			return lookup.Permanent(err)
		}
		return err
	})
}

// retryable reports whether an API error is worth another attempt:
// rate limiting, server errors, and transport failures.
func retryable(err error) bool {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
