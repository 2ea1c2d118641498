// Package lookup resolves free-text song queries into raw audio observations
// and provides the retry, caching and circuit-breaking layers around providers.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/justestif/go-spotify-song-recommender/internal/features"
)

// ErrSeedNotFound is returned when no track matches the query. It is an
// expected outcome and never counts as a provider failure.
var ErrSeedNotFound = errors.New("seed track not found")

// Provider resolves a song (and optional artist) into a raw observation.
type Provider interface {
	Lookup(ctx context.Context, song, artist string) (*features.Observation, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, song, artist string) (*features.Observation, error)

// Lookup calls f.
func (f ProviderFunc) Lookup(ctx context.Context, song, artist string) (*features.Observation, error) {
	return f(ctx, song, artist)
}

// Disabled is a Provider that never finds anything. It stands in for the
// external provider when no credentials are configured.
type Disabled struct{}

// Lookup always returns ErrSeedNotFound.
func (Disabled) Lookup(context.Context, string, string) (*features.Observation, error) {
	return nil, fmt.Errorf("%w: lookup disabled", ErrSeedNotFound)
}

// Key returns the cache key for a query: lowercase song and artist joined by "|".
func Key(song, artist string) string {
	return strings.ToLower(strings.TrimSpace(song)) + "|" + strings.ToLower(strings.TrimSpace(artist))
}
