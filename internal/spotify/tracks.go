package spotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/justestif/go-spotify-song-recommender/internal/features"
	"github.com/justestif/go-spotify-song-recommender/internal/lookup"
)

// Lookup implements lookup.Provider. The best search hit for song and
// artist is resolved to its audio features. When an artist is given and
// nothing matches, the search is repeated without it.
func (c *Client) Lookup(ctx context.Context, song, artist string) (*features.Observation, error) {
	song = strings.TrimSpace(song)
	artist = strings.TrimSpace(artist)
	if song == "" {
		return nil, fmt.Errorf("%w: empty song name", lookup.ErrSeedNotFound)
	}

	track, err := c.searchTrack(ctx, searchQuery(song, artist))
	if err != nil {
		return nil, err
	}
	if track == nil && artist != "" {
		c.logger.Debug("no match with artist, retrying by title", zap.String("song", song), zap.String("artist", artist))
		track, err = c.searchTrack(ctx, searchQuery(song, ""))
		if err != nil {
			return nil, err
		}
	}
	if track == nil {
		return nil, fmt.Errorf("%w: %q", lookup.ErrSeedNotFound, song)
	}

	af, err := c.audioFeatures(ctx, track.ID)
	if err != nil {
		return nil, err
	}
	if af == nil {
		return nil, fmt.Errorf("%w: no audio features for %q", lookup.ErrSeedNotFound, track.ID)
	}

	return toObservation(*track, af), nil
}

// searchTrack returns the top track for query, or nil if there is none.
func (c *Client) searchTrack(ctx context.Context, query string) (*spotify.FullTrack, error) {
	var result *spotify.SearchResult
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		result, err = c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	if result == nil || result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return nil, nil
	}
	return &result.Tracks.Tracks[0], nil
}

// searchQuery builds a field-filtered search query.
func searchQuery(song, artist string) string {
	q := "track:" + song
	if artist != "" {
		q += " artist:" + artist
	}
	return q
}

// joinArtists joins artist names with ", ".
func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
