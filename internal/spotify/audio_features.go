package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-song-recommender/internal/features"
)

// audioFeatures fetches the audio features of a single track.
// Returns nil if the API has none for it.
func (c *Client) audioFeatures(ctx context.Context, id spotify.ID) (*spotify.AudioFeatures, error) {
	var list []*spotify.AudioFeatures
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		list, err = c.api.GetAudioFeatures(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching audio features for %q: %w", id, err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// toObservation copies the eleven modelled attributes of f into an observation.
func toObservation(track spotify.FullTrack, f *spotify.AudioFeatures) *features.Observation {
	return &features.Observation{
		Name:   track.Name,
		Artist: joinArtists(track.Artists),
		Values: map[string]float64{
			features.Danceability:     float64(f.Danceability),
			features.Energy:           float64(f.Energy),
			features.Key:              float64(f.Key),
			features.Loudness:         float64(f.Loudness),
			features.Mode:             float64(f.Mode),
			features.Speechiness:      float64(f.Speechiness),
			features.Acousticness:     float64(f.Acousticness),
			features.Instrumentalness: float64(f.Instrumentalness),
			features.Liveness:         float64(f.Liveness),
			features.Valence:          float64(f.Valence),
			features.Tempo:            float64(f.Tempo),
		},
	}
}
