package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-spotify-song-recommender/internal/features"
	"github.com/justestif/go-spotify-song-recommender/internal/lookup"
)

// SongFeatureRepository stores lookup results. It implements lookup.Cache.
type SongFeatureRepository struct {
	pool *pgxpool.Pool
}

var _ lookup.Cache = (*SongFeatureRepository)(nil)

// Upsert creates or replaces the entry for sf.LookupKey.
// A new ID is assigned when sf.ID is zero.
func (r *SongFeatureRepository) Upsert(ctx context.Context, sf *SongFeatures) error {
	if sf.ID == uuid.Nil {
		sf.ID = uuid.New()
	}

	query := `
		INSERT INTO song_features (id, lookup_key, track_name, artist_name, features, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (lookup_key) DO UPDATE SET
			track_name = EXCLUDED.track_name,
			artist_name = EXCLUDED.artist_name,
			features = EXCLUDED.features,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		sf.ID,
		sf.LookupKey,
		sf.TrackName,
		sf.ArtistName,
		sf.Features,
	).Scan(&sf.ID, &sf.CreatedAt, &sf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting song features: %w", err)
	}
	return nil
}

// GetByKey retrieves an entry by lookup key and records the hit.
func (r *SongFeatureRepository) GetByKey(ctx context.Context, key string) (*SongFeatures, error) {
	query := `
		UPDATE song_features SET hits = hits + 1
		WHERE lookup_key = $1
		RETURNING id, lookup_key, track_name, artist_name, features, hits, created_at, updated_at
	`
	var sf SongFeatures
	err := r.pool.QueryRow(ctx, query, key).Scan(
		&sf.ID,
		&sf.LookupKey,
		&sf.TrackName,
		&sf.ArtistName,
		&sf.Features,
		&sf.Hits,
		&sf.CreatedAt,
		&sf.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying song features: %w", err)
	}
	return &sf, nil
}

// Count returns the number of cached entries.
func (r *SongFeatureRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM song_features`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting song features: %w", err)
	}
	return n, nil
}

// Get implements lookup.Cache.
func (r *SongFeatureRepository) Get(ctx context.Context, song, artist string) (*features.Observation, bool, error) {
	sf, err := r.GetByKey(ctx, lookup.Key(song, artist))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return sf.Observation(), true, nil
}

// Put implements lookup.Cache.
func (r *SongFeatureRepository) Put(ctx context.Context, song, artist string, obs *features.Observation) error {
	if obs == nil {
		return errors.New("cannot cache nil observation")
	}
	return r.Upsert(ctx, FromObservation(lookup.Key(song, artist), obs))
}

// FromObservation builds a row for key from obs.
func FromObservation(key string, obs *features.Observation) *SongFeatures {
	return &SongFeatures{
		LookupKey:  key,
		TrackName:  obs.Name,
		ArtistName: obs.Artist,
		Features:   obs.Values,
	}
}

// Observation converts the row back to a raw observation.
func (sf *SongFeatures) Observation() *features.Observation {
	values := sf.Features
	if values == nil {
		values = map[string]float64{}
	}
	return &features.Observation{
		Name:   sf.TrackName,
		Artist: sf.ArtistName,
		Values: values,
	}
}
