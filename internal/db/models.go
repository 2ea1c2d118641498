package db

import (
	"time"

	"github.com/google/uuid"
)

// SongFeatures is a cached lookup result.
type SongFeatures struct {
	ID         uuid.UUID
	LookupKey  string // lowercase "song|artist"
	TrackName  string
	ArtistName string
	Features   map[string]float64
	Hits       int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
