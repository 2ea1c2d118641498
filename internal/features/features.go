// Package features derives the engineered audio features consumed by the
// projection pipeline from a song's raw audio attributes.
package features

import (
	"errors"
	"fmt"
	"maps"
)

// Raw audio attribute names as reported by the metadata provider.
const (
	Danceability     = "danceability"
	Energy           = "energy"
	Key              = "key"
	Loudness         = "loudness"
	Mode             = "mode"
	Speechiness      = "speechiness"
	Acousticness     = "acousticness"
	Instrumentalness = "instrumentalness"
	Liveness         = "liveness"
	Valence          = "valence"
	Tempo            = "tempo"
)

// Derived feature names.
const (
	EnergyToAcousticnessRatio = "energy_to_acousticness_ratio"
	EnergyDynamics            = "energy_dynamics"
	DanceRhythm               = "dance_rhythm"
	EmotionalContent          = "emotional_content"
	VocalPresence             = "vocal_presence"
	PerformanceStyle          = "performance_style"
)

// RawNames lists the raw attributes every observation must carry.
var RawNames = []string{
	Danceability, Energy, Key, Loudness, Mode, Speechiness,
	Acousticness, Instrumentalness, Liveness, Valence, Tempo,
}

// ErrMissingFeature matches any *MissingFeatureError.
var ErrMissingFeature = errors.New("missing required feature")

// MissingFeatureError reports the first raw attribute absent from an observation.
type MissingFeatureError struct {
	Name string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing required feature: %s", e.Name)
}

// Is reports whether target is ErrMissingFeature.
func (e *MissingFeatureError) Is(target error) bool {
	return target == ErrMissingFeature
}

// Observation is a request-scoped set of raw audio attributes for one song.
type Observation struct {
	Name   string             `json:"name,omitempty"`
	Artist string             `json:"artist,omitempty"`
	Values map[string]float64 `json:"values"`
}

// Row is a single engineered feature row keyed by column name.
type Row map[string]float64

// Engineer returns the raw attributes of obs plus the six derived columns.
// The observation is not modified.
func Engineer(obs Observation) (Row, error) {
	for _, name := range RawNames {
		if _, ok := obs.Values[name]; !ok {
			return nil, &MissingFeatureError{Name: name}
		}
	}

	row := make(Row, len(obs.Values)+6)
	maps.Copy(row, obs.Values)

	// 0.01 keeps fully acoustic tracks away from a zero denominator.
	row[EnergyToAcousticnessRatio] = row[Energy] / (row[Acousticness] + 0.01)
	row[EnergyDynamics] = row[Energy]
	row[DanceRhythm] = 0.6*row[Danceability] + 0.4*row[Tempo]
	row[EmotionalContent] = row[Valence]
	row[VocalPresence] = row[Speechiness] - 0.5*row[Instrumentalness]
	row[PerformanceStyle] = row[Liveness]

	return row, nil
}
