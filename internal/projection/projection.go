// Package projection maps an engineered feature row into the reduced
// coordinate space the clustering model was fit on.
package projection

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/justestif/go-spotify-song-recommender/internal/features"
	"github.com/justestif/go-spotify-song-recommender/internal/model"
)

// ErrPreprocessing is returned when a fitted transform rejects the input.
var ErrPreprocessing = errors.New("preprocessing failed")

// rawTempoThreshold separates raw BPM values from tempos already scaled
// into [0, 1]. Real tempos are always far above 1 BPM.
const rawTempoThreshold = 1.0

// Projector applies tempo normalization, feature selection, standard
// scaling and PCA, in that order. It holds no mutable state.
type Projector struct {
	scaler      *model.StandardScaler
	tempo       *model.MinMaxScaler
	pca         *model.PCA
	topFeatures []string
	logger      *zap.Logger
}

// Option configures a Projector.
type Option func(*Projector)

// WithLogger sets the logger used for schema-drift warnings.
func WithLogger(l *zap.Logger) Option {
	return func(p *Projector) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Projector. topFeatures must be in the exact order the
// scaler was fit on.
func New(scaler *model.StandardScaler, tempo *model.MinMaxScaler, pca *model.PCA, topFeatures []string, opts ...Option) *Projector {
	p := &Projector{
		scaler:      scaler,
		tempo:       tempo,
		pca:         pca,
		topFeatures: topFeatures,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Components returns the width of projected vectors.
func (p *Projector) Components() int {
	return p.pca.NComponents
}

// Project returns the PCA coordinates of row. The row is not modified.
func (p *Projector) Project(row features.Row) ([]float64, error) {
	tempo, hasTempo := row[features.Tempo]
	if hasTempo && tempo > rawTempoThreshold {
		scaled, err := p.tempo.Transform([]float64{tempo})
		if err != nil {
			return nil, fmt.Errorf("scaling tempo: %w: %w", ErrPreprocessing, err)
		}
		tempo = scaled[0]
	}

	selected := make([]float64, len(p.topFeatures))
	for i, name := range p.topFeatures {
		if name == features.Tempo && hasTempo {
			selected[i] = tempo
			continue
		}
		v, ok := row[name]
		if !ok {
			p.logger.Warn("feature not found, using default value 0", zap.String("feature", name))
			continue
		}
		selected[i] = v
	}

	scaled, err := p.scaler.Transform(selected)
	if err != nil {
		return nil, fmt.Errorf("standard scaling: %w: %w", ErrPreprocessing, err)
	}

	projected, err := p.pca.Transform(scaled)
	if err != nil {
		return nil, fmt.Errorf("pca: %w: %w", ErrPreprocessing, err)
	}

	return projected, nil
}
