// Package model holds the pre-trained, immutable transforms used by the
// recommendation pipeline: feature scalers, the PCA reducer and the k-means
// centroids. They are fit offline and only applied here.
package model

import (
	"errors"
	"fmt"
)

// ErrShape is returned when an input vector does not match the width a
// transform was fit on.
var ErrShape = errors.New("input shape mismatch")

// StandardScaler standardizes features as (x - mean) / scale.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Validate checks that the fitted parameters are internally consistent.
func (s *StandardScaler) Validate() error {
	if len(s.Mean) == 0 {
		return errors.New("standard scaler has no features")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("standard scaler mean has %d values, scale has %d", len(s.Mean), len(s.Scale))
	}
	return nil
}

// Width returns the number of features the scaler was fit on.
func (s *StandardScaler) Width() int {
	return len(s.Mean)
}

// Transform standardizes x into a new slice.
// A zero scale leaves the centered value unscaled, matching how the scaler
// treats constant features at fit time.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("standard scaler: got %d features, want %d: %w", len(x), len(s.Mean), ErrShape)
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

// MinMaxScaler maps features into a fixed range as x*scale + min.
type MinMaxScaler struct {
	Min   []float64 `json:"min"`
	Scale []float64 `json:"scale"`
}

// Validate checks that the fitted parameters are internally consistent.
func (s *MinMaxScaler) Validate() error {
	if len(s.Min) == 0 {
		return errors.New("min-max scaler has no features")
	}
	if len(s.Min) != len(s.Scale) {
		return fmt.Errorf("min-max scaler min has %d values, scale has %d", len(s.Min), len(s.Scale))
	}
	return nil
}

// Transform scales x into a new slice.
func (s *MinMaxScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Min) {
		return nil, fmt.Errorf("min-max scaler: got %d features, want %d: %w", len(x), len(s.Min), ErrShape)
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v*s.Scale[i] + s.Min[i]
	}
	return out, nil
}

// PCA projects centered features onto the fitted principal axes.
type PCA struct {
	NComponents int         `json:"n_components"`
	Mean        []float64   `json:"mean"`
	Components  [][]float64 `json:"components"` // NComponents rows of len(Mean)
}

// Validate checks that the fitted parameters are internally consistent.
func (p *PCA) Validate() error {
	if p.NComponents <= 0 {
		return fmt.Errorf("pca n_components must be positive, got %d", p.NComponents)
	}
	if len(p.Components) != p.NComponents {
		return fmt.Errorf("pca has %d components, n_components is %d", len(p.Components), p.NComponents)
	}
	for i, c := range p.Components {
		if len(c) != len(p.Mean) {
			return fmt.Errorf("pca component %d has %d weights, mean has %d", i, len(c), len(p.Mean))
		}
	}
	return nil
}

// Transform returns the NComponents coordinates of x in the reduced space.
func (p *PCA) Transform(x []float64) ([]float64, error) {
	if len(x) != len(p.Mean) {
		return nil, fmt.Errorf("pca: got %d features, want %d: %w", len(x), len(p.Mean), ErrShape)
	}
	out := make([]float64, p.NComponents)
	for i, axis := range p.Components {
		var sum float64
		for j, w := range axis {
			sum += (x[j] - p.Mean[j]) * w
		}
		out[i] = sum
	}
	return out, nil
}

// KMeans holds fitted cluster centers; the label of a center is its index.
type KMeans struct {
	ClusterCenters [][]float64 `json:"cluster_centers"`
}

// Validate checks that the centers are non-empty and share one dimension.
func (k *KMeans) Validate() error {
	if len(k.ClusterCenters) == 0 {
		return errors.New("kmeans has no cluster centers")
	}
	dim := len(k.ClusterCenters[0])
	if dim == 0 {
		return errors.New("kmeans cluster centers are empty")
	}
	for i, c := range k.ClusterCenters {
		if len(c) != dim {
			return fmt.Errorf("kmeans center %d has dimension %d, want %d", i, len(c), dim)
		}
	}
	return nil
}

// Dimension returns the width of the cluster centers.
func (k *KMeans) Dimension() int {
	if len(k.ClusterCenters) == 0 {
		return 0
	}
	return len(k.ClusterCenters[0])
}
