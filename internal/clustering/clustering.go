// Package clustering assigns projected feature vectors to the pre-trained
// k-means clusters and describes each cluster's mood.
package clustering

import (
	"errors"
	"fmt"
	"math"

	"github.com/muesli/clusters"

	"github.com/justestif/go-spotify-song-recommender/internal/model"
)

// ErrClusterPrediction is returned when a vector cannot be assigned to a cluster.
var ErrClusterPrediction = errors.New("cluster prediction failed")

// Assigner maps projected vectors to the label of the nearest centroid.
type Assigner struct {
	centers clusters.Clusters
	dim     int
}

// NewAssigner builds an Assigner from fitted k-means centers.
// The label of each center is its position in km.ClusterCenters.
func NewAssigner(km *model.KMeans) *Assigner {
	cs := make(clusters.Clusters, len(km.ClusterCenters))
	for i, c := range km.ClusterCenters {
		cs[i] = clusters.Cluster{Center: clusters.Coordinates(c)}
	}
	return &Assigner{centers: cs, dim: km.Dimension()}
}

// Assign returns the cluster label nearest to point.
func (a *Assigner) Assign(point []float64) (int, error) {
	if len(a.centers) == 0 {
		return 0, fmt.Errorf("%w: model has no centers", ErrClusterPrediction)
	}
	if len(point) != a.dim {
		return 0, fmt.Errorf("%w: got %d components, model expects %d", ErrClusterPrediction, len(point), a.dim)
	}
	for i, v := range point {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: component %d is not finite", ErrClusterPrediction, i)
		}
	}
	return a.centers.Nearest(clusters.Coordinates(point)), nil
}

// Len returns the number of clusters.
func (a *Assigner) Len() int {
	return len(a.centers)
}
