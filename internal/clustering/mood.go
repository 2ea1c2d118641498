package clustering

import (
	"github.com/muesli/clusters"

	"github.com/justestif/go-spotify-song-recommender/internal/artifacts"
	"github.com/justestif/go-spotify-song-recommender/internal/features"
)

// Profile summarizes the catalog tracks of one cluster.
type Profile struct {
	Cluster  int
	Size     int                // Tracks labelled with this cluster
	Centroid map[string]float64 // Average raw feature values over tracks with audio data
	Mood     MoodCategory
}

// trackObservation wraps a catalog track to implement clusters.Observation.
type trackObservation struct {
	track  *artifacts.Track
	coords clusters.Coordinates
}

func (o trackObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o trackObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// moodFeatures defines the raw audio features used to describe a cluster.
var moodFeatures = []string{features.Energy, features.Valence, features.Danceability, features.Acousticness}

// Profiles describes every cluster present in the projected table using the
// raw audio attributes of its catalog tracks. Clusters whose tracks carry no
// audio data get an empty centroid and the default mood.
func Profiles(projected *artifacts.ProjectedTable, catalog *artifacts.Catalog) map[int]Profile {
	members := make(map[int]clusters.Observations)
	sizes := make(map[int]int)

	for i := 0; i < projected.Len(); i++ {
		row := projected.At(i)
		sizes[row.Cluster]++

		t, ok := catalog.Get(row.TrackID)
		if !ok || !hasMoodFeatures(&t) {
			continue
		}
		members[row.Cluster] = append(members[row.Cluster], trackObservation{
			track:  &t,
			coords: extractFeatures(&t),
		})
	}

	profiles := make(map[int]Profile, len(sizes))
	for label, size := range sizes {
		centroid := make(map[string]float64)
		if obs := members[label]; len(obs) > 0 {
			if center, err := obs.Center(); err == nil {
				for i, name := range moodFeatures {
					centroid[name] = center[i]
				}
			}
		}
		profiles[label] = Profile{
			Cluster:  label,
			Size:     size,
			Centroid: centroid,
			Mood:     GetMoodCategory(centroid),
		}
	}
	return profiles
}

// hasMoodFeatures checks if a track has the audio features used for mood naming.
func hasMoodFeatures(t *artifacts.Track) bool {
	for _, name := range moodFeatures {
		if _, ok := t.Audio[name]; !ok {
			return false
		}
	}
	return true
}

// extractFeatures extracts the mood features as a coordinate vector.
func extractFeatures(t *artifacts.Track) clusters.Coordinates {
	coords := make(clusters.Coordinates, len(moodFeatures))
	for i, name := range moodFeatures {
		coords[i] = t.Audio[name]
	}
	return coords
}
