// Package similarity ranks same-cluster catalog tracks by closeness to a
// query vector or to a reference track.
package similarity

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/muesli/clusters"
	"go.uber.org/zap"

	"github.com/justestif/go-spotify-song-recommender/internal/artifacts"
)

// Display defaults for missing catalog metadata.
const (
	DefaultTrackName  = "Unknown Track"
	DefaultArtistName = "Unknown Artist"
	DefaultGenre      = ""
)

// Sentinels substituted for non-finite distance and similarity values.
const (
	MaxDistance   = math.MaxFloat64
	MinDistance   = 0.0
	MinSimilarity = 0.0
	MaxSimilarity = 1.0
)

// ErrTrackNotFound is returned by ByTrack when the reference track has no
// projected row.
var ErrTrackNotFound = errors.New("track not found")

var errDimension = errors.New("dimension mismatch")

// Row is one recommendation as shown to users.
type Row struct {
	TrackName  string  `json:"track_name"`
	ArtistName string  `json:"artist_name"`
	Genre      string  `json:"genre"`
	Popularity float64 `json:"popularity"`
}

// Searcher ranks tracks over an immutable projected table and catalog.
// It is safe for concurrent use.
type Searcher struct {
	projected *artifacts.ProjectedTable
	catalog   *artifacts.Catalog
	intN      func(int) int
	logger    *zap.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIntN replaces the random source used for degraded ordering and sampling.
// intN(n) must return a value in [0, n).
func WithIntN(intN func(int) int) Option {
	return func(s *Searcher) {
		if intN != nil {
			s.intN = intN
		}
	}
}

// New creates a Searcher over the store's aligned tables.
func New(store *artifacts.Store, opts ...Option) *Searcher {
	return NewFromTables(store.Projected(), store.Catalog(), opts...)
}

// NewFromTables creates a Searcher over tables that need not be aligned.
func NewFromTables(projected *artifacts.ProjectedTable, catalog *artifacts.Catalog, opts ...Option) *Searcher {
	s := &Searcher{
		projected: projected,
		catalog:   catalog,
		intN:      rand.IntN,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ByVector returns up to n members of cluster ordered by ascending Euclidean
// distance to query. Members without catalog metadata are shown with the
// display defaults.
func (s *Searcher) ByVector(query []float64, cluster, n int) []Row {
	if n <= 0 {
		return nil
	}
	members := s.projected.InCluster(cluster)

	scores, err := distances(query, members)
	var order []int
	if err != nil {
		s.logger.Warn("distance computation failed, using random order",
			zap.Int("cluster", cluster),
			zap.Error(err),
		)
		order = s.permutation(len(members))
	} else {
		order = rankAscending(scores)
	}

	rows := make([]Row, 0, min(n, len(order)))
	for _, i := range order {
		if len(rows) == n {
			break
		}
		t, _ := s.catalog.Get(members[i].TrackID)
		rows = append(rows, toRow(t))
	}

	if len(rows) < n {
		s.logger.Info("cluster has fewer members than requested",
			zap.Int("cluster", cluster),
			zap.Int("requested", n),
			zap.Int("returned", len(rows)),
		)
	}
	return rows
}

// ByTrack returns up to n tracks from the reference track's cluster ordered
// by descending cosine similarity. The reference track and candidates
// without catalog metadata are never returned.
func (s *Searcher) ByTrack(trackID string, n int) ([]Row, error) {
	ref, ok := s.projected.Get(trackID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, trackID)
	}
	if n <= 0 {
		return nil, nil
	}

	var candidates []artifacts.ProjectedRow
	for _, r := range s.projected.InCluster(ref.Cluster) {
		if r.TrackID != trackID {
			candidates = append(candidates, r)
		}
	}

	scores, err := similarities(ref.Components, candidates)
	var order []int
	if err != nil {
		s.logger.Warn("similarity computation failed, using random order",
			zap.String("track_id", trackID),
			zap.Error(err),
		)
		order = s.permutation(len(candidates))
	} else {
		order = rankDescending(scores)
	}

	rows := make([]Row, 0, min(n, len(order)))
	for _, i := range order {
		if len(rows) == n {
			break
		}
		t, ok := s.catalog.Get(candidates[i].TrackID)
		if !ok {
			continue
		}
		rows = append(rows, toRow(t))
	}

	if len(rows) < n {
		s.logger.Info("fewer similar tracks than requested",
			zap.String("track_id", trackID),
			zap.Int("requested", n),
			zap.Int("returned", len(rows)),
		)
	}
	return rows, nil
}

// Sample returns up to n distinct catalog tracks chosen uniformly at random.
func (s *Searcher) Sample(n int) []Row {
	if n <= 0 {
		return nil
	}
	order := s.permutation(s.catalog.Len())
	rows := make([]Row, 0, min(n, len(order)))
	for _, i := range order[:min(n, len(order))] {
		rows = append(rows, toRow(s.catalog.At(i)))
	}
	return rows
}

// permutation returns a uniformly shuffled slice of 0..n-1.
func (s *Searcher) permutation(n int) []int {
	p := indices(n)
	for i := n - 1; i > 0; i-- {
		j := s.intN(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// distances computes the Euclidean distance from query to each row.
func distances(query []float64, rows []artifacts.ProjectedRow) ([]float64, error) {
	q := clusters.Coordinates(query)
	out := make([]float64, len(rows))
	for i, r := range rows {
		if len(r.Components) != len(query) {
			return nil, fmt.Errorf("%w: row %q has %d components, query has %d",
				errDimension, r.TrackID, len(r.Components), len(query))
		}
		// Coordinates.Distance is the squared Euclidean distance.
		out[i] = sanitizeDistance(math.Sqrt(q.Distance(clusters.Coordinates(r.Components))))
	}
	return out, nil
}

// similarities computes the cosine similarity between ref and each row.
func similarities(ref []float64, rows []artifacts.ProjectedRow) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, r := range rows {
		if len(r.Components) != len(ref) {
			return nil, fmt.Errorf("%w: row %q has %d components, reference has %d",
				errDimension, r.TrackID, len(r.Components), len(ref))
		}
		out[i] = sanitizeSimilarity(cosine(ref, r.Components))
	}
	return out, nil
}

// cosine returns NaN when either vector has zero norm.
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func sanitizeDistance(d float64) float64 {
	switch {
	case math.IsNaN(d), math.IsInf(d, 1):
		return MaxDistance
	case math.IsInf(d, -1):
		return MinDistance
	}
	return d
}

func sanitizeSimilarity(v float64) float64 {
	switch {
	case math.IsNaN(v), math.IsInf(v, 1):
		return MinSimilarity
	case math.IsInf(v, -1):
		return MaxSimilarity
	}
	return v
}

func rankAscending(scores []float64) []int {
	order := indices(len(scores))
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scores[a], scores[b])
	})
	return order
}

func rankDescending(scores []float64) []int {
	order := indices(len(scores))
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})
	return order
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// toRow coerces a catalog track into the display contract.
func toRow(t artifacts.Track) Row {
	r := Row{
		TrackName:  t.Name,
		ArtistName: t.Artist,
		Genre:      t.Genre,
		Popularity: t.Popularity,
	}
	if r.TrackName == "" {
		r.TrackName = DefaultTrackName
	}
	if r.ArtistName == "" {
		r.ArtistName = DefaultArtistName
	}
	if math.IsNaN(r.Popularity) || math.IsInf(r.Popularity, 0) {
		r.Popularity = 0
	}
	return r
}
