// Package fallback produces recommendations when the seed track cannot be
// resolved or processed. Tiers are tried in a fixed order and the last one
// always answers.
package fallback

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/justestif/go-spotify-song-recommender/internal/artifacts"
	"github.com/justestif/go-spotify-song-recommender/internal/similarity"
)

// Tier identifies which fallback strategy produced a result.
type Tier string

const (
	TierCatalogMatch Tier = "catalog_match"
	TierRandomTrack  Tier = "random_track"
	TierRandomSample Tier = "random_sample"
	TierErrorPayload Tier = "error_payload"
)

// Placeholder text of the terminal tier.
const (
	ErrorTrackName  = "Error finding recommendations"
	ErrorArtistName = "Try another song"
)

var (
	errNoMatch       = errors.New("no catalog match")
	errNotProjected  = errors.New("matched track has no projected row")
	errNoCommonKeys  = errors.New("no tracks common to catalog and projected table")
	errEmptyCatalog  = errors.New("catalog is empty")
	errNoSimilarRows = errors.New("no similar tracks")
)

// Result is the outcome of a fallback resolution. Rows is never empty.
type Result struct {
	Rows []similarity.Row
	Tier Tier
	// SeedTrackID is the catalog track the rows were ranked against, if any.
	SeedTrackID string
}

// Searcher is the subset of similarity.Searcher used by the resolver.
type Searcher interface {
	ByTrack(trackID string, n int) ([]similarity.Row, error)
	Sample(n int) []similarity.Row
}

// Resolver walks the fallback tiers. It is safe for concurrent use.
type Resolver struct {
	catalog   *artifacts.Catalog
	projected *artifacts.ProjectedTable
	search    Searcher
	intN      func(int) int
	logger    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithIntN replaces the random source used to pick a seed track.
// intN(n) must return a value in [0, n).
func WithIntN(intN func(int) int) Option {
	return func(r *Resolver) {
		if intN != nil {
			r.intN = intN
		}
	}
}

// New creates a Resolver over the store's tables.
func New(store *artifacts.Store, search Searcher, opts ...Option) *Resolver {
	return NewFromTables(store.Projected(), store.Catalog(), search, opts...)
}

// NewFromTables creates a Resolver over tables that need not be aligned.
func NewFromTables(projected *artifacts.ProjectedTable, catalog *artifacts.Catalog, search Searcher, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:   catalog,
		projected: projected,
		search:    search,
		intN:      rand.IntN,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns up to n recommendations for the given text, starting
// from a catalog name match. It never panics and never returns empty rows.
func (r *Resolver) Resolve(songName, artistName string, n int) Result {
	return r.run(n, func(n int) (Result, error) {
		return r.catalogMatch(songName, artistName, n)
	})
}

// ResolveRandom is Resolve without the catalog match tier.
func (r *Resolver) ResolveRandom(n int) Result {
	return r.run(n, nil)
}

func (r *Resolver) run(n int, first func(int) (Result, error)) (res Result) {
	n = max(n, 1)

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("fallback resolution panicked", zap.Any("panic", p))
			res = ErrorPayload()
		}
	}()

	tiers := []func(int) (Result, error){r.randomTrack, r.randomSample}
	if first != nil {
		tiers = append([]func(int) (Result, error){first}, tiers...)
	}

	for _, tier := range tiers {
		out, err := tier(n)
		if err == nil && len(out.Rows) > 0 {
			return out
		}
		r.logger.Debug("fallback tier skipped", zap.Error(err))
	}
	return ErrorPayload()
}

// catalogMatch seeds the search with the first catalog track whose name
// contains songName, narrowed by artist when that leaves any candidates.
func (r *Resolver) catalogMatch(songName, artistName string, n int) (Result, error) {
	song := strings.ToLower(strings.TrimSpace(songName))
	if song == "" {
		return Result{}, fmt.Errorf("%s: %w", TierCatalogMatch, errNoMatch)
	}

	var matches []artifacts.Track
	for i := 0; i < r.catalog.Len(); i++ {
		t := r.catalog.At(i)
		if strings.Contains(strings.ToLower(t.Name), song) {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return Result{}, fmt.Errorf("%s: %w", TierCatalogMatch, errNoMatch)
	}

	artist := strings.ToLower(strings.TrimSpace(artistName))
	if len(matches) > 1 && artist != "" {
		var narrowed []artifacts.Track
		for _, t := range matches {
			if strings.Contains(strings.ToLower(t.Artist), artist) {
				narrowed = append(narrowed, t)
			}
		}
		if len(narrowed) > 0 {
			matches = narrowed
		}
	}

	seed := matches[0].ID
	if !r.projected.Has(seed) {
		return Result{}, fmt.Errorf("%s: %w: %q", TierCatalogMatch, errNotProjected, seed)
	}
	return r.seeded(TierCatalogMatch, seed, n)
}

// randomTrack seeds the search with a uniformly chosen common track.
func (r *Resolver) randomTrack(n int) (Result, error) {
	var common []string
	for _, id := range r.catalog.IDs() {
		if r.projected.Has(id) {
			common = append(common, id)
		}
	}
	if len(common) == 0 {
		return Result{}, fmt.Errorf("%s: %w", TierRandomTrack, errNoCommonKeys)
	}
	return r.seeded(TierRandomTrack, common[r.intN(len(common))], n)
}

func (r *Resolver) randomSample(n int) (Result, error) {
	rows := r.search.Sample(n)
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("%s: %w", TierRandomSample, errEmptyCatalog)
	}
	return Result{Rows: rows, Tier: TierRandomSample}, nil
}

func (r *Resolver) seeded(tier Tier, trackID string, n int) (Result, error) {
	rows, err := r.search.ByTrack(trackID, n)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", tier, err)
	}
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("%s: %w for %q", tier, errNoSimilarRows, trackID)
	}
	return Result{Rows: rows, Tier: tier, SeedTrackID: trackID}, nil
}

// ErrorPayload returns the terminal single-row placeholder result.
func ErrorPayload() Result {
	return Result{
		Rows: []similarity.Row{{
			TrackName:  ErrorTrackName,
			ArtistName: ErrorArtistName,
			Genre:      "",
			Popularity: 0,
		}},
		Tier: TierErrorPayload,
	}
}
