// Package recommend is the entry point of the recommendation pipeline:
// seed lookup, feature engineering, projection, cluster assignment and
// similarity search, with the fallback resolver behind every stage.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/go-spotify-song-recommender/internal/artifacts"
	"github.com/justestif/go-spotify-song-recommender/internal/clustering"
	"github.com/justestif/go-spotify-song-recommender/internal/fallback"
	"github.com/justestif/go-spotify-song-recommender/internal/features"
	"github.com/justestif/go-spotify-song-recommender/internal/lookup"
	"github.com/justestif/go-spotify-song-recommender/internal/projection"
	"github.com/justestif/go-spotify-song-recommender/internal/similarity"
)

// Result count bounds.
const (
	MinCount     = 1
	MaxCount     = 20
	DefaultCount = 5
)

// DefaultLookupTimeout bounds a single seed lookup.
const DefaultLookupTimeout = 10 * time.Second

// Source identifies the stage that produced a result.
type Source string

const (
	SourceClusterSearch Source = "cluster_search"
	SourceKnownTrack    Source = "known_track"
	SourceCatalogMatch  Source = Source(fallback.TierCatalogMatch)
	SourceRandomTrack   Source = Source(fallback.TierRandomTrack)
	SourceRandomSample  Source = Source(fallback.TierRandomSample)
	SourceErrorPayload  Source = Source(fallback.TierErrorPayload)
)

// NoCluster is the Cluster value of results not ranked within a cluster.
const NoCluster = -1

// Pipeline states, logged as the request advances.
const (
	stateSeedResolution = "seed_resolution"
	stateFeaturePipe    = "feature_pipeline"
	stateClusterSearch  = "cluster_search"
	stateDone           = "done"
	stateFallback       = "fallback"
)

// Lookup outcomes reported to the observer.
const (
	lookupFound    = "found"
	lookupNotFound = "not_found"
	lookupError    = "error"
)

// Result is a recommendation set. Rows always holds between 1 and the
// requested count entries.
type Result struct {
	Rows    []similarity.Row
	Source  Source
	Cluster int
	// Mood describes Cluster; empty when Cluster is NoCluster.
	Mood string
}

// Fallback reports whether a fallback tier produced the rows.
func (r Result) Fallback() bool {
	return r.Source != SourceClusterSearch && r.Source != SourceKnownTrack
}

// Observer receives pipeline events, typically for metrics.
type Observer interface {
	ObserveRecommendation(source string)
	ObserveLookup(result string)
}

type nopObserver struct{}

func (nopObserver) ObserveRecommendation(string) {}
func (nopObserver) ObserveLookup(string)         {}

type options struct {
	logger        *zap.Logger
	observer      Observer
	lookupTimeout time.Duration
	intN          func(int) int
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver sets the pipeline event observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLookupTimeout bounds each seed lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lookupTimeout = d
		}
	}
}

// WithIntN replaces the random source of the search and fallback stages.
func WithIntN(intN func(int) int) Option {
	return func(o *options) {
		o.intN = intN
	}
}

// Engine answers recommendation requests over an immutable artifact store.
// It is safe for concurrent use.
type Engine struct {
	store     *artifacts.Store
	provider  lookup.Provider
	projector *projection.Projector
	assigner  *clustering.Assigner
	search    *similarity.Searcher
	fallback  *fallback.Resolver
	profiles  map[int]clustering.Profile

	lookupTimeout time.Duration
	observer      Observer
	logger        *zap.Logger
}

// New wires the pipeline stages over store. A nil provider behaves like
// lookup.Disabled.
func New(store *artifacts.Store, provider lookup.Provider, opts ...Option) *Engine {
	o := options{
		logger:        zap.NewNop(),
		observer:      nopObserver{},
		lookupTimeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if provider == nil {
		provider = lookup.Disabled{}
	}

	m := store.Models()
	if d := store.Projected().Dim(); d != m.PCA.NComponents {
		o.logger.Warn("projected table width differs from pca components, similarity ranking will be random",
			zap.Int("table_components", d),
			zap.Int("pca_components", m.PCA.NComponents),
		)
	}
	search := similarity.New(store,
		similarity.WithLogger(o.logger.Named("similarity")),
		similarity.WithIntN(o.intN),
	)

	return &Engine{
		store:    store,
		provider: provider,
		projector: projection.New(&m.Scaler, &m.TempoScaler, &m.PCA, m.TopFeatures,
			projection.WithLogger(o.logger.Named("projection")),
		),
		assigner: clustering.NewAssigner(&m.KMeans),
		search:   search,
		fallback: fallback.New(store, search,
			fallback.WithLogger(o.logger.Named("fallback")),
			fallback.WithIntN(o.intN),
		),
		profiles:      clustering.Profiles(store.Projected(), store.Catalog()),
		lookupTimeout: o.lookupTimeout,
		observer:      o.observer,
		logger:        o.logger,
	}
}

// Profiles returns the mood profile of every cluster.
func (e *Engine) Profiles() map[int]clustering.Profile {
	return e.profiles
}

// CatalogSize returns the number of aligned catalog tracks.
func (e *Engine) CatalogSize() int {
	return e.store.Catalog().Len()
}

// Clusters returns the number of clusters in the fitted model.
func (e *Engine) Clusters() int {
	return e.assigner.Len()
}

// Recommend returns up to count tracks similar to the named song.
// It never fails: any stage error demotes the request to the fallback
// resolver with the caller's song and artist text.
func (e *Engine) Recommend(ctx context.Context, songName, artistName string, count int) (res Result) {
	count = ClampCount(count)
	log := e.logger.With(zap.String("song", songName), zap.String("artist", artistName))

	defer func() {
		if p := recover(); p != nil {
			log.Error("recommendation panicked", zap.Any("panic", p))
			res = fromFallback(fallback.ErrorPayload())
		}
		e.observer.ObserveRecommendation(string(res.Source))
	}()

	log.Debug("pipeline state", zap.String("state", stateSeedResolution))
	obs, err := e.resolveSeed(ctx, songName, artistName)
	if err != nil {
		return e.demote(log, stateSeedResolution, err, songName, artistName, count)
	}

	log.Debug("pipeline state", zap.String("state", stateFeaturePipe))
	point, err := e.featurePipeline(obs)
	if err != nil {
		return e.demote(log, stateFeaturePipe, err, songName, artistName, count)
	}

	log.Debug("pipeline state", zap.String("state", stateClusterSearch))
	label, err := e.assigner.Assign(point)
	if err != nil {
		return e.demote(log, stateClusterSearch, err, songName, artistName, count)
	}
	rows := e.search.ByVector(point, label, count)
	if len(rows) == 0 {
		err := fmt.Errorf("cluster %d has no searchable tracks", label)
		return e.demote(log, stateClusterSearch, err, songName, artistName, count)
	}

	log.Debug("pipeline state", zap.String("state", stateDone), zap.Int("cluster", label), zap.Int("rows", len(rows)))
	return Result{
		Rows:    rows,
		Source:  SourceClusterSearch,
		Cluster: label,
		Mood:    e.moodOf(label),
	}
}

// RecommendFromKnownTrack returns up to count tracks similar to a catalog
// track. Unknown IDs and empty clusters fall back to the random tiers.
func (e *Engine) RecommendFromKnownTrack(ctx context.Context, trackID string, count int) (res Result) {
	count = ClampCount(count)
	log := e.logger.With(zap.String("track_id", trackID))

	defer func() {
		if p := recover(); p != nil {
			log.Error("recommendation panicked", zap.Any("panic", p))
			res = fromFallback(fallback.ErrorPayload())
		}
		e.observer.ObserveRecommendation(string(res.Source))
	}()

	rows, err := e.search.ByTrack(trackID, count)
	if err == nil && len(rows) == 0 {
		err = errors.New("no similar tracks in cluster")
	}
	if err != nil {
		log.Debug("known track search failed, using random fallback", zap.Error(err))
		return fromFallback(e.fallback.ResolveRandom(count))
	}

	row, _ := e.store.Projected().Get(trackID)
	return Result{
		Rows:    rows,
		Source:  SourceKnownTrack,
		Cluster: row.Cluster,
		Mood:    e.moodOf(row.Cluster),
	}
}

// resolveSeed runs the lookup under the engine's timeout.
func (e *Engine) resolveSeed(ctx context.Context, songName, artistName string) (*features.Observation, error) {
	if strings.TrimSpace(songName) == "" {
		e.observer.ObserveLookup(lookupNotFound)
		return nil, fmt.Errorf("%w: empty song name", lookup.ErrSeedNotFound)
	}

	lctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	obs, err := e.provider.Lookup(lctx, songName, artistName)
	switch {
	case errors.Is(err, lookup.ErrSeedNotFound):
		e.observer.ObserveLookup(lookupNotFound)
		return nil, err
	case err != nil:
		e.observer.ObserveLookup(lookupError)
		return nil, fmt.Errorf("looking up seed: %w", err)
	case obs == nil:
		e.observer.ObserveLookup(lookupNotFound)
		return nil, fmt.Errorf("%w: provider returned no observation", lookup.ErrSeedNotFound)
	}
	e.observer.ObserveLookup(lookupFound)
	return obs, nil
}

func (e *Engine) featurePipeline(obs *features.Observation) ([]float64, error) {
	row, err := features.Engineer(*obs)
	if err != nil {
		return nil, err
	}
	return e.projector.Project(row)
}

// demote logs the failed stage and hands the request to the fallback resolver.
func (e *Engine) demote(log *zap.Logger, state string, err error, songName, artistName string, count int) Result {
	fields := []zap.Field{zap.String("state", state), zap.Error(err)}
	if errors.Is(err, lookup.ErrSeedNotFound) {
		log.Debug("seed not resolved, using fallback", fields...)
	} else {
		log.Warn("pipeline stage failed, using fallback", fields...)
	}

	res := e.fallback.Resolve(songName, artistName, count)
	log.Debug("pipeline state", zap.String("state", stateFallback), zap.String("tier", string(res.Tier)))
	return fromFallback(res)
}

func (e *Engine) moodOf(cluster int) string {
	if p, ok := e.profiles[cluster]; ok {
		return p.Mood.Name
	}
	return ""
}

func fromFallback(r fallback.Result) Result {
	return Result{
		Rows:    r.Rows,
		Source:  Source(r.Tier),
		Cluster: NoCluster,
	}
}

// ClampCount bounds a requested result count to [MinCount, MaxCount].
func ClampCount(n int) int {
	return min(max(n, MinCount), MaxCount)
}
