// Package artifacts loads the pre-trained models and catalog snapshots the
// recommender serves from. A Store is built once at startup and never
// modified afterwards, so it can be shared by concurrent requests.
package artifacts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/justestif/go-spotify-song-recommender/internal/model"
)

// Artifact file names inside the models directory.
const (
	KMeansFile      = "kmeans_model.json"
	PCAFile         = "pca_transformer.json"
	ScalerFile      = "standard_scaler.json"
	TempoScalerFile = "minmax_scaler_tempo.json"
	ProjectedFile   = "df_pca.csv"
	CatalogFile     = "df_clean.csv"
	FeatureListFile = "top_features.txt"
)

// RequiredFiles lists every file Load reads.
var RequiredFiles = []string{
	KMeansFile,
	PCAFile,
	ScalerFile,
	TempoScalerFile,
	ProjectedFile,
	CatalogFile,
	FeatureListFile,
}

// Sentinel errors.
var (
	// ErrArtifactMissing is returned when a required artifact file does not exist.
	ErrArtifactMissing = errors.New("artifact missing")

	// ErrArtifactCorrupt is returned when an artifact cannot be decoded.
	ErrArtifactCorrupt = errors.New("artifact corrupt")
)

// Models groups the fitted transforms and the ordered feature list they expect.
type Models struct {
	Scaler      model.StandardScaler
	TempoScaler model.MinMaxScaler
	PCA         model.PCA
	KMeans      model.KMeans
	// TopFeatures is the exact column order the scaler was fit on.
	TopFeatures []string
}

// Store holds the immutable models and the aligned catalog tables.
type Store struct {
	models    Models
	projected *ProjectedTable
	catalog   *Catalog
}

// NewStore aligns the tables and wraps them with the models.
func NewStore(models Models, projected *ProjectedTable, catalog *Catalog) (*Store, error) {
	p, c, err := Align(projected, catalog)
	if err != nil {
		return nil, err
	}
	return &Store{models: models, projected: p, catalog: c}, nil
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	logger *zap.Logger
}

// WithLogger sets the logger used to report load progress.
func WithLogger(l *zap.Logger) Option {
	return func(o *loadOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Load reads all artifacts from dir and aligns the two tables.
// Every missing file is reported in one ErrArtifactMissing error.
func Load(dir string, opts ...Option) (*Store, error) {
	o := loadOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var missing []string
	for _, name := range RequiredFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				missing = append(missing, name)
				continue
			}
			return nil, fmt.Errorf("checking %s: %w", name, err)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrArtifactMissing, strings.Join(missing, ", "), dir)
	}

	var models Models
	if err := readJSON(dir, KMeansFile, &models.KMeans); err != nil {
		return nil, err
	}
	if err := readJSON(dir, PCAFile, &models.PCA); err != nil {
		return nil, err
	}
	if err := readJSON(dir, ScalerFile, &models.Scaler); err != nil {
		return nil, err
	}
	if err := readJSON(dir, TempoScalerFile, &models.TempoScaler); err != nil {
		return nil, err
	}

	top, err := readFile(dir, FeatureListFile, ReadFeatureList)
	if err != nil {
		return nil, err
	}
	models.TopFeatures = top

	projected, err := readFile(dir, ProjectedFile, ReadProjectedTable)
	if err != nil {
		return nil, err
	}
	catalog, err := readFile(dir, CatalogFile, ReadCatalog)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(models, projected, catalog)
	if err != nil {
		return nil, fmt.Errorf("aligning tables: %w", err)
	}

	o.logger.Info("artifacts loaded",
		zap.String("dir", dir),
		zap.Int("projected_rows", projected.Len()),
		zap.Int("catalog_rows", catalog.Len()),
		zap.Int("common_tracks", store.catalog.Len()),
		zap.Int("components", store.projected.Dim()),
		zap.Int("clusters", len(models.KMeans.ClusterCenters)),
	)

	return store, nil
}

type validator interface {
	Validate() error
}

func readJSON(dir, name string, v validator) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w: %w", name, ErrArtifactCorrupt, err)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("validating %s: %w: %w", name, ErrArtifactCorrupt, err)
	}
	return nil
}

func readFile[T any](dir, name string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return zero, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	v, err := parse(f)
	if err != nil {
		return zero, fmt.Errorf("parsing %s: %w: %w", name, ErrArtifactCorrupt, err)
	}
	return v, nil
}

// Models returns the fitted transforms. The result must not be modified.
func (s *Store) Models() *Models {
	return &s.models
}

// Projected returns the aligned projected-feature table.
func (s *Store) Projected() *ProjectedTable {
	return s.projected
}

// Catalog returns the aligned catalog.
func (s *Store) Catalog() *Catalog {
	return s.catalog
}
