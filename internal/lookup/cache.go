package lookup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/justestif/go-spotify-song-recommender/internal/features"
)

// Cache stores successful lookups keyed by song and artist.
type Cache interface {
	// Get returns (nil, false, nil) on a miss.
	Get(ctx context.Context, song, artist string) (*features.Observation, bool, error)
	Put(ctx context.Context, song, artist string, obs *features.Observation) error
}

// FileCache persists observations in a single JSON object keyed by Key.
type FileCache struct {
	path string

	mu      sync.Mutex
	entries map[string]*features.Observation
}

// NewFileCache creates a FileCache at path. The file is read on first use.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Path returns the file path where observations are stored.
func (c *FileCache) Path() string {
	return c.path
}

// Get implements Cache.
func (c *FileCache) Get(_ context.Context, song, artist string) (*features.Observation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(); err != nil {
		return nil, false, err
	}
	obs, ok := c.entries[Key(song, artist)]
	return obs, ok, nil
}

// Put implements Cache. The whole file is rewritten.
func (c *FileCache) Put(_ context.Context, song, artist string, obs *features.Observation) error {
	if obs == nil {
		return errors.New("cannot cache nil observation")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(); err != nil {
		return err
	}
	c.entries[Key(song, artist)] = obs

	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating cache directory: %w", err)
		}
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// load must be called with c.mu held.
func (c *FileCache) load() error {
	if c.entries != nil {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.entries = make(map[string]*features.Observation)
			return nil
		}
		return fmt.Errorf("reading cache file: %w", err)
	}

	entries := make(map[string]*features.Observation)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing cache file: %w", err)
	}
	c.entries = entries
	return nil
}

// cachedProvider consults a Cache before delegating to the next provider.
type cachedProvider struct {
	next   Provider
	cache  Cache
	logger *zap.Logger
}

// Cached wraps next so that cache hits skip the provider and successful
// lookups are stored. Cache failures are logged and otherwise ignored.
func Cached(next Provider, cache Cache, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedProvider{next: next, cache: cache, logger: logger}
}

func (p *cachedProvider) Lookup(ctx context.Context, song, artist string) (*features.Observation, error) {
	obs, ok, err := p.cache.Get(ctx, song, artist)
	switch {
	case err != nil:
		p.logger.Warn("lookup cache read failed", zap.String("key", Key(song, artist)), zap.Error(err))
	case ok:
		p.logger.Debug("lookup cache hit", zap.String("key", Key(song, artist)))
		return obs, nil
	}

	obs, err = p.next.Lookup(ctx, song, artist)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Put(ctx, song, artist, obs); err != nil {
		p.logger.Warn("lookup cache write failed", zap.String("key", Key(song, artist)), zap.Error(err))
	}
	return obs, nil
}
