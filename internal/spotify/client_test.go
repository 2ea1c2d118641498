package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-spotify-song-recommender/internal/features"
	"github.com/justestif/go-spotify-song-recommender/internal/lookup"
)

const searchHit = `{"tracks":{"href":"","limit":1,"offset":0,"total":1,"items":[
	{"id":"abc123","name":"Bohemian Rhapsody","artists":[{"name":"Queen"}]}
]}}`

const searchMiss = `{"tracks":{"href":"","limit":1,"offset":0,"total":0,"items":[]}}`

const audioFeaturesBody = `{"audio_features":[{
	"id":"abc123","danceability":0.4,"energy":0.6,"key":0,"loudness":-9.5,"mode":1,
	"speechiness":0.05,"acousticness":0.3,"instrumentalness":0.0,"liveness":0.2,
	"valence":0.22,"tempo":144.0
}]}`

// fakeAPI serves the search and audio-features endpoints.
type fakeAPI struct {
	searches       atomic.Int32
	featureCalls   atomic.Int32
	failFirst      int32 // respond 429 to this many initial searches
	missWithArtist bool  // queries containing "artist:" find nothing
	noFeatures     bool
	queries        []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/search"):
		n := f.searches.Add(1)
		q := r.URL.Query().Get("q")
		f.queries = append(f.queries, q)
		if n <= f.failFirst {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"status":429,"message":"rate limited"}}`)
			return
		}
		if f.missWithArtist && strings.Contains(q, "artist:") {
			fmt.Fprint(w, searchMiss)
			return
		}
		if strings.Contains(q, "nothing") {
			fmt.Fprint(w, searchMiss)
			return
		}
		fmt.Fprint(w, searchHit)
	case strings.HasSuffix(r.URL.Path, "/audio-features"):
		f.featureCalls.Add(1)
		if f.noFeatures {
			fmt.Fprint(w, `{"audio_features":[]}`)
			return
		}
		fmt.Fprint(w, audioFeaturesBody)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	retry := lookup.DefaultRetryPolicy()
	retry.Sleep = func(context.Context, time.Duration) error { return nil }

	return New(
		spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/")),
		WithRequestPause(0),
		WithRetryPolicy(retry),
	)
}

func TestLookup(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	obs, err := c.Lookup(context.Background(), "Bohemian Rhapsody", "Queen")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	if obs.Name != "Bohemian Rhapsody" || obs.Artist != "Queen" {
		t.Errorf("got %q by %q", obs.Name, obs.Artist)
	}
	for _, name := range features.RawNames {
		if _, ok := obs.Values[name]; !ok {
			t.Errorf("observation is missing %q", name)
		}
	}
	if obs.Values[features.Tempo] != 144 {
		t.Errorf("tempo = %v, want 144", obs.Values[features.Tempo])
	}
	if api.queries[0] != "track:Bohemian Rhapsody artist:Queen" {
		t.Errorf("query = %q", api.queries[0])
	}
}

func TestLookupRetriesWithoutArtist(t *testing.T) {
	api := &fakeAPI{missWithArtist: true}
	c := newTestClient(t, api)

	if _, err := c.Lookup(context.Background(), "Bohemian Rhapsody", "Wrong Band"); err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(api.queries) != 2 || api.queries[1] != "track:Bohemian Rhapsody" {
		t.Errorf("queries = %q", api.queries)
	}
}

func TestLookupNotFound(t *testing.T) {
	tests := []struct {
		name string
		song string
		api  *fakeAPI
	}{
		{"no search hit", "nothing here", &fakeAPI{}},
		{"empty song", "   ", &fakeAPI{}},
		{"no audio features", "Bohemian Rhapsody", &fakeAPI{noFeatures: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(t, tt.api).Lookup(context.Background(), tt.song, "")
			if !errors.Is(err, lookup.ErrSeedNotFound) {
				t.Errorf("Lookup() error = %v, want ErrSeedNotFound", err)
			}
		})
	}
}

func TestLookupRetriesRateLimit(t *testing.T) {
	api := &fakeAPI{failFirst: 2}
	c := newTestClient(t, api)

	if _, err := c.Lookup(context.Background(), "Bohemian Rhapsody", ""); err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got := api.searches.Load(); got != 3 {
		t.Errorf("searches = %d, want 3", got)
	}
}

func TestLookupGivesUpAfterRetries(t *testing.T) {
	api := &fakeAPI{failFirst: 10}
	c := newTestClient(t, api)

	_, err := c.Lookup(context.Background(), "Bohemian Rhapsody", "")
	if err == nil {
		t.Fatal("Lookup() should fail")
	}
	if errors.Is(err, lookup.ErrSeedNotFound) {
		t.Error("exhausted retries should not look like a missing seed")
	}
	if got := api.searches.Load(); got != lookup.DefaultMaxAttempts {
		t.Errorf("searches = %d, want %d", got, lookup.DefaultMaxAttempts)
	}
	if api.featureCalls.Load() != 0 {
		t.Error("audio features should not be fetched")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", spotify.Error{Status: http.StatusTooManyRequests}, true},
		{"server error", spotify.Error{Status: http.StatusBadGateway}, true},
		{"bad request", spotify.Error{Status: http.StatusBadRequest}, false},
		{"unauthorized", fmt.Errorf("wrapped: %w", spotify.Error{Status: http.StatusUnauthorized}), false},
		{"transport", errors.New("connection reset"), true},
		{"cancelled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchQuery(t *testing.T) {
	tests := []struct {
		song, artist, want string
	}{
		{"Yesterday", "The Beatles", "track:Yesterday artist:The Beatles"},
		{"Yesterday", "", "track:Yesterday"},
	}
	for _, tt := range tests {
		if got := searchQuery(tt.song, tt.artist); got != tt.want {
			t.Errorf("searchQuery(%q, %q) = %q, want %q", tt.song, tt.artist, got, tt.want)
		}
	}
}

func TestNewWithCredentialsRequiresBoth(t *testing.T) {
	if _, err := NewWithCredentials(context.Background(), "id", ""); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("error = %v, want ErrMissingCredentials", err)
	}
	if _, err := NewWithCredentials(context.Background(), "id", "secret"); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
