package web

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/justestif/go-spotify-song-recommender/internal/logger"
	"github.com/justestif/go-spotify-song-recommender/internal/recommend"
	"github.com/justestif/go-spotify-song-recommender/internal/similarity"
)

// FallbackNote is attached to responses produced by a fallback tier.
const FallbackNote = "Used fallback recommendation method"

// Popular example bounds.
const (
	defaultExamples = 3
	maxExamples     = 5
)

// User-facing error messages.
const (
	msgNoBody      = "No data provided"
	msgBadBody     = "Request body must be valid JSON and playlist_size must be a number"
	msgUnavailable = "Unable to generate recommendations. Please try again with a different song."
)

// Recommender is the engine surface the handlers need.
type Recommender interface {
	Recommend(ctx context.Context, songName, artistName string, count int) recommend.Result
	RecommendFromKnownTrack(ctx context.Context, trackID string, count int) recommend.Result
	CatalogSize() int
	Clusters() int
}

// Handlers contains HTTP handlers for the recommendation API.
type Handlers struct {
	rec          Recommender
	defaultCount int
	now          func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(rec Recommender, defaultCount int) *Handlers {
	if defaultCount <= 0 {
		defaultCount = recommend.DefaultCount
	}
	return &Handlers{
		rec:          rec,
		defaultCount: recommend.ClampCount(defaultCount),
		now:          time.Now,
	}
}

type searchQuery struct {
	SongName     string  `json:"song_name"`
	ArtistName   *string `json:"artist_name"`
	PlaylistSize int     `json:"playlist_size"`
}

type recommendResponse struct {
	Success         bool             `json:"success"`
	Recommendations []similarity.Row `json:"recommendations"`
	SearchQuery     *searchQuery     `json:"search_query,omitempty"`
	TrackID         string           `json:"track_id,omitempty"`
	Source          string           `json:"source"`
	ClusterMood     string           `json:"cluster_mood,omitempty"`
	Note            string           `json:"note,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type example struct {
	Song   string `json:"song"`
	Artist string `json:"artist"`
}

type examplesResponse struct {
	Success  bool      `json:"success"`
	Examples []example `json:"examples"`
}

type healthResponse struct {
	Status           string `json:"status"`
	ComponentsLoaded bool   `json:"components_loaded"`
	CatalogSize      int    `json:"catalog_size"`
	Clusters         int    `json:"clusters"`
	Timestamp        string `json:"timestamp"`
}

// Recommend handles POST /recommend.
func (h *Handlers) Recommend(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if r.Body == nil || r.ContentLength == 0 {
		writeError(w, http.StatusBadRequest, msgNoBody)
		return
	}

	var req recommendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		log.Debug("decoding recommend request", zap.Error(err))
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	req.normalize(h.defaultCount)
	if msg := validateRequest(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	res := h.rec.Recommend(r.Context(), req.SongName, req.ArtistName, *req.PlaylistSize)

	query := &searchQuery{SongName: req.SongName, PlaylistSize: *req.PlaylistSize}
	if req.ArtistName != "" {
		query.ArtistName = &req.ArtistName
	}
	resp := newRecommendResponse(res)
	resp.SearchQuery = query

	writeJSON(w, http.StatusOK, resp)
}

// TrackRecommendations handles GET /tracks/{trackID}/recommendations.
func (h *Handlers) TrackRecommendations(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")
	count := queryInt(r, "count", h.defaultCount)

	res := h.rec.RecommendFromKnownTrack(r.Context(), trackID, count)

	resp := newRecommendResponse(res)
	resp.TrackID = trackID
	writeJSON(w, http.StatusOK, resp)
}

// PopularExamples handles GET /api/popular-examples.
func (h *Handlers) PopularExamples(w http.ResponseWriter, r *http.Request) {
	count := min(max(queryInt(r, "count", defaultExamples), 1), maxExamples)

	picked := make([]example, 0, count)
	for _, i := range rand.Perm(len(popularSongs))[:count] {
		picked = append(picked, popularSongs[i])
	}

	writeJSON(w, http.StatusOK, examplesResponse{Success: true, Examples: picked})
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:           "healthy",
		ComponentsLoaded: true,
		CatalogSize:      h.rec.CatalogSize(),
		Clusters:         h.rec.Clusters(),
		Timestamp:        h.now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if resp.CatalogSize == 0 || resp.Clusters == 0 {
		resp.Status = "degraded"
		resp.ComponentsLoaded = false
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func newRecommendResponse(res recommend.Result) recommendResponse {
	resp := recommendResponse{
		Success:         true,
		Recommendations: res.Rows,
		Source:          string(res.Source),
		ClusterMood:     res.Mood,
	}
	if res.Fallback() {
		resp.Note = FallbackNote
	}
	return resp
}

// queryInt parses an integer query parameter, returning def when it is
// absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

var popularSongs = []example{
	{"Bohemian Rhapsody", "Queen"},
	{"Billie Jean", "Michael Jackson"},
	{"Hotel California", "Eagles"},
	{"Imagine", "John Lennon"},
	{"Sweet Child O' Mine", "Guns N' Roses"},
	{"Stairway to Heaven", "Led Zeppelin"},
	{"Smells Like Teen Spirit", "Nirvana"},
	{"Like a Rolling Stone", "Bob Dylan"},
	{"Purple Haze", "Jimi Hendrix"},
	{"Good Vibrations", "The Beach Boys"},
	{"Respect", "Aretha Franklin"},
	{"Hey Jude", "The Beatles"},
	{"What's Going On", "Marvin Gaye"},
	{"Waterloo Sunset", "The Kinks"},
	{"I Want to Hold Your Hand", "The Beatles"},
	{"Dancing Queen", "ABBA"},
	{"Superstition", "Stevie Wonder"},
	{"Blinding Lights", "The Weeknd"},
	{"Shape of You", "Ed Sheeran"},
	{"Uptown Funk", "Mark Ronson ft. Bruno Mars"},
	{"Rolling in the Deep", "Adele"},
	{"Someone Like You", "Adele"},
	{"Lose Yourself", "Eminem"},
	{"Crazy in Love", "Beyoncé"},
	{"Halo", "Beyoncé"},
	{"Umbrella", "Rihanna"},
	{"Single Ladies", "Beyoncé"},
	{"Bad Romance", "Lady Gaga"},
	{"Poker Face", "Lady Gaga"},
	{"Viva La Vida", "Coldplay"},
}
