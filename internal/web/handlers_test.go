package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/justestif/go-spotify-song-recommender/internal/recommend"
	"github.com/justestif/go-spotify-song-recommender/internal/similarity"
)

type fakeRecommender struct {
	result      recommend.Result
	gotSong     string
	gotArtist   string
	gotCount    int
	gotTrackID  string
	catalogSize int
	clusters    int
}

func (f *fakeRecommender) Recommend(_ context.Context, song, artist string, count int) recommend.Result {
	f.gotSong, f.gotArtist, f.gotCount = song, artist, count
	return f.result
}

func (f *fakeRecommender) RecommendFromKnownTrack(_ context.Context, id string, count int) recommend.Result {
	f.gotTrackID, f.gotCount = id, count
	return f.result
}

func (f *fakeRecommender) CatalogSize() int { return f.catalogSize }
func (f *fakeRecommender) Clusters() int    { return f.clusters }

func clusterResult() recommend.Result {
	return recommend.Result{
		Rows: []similarity.Row{
			{TrackName: "Love Song", ArtistName: "Sara Bareilles", Genre: "pop", Popularity: 70},
		},
		Source:  recommend.SourceClusterSearch,
		Cluster: 0,
		Mood:    "Upbeat Party",
	}
}

func newTestServer(rec Recommender) *Server {
	return NewServer(ServerConfig{DefaultCount: 5}, rec, nil)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRecommendHandler(t *testing.T) {
	rec := &fakeRecommender{result: clusterResult()}
	s := newTestServer(rec)

	resp := do(t, s, http.MethodPost, "/recommend", `{"song_name":"  Love Story ","artist_name":"Taylor Swift","playlist_size":3}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	if rec.gotSong != "Love Story" || rec.gotArtist != "Taylor Swift" || rec.gotCount != 3 {
		t.Errorf("Recommend called with %q, %q, %d", rec.gotSong, rec.gotArtist, rec.gotCount)
	}

	body := decode(t, resp)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["source"] != string(recommend.SourceClusterSearch) {
		t.Errorf("source = %v", body["source"])
	}
	if body["cluster_mood"] != "Upbeat Party" {
		t.Errorf("cluster_mood = %v", body["cluster_mood"])
	}
	if _, ok := body["note"]; ok {
		t.Error("note should be omitted for cluster search")
	}
	recs, ok := body["recommendations"].([]any)
	if !ok || len(recs) != 1 {
		t.Fatalf("recommendations = %v", body["recommendations"])
	}
	row := recs[0].(map[string]any)
	if row["track_name"] != "Love Song" || row["popularity"] != float64(70) {
		t.Errorf("row = %v", row)
	}
	query := body["search_query"].(map[string]any)
	if query["song_name"] != "Love Story" || query["playlist_size"] != float64(3) {
		t.Errorf("search_query = %v", query)
	}
}

func TestRecommendHandlerDefaultsAndFallback(t *testing.T) {
	rec := &fakeRecommender{result: recommend.Result{
		Rows:    []similarity.Row{{TrackName: "Lovely", ArtistName: "Billie Eilish"}},
		Source:  recommend.SourceRandomTrack,
		Cluster: recommend.NoCluster,
	}}
	s := newTestServer(rec)

	resp := do(t, s, http.MethodPost, "/recommend", `{"song_name":"Unknown Song"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	if rec.gotCount != 5 {
		t.Errorf("default playlist size = %d, want 5", rec.gotCount)
	}

	body := decode(t, resp)
	if body["note"] != FallbackNote {
		t.Errorf("note = %v, want %q", body["note"], FallbackNote)
	}
	if _, ok := body["cluster_mood"]; ok {
		t.Error("cluster_mood should be omitted for fallback results")
	}
	query := body["search_query"].(map[string]any)
	if query["artist_name"] != nil {
		t.Errorf("artist_name = %v, want null", query["artist_name"])
	}
}

func TestRecommendHandlerValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"no body", "", "No data provided"},
		{"malformed json", `{"song_name":`, msgBadBody},
		{"non-numeric size", `{"song_name":"Hey Jude","playlist_size":"many"}`, msgBadBody},
		{"missing song", `{"artist_name":"Queen"}`, "Please enter a song name"},
		{"whitespace song", `{"song_name":"   "}`, "Please enter a song name"},
		{"short song", `{"song_name":"a"}`, "Song name must be at least 2 characters long"},
		{"long song", `{"song_name":"` + strings.Repeat("x", 201) + `"}`, "Song name too long (max 200 characters)"},
		{"long artist", `{"song_name":"Hey Jude","artist_name":"` + strings.Repeat("y", 201) + `"}`, "Artist name too long (max 200 characters)"},
		{"zero size", `{"song_name":"Hey Jude","playlist_size":0}`, "playlist_size must be between 1 and 20"},
		{"large size", `{"song_name":"Hey Jude","playlist_size":21}`, "playlist_size must be between 1 and 20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecommender{result: clusterResult()}
			resp := do(t, newTestServer(rec), http.MethodPost, "/recommend", tt.body)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.Code)
			}
			body := decode(t, resp)
			if body["success"] != false || body["error"] != tt.wantErr {
				t.Errorf("body = %v, want error %q", body, tt.wantErr)
			}
			if rec.gotSong != "" {
				t.Error("engine should not be called for invalid input")
			}
		})
	}
}

func TestRecommendHandlerUnicodeLength(t *testing.T) {
	rec := &fakeRecommender{result: clusterResult()}
	song := strings.Repeat("歌", 200)

	resp := do(t, newTestServer(rec), http.MethodPost, "/recommend", `{"song_name":"`+song+`"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
}

func TestTrackRecommendationsHandler(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantCount int
	}{
		{"explicit count", "/tracks/t1/recommendations?count=7", 7},
		{"default count", "/tracks/t1/recommendations", 5},
		{"malformed count", "/tracks/t1/recommendations?count=abc", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecommender{result: recommend.Result{
				Rows:   []similarity.Row{{TrackName: "Love Song"}},
				Source: recommend.SourceKnownTrack,
				Mood:   "Upbeat Party",
			}}
			resp := do(t, newTestServer(rec), http.MethodGet, tt.target, "")

			if resp.Code != http.StatusOK {
				t.Fatalf("status = %d", resp.Code)
			}
			if rec.gotTrackID != "t1" || rec.gotCount != tt.wantCount {
				t.Errorf("called with %q, %d; want t1, %d", rec.gotTrackID, rec.gotCount, tt.wantCount)
			}
			body := decode(t, resp)
			if body["track_id"] != "t1" || body["source"] != string(recommend.SourceKnownTrack) {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestPopularExamplesHandler(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?count=1", 1},
		{"?count=5", 5},
		{"?count=50", 5},
		{"?count=0", 1},
		{"?count=-2", 1},
		{"?count=abc", 3},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := do(t, newTestServer(&fakeRecommender{}), http.MethodGet, "/api/popular-examples"+tt.query, "")
			if resp.Code != http.StatusOK {
				t.Fatalf("status = %d", resp.Code)
			}

			var body struct {
				Success  bool      `json:"success"`
				Examples []example `json:"examples"`
			}
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if !body.Success || len(body.Examples) != tt.want {
				t.Errorf("got %d examples, want %d", len(body.Examples), tt.want)
			}

			seen := make(map[example]bool)
			for _, e := range body.Examples {
				if seen[e] {
					t.Errorf("duplicate example %v", e)
				}
				seen[e] = true
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		rec        *fakeRecommender
		wantStatus int
		wantState  string
	}{
		{"healthy", &fakeRecommender{catalogSize: 120, clusters: 8}, http.StatusOK, "healthy"},
		{"empty catalog", &fakeRecommender{clusters: 8}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, newTestServer(tt.rec), http.MethodGet, "/health", "")
			if resp.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.Code, tt.wantStatus)
			}
			body := decode(t, resp)
			if body["status"] != tt.wantState {
				t.Errorf("status field = %v, want %s", body["status"], tt.wantState)
			}
			if body["catalog_size"] != float64(tt.rec.catalogSize) || body["clusters"] != float64(tt.rec.clusters) {
				t.Errorf("body = %v", body)
			}
			if ts, _ := body["timestamp"].(string); ts == "" {
				t.Error("missing timestamp")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&fakeRecommender{catalogSize: 1, clusters: 1})
	do(t, s, http.MethodGet, "/health", "")

	resp := do(t, s, http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "recommender_http_requests_total") {
		t.Error("metrics output missing recommender_http_requests_total")
	}
}

func TestRecovererReturnsJSON(t *testing.T) {
	s := newTestServer(&panicRecommender{})
	resp := do(t, s, http.MethodGet, "/tracks/t1/recommendations", "")

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.Code)
	}
	body := decode(t, resp)
	if body["success"] != false || body["error"] != msgUnavailable {
		t.Errorf("body = %v", body)
	}
}

type panicRecommender struct{ fakeRecommender }

func (panicRecommender) RecommendFromKnownTrack(context.Context, string, int) recommend.Result {
	panic("engine exploded")
}

func TestRequestIDHeader(t *testing.T) {
	resp := do(t, newTestServer(&fakeRecommender{catalogSize: 1, clusters: 1}), http.MethodGet, "/health", "")
	if resp.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}
