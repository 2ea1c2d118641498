package fallback

import (
	"testing"

	"github.com/justestif/go-spotify-song-recommender/internal/artifacts"
	"github.com/justestif/go-spotify-song-recommender/internal/similarity"
)

func fixture() (*artifacts.ProjectedTable, *artifacts.Catalog) {
	projected := artifacts.NewProjectedTable([]artifacts.ProjectedRow{
		{TrackID: "t1", Components: []float64{1, 0}, Cluster: 0},
		{TrackID: "t2", Components: []float64{0.9, 0.1}, Cluster: 0},
		{TrackID: "t3", Components: []float64{0.5, 0.5}, Cluster: 0},
		{TrackID: "t4", Components: []float64{0, 1}, Cluster: 1},
		{TrackID: "t5", Components: []float64{0.1, 0.9}, Cluster: 1},
	})
	catalog := artifacts.NewCatalog([]artifacts.Track{
		{ID: "t1", Name: "Love Story", Artist: "Taylor Swift"},
		{ID: "t2", Name: "Love Song", Artist: "Sara Bareilles"},
		{ID: "t3", Name: "Shake It Off", Artist: "Taylor Swift"},
		{ID: "t4", Name: "Lovely", Artist: "Billie Eilish"},
		{ID: "t5", Name: "Bad Guy", Artist: "Billie Eilish"},
		{ID: "t6", Name: "Unprojected Love", Artist: "Nobody"},
	})
	return projected, catalog
}

func newResolver(opts ...Option) *Resolver {
	projected, catalog := fixture()
	return NewFromTables(projected, catalog, similarity.NewFromTables(projected, catalog), opts...)
}

func TestResolveCatalogMatch(t *testing.T) {
	tests := []struct {
		name     string
		song     string
		artist   string
		wantSeed string
	}{
		{"first substring match", "love", "", "t1"},
		{"case insensitive", "SHAKE it", "", "t3"},
		{"artist narrows", "love", "billie", "t4"},
		{"artist with no match keeps all", "love", "nonexistent", "t1"},
		{"surrounding whitespace", "  bad guy ", "", "t5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newResolver().Resolve(tt.song, tt.artist, 2)
			if res.Tier != TierCatalogMatch {
				t.Fatalf("Tier = %q, want %q", res.Tier, TierCatalogMatch)
			}
			if res.SeedTrackID != tt.wantSeed {
				t.Errorf("SeedTrackID = %q, want %q", res.SeedTrackID, tt.wantSeed)
			}
			if len(res.Rows) == 0 {
				t.Error("expected rows")
			}
		})
	}
}

func TestResolveFallsThroughToRandomTrack(t *testing.T) {
	tests := []struct {
		name string
		song string
	}{
		{"no match", "zzz no such song"},
		{"empty song", ""},
		{"match without projected row", "unprojected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(WithIntN(func(int) int { return 3 }))
			res := r.Resolve(tt.song, "", 3)
			if res.Tier != TierRandomTrack {
				t.Fatalf("Tier = %q, want %q", res.Tier, TierRandomTrack)
			}
			if res.SeedTrackID != "t4" {
				t.Errorf("SeedTrackID = %q, want t4", res.SeedTrackID)
			}
			if len(res.Rows) != 1 || res.Rows[0].TrackName != "Bad Guy" {
				t.Errorf("Rows = %+v, want [Bad Guy]", res.Rows)
			}
		})
	}
}

func TestResolveRandomSampleWhenNoCommonTracks(t *testing.T) {
	projected := artifacts.NewProjectedTable([]artifacts.ProjectedRow{
		{TrackID: "orphan", Components: []float64{1}},
	})
	catalog := artifacts.NewCatalog([]artifacts.Track{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
	})
	r := NewFromTables(projected, catalog, similarity.NewFromTables(projected, catalog))

	res := r.Resolve("A", "", 5)
	if res.Tier != TierRandomSample {
		t.Fatalf("Tier = %q, want %q", res.Tier, TierRandomSample)
	}
	if len(res.Rows) != 2 {
		t.Errorf("got %d rows, want 2", len(res.Rows))
	}
}

func TestResolveErrorPayload(t *testing.T) {
	empty := artifacts.NewCatalog(nil)
	projected := artifacts.NewProjectedTable(nil)
	r := NewFromTables(projected, empty, similarity.NewFromTables(projected, empty))

	res := r.Resolve("anything", "anyone", 5)
	want := ErrorPayload()
	if res.Tier != TierErrorPayload {
		t.Fatalf("Tier = %q, want %q", res.Tier, TierErrorPayload)
	}
	if len(res.Rows) != 1 || res.Rows[0] != want.Rows[0] {
		t.Errorf("Rows = %+v, want %+v", res.Rows, want.Rows)
	}
	if res.Rows[0].TrackName != ErrorTrackName || res.Rows[0].ArtistName != ErrorArtistName {
		t.Errorf("unexpected placeholder %+v", res.Rows[0])
	}
}

type panickingSearcher struct{}

func (panickingSearcher) ByTrack(string, int) ([]similarity.Row, error) {
	panic("boom")
}

func (panickingSearcher) Sample(int) []similarity.Row {
	panic("boom")
}

func TestResolveRecoversFromPanic(t *testing.T) {
	projected, catalog := fixture()
	r := NewFromTables(projected, catalog, panickingSearcher{})

	res := r.Resolve("love", "", 3)
	if res.Tier != TierErrorPayload {
		t.Errorf("Tier = %q, want %q", res.Tier, TierErrorPayload)
	}
	if len(res.Rows) != 1 {
		t.Errorf("got %d rows, want 1", len(res.Rows))
	}
}

func TestResolveRandom(t *testing.T) {
	r := newResolver(WithIntN(func(int) int { return 0 }))

	res := r.ResolveRandom(2)
	if res.Tier != TierRandomTrack {
		t.Fatalf("Tier = %q, want %q", res.Tier, TierRandomTrack)
	}
	if res.SeedTrackID != "t1" {
		t.Errorf("SeedTrackID = %q, want t1", res.SeedTrackID)
	}
	want := []string{"Love Song", "Shake It Off"}
	for i, row := range res.Rows {
		if row.TrackName != want[i] {
			t.Errorf("Rows[%d] = %q, want %q", i, row.TrackName, want[i])
		}
	}
}

func TestResolveClampsCount(t *testing.T) {
	res := newResolver().Resolve("love", "", 0)
	if len(res.Rows) != 1 {
		t.Errorf("got %d rows, want 1", len(res.Rows))
	}
}

func TestNewUsesStore(t *testing.T) {
	projected, catalog := fixture()
	store, err := artifacts.NewStore(artifacts.Models{}, projected, catalog)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	r := New(store, similarity.New(store))

	// t6 is dropped by alignment, so its name no longer matches.
	res := r.Resolve("unprojected", "", 2)
	if res.Tier == TierCatalogMatch {
		t.Errorf("Tier = %q, want a random tier", res.Tier)
	}
}
