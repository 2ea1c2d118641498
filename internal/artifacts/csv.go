package artifacts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/justestif/go-spotify-song-recommender/internal/features"
)

// Catalog column names.
const (
	colTrackID    = "track_id"
	colTrackName  = "track_name"
	colArtistName = "artist_name"
	colGenre      = "genre"
	colPopularity = "popularity"
	colCluster    = "cluster"
)

var componentColumn = regexp.MustCompile(`^PC(\d+)$`)

// keyColumn finds the track ID column. A snapshot written with its index
// as an unnamed leading column has that column promoted to the key.
func keyColumn(header []string) (int, error) {
	if i := slices.Index(header, colTrackID); i >= 0 {
		return i, nil
	}
	if len(header) > 0 {
		switch strings.TrimSpace(header[0]) {
		case "", "index", "Unnamed: 0":
			return 0, nil
		}
	}
	return -1, errors.New("no track_id column")
}

func readAll(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("empty table")
		}
		return nil, nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, records, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ReadProjectedTable parses a projected-feature table with PC1..PCk and
// cluster columns.
func ReadProjectedTable(r io.Reader) (*ProjectedTable, error) {
	header, records, err := readAll(r)
	if err != nil {
		return nil, err
	}

	key, err := keyColumn(header)
	if err != nil {
		return nil, err
	}

	clusterCol := slices.Index(header, colCluster)
	if clusterCol < 0 {
		return nil, errors.New("no cluster column")
	}

	type pcCol struct {
		num, col int
	}
	var pcs []pcCol
	for i, h := range header {
		m := componentColumn.FindStringSubmatch(h)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		pcs = append(pcs, pcCol{num: n, col: i})
	}
	if len(pcs) == 0 {
		return nil, errors.New("no principal component columns")
	}
	slices.SortFunc(pcs, func(a, b pcCol) int { return a.num - b.num })

	rows := make([]ProjectedRow, 0, len(records))
	for line, rec := range records {
		id := cell(rec, key)
		if id == "" {
			return nil, fmt.Errorf("row %d: empty track_id", line+2)
		}

		comps := make([]float64, len(pcs))
		for j, pc := range pcs {
			v, err := strconv.ParseFloat(cell(rec, pc.col), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: column %s: %w", line+2, header[pc.col], err)
			}
			comps[j] = v
		}

		label, err := strconv.ParseFloat(cell(rec, clusterCol), 64)
		if err != nil || label != math.Trunc(label) {
			return nil, fmt.Errorf("row %d: invalid cluster label %q", line+2, cell(rec, clusterCol))
		}

		rows = append(rows, ProjectedRow{TrackID: id, Components: comps, Cluster: int(label)})
	}

	return NewProjectedTable(rows), nil
}

// ReadCatalog parses the catalog table. Display columns may be absent
// entirely; raw audio columns are read when present.
func ReadCatalog(r io.Reader) (*Catalog, error) {
	header, records, err := readAll(r)
	if err != nil {
		return nil, err
	}

	key, err := keyColumn(header)
	if err != nil {
		return nil, err
	}

	nameCol := slices.Index(header, colTrackName)
	artistCol := slices.Index(header, colArtistName)
	genreCol := slices.Index(header, colGenre)
	popCol := slices.Index(header, colPopularity)

	audioCols := make(map[string]int)
	for _, name := range features.RawNames {
		if i := slices.Index(header, name); i >= 0 {
			audioCols[name] = i
		}
	}

	tracks := make([]Track, 0, len(records))
	for line, rec := range records {
		id := cell(rec, key)
		if id == "" {
			return nil, fmt.Errorf("row %d: empty track_id", line+2)
		}

		t := Track{
			ID:     id,
			Name:   cell(rec, nameCol),
			Artist: cell(rec, artistCol),
			Genre:  cell(rec, genreCol),
			Audio:  make(map[string]float64, len(audioCols)),
		}

		if raw := cell(rec, popCol); raw != "" {
			pop, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: popularity: %w", line+2, err)
			}
			t.Popularity = pop
		}

		for name, col := range audioCols {
			raw := cell(rec, col)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: column %s: %w", line+2, name, err)
			}
			t.Audio[name] = v
		}

		tracks = append(tracks, t)
	}

	return NewCatalog(tracks), nil
}

// ReadFeatureList parses one feature name per line, keeping order.
// Blank lines are skipped.
func ReadFeatureList(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var names []string
	for line := range strings.Lines(string(data)) {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, errors.New("feature list is empty")
	}
	return names, nil
}
