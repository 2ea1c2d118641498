package artifacts

import "errors"

// ErrNoCommonTracks is returned when the projected table and the catalog
// share no track IDs, so nothing could ever be recommended.
var ErrNoCommonTracks = errors.New("no common track IDs between projected features and catalog")

// Align restricts both tables to the track IDs they have in common.
// Each table keeps its own row order. The inputs are not modified, and
// aligning already aligned tables returns equal tables.
func Align(projected *ProjectedTable, catalog *Catalog) (*ProjectedTable, *Catalog, error) {
	rows := make([]ProjectedRow, 0, projected.Len())
	for _, r := range projected.rows {
		if catalog.Has(r.TrackID) {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return nil, nil, ErrNoCommonTracks
	}

	tracks := make([]Track, 0, len(rows))
	for _, t := range catalog.tracks {
		if projected.Has(t.ID) {
			tracks = append(tracks, t)
		}
	}

	return NewProjectedTable(rows), NewCatalog(tracks), nil
}
