package artifacts

import (
	"fmt"
	"slices"
)

// Track is a catalog entry with display metadata and raw audio attributes.
// Empty strings mean the snapshot had no value for that field.
type Track struct {
	ID         string
	Name       string
	Artist     string
	Genre      string
	Popularity float64
	Audio      map[string]float64
}

// Catalog is the ordered, read-only set of tracks keyed by track ID.
type Catalog struct {
	tracks []Track
	index  map[string]int
}

// NewCatalog builds a catalog from tracks, keeping the first occurrence of
// a duplicated ID.
func NewCatalog(tracks []Track) *Catalog {
	c := &Catalog{
		tracks: make([]Track, 0, len(tracks)),
		index:  make(map[string]int, len(tracks)),
	}
	for _, t := range tracks {
		if _, dup := c.index[t.ID]; dup {
			continue
		}
		c.index[t.ID] = len(c.tracks)
		c.tracks = append(c.tracks, t)
	}
	return c
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	return len(c.tracks)
}

// At returns the i-th track in catalog order.
func (c *Catalog) At(i int) Track {
	return c.tracks[i]
}

// Get returns the track with the given ID.
func (c *Catalog) Get(id string) (Track, bool) {
	i, ok := c.index[id]
	if !ok {
		return Track{}, false
	}
	return c.tracks[i], true
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// IDs returns track IDs in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.tracks))
	for i, t := range c.tracks {
		ids[i] = t.ID
	}
	return ids
}

// ProjectedRow is one track's coordinates in the reduced space.
// Components must be treated as read-only.
type ProjectedRow struct {
	TrackID    string
	Components []float64
	Cluster    int
}

// ProjectedTable is the ordered, read-only projected-feature table.
type ProjectedTable struct {
	rows  []ProjectedRow
	index map[string]int
	dim   int
}

// NewProjectedTable builds a table from rows, keeping the first occurrence of
// a duplicated track ID. The component count is taken from the first row.
func NewProjectedTable(rows []ProjectedRow) *ProjectedTable {
	p := &ProjectedTable{
		rows:  make([]ProjectedRow, 0, len(rows)),
		index: make(map[string]int, len(rows)),
	}
	for _, r := range rows {
		if _, dup := p.index[r.TrackID]; dup {
			continue
		}
		p.index[r.TrackID] = len(p.rows)
		p.rows = append(p.rows, r)
	}
	if len(p.rows) > 0 {
		p.dim = len(p.rows[0].Components)
	}
	return p
}

// Len returns the number of rows.
func (p *ProjectedTable) Len() int {
	return len(p.rows)
}

// At returns the i-th row in table order.
func (p *ProjectedTable) At(i int) ProjectedRow {
	return p.rows[i]
}

// Get returns the row for a track ID.
func (p *ProjectedTable) Get(id string) (ProjectedRow, bool) {
	i, ok := p.index[id]
	if !ok {
		return ProjectedRow{}, false
	}
	return p.rows[i], true
}

// Has reports whether id has a projected row.
func (p *ProjectedTable) Has(id string) bool {
	_, ok := p.index[id]
	return ok
}

// IDs returns track IDs in table order.
func (p *ProjectedTable) IDs() []string {
	ids := make([]string, len(p.rows))
	for i, r := range p.rows {
		ids[i] = r.TrackID
	}
	return ids
}

// Dim returns the number of principal components per row.
func (p *ProjectedTable) Dim() int {
	return p.dim
}

// ComponentNames returns PC1..PCk for the table's component count.
func (p *ProjectedTable) ComponentNames() []string {
	return ComponentNames(p.dim)
}

// InCluster returns the rows labelled with cluster, in table order.
func (p *ProjectedTable) InCluster(cluster int) []ProjectedRow {
	var out []ProjectedRow
	for _, r := range p.rows {
		if r.Cluster == cluster {
			out = append(out, r)
		}
	}
	return out
}

// Clusters returns the distinct cluster labels in ascending order.
func (p *ProjectedTable) Clusters() []int {
	seen := make(map[int]struct{})
	var labels []int
	for _, r := range p.rows {
		if _, ok := seen[r.Cluster]; ok {
			continue
		}
		seen[r.Cluster] = struct{}{}
		labels = append(labels, r.Cluster)
	}
	slices.Sort(labels)
	return labels
}

// ComponentNames returns the column names PC1..PCk.
func ComponentNames(k int) []string {
	names := make([]string, k)
	for i := range names {
		names[i] = fmt.Sprintf("PC%d", i+1)
	}
	return names
}
