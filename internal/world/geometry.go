package world

// Geometry is one batch of triangles produced by the mesher: flat position,
// index, uv and per-vertex packed light arrays, ready for the wire.
type Geometry struct {
	Positions []float32 `json:"positions"`
	Indices   []int32   `json:"indices"`
	UVs       []float32 `json:"uvs"`
	Lights    []int32   `json:"lights"`
}

// IsEmpty reports whether the batch holds no triangles.
func (g *Geometry) IsEmpty() bool {
	return g == nil || len(g.Indices) == 0
}

// SubMesh is the pair of geometry batches of one vertical sub-chunk slab.
type SubMesh struct {
	Level       int       `json:"level"`
	Opaque      *Geometry `json:"opaque,omitempty"`
	Transparent *Geometry `json:"transparent,omitempty"`
}
