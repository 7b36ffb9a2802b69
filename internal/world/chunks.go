package world

import (
	"math"

	"voxelize/internal/voxel"
)

// MessageKind distinguishes the chunk messages queued for the transport.
type MessageKind int

const (
	MessageLoad MessageKind = iota
	MessageUpdate
	MessageUnload
)

// SendItem is one queued chunk message.
type SendItem struct {
	Coords voxel.Coords
	Kind   MessageKind
}

// ChunkMap owns every chunk of a world and the derived bookkeeping around
// them: the listener graph of chunks waiting on their neighbors, and the send
// queue drained by the transport.
//
// Only the tick loop mutates a ChunkMap; workers receive chunk clones.
type ChunkMap struct {
	config Config

	chunks map[voxel.Coords]*Chunk

	// listeners maps a chunk to the chunks waiting for it to progress.
	listeners map[voxel.Coords][]voxel.Coords

	// toSend is a deque: Update messages are pushed to the front for low
	// latency, Load messages to the back for bulk streaming.
	toSend []SendItem
}

// NewChunkMap creates an empty chunk map for a world config.
func NewChunkMap(config Config) *ChunkMap {
	return &ChunkMap{
		config:    config,
		chunks:    make(map[voxel.Coords]*Chunk),
		listeners: make(map[voxel.Coords][]voxel.Coords),
	}
}

// Config returns the world config this map was built with.
func (m *ChunkMap) Config() Config {
	return m.config
}

// Len returns how many chunks are loaded.
func (m *ChunkMap) Len() int {
	return len(m.chunks)
}

// Renew installs a chunk, replacing any previous instance at its coordinate.
func (m *ChunkMap) Renew(chunk *Chunk) {
	m.chunks[chunk.Coords] = chunk
}

// Raw returns the chunk at a coordinate regardless of its status.
func (m *ChunkMap) Raw(coords voxel.Coords) *Chunk {
	return m.chunks[coords]
}

// Get returns the chunk at a coordinate only once it is fully ready.
func (m *ChunkMap) Get(coords voxel.Coords) *Chunk {
	if !m.IsWithinWorld(coords) || !m.IsChunkReady(coords) {
		return nil
	}
	return m.chunks[coords]
}

// All iterates every loaded chunk.
func (m *ChunkMap) All(fn func(*Chunk)) {
	for _, chunk := range m.chunks {
		fn(chunk)
	}
}

// RawChunkByVoxel returns the chunk containing a voxel coordinate.
func (m *ChunkMap) RawChunkByVoxel(vx, vy, vz int) *Chunk {
	coords := voxel.MapVoxelToChunk(vx, vy, vz, m.config.ChunkSize)
	return m.chunks[coords]
}

// IsWithinWorld reports whether a chunk coordinate lies inside the world bounds.
func (m *ChunkMap) IsWithinWorld(coords voxel.Coords) bool {
	return coords.X >= m.config.MinChunk[0] && coords.X <= m.config.MaxChunk[0] &&
		coords.Z >= m.config.MinChunk[1] && coords.Z <= m.config.MaxChunk[1]
}

// IsChunkReady reports whether a chunk exists, has left the pipeline and has
// meshes to serve.
func (m *ChunkMap) IsChunkReady(coords voxel.Coords) bool {
	chunk, ok := m.chunks[coords]
	if !ok {
		return false
	}
	return chunk.IsReady()
}

// VoxelAffectedChunks returns the chunk containing the voxel plus every
// adjacent chunk sharing the voxel's edge or corner.
func (m *ChunkMap) VoxelAffectedChunks(vx, vy, vz int) []voxel.Coords {
	size := m.config.ChunkSize
	coords := voxel.MapVoxelToChunk(vx, vy, vz, size)
	lx, _, lz := voxel.MapVoxelToLocal(vx, vy, vz, size)

	neighbors := []voxel.Coords{coords}

	atMinX := lx == 0
	atMinZ := lz == 0
	atMaxX := lx == size-1
	atMaxZ := lz == size-1

	if atMinX {
		neighbors = append(neighbors, voxel.Coords{X: coords.X - 1, Z: coords.Z})
	}
	if atMaxX {
		neighbors = append(neighbors, voxel.Coords{X: coords.X + 1, Z: coords.Z})
	}
	if atMinZ {
		neighbors = append(neighbors, voxel.Coords{X: coords.X, Z: coords.Z - 1})
	}
	if atMaxZ {
		neighbors = append(neighbors, voxel.Coords{X: coords.X, Z: coords.Z + 1})
	}

	if atMinX && atMinZ {
		neighbors = append(neighbors, voxel.Coords{X: coords.X - 1, Z: coords.Z - 1})
	}
	if atMinX && atMaxZ {
		neighbors = append(neighbors, voxel.Coords{X: coords.X - 1, Z: coords.Z + 1})
	}
	if atMaxX && atMinZ {
		neighbors = append(neighbors, voxel.Coords{X: coords.X + 1, Z: coords.Z - 1})
	}
	if atMaxX && atMaxZ {
		neighbors = append(neighbors, voxel.Coords{X: coords.X + 1, Z: coords.Z + 1})
	}

	return neighbors
}

// LightTraversedChunks returns every chunk within the Chebyshev radius light
// can travel from the center chunk.
func (m *ChunkMap) LightTraversedChunks(coords voxel.Coords) []voxel.Coords {
	extended := int(math.Ceil(float64(m.config.MaxLightLevel) / float64(m.config.ChunkSize)))

	list := make([]voxel.Coords, 0, (2*extended+1)*(2*extended+1))
	for x := -extended; x <= extended; x++ {
		for z := -extended; z <= extended; z++ {
			list = append(list, voxel.Coords{X: coords.X + x, Z: coords.Z + z})
		}
	}
	return list
}

// AddListener registers dependent as waiting on source. Listeners are
// back-references only; the map never owns the dependent chunk through them.
func (m *ChunkMap) AddListener(source, dependent voxel.Coords) {
	for _, existing := range m.listeners[source] {
		if existing == dependent {
			return
		}
	}
	m.listeners[source] = append(m.listeners[source], dependent)
}

// TakeListeners removes and returns the chunks waiting on a coordinate.
func (m *ChunkMap) TakeListeners(coords voxel.Coords) []voxel.Coords {
	list := m.listeners[coords]
	delete(m.listeners, coords)
	return list
}

// AddChunkToSend queues a chunk message for the transport. Update messages go
// to the front of the queue, everything else to the back.
func (m *ChunkMap) AddChunkToSend(coords voxel.Coords, kind MessageKind) {
	item := SendItem{Coords: coords, Kind: kind}
	if kind == MessageUpdate {
		m.toSend = append([]SendItem{item}, m.toSend...)
		return
	}
	m.toSend = append(m.toSend, item)
}

// DrainToSend pops at most limit queued chunk messages.
func (m *ChunkMap) DrainToSend(limit int) []SendItem {
	if limit <= 0 || limit > len(m.toSend) {
		limit = len(m.toSend)
	}
	items := m.toSend[:limit]
	m.toSend = m.toSend[limit:]
	return items
}

// MakeSpace starts a space builder centered at a chunk coordinate.
func (m *ChunkMap) MakeSpace(coords voxel.Coords, margin int) *SpaceBuilder {
	return &SpaceBuilder{
		chunks: m,
		coords: coords,
		params: SpaceParams{
			Margin:        margin,
			ChunkSize:     m.config.ChunkSize,
			MaxHeight:     m.config.MaxHeight,
			MaxLightLevel: m.config.MaxLightLevel,
		},
	}
}

// Contains reports whether the voxel's chunk is loaded and vy is in range.
func (m *ChunkMap) Contains(vx, vy, vz int) bool {
	if vy < 0 || vy >= m.config.MaxHeight {
		return false
	}
	return m.RawChunkByVoxel(vx, vy, vz) != nil
}

// GetRawVoxel reads across chunks; 0 when the chunk is not loaded.
func (m *ChunkMap) GetRawVoxel(vx, vy, vz int) uint32 {
	if chunk := m.RawChunkByVoxel(vx, vy, vz); chunk != nil {
		return chunk.GetRawVoxel(vx, vy, vz)
	}
	return 0
}

// SetRawVoxel writes across chunks; no-op when the chunk is not loaded.
func (m *ChunkMap) SetRawVoxel(vx, vy, vz int, raw uint32) bool {
	if chunk := m.RawChunkByVoxel(vx, vy, vz); chunk != nil {
		return chunk.SetRawVoxel(vx, vy, vz, raw)
	}
	return false
}

// GetRawLight reads across chunks. Missing chunks report full sunlight above
// the world floor so border propagation stays stable.
func (m *ChunkMap) GetRawLight(vx, vy, vz int) uint32 {
	if chunk := m.RawChunkByVoxel(vx, vy, vz); chunk != nil {
		return chunk.GetRawLight(vx, vy, vz)
	}
	if vy < 0 {
		return 0
	}
	return voxel.InsertSunlight(0, m.config.MaxLightLevel)
}

// SetRawLight writes across chunks; no-op when the chunk is not loaded.
func (m *ChunkMap) SetRawLight(vx, vy, vz int, light uint32) bool {
	if chunk := m.RawChunkByVoxel(vx, vy, vz); chunk != nil {
		return chunk.SetRawLight(vx, vy, vz, light)
	}
	return false
}

// GetMaxHeight reads a column height across chunks; 0 when not loaded.
func (m *ChunkMap) GetMaxHeight(vx, vz int) uint32 {
	if chunk := m.RawChunkByVoxel(vx, 0, vz); chunk != nil {
		return chunk.GetMaxHeight(vx, vz)
	}
	return 0
}

// SetMaxHeight writes a column height across chunks; no-op when not loaded.
func (m *ChunkMap) SetMaxHeight(vx, vz int, height uint32) bool {
	if chunk := m.RawChunkByVoxel(vx, 0, vz); chunk != nil {
		return chunk.SetMaxHeight(vx, vz, height)
	}
	return false
}
