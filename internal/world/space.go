package world

import (
	"fmt"

	"voxelize/internal/voxel"
)

// SpaceData selects which arrays a Space clones out of the chunk map.
type SpaceData struct {
	NeedsVoxels     bool
	NeedsLights     bool
	NeedsHeightMaps bool
}

// SpaceParams are the dimensions a Space is assembled with.
type SpaceParams struct {
	// Margin is how many blocks the space extends beyond the center chunk.
	Margin        int
	ChunkSize     int
	MaxHeight     int
	MaxLightLevel uint32
}

// Space is a read/write view spanning a center chunk and its neighborhood,
// addressed in world coordinates. The data is cloned out of the chunk map at
// build time, so a worker can use a Space without touching live chunks.
type Space struct {
	// Coords is the center chunk.
	Coords voxel.Coords

	// Width is the horizontal extent: chunk size plus twice the margin.
	Width int

	// Min is the minimum voxel coordinate covered.
	Min [3]int

	// Shape is the dimensions of the covered region.
	Shape [3]int

	Params SpaceParams

	voxels     map[voxel.Coords][]uint32
	lights     map[voxel.Coords][]uint32
	heightMaps map[voxel.Coords][]uint32
}

// SpaceBuilder assembles a Space from a ChunkMap.
type SpaceBuilder struct {
	chunks *ChunkMap
	coords voxel.Coords
	params SpaceParams
	data   SpaceData
	strict bool
}

// NeedsVoxels loads voxel data into the space.
func (b *SpaceBuilder) NeedsVoxels() *SpaceBuilder {
	b.data.NeedsVoxels = true
	return b
}

// NeedsLights loads lighting data into the space.
func (b *SpaceBuilder) NeedsLights() *SpaceBuilder {
	b.data.NeedsLights = true
	return b
}

// NeedsHeightMaps loads height-map data into the space.
func (b *SpaceBuilder) NeedsHeightMaps() *SpaceBuilder {
	b.data.NeedsHeightMaps = true
	return b
}

// Needs applies a SpaceData selection wholesale.
func (b *SpaceBuilder) Needs(data SpaceData) *SpaceBuilder {
	if data.NeedsVoxels {
		b.NeedsVoxels()
	}
	if data.NeedsLights {
		b.NeedsLights()
	}
	if data.NeedsHeightMaps {
		b.NeedsHeightMaps()
	}
	return b
}

// Strict makes missing neighbors a fatal error instead of empty defaults. The
// caller guarantees every required chunk exists; a violation is a bug.
func (b *SpaceBuilder) Strict() *SpaceBuilder {
	b.strict = true
	return b
}

// Build clones the requested data and returns the assembled Space.
func (b *SpaceBuilder) Build() *Space {
	if b.params.Margin <= 0 {
		panic("space margin must be positive")
	}

	width := b.params.ChunkSize + b.params.Margin*2

	space := &Space{
		Coords: b.coords,
		Width:  width,
		Min: [3]int{
			b.coords.X*b.params.ChunkSize - b.params.Margin,
			0,
			b.coords.Z*b.params.ChunkSize - b.params.Margin,
		},
		Shape:      [3]int{width, b.params.MaxHeight, width},
		Params:     b.params,
		voxels:     make(map[voxel.Coords][]uint32),
		lights:     make(map[voxel.Coords][]uint32),
		heightMaps: make(map[voxel.Coords][]uint32),
	}

	for _, coords := range b.chunks.LightTraversedChunks(b.coords) {
		if !b.chunks.IsWithinWorld(coords) {
			continue
		}

		chunk := b.chunks.Raw(coords)
		if chunk == nil {
			if b.strict {
				panic(fmt.Sprintf("strict space %v is missing chunk %v", b.coords, coords))
			}
			continue
		}

		if b.data.NeedsVoxels {
			space.voxels[coords] = append([]uint32(nil), chunk.Voxels...)
		}
		if b.data.NeedsLights {
			space.lights[coords] = append([]uint32(nil), chunk.Lights...)
		} else {
			// The lighter still needs somewhere to write during initial
			// propagation, so an all-dark scratch array is provisioned.
			space.lights[coords] = make([]uint32, len(chunk.Lights))
		}
		if b.data.NeedsHeightMaps {
			space.heightMaps[coords] = append([]uint32(nil), chunk.HeightMap...)
		}
	}

	return space
}

func (s *Space) toLocal(vx, vy, vz int) (voxel.Coords, int) {
	coords := voxel.MapVoxelToChunk(vx, vy, vz, s.Params.ChunkSize)
	lx, ly, lz := voxel.MapVoxelToLocal(vx, vy, vz, s.Params.ChunkSize)
	return coords, (lx*s.Params.MaxHeight+ly)*s.Params.ChunkSize + lz
}

// Contains reports whether the space holds data for the voxel coordinate.
func (s *Space) Contains(vx, vy, vz int) bool {
	if vy < 0 || vy >= s.Params.MaxHeight {
		return false
	}
	coords := voxel.MapVoxelToChunk(vx, vy, vz, s.Params.ChunkSize)
	if _, ok := s.voxels[coords]; ok {
		return true
	}
	if _, ok := s.lights[coords]; ok {
		return true
	}
	_, ok := s.heightMaps[coords]
	return ok
}

// GetRawVoxel reads the packed voxel word; 0 for anything outside the space.
func (s *Space) GetRawVoxel(vx, vy, vz int) uint32 {
	if len(s.voxels) == 0 {
		panic("space was built without voxel data")
	}
	if vy < 0 || vy >= s.Params.MaxHeight {
		return 0
	}
	coords, index := s.toLocal(vx, vy, vz)
	if data, ok := s.voxels[coords]; ok {
		return data[index]
	}
	return 0
}

// SetRawVoxel writes the packed voxel word into the space's cloned data.
func (s *Space) SetRawVoxel(vx, vy, vz int, raw uint32) bool {
	if vy < 0 || vy >= s.Params.MaxHeight {
		return false
	}
	coords, index := s.toLocal(vx, vy, vz)
	if data, ok := s.voxels[coords]; ok {
		data[index] = raw
		return true
	}
	return false
}

// GetRawLight reads the packed light word. Missing chunks report full
// sunlight above the floor, darkness below.
func (s *Space) GetRawLight(vx, vy, vz int) uint32 {
	if vy < 0 {
		return 0
	}
	if vy >= s.Params.MaxHeight {
		return voxel.InsertSunlight(0, s.Params.MaxLightLevel)
	}
	coords, index := s.toLocal(vx, vy, vz)
	if data, ok := s.lights[coords]; ok {
		return data[index]
	}
	return voxel.InsertSunlight(0, s.Params.MaxLightLevel)
}

// SetRawLight writes the packed light word; no-op outside the space.
func (s *Space) SetRawLight(vx, vy, vz int, light uint32) bool {
	if vy < 0 || vy >= s.Params.MaxHeight {
		return false
	}
	coords, index := s.toLocal(vx, vy, vz)
	if data, ok := s.lights[coords]; ok {
		data[index] = light
		return true
	}
	return false
}

// GetMaxHeight reads a column height; 0 for columns outside the space.
func (s *Space) GetMaxHeight(vx, vz int) uint32 {
	if len(s.heightMaps) == 0 {
		panic("space was built without height map data")
	}
	coords := voxel.MapVoxelToChunk(vx, 0, vz, s.Params.ChunkSize)
	lx, _, lz := voxel.MapVoxelToLocal(vx, 0, vz, s.Params.ChunkSize)
	if data, ok := s.heightMaps[coords]; ok {
		return data[lx*s.Params.ChunkSize+lz]
	}
	return 0
}

// SetMaxHeight writes a column height; no-op outside the space.
func (s *Space) SetMaxHeight(vx, vz int, height uint32) bool {
	coords := voxel.MapVoxelToChunk(vx, 0, vz, s.Params.ChunkSize)
	lx, _, lz := voxel.MapVoxelToLocal(vx, 0, vz, s.Params.ChunkSize)
	if data, ok := s.heightMaps[coords]; ok {
		data[lx*s.Params.ChunkSize+lz] = height
		return true
	}
	return false
}

// LightsAt returns the cloned light array of one chunk of the space, or nil.
func (s *Space) LightsAt(coords voxel.Coords) []uint32 {
	return s.lights[coords]
}

// VoxelsAt returns the cloned voxel array of one chunk of the space, or nil.
func (s *Space) VoxelsAt(coords voxel.Coords) []uint32 {
	return s.voxels[coords]
}
