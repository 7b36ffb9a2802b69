package engine

import (
	"voxelize/internal/registry"
	"voxelize/internal/world"
)

// Resources are the immutable handles every stage runs with.
type Resources struct {
	Registry *registry.Registry
	Config   world.Config
}

// Stage is one step of the chunk generation pipeline. Implementations must be
// pure with respect to the chunk map: they only touch the chunk they are
// given (plus its Space, when requested) and run on worker goroutines.
type Stage interface {
	// Name identifies the stage in logs.
	Name() string

	// Neighbors is the radius in blocks around the chunk that must exist and
	// have reached this stage before processing. Zero means no dependency.
	Neighbors(cfg world.Config) int

	// NeedsSpace describes the data to pre-assemble around the chunk, or nil
	// when the stage works on the chunk alone.
	NeedsSpace() *world.SpaceData

	// Process advances the chunk. Writes that land outside the chunk are
	// collected in the chunk's ExtraChanges and applied by the pipeline.
	Process(chunk *world.Chunk, res Resources, space *world.Space) *world.Chunk
}

// FlatlandStage fills every column with a fixed bottom/middle/top profile.
type FlatlandStage struct {
	Height int
	Top    uint32
	Middle uint32
	Bottom uint32
}

func (s *FlatlandStage) Name() string { return "flatland" }

func (s *FlatlandStage) Neighbors(world.Config) int { return 0 }

func (s *FlatlandStage) NeedsSpace() *world.SpaceData { return nil }

func (s *FlatlandStage) Process(chunk *world.Chunk, _ Resources, _ *world.Space) *world.Chunk {
	for vx := chunk.Min[0]; vx < chunk.Max[0]; vx++ {
		for vz := chunk.Min[2]; vz < chunk.Max[2]; vz++ {
			for vy := 0; vy < s.Height; vy++ {
				switch {
				case vy == 0:
					world.SetVoxel(chunk, vx, vy, vz, s.Bottom)
				case vy == s.Height-1:
					world.SetVoxel(chunk, vx, vy, vz, s.Top)
				default:
					world.SetVoxel(chunk, vx, vy, vz, s.Middle)
				}
			}
		}
	}
	return chunk
}

// HeightMapStage recomputes the chunk's height map from its voxels. Kept as
// the last stage so every earlier stage's writes are reflected.
type HeightMapStage struct{}

func (s *HeightMapStage) Name() string { return "height-map" }

func (s *HeightMapStage) Neighbors(world.Config) int { return 0 }

func (s *HeightMapStage) NeedsSpace() *world.SpaceData { return nil }

func (s *HeightMapStage) Process(chunk *world.Chunk, res Resources, _ *world.Space) *world.Chunk {
	chunk.CalculateMaxHeight(res.Registry)
	return chunk
}
