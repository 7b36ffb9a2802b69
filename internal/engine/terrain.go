package engine

import (
	"voxelize/internal/world"
)

// TerrainStage carves a rolling heightmap terrain out of octave value noise:
// stone body, dirt blanket, grass cap, water below sea level.
type TerrainStage struct {
	Scale       float64
	BaseHeight  int
	Amplitude   float64
	Octaves     int
	Persistence float64
	Lacunarity  float64
	SeaLevel    int
}

// NewTerrainStage returns a terrain stage with the stock parameters.
func NewTerrainStage() *TerrainStage {
	return &TerrainStage{
		Scale:       1.0 / 96.0,
		BaseHeight:  70,
		Amplitude:   28,
		Octaves:     4,
		Persistence: 0.5,
		Lacunarity:  2.0,
		SeaLevel:    64,
	}
}

func (s *TerrainStage) Name() string { return "terrain" }

func (s *TerrainStage) Neighbors(world.Config) int { return 0 }

func (s *TerrainStage) NeedsSpace() *world.SpaceData { return nil }

// SurfaceAt computes the terrain surface height at a world column.
func (s *TerrainStage) SurfaceAt(vx, vz int, cfg world.Config) int {
	n := octaveNoise2D(
		float64(vx)*s.Scale,
		float64(vz)*s.Scale,
		int64(cfg.Seed),
		s.Octaves, s.Persistence, s.Lacunarity,
	)
	height := float64(s.BaseHeight) + n*s.Amplitude
	if height < 1 {
		height = 1
	}
	if height > float64(cfg.MaxHeight-1) {
		height = float64(cfg.MaxHeight - 1)
	}
	return int(height)
}

func (s *TerrainStage) Process(chunk *world.Chunk, res Resources, _ *world.Space) *world.Chunk {
	reg := res.Registry
	stone, _ := reg.BlockByName("stone")
	dirt, _ := reg.BlockByName("dirt")
	grass, _ := reg.BlockByName("grass")
	sand, _ := reg.BlockByName("sand")
	water, _ := reg.BlockByName("water")

	for vx := chunk.Min[0]; vx < chunk.Max[0]; vx++ {
		for vz := chunk.Min[2]; vz < chunk.Max[2]; vz++ {
			surface := s.SurfaceAt(vx, vz, res.Config)

			for vy := 0; vy <= surface; vy++ {
				switch {
				case vy == surface && surface <= s.SeaLevel:
					world.SetVoxel(chunk, vx, vy, vz, sand.ID)
				case vy == surface:
					world.SetVoxel(chunk, vx, vy, vz, grass.ID)
				case vy >= surface-3:
					world.SetVoxel(chunk, vx, vy, vz, dirt.ID)
				default:
					world.SetVoxel(chunk, vx, vy, vz, stone.ID)
				}
			}

			for vy := surface + 1; vy <= s.SeaLevel && vy < res.Config.MaxHeight; vy++ {
				world.SetVoxel(chunk, vx, vy, vz, water.ID)
			}
		}
	}

	return chunk
}

// TreesStage scatters simple trees on grass columns. Canopies regularly cross
// chunk borders; those writes end up in the chunk's ExtraChanges and are
// resolved by the pipeline against the neighboring chunks.
type TreesStage struct {
	// Chance is the per-column tree probability in 1/65536ths.
	Chance uint64
}

// NewTreesStage returns a tree stage with the stock density.
func NewTreesStage() *TreesStage {
	return &TreesStage{Chance: 300}
}

func (s *TreesStage) Name() string { return "trees" }

func (s *TreesStage) Neighbors(world.Config) int { return 0 }

func (s *TreesStage) NeedsSpace() *world.SpaceData { return nil }

func (s *TreesStage) Process(chunk *world.Chunk, res Resources, _ *world.Space) *world.Chunk {
	reg := res.Registry
	grass, _ := reg.BlockByName("grass")
	wood, _ := reg.BlockByName("wood")
	leaves, _ := reg.BlockByName("leaves")

	for vx := chunk.Min[0]; vx < chunk.Max[0]; vx++ {
		for vz := chunk.Min[2]; vz < chunk.Max[2]; vz++ {
			roll := hash2(int64(vx), int64(vz), int64(res.Config.Seed)^0x7265657473) & 0xFFFF
			if roll >= s.Chance {
				continue
			}

			// Find the surface; trees only root on grass.
			surface := -1
			for vy := res.Config.MaxHeight - 1; vy >= 0; vy-- {
				if world.GetVoxel(chunk, vx, vy, vz) != 0 {
					surface = vy
					break
				}
			}
			if surface < 0 || world.GetVoxel(chunk, vx, surface, vz) != grass.ID {
				continue
			}

			trunkHeight := 4 + int(hash2(int64(vx), int64(vz), int64(res.Config.Seed))%3)
			top := surface + trunkHeight
			if top+2 >= res.Config.MaxHeight {
				continue
			}

			for vy := surface + 1; vy <= top; vy++ {
				world.SetVoxel(chunk, vx, vy, vz, wood.ID)
			}

			// Canopy: a 5x5 blob trimmed at the corners, two layers, plus a cap.
			for dy := 0; dy <= 1; dy++ {
				radius := 2 - dy
				for dx := -radius; dx <= radius; dx++ {
					for dz := -radius; dz <= radius; dz++ {
						if dx == 0 && dz == 0 && dy == 0 {
							continue
						}
						if dx*dx+dz*dz > radius*radius+1 {
							continue
						}
						world.SetVoxel(chunk, vx+dx, top+dy, vz+dz, leaves.ID)
					}
				}
			}
			world.SetVoxel(chunk, vx, top+2, vz, leaves.ID)
		}
	}

	return chunk
}

// DefaultStages is the stock generation lineup: terrain, trees, then the
// height-map fixup last so it sees everything.
func DefaultStages() []Stage {
	return []Stage{
		NewTerrainStage(),
		NewTreesStage(),
		&HeightMapStage{},
	}
}
