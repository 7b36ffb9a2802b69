// Package lights implements global illumination for a voxel world: breadth
// first flooding of sunlight and three colored torch channels, the matching
// two-phase removal, and the initial top-down propagation of a freshly
// generated space.
package lights

import (
	"voxelize/internal/registry"
	"voxelize/internal/voxel"
	"voxelize/internal/world"
)

// Node is one entry of a light propagation queue.
type Node struct {
	Voxel [3]int
	Level uint32
}

// Bounds restricts propagation to a region, typically a Space's extent.
type Bounds struct {
	Min   [3]int
	Shape [3]int
}

func (b *Bounds) contains(vx, vz int) bool {
	return vx >= b.Min[0] && vx < b.Min[0]+b.Shape[0] &&
		vz >= b.Min[2] && vz < b.Min[2]+b.Shape[2]
}

// VoxelNeighbors are the six axis-aligned neighbor offsets.
var VoxelNeighbors = [6][3]int{
	{1, 0, 0},
	{-1, 0, 0},
	{0, 0, 1},
	{0, 0, -1},
	{0, 1, 0},
	{0, -1, 0},
}

// CanEnterInto reports whether light moving along (dx, dy, dz) can enter a
// block with the given transparency mask through the facing side.
func CanEnterInto(target [6]bool, dx, dy, dz int) bool {
	switch {
	case dx == 1:
		return target[3] // nx
	case dx == -1:
		return target[0] // px
	case dy == 1:
		return target[4] // ny
	case dy == -1:
		return target[1] // py
	case dz == 1:
		return target[5] // nz
	case dz == -1:
		return target[2] // pz
	}
	return false
}

// CanEnter reports whether light can leave the source block and enter the
// target block along (dx, dy, dz).
func CanEnter(source, target [6]bool, dx, dy, dz int) bool {
	var out bool
	switch {
	case dx == 1:
		out = source[0]
	case dx == -1:
		out = source[3]
	case dy == 1:
		out = source[1]
	case dy == -1:
		out = source[4]
	case dz == 1:
		out = source[2]
	case dz == -1:
		out = source[5]
	}
	return out && CanEnterInto(target, dx, dy, dz)
}

func transparencyAt(a world.VoxelAccess, reg *registry.Registry, vx, vy, vz int) [6]bool {
	raw := a.GetRawVoxel(vx, vy, vz)
	block := reg.BlockByID(voxel.ExtractID(raw))
	return block.RotatedTransparency(voxel.ExtractRotation(raw))
}

// FloodLight spreads a queue of light nodes outwards breadth-first. Sunlight
// does not attenuate while traveling straight down at full level. A nil
// bounds restricts propagation only by the world's chunk borders.
func FloodLight(
	a world.VoxelAccess,
	queue []Node,
	color voxel.LightColor,
	reg *registry.Registry,
	cfg world.Config,
	bounds *Bounds,
) {
	isSunlight := color == voxel.Sunlight
	maxHeight := cfg.MaxHeight
	maxLightLevel := cfg.MaxLightLevel

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if node.Level == 0 {
			continue
		}

		vx, vy, vz := node.Voxel[0], node.Voxel[1], node.Voxel[2]
		sourceTransparency := transparencyAt(a, reg, vx, vy, vz)

		for _, offset := range VoxelNeighbors {
			nvy := vy + offset[1]
			if nvy < 0 || nvy >= maxHeight {
				continue
			}

			nvx := vx + offset[0]
			nvz := vz + offset[2]

			if bounds != nil && !bounds.contains(nvx, nvz) {
				continue
			}

			nCoords := voxel.MapVoxelToChunk(nvx, nvy, nvz, cfg.ChunkSize)
			if nCoords.X < cfg.MinChunk[0] || nCoords.X > cfg.MaxChunk[0] ||
				nCoords.Z < cfg.MinChunk[1] || nCoords.Z > cfg.MaxChunk[1] {
				continue
			}

			nextLevel := node.Level - 1
			if isSunlight && offset[1] == -1 && node.Level == maxLightLevel {
				nextLevel = node.Level
			}

			targetTransparency := transparencyAt(a, reg, nvx, nvy, nvz)
			if !CanEnter(sourceTransparency, targetTransparency, offset[0], offset[1], offset[2]) {
				continue
			}

			if world.GetLight(a, nvx, nvy, nvz, color) >= nextLevel {
				continue
			}

			// A failed write means the target cell is not loaded; there is
			// nothing to spread onwards from.
			if !world.SetLight(a, nvx, nvy, nvz, nextLevel, color) {
				continue
			}

			queue = append(queue, Node{Voxel: [3]int{nvx, nvy, nvz}, Level: nextLevel})
		}
	}
}

// RemoveLight clears the light emanating from one position and re-floods the
// surviving independent sources around the removed region.
func RemoveLight(
	a world.VoxelAccess,
	position [3]int,
	color voxel.LightColor,
	reg *registry.Registry,
	cfg world.Config,
) {
	RemoveLights(a, [][3]int{position}, color, reg, cfg)
}

// RemoveLights is RemoveLight seeded from several positions at once.
func RemoveLights(
	a world.VoxelAccess,
	positions [][3]int,
	color voxel.LightColor,
	reg *registry.Registry,
	cfg world.Config,
) {
	isSunlight := color == voxel.Sunlight
	maxHeight := cfg.MaxHeight
	maxLightLevel := cfg.MaxLightLevel

	removal := make([]Node, 0, len(positions))
	for _, position := range positions {
		level := world.GetLight(a, position[0], position[1], position[2], color)
		removal = append(removal, Node{Voxel: position, Level: level})
	}

	var refill []Node

	for len(removal) > 0 {
		node := removal[0]
		removal = removal[1:]

		vx, vy, vz := node.Voxel[0], node.Voxel[1], node.Voxel[2]
		world.SetLight(a, vx, vy, vz, 0, color)

		for _, offset := range VoxelNeighbors {
			nvy := vy + offset[1]
			if nvy < 0 || nvy >= maxHeight {
				continue
			}

			nvx := vx + offset[0]
			nvz := vz + offset[2]

			nLevel := world.GetLight(a, nvx, nvy, nvz, color)
			if nLevel == 0 {
				continue
			}

			// Light below the removed level came from here; full-level
			// sunlight below the removal column also descends from it.
			if nLevel < node.Level ||
				(isSunlight && offset[1] == -1 && nLevel == maxLightLevel) {
				removal = append(removal, Node{Voxel: [3]int{nvx, nvy, nvz}, Level: nLevel})
			} else {
				// An independent source survives next door; re-spread it
				// once the removal pass has finished.
				refill = append(refill, Node{Voxel: [3]int{nvx, nvy, nvz}, Level: nLevel})
			}
		}
	}

	FloodLight(a, refill, color, reg, cfg, nil)
}

// Propagate computes the initial light field of a freshly generated space: a
// top-down sunlight sweep over the full footprint, then floods for the sun
// spill edges and every torch-light source found.
func Propagate(space *world.Space, reg *registry.Registry, cfg world.Config) {
	maxLightLevel := cfg.MaxLightLevel
	width := space.Shape[0]
	startX, startZ := space.Min[0], space.Min[2]

	bounds := &Bounds{Min: space.Min, Shape: space.Shape}

	var redQueue, greenQueue, blueQueue, sunQueue []Node

	// mask tracks, per column, the sunlight level still descending.
	mask := make([]uint32, width*width)
	for i := range mask {
		mask[i] = maxLightLevel
	}

	for y := cfg.MaxHeight - 1; y >= 0; y-- {
		for x := range width {
			for z := range width {
				index := x + z*width
				vx, vz := startX+x, startZ+z

				raw := space.GetRawVoxel(vx, y, vz)
				block := reg.BlockByID(voxel.ExtractID(raw))

				if block.IsSeeThrough() {
					world.SetSunlight(space, vx, y, vz, mask[index])

					if mask[index] == 0 {
						// A shadowed column bordering an open one picks up
						// sideways sunlight.
						if (x > 0 && mask[index-1] == maxLightLevel) ||
							(x < width-1 && mask[index+1] == maxLightLevel) ||
							(z > 0 && mask[index-width] == maxLightLevel) ||
							(z < width-1 && mask[index+width] == maxLightLevel) {
							world.SetSunlight(space, vx, y, vz, maxLightLevel-1)
							sunQueue = append(sunQueue, Node{
								Voxel: [3]int{vx, y, vz},
								Level: maxLightLevel - 1,
							})
						}
					}
				} else {
					mask[index] = 0
				}

				if block.IsLight {
					if block.RedLightLevel > 0 {
						world.SetTorchLight(space, vx, y, vz, block.RedLightLevel, voxel.Red)
						redQueue = append(redQueue, Node{Voxel: [3]int{vx, y, vz}, Level: block.RedLightLevel})
					}
					if block.GreenLightLevel > 0 {
						world.SetTorchLight(space, vx, y, vz, block.GreenLightLevel, voxel.Green)
						greenQueue = append(greenQueue, Node{Voxel: [3]int{vx, y, vz}, Level: block.GreenLightLevel})
					}
					if block.BlueLightLevel > 0 {
						world.SetTorchLight(space, vx, y, vz, block.BlueLightLevel, voxel.Blue)
						blueQueue = append(blueQueue, Node{Voxel: [3]int{vx, y, vz}, Level: block.BlueLightLevel})
					}
				}
			}
		}
	}

	if len(redQueue) > 0 {
		FloodLight(space, redQueue, voxel.Red, reg, cfg, bounds)
	}
	if len(greenQueue) > 0 {
		FloodLight(space, greenQueue, voxel.Green, reg, cfg, bounds)
	}
	if len(blueQueue) > 0 {
		FloodLight(space, blueQueue, voxel.Blue, reg, cfg, bounds)
	}
	if len(sunQueue) > 0 {
		FloodLight(space, sunQueue, voxel.Sunlight, reg, cfg, bounds)
	}
}
