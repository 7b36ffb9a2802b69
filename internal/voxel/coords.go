package voxel

import "fmt"

// Coords identifies a chunk column in the world's 2D chunk grid.
type Coords struct {
	X, Z int
}

func (c Coords) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Name returns the canonical chunk name used for persistence file names.
func (c Coords) Name() string {
	return fmt.Sprintf("chunk-%d-%d", c.X, c.Z)
}

// DistanceSquared returns the squared chunk-grid distance to another coordinate.
func (c Coords) DistanceSquared(other Coords) float64 {
	dx := float64(c.X - other.X)
	dz := float64(c.Z - other.Z)
	return dx*dx + dz*dz
}

// MapVoxelToChunk converts a world voxel position to the chunk containing it.
func MapVoxelToChunk(vx, vy, vz, chunkSize int) Coords {
	_ = vy
	return Coords{
		X: floorDiv(vx, chunkSize),
		Z: floorDiv(vz, chunkSize),
	}
}

// MapVoxelToLocal converts a world voxel position to chunk-local coordinates.
func MapVoxelToLocal(vx, vy, vz, chunkSize int) (lx, ly, lz int) {
	return mod(vx, chunkSize), vy, mod(vz, chunkSize)
}

// MapWorldToVoxel floors float world coordinates onto the voxel grid.
func MapWorldToVoxel(wx, wy, wz float64) (vx, vy, vz int) {
	return floorInt(wx), floorInt(wy), floorInt(wz)
}

func floorInt(v float64) int {
	i := int(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return i
}

// floorDiv performs integer division that rounds down for negative numbers.
func floorDiv(a, b int) int {
	if a < 0 {
		return (a - b + 1) / b
	}
	return a / b
}

// mod returns the remainder of a/b, always positive.
func mod(a, b int) int {
	result := a % b
	if result < 0 {
		result += b
	}
	return result
}
