package world

import "voxelize/internal/voxel"

// VoxelAccess is the raw read/write surface shared by Chunk, Space and
// ChunkMap. Implementations decide how out-of-range coordinates behave; the
// derived helpers below build the typed operations on top.
type VoxelAccess interface {
	// GetRawVoxel returns the packed voxel word, or 0 outside the implementation's range.
	GetRawVoxel(vx, vy, vz int) uint32

	// SetRawVoxel writes a packed voxel word. Returns false if the write was
	// out of range (implementations may buffer it instead, see Chunk).
	SetRawVoxel(vx, vy, vz int, raw uint32) bool

	// GetRawLight returns the packed light word. Implementations backed by
	// missing chunks report full sunlight above y=0.
	GetRawLight(vx, vy, vz int) uint32

	// SetRawLight writes a packed light word. Out-of-range writes are no-ops.
	SetRawLight(vx, vy, vz int, light uint32) bool

	// GetMaxHeight returns the height-map value of the column.
	GetMaxHeight(vx, vz int) uint32

	// SetMaxHeight writes the height-map value of the column.
	SetMaxHeight(vx, vz int, height uint32) bool

	// Contains reports whether the coordinate is inside the loaded range.
	Contains(vx, vy, vz int) bool
}

// GetVoxel reads the block id at a position.
func GetVoxel(a VoxelAccess, vx, vy, vz int) uint32 {
	return voxel.ExtractID(a.GetRawVoxel(vx, vy, vz))
}

// SetVoxel writes a fresh voxel word holding only the block id; rotation and
// stage are reset.
func SetVoxel(a VoxelAccess, vx, vy, vz int, id uint32) bool {
	return a.SetRawVoxel(vx, vy, vz, voxel.InsertID(0, id))
}

// GetVoxelRotation reads the rotation at a position.
func GetVoxelRotation(a VoxelAccess, vx, vy, vz int) voxel.Rotation {
	return voxel.ExtractRotation(a.GetRawVoxel(vx, vy, vz))
}

// SetVoxelRotation writes the rotation at a position, preserving id and stage.
func SetVoxelRotation(a VoxelAccess, vx, vy, vz int, rotation voxel.Rotation) bool {
	raw := a.GetRawVoxel(vx, vy, vz)
	return a.SetRawVoxel(vx, vy, vz, voxel.InsertRotation(raw, rotation))
}

// GetVoxelStage reads the growth stage at a position.
func GetVoxelStage(a VoxelAccess, vx, vy, vz int) uint32 {
	return voxel.ExtractStage(a.GetRawVoxel(vx, vy, vz))
}

// SetVoxelStage writes the growth stage at a position, preserving id and rotation.
func SetVoxelStage(a VoxelAccess, vx, vy, vz int, stage uint32) bool {
	raw := a.GetRawVoxel(vx, vy, vz)
	return a.SetRawVoxel(vx, vy, vz, voxel.InsertStage(raw, stage))
}

// GetSunlight reads the sunlight level at a position.
func GetSunlight(a VoxelAccess, vx, vy, vz int) uint32 {
	return voxel.ExtractSunlight(a.GetRawLight(vx, vy, vz))
}

// SetSunlight writes the sunlight level at a position.
func SetSunlight(a VoxelAccess, vx, vy, vz int, level uint32) bool {
	raw := a.GetRawLight(vx, vy, vz)
	return a.SetRawLight(vx, vy, vz, voxel.InsertSunlight(raw, level))
}

// GetTorchLight reads a colored light level at a position.
func GetTorchLight(a VoxelAccess, vx, vy, vz int, color voxel.LightColor) uint32 {
	raw := a.GetRawLight(vx, vy, vz)
	switch color {
	case voxel.Red:
		return voxel.ExtractRedLight(raw)
	case voxel.Green:
		return voxel.ExtractGreenLight(raw)
	case voxel.Blue:
		return voxel.ExtractBlueLight(raw)
	}
	panic("torch light queried for sunlight channel")
}

// SetTorchLight writes a colored light level at a position.
func SetTorchLight(a VoxelAccess, vx, vy, vz int, level uint32, color voxel.LightColor) bool {
	raw := a.GetRawLight(vx, vy, vz)
	switch color {
	case voxel.Red:
		raw = voxel.InsertRedLight(raw, level)
	case voxel.Green:
		raw = voxel.InsertGreenLight(raw, level)
	case voxel.Blue:
		raw = voxel.InsertBlueLight(raw, level)
	default:
		panic("torch light written for sunlight channel")
	}
	return a.SetRawLight(vx, vy, vz, raw)
}

// GetLight reads the level of any channel, sunlight included.
func GetLight(a VoxelAccess, vx, vy, vz int, color voxel.LightColor) uint32 {
	if color == voxel.Sunlight {
		return GetSunlight(a, vx, vy, vz)
	}
	return GetTorchLight(a, vx, vy, vz, color)
}

// SetLight writes the level of any channel, sunlight included.
func SetLight(a VoxelAccess, vx, vy, vz int, level uint32, color voxel.LightColor) bool {
	if color == voxel.Sunlight {
		return SetSunlight(a, vx, vy, vz, level)
	}
	return SetTorchLight(a, vx, vy, vz, level, color)
}
