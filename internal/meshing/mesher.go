// Package meshing turns voxel data into renderable geometry, one vertical
// sub-chunk slab at a time. The mesher is pure: it reads a Space and produces
// a Geometry batch, leaving scheduling to the engine.
package meshing

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelize/internal/lights"
	"voxelize/internal/registry"
	"voxelize/internal/voxel"
	"voxelize/internal/world"
)

// Pass selects which geometry batch a mesh run produces.
type Pass int

const (
	PassOpaque Pass = iota
	PassTransparent
)

// inTransparentPass reports whether a block's faces belong to the transparent
// batch: fluids, light emitters and anything with a see-through face.
func inTransparentPass(block *registry.Block) bool {
	return block.IsFluid || block.IsLight || block.IsSeeThrough()
}

// MeshSpace extracts the faces of every voxel inside [min, max) from a strict
// space. Returns nil when the slab produced no geometry for the pass.
func MeshSpace(
	min, max [3]int,
	space *world.Space,
	reg *registry.Registry,
	cfg world.Config,
	pass Pass,
) *world.Geometry {
	geometry := &world.Geometry{}

	for vx := min[0]; vx < max[0]; vx++ {
		for vz := min[2]; vz < max[2]; vz++ {
			for vy := min[1]; vy < max[1]; vy++ {
				raw := space.GetRawVoxel(vx, vy, vz)
				id := voxel.ExtractID(raw)
				block := reg.BlockByID(id)

				if block.IsEmpty || len(block.Faces) == 0 {
					continue
				}

				transparent := inTransparentPass(block)
				if (pass == PassTransparent) != transparent {
					continue
				}

				rotation := voxel.ExtractRotation(raw)
				meshVoxel(geometry, space, reg, cfg, block, rotation, vx, vy, vz)
			}
		}
	}

	if geometry.IsEmpty() {
		return nil
	}
	return geometry
}

func meshVoxel(
	geometry *world.Geometry,
	space *world.Space,
	reg *registry.Registry,
	cfg world.Config,
	block *registry.Block,
	rotation voxel.Rotation,
	vx, vy, vz int,
) {
	rotatable := block.Rotatable || block.YRotatable

	for i := range block.Faces {
		face := &block.Faces[i]

		dir := face.Dir
		if rotatable {
			dir = rotateDir(rotation, dir)
		}

		if !faceVisible(space, reg, cfg, block, face, dir, vx+dir[0], vy+dir[1], vz+dir[2]) {
			continue
		}

		emitFace(geometry, space, cfg, block, face, rotation, rotatable, dir, vx, vy, vz)
	}
}

// faceVisible applies the occlusion rule. A face below the world floor is
// never drawn, and a fluid face touching the same fluid is dropped. Otherwise
// an independent or isolated face, or any face of a transparent-standalone
// block, is always drawn; any other face is hidden when the neighbor is
// opaque on the shared side or is a see-through full cube.
func faceVisible(
	space *world.Space,
	reg *registry.Registry,
	cfg world.Config,
	block *registry.Block,
	face *registry.BlockFace,
	dir [3]int,
	nvx, nvy, nvz int,
) bool {
	if nvy < 0 {
		return false
	}
	if nvy >= cfg.MaxHeight {
		return true
	}

	nRaw := space.GetRawVoxel(nvx, nvy, nvz)
	nID := voxel.ExtractID(nRaw)
	nBlock := reg.BlockByID(nID)

	// Touching fluids of the same kind merge; the shared face is dropped.
	if block.IsFluid && nID == block.ID {
		return false
	}

	if face.Independent || face.Isolated || block.TransparentStandalone {
		return true
	}

	if nBlock.IsOpaque {
		nTransparency := nBlock.RotatedTransparency(voxel.ExtractRotation(nRaw))
		return lights.CanEnterInto(nTransparency, dir[0], dir[1], dir[2])
	}

	// A see-through full cube (glass, torch cubes) still covers the whole
	// face it touches; drawing behind it would only waste triangles.
	return nBlock.IsEmpty || nBlock.IsFluid || !nBlock.IsFullCube()
}

func emitFace(
	geometry *world.Geometry,
	space *world.Space,
	cfg world.Config,
	block *registry.Block,
	face *registry.BlockFace,
	rotation voxel.Rotation,
	rotatable bool,
	dir [3]int,
	vx, vy, vz int,
) {
	vertexBase := int32(len(geometry.Positions) / 3)

	for _, corner := range face.Corners {
		pos := mgl32.Vec3{corner.Pos[0], corner.Pos[1], corner.Pos[2]}
		if rotatable {
			pos = rotation.RotateNode(pos, block.YRotatable, true)
		}

		geometry.Positions = append(geometry.Positions,
			pos.X()+float32(vx),
			pos.Y()+float32(vy),
			pos.Z()+float32(vz),
		)

		geometry.UVs = append(geometry.UVs,
			face.Range.StartU+corner.UV[0]*(face.Range.EndU-face.Range.StartU),
			face.Range.StartV+corner.UV[1]*(face.Range.EndV-face.Range.StartV),
		)

		geometry.Lights = append(geometry.Lights,
			sampleCornerLight(space, cfg, dir, corner.Pos, vx, vy, vz))
	}

	geometry.Indices = append(geometry.Indices,
		vertexBase, vertexBase+1, vertexBase+2,
		vertexBase+2, vertexBase+1, vertexBase+3,
	)
}

func rotateDir(rotation voxel.Rotation, dir [3]int) [3]int {
	v := rotation.RotateNode(mgl32.Vec3{float32(dir[0]), float32(dir[1]), float32(dir[2])}, true, false)
	return [3]int{roundDir(v.X()), roundDir(v.Y()), roundDir(v.Z())}
}

func roundDir(v float32) int {
	switch {
	case v > 0.5:
		return 1
	case v < -0.5:
		return -1
	}
	return 0
}

// sampleCornerLight samples the light at one face corner with a 2x2 smoothing
// kernel over the light cells adjacent to the corner on the face's outside,
// giving the soft ambient-occlusion style gradient. The four channel averages
// are packed back into a single value, nibble layout matching the light word.
func sampleCornerLight(
	space *world.Space,
	cfg world.Config,
	dir [3]int,
	corner [3]float32,
	vx, vy, vz int,
) int32 {
	// The base sampling cell sits on the face's outside.
	bx, by, bz := vx+dir[0], vy+dir[1], vz+dir[2]

	// Corner offsets along the two axes tangent to the face: a corner at 0
	// looks to the negative side, a corner at 1 to the positive side.
	offsets := make([][3]int, 0, 4)
	offsets = append(offsets, [3]int{0, 0, 0})

	du, dv := tangentOffsets(dir, corner)
	offsets = append(offsets, du, dv, [3]int{du[0] + dv[0], du[1] + dv[1], du[2] + dv[2]})

	var sumRed, sumGreen, sumBlue, sumSun, count uint32
	for _, offset := range offsets {
		sx, sy, sz := bx+offset[0], by+offset[1], bz+offset[2]
		if sy < 0 || sy >= cfg.MaxHeight {
			continue
		}

		raw := space.GetRawLight(sx, sy, sz)
		sumRed += voxel.ExtractRedLight(raw)
		sumGreen += voxel.ExtractGreenLight(raw)
		sumBlue += voxel.ExtractBlueLight(raw)
		sumSun += voxel.ExtractSunlight(raw)
		count++
	}

	if count == 0 {
		return 0
	}

	light := voxel.InsertRedLight(0, sumRed/count)
	light = voxel.InsertGreenLight(light, sumGreen/count)
	light = voxel.InsertBlueLight(light, sumBlue/count)
	light = voxel.InsertSunlight(light, sumSun/count)
	return int32(light)
}

// tangentOffsets derives the two smoothing offsets of a corner from the face
// direction: the kernel reaches one cell towards the corner along each axis
// tangent to the face.
func tangentOffsets(dir [3]int, corner [3]float32) ([3]int, [3]int) {
	var tangents [][3]int
	for axis := range 3 {
		if dir[axis] != 0 {
			continue
		}
		var offset [3]int
		if corner[axis] > 0.5 {
			offset[axis] = 1
		} else {
			offset[axis] = -1
		}
		tangents = append(tangents, offset)
	}
	// Diagonal faces have fewer than two tangent axes; their corners sample
	// the base cell only.
	if len(tangents) < 2 {
		return [3]int{}, [3]int{}
	}
	return tangents[0], tangents[1]
}
