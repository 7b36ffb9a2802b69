package voxel

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// The six face-up axes a block can be rotated onto.
const (
	PYRotation uint32 = 0
	NYRotation uint32 = 1
	PXRotation uint32 = 2
	NXRotation uint32 = 3
	PZRotation uint32 = 4
	NZRotation uint32 = 5
)

// YRotSegments is the number of discrete angles around the up axis.
const YRotSegments = 16

const halfPi = math.Pi / 2

// Rotation is a block rotation: an axis the block's +Y is mapped onto, plus an
// angle around that axis. The angle is counter-clockwise looking down +Y.
type Rotation struct {
	Axis   uint32
	YAngle float32
}

// EncodeRotation builds a Rotation from a face-up axis and a y-rotation segment.
func EncodeRotation(axis, ySegment uint32) Rotation {
	return Rotation{
		Axis:   axis,
		YAngle: float32(ySegment) * math.Pi * 2 / YRotSegments,
	}
}

// DecodeRotation converts a Rotation back into its packed (axis, segment) pair.
func DecodeRotation(rotation Rotation) (axis, ySegment uint32) {
	segment := float64(rotation.YAngle) * YRotSegments / (math.Pi * 2)
	return rotation.Axis, uint32(math.Round(segment)) % YRotSegments
}

// RotateNode rotates a position within the unit cube. The y-rotation is applied
// about the cube center first when yRotate is set; translate re-offsets the
// result so the rotated cube stays within [0, 1].
func (r Rotation) RotateNode(node mgl32.Vec3, yRotate, translate bool) mgl32.Vec3 {
	if yRotate && abs32(r.YAngle) > epsilon {
		node[0] -= 0.5
		node[2] -= 0.5
		node = rotateY(node, r.YAngle)
		node[0] += 0.5
		node[2] += 0.5
	}

	switch r.Axis {
	case PXRotation:
		node = rotateZ(node, -halfPi)
		if translate {
			node[1] += 1
		}
	case NXRotation:
		node = rotateZ(node, halfPi)
		if translate {
			node[0] += 1
		}
	case NYRotation:
		node = rotateX(node, halfPi*2)
		if translate {
			node[1] += 1
			node[2] += 1
		}
	case PZRotation:
		node = rotateX(node, halfPi)
		if translate {
			node[1] += 1
		}
	case NZRotation:
		node = rotateX(node, -halfPi)
		if translate {
			node[2] += 1
		}
	}

	return node
}

// RotateTransparency maps a per-face transparency mask through this rotation.
// Face directions are tracked as integer vectors so that quarter-turn
// permutations stay exact; the y-angle is snapped to the nearest quarter turn.
func (r Rotation) RotateTransparency(mask [6]bool) [6]bool {
	if r.Axis == PYRotation && abs32(r.YAngle) < epsilon {
		return mask
	}

	var out [6]bool
	for face, dir := range faceDirs {
		rotated := r.rotateIntDir(dir)
		out[dirFace(rotated)] = mask[face]
	}
	return out
}

// faceDirs orders direction vectors as [PX, PY, PZ, NX, NY, NZ], matching the
// transparency mask layout.
var faceDirs = [6][3]int{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
	{-1, 0, 0},
	{0, -1, 0},
	{0, 0, -1},
}

func dirFace(dir [3]int) int {
	for face, d := range faceDirs {
		if d == dir {
			return face
		}
	}
	panic("rotated direction is not axis-aligned")
}

// rotateIntDir applies this rotation to an axis-aligned integer direction.
func (r Rotation) rotateIntDir(dir [3]int) [3]int {
	// Quarter turns around +Y, counter-clockwise looking down.
	_, segment := DecodeRotation(r)
	for range (segment + 2) / 4 % 4 {
		dir = [3]int{dir[2], dir[1], -dir[0]}
	}

	switch r.Axis {
	case PXRotation: // -90 about z
		dir = [3]int{dir[1], -dir[0], dir[2]}
	case NXRotation: // +90 about z
		dir = [3]int{-dir[1], dir[0], dir[2]}
	case NYRotation: // 180 about x
		dir = [3]int{dir[0], -dir[1], -dir[2]}
	case PZRotation: // +90 about x
		dir = [3]int{dir[0], -dir[2], dir[1]}
	case NZRotation: // -90 about x
		dir = [3]int{dir[0], dir[2], -dir[1]}
	}

	return dir
}

func rotateX(node mgl32.Vec3, theta float32) mgl32.Vec3 {
	return mgl32.Rotate3DX(theta).Mul3x1(node)
}

func rotateY(node mgl32.Vec3, theta float32) mgl32.Vec3 {
	return mgl32.Rotate3DY(theta).Mul3x1(node)
}

func rotateZ(node mgl32.Vec3, theta float32) mgl32.Vec3 {
	return mgl32.Rotate3DZ(theta).Mul3x1(node)
}

const epsilon = 1e-6

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
