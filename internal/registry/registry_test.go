package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"voxelize/internal/voxel"
)

func TestRegistryAirIsAlwaysPresent(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.HasType(0))
	require.True(t, r.IsAir(0))
	require.False(t, r.CheckHeight(0))
}

func TestRegistryUnknownIDFallsBackToAir(t *testing.T) {
	r := NewRegistry()
	block := r.BlockByID(9999)
	require.Equal(t, "air", block.Name)
	require.False(t, r.HasType(9999))
}

func TestRegistryLookupByName(t *testing.T) {
	r := Default()
	stone, err := r.BlockByName("stone")
	require.NoError(t, err)
	require.Equal(t, uint32(1), stone.ID)
	require.True(t, stone.IsOpaque)

	_, err = r.BlockByName("bogus")
	require.Error(t, err)
}

func TestDefaultTorchEmitsLight(t *testing.T) {
	r := Default()
	torch, err := r.BlockByName("torch")
	require.NoError(t, err)
	require.True(t, torch.IsLight)
	require.Equal(t, uint32(15), torch.RedLightLevel)
	require.True(t, torch.IsSeeThrough())
}

func TestRotatedTransparencyIgnoresNonRotatable(t *testing.T) {
	stone := NewCube(1, "stone")
	rotation := voxel.EncodeRotation(voxel.PXRotation, 0)
	require.Equal(t, stone.IsTransparent, stone.RotatedTransparency(rotation))
}

func TestRotatedTransparencyFollowsRotation(t *testing.T) {
	slab := NewCube(10, "slab")
	slab.Rotatable = true
	// Open on top only.
	slab.IsTransparent = [6]bool{false, true, false, false, false, false}

	rotated := slab.RotatedTransparency(voxel.EncodeRotation(voxel.PXRotation, 0))
	require.Equal(t, [6]bool{true, false, false, false, false, false}, rotated)
}

func TestSixFacesCoverEveryDirection(t *testing.T) {
	seen := map[[3]int]bool{}
	for _, face := range SixFaces() {
		seen[face.Dir] = true
	}
	require.Len(t, seen, 6)
}

func TestAABBUnion(t *testing.T) {
	a := AABB{MinX: 0, MinY: 0, MinZ: 0, MaxX: 0.5, MaxY: 1, MaxZ: 0.5}
	b := AABB{MinX: 0.25, MinY: 0, MinZ: 0.25, MaxX: 1, MaxY: 0.5, MaxZ: 1}
	u := a.Union(b)
	require.Equal(t, AABB{MaxX: 1, MaxY: 1, MaxZ: 1}, u)
}
