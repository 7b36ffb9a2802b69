package world

import (
	"testing"

	"github.com/stretchr/testify/require"

	"voxelize/internal/voxel"
)

func readyChunkMap(t *testing.T, cfg Config, coords ...voxel.Coords) *ChunkMap {
	t.Helper()
	m := NewChunkMap(cfg)
	for _, c := range coords {
		chunk := NewChunk(c.Name(), c.X, c.Z, chunkOptionsFor(cfg))
		m.Renew(chunk)
	}
	return m
}

func TestSpacePermissiveDefaults(t *testing.T) {
	cfg := testConfig()
	m := readyChunkMap(t, cfg, voxel.Coords{X: 0, Z: 0})

	space := m.MakeSpace(voxel.Coords{X: 0, Z: 0}, int(cfg.MaxLightLevel)).
		NeedsVoxels().NeedsLights().Build()

	// Inside the loaded chunk: real data.
	require.Equal(t, uint32(0), GetVoxel(space, 4, 4, 4))

	// Missing neighbor: voxels default to 0, sunlight to full above the floor.
	require.Equal(t, uint32(0), GetVoxel(space, -4, 4, -4))
	require.Equal(t, cfg.MaxLightLevel, GetSunlight(space, -4, 4, -4))
	require.Equal(t, uint32(0), GetSunlight(space, -4, -1, -4))

	// Writes to missing neighbors are no-ops.
	require.False(t, SetSunlight(space, -4, 4, -4, 3))
}

func TestSpaceStrictPanicsOnMissingNeighbor(t *testing.T) {
	cfg := testConfig()
	m := readyChunkMap(t, cfg, voxel.Coords{X: 0, Z: 0})

	require.Panics(t, func() {
		m.MakeSpace(voxel.Coords{X: 0, Z: 0}, int(cfg.MaxLightLevel)).
			NeedsVoxels().Strict().Build()
	})
}

func TestSpaceStrictSucceedsWithFullNeighborhood(t *testing.T) {
	cfg := testConfig()
	m := NewChunkMap(cfg)
	center := voxel.Coords{X: 0, Z: 0}
	for _, coords := range m.LightTraversedChunks(center) {
		m.Renew(NewChunk(coords.Name(), coords.X, coords.Z, chunkOptionsFor(cfg)))
	}

	require.NotPanics(t, func() {
		space := m.MakeSpace(center, int(cfg.MaxLightLevel)).
			NeedsVoxels().NeedsHeightMaps().Strict().Build()
		require.Equal(t, cfg.ChunkSize+2*int(cfg.MaxLightLevel), space.Width)
	})
}

func TestSpaceWritesAreBufferedNotLive(t *testing.T) {
	cfg := testConfig()
	m := readyChunkMap(t, cfg, voxel.Coords{X: 0, Z: 0})

	space := m.MakeSpace(voxel.Coords{X: 0, Z: 0}, 1).NeedsVoxels().Build()
	require.True(t, SetVoxel(space, 4, 4, 4, 9))
	require.Equal(t, uint32(9), GetVoxel(space, 4, 4, 4))

	// The live chunk is untouched until the space's data is harvested.
	require.Equal(t, uint32(0), GetVoxel(m, 4, 4, 4))
}

func TestSpaceLightsAtCenter(t *testing.T) {
	cfg := testConfig()
	m := readyChunkMap(t, cfg, voxel.Coords{X: 0, Z: 0})
	center := voxel.Coords{X: 0, Z: 0}

	space := m.MakeSpace(center, 1).NeedsVoxels().Build()
	require.True(t, SetSunlight(space, 4, 10, 4, 7))

	lights := space.LightsAt(center)
	require.NotNil(t, lights)

	chunk := NewChunk("scratch", 0, 0, chunkOptionsFor(cfg))
	chunk.Lights = lights
	require.Equal(t, uint32(7), GetSunlight(chunk, 4, 10, 4))
}

func TestSpaceWithoutVoxelsPanics(t *testing.T) {
	cfg := testConfig()
	m := readyChunkMap(t, cfg, voxel.Coords{X: 0, Z: 0})
	space := m.MakeSpace(voxel.Coords{X: 0, Z: 0}, 1).NeedsLights().Build()

	require.Panics(t, func() { space.GetRawVoxel(0, 0, 0) })
}
