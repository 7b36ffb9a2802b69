package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeBlocks(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blocks.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBlocks(t *testing.T) {
	path := writeBlocks(t, `[
		{"id": 100, "name": "marble", "isOpaque": true},
		{"id": 101, "name": "lantern", "isLight": true, "redLightLevel": 12, "greenLightLevel": 12, "blueLightLevel": 12},
		{"id": 102, "name": "glass", "isTransparent": [true, true, true, true, true, true], "transparentStandalone": true}
	]`)

	r := NewRegistry()
	require.NoError(t, LoadBlocks(path, r))

	marble, err := r.BlockByName("marble")
	require.NoError(t, err)
	require.True(t, marble.IsOpaque)
	require.Len(t, marble.Faces, 6, "faces default to a full cube")
	require.True(t, marble.IsFullCube())
	require.False(t, marble.IsSeeThrough())

	lantern, err := r.BlockByName("lantern")
	require.NoError(t, err)
	require.True(t, lantern.IsLight)
	require.Equal(t, uint32(12), lantern.RedLightLevel)
	require.True(t, lantern.IsSeeThrough(), "non-opaque blocks default to transparent sides")

	glass, err := r.BlockByName("glass")
	require.NoError(t, err)
	require.True(t, glass.TransparentStandalone)
}

func TestLoadBlocksCustomAABB(t *testing.T) {
	path := writeBlocks(t, `[
		{"id": 110, "name": "slab", "isOpaque": true, "aabbs": [[0, 0, 0, 1, 0.5, 1]]}
	]`)

	r := NewRegistry()
	require.NoError(t, LoadBlocks(path, r))

	slab, err := r.BlockByName("slab")
	require.NoError(t, err)
	require.False(t, slab.IsFullCube())
	require.Equal(t, float32(0.5), slab.AABBs[0].MaxY)
}

func TestLoadBlocksRejectsNameless(t *testing.T) {
	path := writeBlocks(t, `[{"id": 1}]`)
	require.Error(t, LoadBlocks(path, NewRegistry()))
}

func TestLoadBlocksMissingFile(t *testing.T) {
	require.Error(t, LoadBlocks(filepath.Join(t.TempDir(), "nope.json"), NewRegistry()))
}
