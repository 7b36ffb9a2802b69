package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"voxelize/internal/voxel"
)

func TestInterestsAddRemove(t *testing.T) {
	interests := NewInterests()
	coords := voxel.Coords{X: 3, Z: 4}

	interests.Add(coords, "alice")
	interests.Add(coords, "alice") // idempotent
	interests.Add(coords, "bob")

	require.True(t, interests.Has(coords))
	require.ElementsMatch(t, []string{"alice", "bob"}, interests.ClientsFor(coords))

	interests.Remove(coords, "alice")
	require.True(t, interests.Has(coords))

	// Removing the last client evicts the entry and its weight.
	interests.Remove(coords, "bob")
	require.False(t, interests.Has(coords))
	require.Empty(t, interests.ClientsFor(coords))

	interests.Remove(coords, "bob") // idempotent
}

func TestInterestsRemoveClient(t *testing.T) {
	interests := NewInterests()
	a := voxel.Coords{X: 0, Z: 0}
	b := voxel.Coords{X: 1, Z: 0}

	interests.Add(a, "alice")
	interests.Add(b, "alice")
	interests.Add(b, "bob")

	interests.RemoveClient("alice")
	require.False(t, interests.Has(a))
	require.True(t, interests.Has(b))
}

func TestInterestsWeightOrdering(t *testing.T) {
	interests := NewInterests()
	near := voxel.Coords{X: 1, Z: 0}
	far := voxel.Coords{X: 10, Z: 0}

	interests.Add(near, "alice")
	interests.Add(far, "alice")

	interests.Recalculate(map[string]voxel.Coords{"alice": {X: 0, Z: 0}})

	require.True(t, interests.Less(near, far))
	require.False(t, interests.Less(far, near))

	// Weighted chunks beat chunks nobody wants.
	require.True(t, interests.Less(far, voxel.Coords{X: 2, Z: 2}))
}

func TestInterestsWeightSumsClients(t *testing.T) {
	interests := NewInterests()
	coords := voxel.Coords{X: 5, Z: 0}

	interests.Add(coords, "alice")
	interests.Add(coords, "bob")

	interests.Recalculate(map[string]voxel.Coords{
		"alice": {X: 0, Z: 0},
		"bob":   {X: 4, Z: 0},
	})

	// 25 + 1.
	require.InDelta(t, 26.0, interests.weights[coords], 1e-9)
}
