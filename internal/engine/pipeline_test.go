package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voxelize/internal/registry"
	"voxelize/internal/voxel"
	"voxelize/internal/world"
)

func testResources() Resources {
	cfg := smallConfig()
	return Resources{Registry: registry.Default(), Config: cfg}
}

func TestPipelineAddIsIdempotent(t *testing.T) {
	p := NewPipeline(testResources(), emptyStages())
	defer p.Close()

	coords := voxel.Coords{X: 1, Z: 2}
	p.Add(coords, false)
	p.Add(coords, false)

	require.Equal(t, 1, p.QueueLen())
	require.True(t, p.Has(coords))
}

func TestPipelineRequeueOnlyWhenTracked(t *testing.T) {
	p := NewPipeline(testResources(), emptyStages())
	defer p.Close()

	coords := voxel.Coords{X: 1, Z: 2}
	p.Add(coords, false)

	popped, ok := p.Pop()
	require.True(t, ok)
	require.Equal(t, coords, popped)
	require.Zero(t, p.QueueLen())
	require.True(t, p.Has(coords), "popped chunks stay tracked until done")

	// A listener wake-up puts it back in the queue exactly once.
	p.Add(coords, true)
	p.Add(coords, true)
	require.Equal(t, 1, p.QueueLen())
}

func TestPipelineMergesConsecutivePlainStages(t *testing.T) {
	res := testResources()
	p := NewPipeline(res, []Stage{
		&FlatlandStage{Height: 2, Top: stoneID, Middle: stoneID, Bottom: stoneID},
		&HeightMapStage{},
	})
	defer p.Close()

	options := world.ChunkOptions{
		Size:      res.Config.ChunkSize,
		MaxHeight: res.Config.MaxHeight,
		SubChunks: res.Config.SubChunks,
	}
	chunk := world.NewChunk("a", 0, 0, options)

	p.Process(chunk, nil, 0)

	var results []PipelineResult
	require.Eventually(t, func() bool {
		results = append(results, p.Results()...)
		return len(results) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Both stages ran in one pass: terrain written and height map computed.
	require.Equal(t, 2, results[0].Processed)
	processed := results[0].Chunk
	require.Equal(t, uint32(stoneID), world.GetVoxel(processed, 0, 1, 0))
	require.Equal(t, uint32(1), processed.GetMaxHeight(0, 0))
}

func TestPipelineCollectsSpilledChanges(t *testing.T) {
	res := testResources()
	trees := NewTreesStage()
	trees.Chance = 0x10000 // every column

	p := NewPipeline(res, []Stage{
		&FlatlandStage{Height: 4, Top: 3 /* grass */, Middle: 2, Bottom: 1},
		trees,
	})
	defer p.Close()

	options := world.ChunkOptions{
		Size:      res.Config.ChunkSize,
		MaxHeight: res.Config.MaxHeight,
		SubChunks: res.Config.SubChunks,
	}
	chunk := world.NewChunk("a", 0, 0, options)

	p.Process(chunk, nil, 0)

	var results []PipelineResult
	require.Eventually(t, func() bool {
		results = append(results, p.Results()...)
		return len(results) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Border canopies spilled into the neighbors.
	require.NotEmpty(t, results[0].Changes)
	for _, change := range results[0].Changes {
		require.False(t, results[0].Chunk.Contains(change.Voxel[0], change.Voxel[1], change.Voxel[2]),
			"spilled change %v is inside the chunk", change.Voxel)
	}

	// The processed chunk carries no residue.
	require.Empty(t, results[0].Chunk.ExtraChanges)
}

func TestListenerChainGeneratesNeighborsOnDemand(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, smallConfig(), emptyStages(), rec)
	center := voxel.Coords{X: 0, Z: 0}

	e.Connect("alice")
	e.RequestChunks("alice", []voxel.Coords{center})
	waitForReady(t, e, center)

	// Every chunk light could traverse from the center exists with data,
	// created purely as context.
	for _, coords := range e.chunks.LightTraversedChunks(center) {
		neighbor := e.chunks.Raw(coords)
		require.NotNil(t, neighbor, "missing context chunk %v", coords)
		require.NotEqual(t, world.StatusGenerating, neighbor.Status)
	}

	// Context chunks did not waste mesh passes.
	west := e.chunks.Raw(voxel.Coords{X: -1, Z: 0})
	require.Nil(t, west.Meshes)
}

func TestAtMostOneInFlightJobPerChunk(t *testing.T) {
	p := NewPipeline(testResources(), emptyStages())
	defer p.Close()

	coords := voxel.Coords{X: 0, Z: 0}
	p.Add(coords, false)

	_, ok := p.Pop()
	require.True(t, ok)

	// While in flight (still tracked), plain adds are rejected.
	p.Add(coords, false)
	require.Zero(t, p.QueueLen())
}
