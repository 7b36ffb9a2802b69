package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"voxelize/internal/registry"
	"voxelize/internal/voxel"
	"voxelize/internal/world"
)

// recorder is a Transport that captures everything the engine sends.
type recorder struct {
	mu         sync.Mutex
	sent       map[string][]*Message
	broadcasts []*Message
}

func newRecorder() *recorder {
	return &recorder{sent: make(map[string][]*Message)}
}

func (r *recorder) Send(clientID string, message *Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[clientID] = append(r.sent[clientID], message)
}

func (r *recorder) Broadcast(message *Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, message)
}

func (r *recorder) broadcastCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.broadcasts)
}

func (r *recorder) lastBroadcast() *Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.broadcasts) == 0 {
		return nil
	}
	return r.broadcasts[len(r.broadcasts)-1]
}

func (r *recorder) sentTo(clientID string) []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Message(nil), r.sent[clientID]...)
}

func smallConfig() world.Config {
	cfg := world.DefaultConfig()
	cfg.ChunkSize = 16
	cfg.MaxHeight = 64
	cfg.SubChunks = 8
	cfg.MaxChunksPerTick = 64
	cfg.MinChunk = [2]int{-4, -4}
	cfg.MaxChunk = [2]int{4, 4}
	return cfg
}

func newTestEngine(t *testing.T, cfg world.Config, stages []Stage, transport Transport) *Engine {
	t.Helper()
	e, err := New(cfg, Resources{Registry: registry.Default()}, stages, transport, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		e.pipeline.Close()
		e.mesher.Close()
	})
	return e
}

// emptyStages generate nothing but still compute height maps, producing
// all-air chunks quickly.
func emptyStages() []Stage {
	return []Stage{&HeightMapStage{}}
}

func tickUntil(t *testing.T, e *Engine, what string, condition func() bool) {
	t.Helper()
	for range 400 {
		e.Tick()
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForReady(t *testing.T, e *Engine, coords voxel.Coords) {
	t.Helper()
	tickUntil(t, e, "chunk "+coords.Name(), func() bool {
		return e.chunks.IsChunkReady(coords)
	})
}

func applyUpdates(t *testing.T, e *Engine, updates ...world.VoxelUpdate) {
	t.Helper()
	e.PushUpdates(updates)
	tickUntil(t, e, "updates to drain", func() bool { return len(e.updates) == 0 })
}

func rawEdit(vx, vy, vz int, id uint32) world.VoxelUpdate {
	return world.VoxelUpdate{Voxel: [3]int{vx, vy, vz}, Raw: voxel.InsertID(0, id)}
}

const (
	stoneID = 1
	torchID = 8
)

func TestEngineGeneratesRequestedChunk(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, smallConfig(), emptyStages(), rec)

	e.Connect("alice")
	e.RequestChunks("alice", []voxel.Coords{{X: 0, Z: 0}})

	waitForReady(t, e, voxel.Coords{X: 0, Z: 0})

	chunk := e.chunks.Get(voxel.Coords{X: 0, Z: 0})
	require.NotNil(t, chunk)
	require.Equal(t, world.StatusReady, chunk.Status)
	require.NotNil(t, chunk.Meshes)
	require.Empty(t, chunk.UpdatedLevels)

	// The client received the Load message.
	tickUntil(t, e, "load message", func() bool {
		for _, message := range rec.sentTo("alice") {
			if message.Type == MessageTypeLoad {
				return true
			}
		}
		return false
	})
}

// S1: one stone, one torch in a single chunk.
func TestScenarioStoneAndTorch(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, smallConfig(), emptyStages(), rec)
	center := voxel.Coords{X: 0, Z: 0}

	e.Connect("alice")
	e.RequestChunks("alice", []voxel.Coords{center})
	waitForReady(t, e, center)

	applyUpdates(t, e,
		rawEdit(8, 32, 8, stoneID),
		rawEdit(8, 33, 8, torchID),
	)

	chunks := e.chunks
	require.Equal(t, uint32(15), world.GetTorchLight(chunks, 8, 33, 8, voxel.Red))
	require.Equal(t, uint32(14), world.GetTorchLight(chunks, 7, 33, 8, voxel.Red))
	require.Equal(t, uint32(14), world.GetTorchLight(chunks, 8, 33, 9, voxel.Red))
	require.Equal(t, uint32(0), world.GetTorchLight(chunks, 8, 32, 8, voxel.Red), "opaque stone holds no light")

	chunk := chunks.Get(center)
	require.NotNil(t, chunk)
	mesh := chunk.Meshes[4] // slab y=32..39
	require.NotNil(t, mesh)

	opaqueFaces := len(mesh.Opaque.Indices) / 6
	transparentFaces := len(mesh.Transparent.Indices) / 6
	require.Equal(t, 5, opaqueFaces, "stone: all faces but the one under the torch")
	require.Equal(t, 5, transparentFaces, "torch: all faces but the one on the stone")
}

// S2: removing the torch zeroes its light and broadcasts the edit.
func TestScenarioRemoveTorch(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, smallConfig(), emptyStages(), rec)
	center := voxel.Coords{X: 0, Z: 0}

	e.Connect("alice")
	e.RequestChunks("alice", []voxel.Coords{center})
	waitForReady(t, e, center)

	applyUpdates(t, e, rawEdit(8, 33, 8, torchID))
	before := rec.broadcastCount()

	applyUpdates(t, e, rawEdit(8, 33, 8, 0))

	chunks := e.chunks
	for dx := -15; dx <= 15; dx++ {
		if 8+dx < 0 || 8+dx > 15 {
			continue
		}
		require.Zero(t, world.GetTorchLight(chunks, 8+dx, 33, 8, voxel.Red))
	}

	require.Greater(t, rec.broadcastCount(), before)
	broadcast := rec.lastBroadcast()
	require.Equal(t, MessageTypeUpdate, broadcast.Type)
	require.Len(t, broadcast.Updates, 1)
	entry := broadcast.Updates[0]
	require.Equal(t, uint32(0), voxel.ExtractID(entry.Voxel))
	require.Equal(t, uint32(0), voxel.ExtractRedLight(entry.Light))
}

// S3: opening a shaft in a roof lets sunlight descend without decay.
func TestScenarioSunlightShaft(t *testing.T) {
	cfg := smallConfig()
	rec := newRecorder()
	e := newTestEngine(t, cfg, []Stage{
		&FlatlandStage{Height: 1, Top: stoneID, Middle: stoneID, Bottom: stoneID},
		&roofStage{y: 41, id: stoneID},
		&HeightMapStage{},
	}, rec)
	center := voxel.Coords{X: 0, Z: 0}

	e.Connect("alice")
	e.RequestChunks("alice", []voxel.Coords{center})
	waitForReady(t, e, center)

	// Under the roof it is dark.
	require.Zero(t, world.GetSunlight(e.chunks, 8, 20, 8))

	applyUpdates(t, e, rawEdit(8, 41, 8, 0))

	// Sunlight pours straight down the shaft at full level.
	require.Equal(t, cfg.MaxLightLevel, world.GetSunlight(e.chunks, 8, 41, 8))
	require.Equal(t, cfg.MaxLightLevel, world.GetSunlight(e.chunks, 8, 20, 8))
	require.Equal(t, cfg.MaxLightLevel, world.GetSunlight(e.chunks, 8, 1, 8))

	// Sideways it decrements.
	require.Equal(t, cfg.MaxLightLevel-1, world.GetSunlight(e.chunks, 9, 20, 8))
}

// S4: a torch at a chunk border lights both chunks; removal darkens both.
func TestScenarioCrossChunkTorch(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, smallConfig(), emptyStages(), rec)
	center := voxel.Coords{X: 0, Z: 0}
	west := voxel.Coords{X: -1, Z: 0}

	e.Connect("alice")
	e.RequestChunks("alice", []voxel.Coords{center, west})
	waitForReady(t, e, center)
	waitForReady(t, e, west)

	applyUpdates(t, e, rawEdit(0, 32, 0, torchID))

	require.Equal(t, uint32(14), world.GetTorchLight(e.chunks, -1, 32, 0, voxel.Red))
	require.Equal(t, uint32(13), world.GetTorchLight(e.chunks, -2, 32, 0, voxel.Red))

	// Both chunks were remeshed: the torch voxel touches chunk (-1,0) too.
	applyUpdates(t, e, rawEdit(0, 32, 0, 0))
	require.Zero(t, world.GetTorchLight(e.chunks, -1, 32, 0, voxel.Red))
	require.Zero(t, world.GetTorchLight(e.chunks, 0, 32, 0, voxel.Red))
}

// S5: the height map follows edits down a column.
func TestScenarioHeightMapUnderEdit(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, smallConfig(), emptyStages(), rec)
	center := voxel.Coords{X: 0, Z: 0}

	e.Connect("alice")
	e.RequestChunks("alice", []voxel.Coords{center})
	waitForReady(t, e, center)

	applyUpdates(t, e,
		rawEdit(0, 10, 0, stoneID),
		rawEdit(0, 20, 0, stoneID),
	)
	require.Equal(t, uint32(20), e.chunks.GetMaxHeight(0, 0))

	applyUpdates(t, e, rawEdit(0, 20, 0, 0))
	require.Equal(t, uint32(10), e.chunks.GetMaxHeight(0, 0))

	applyUpdates(t, e, rawEdit(0, 10, 0, 0))
	require.Equal(t, uint32(0), e.chunks.GetMaxHeight(0, 0))
}

// Boundary: an edit on a chunk corner dirties every affected chunk.
func TestBoundaryEditMarksAllAffectedChunks(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, smallConfig(), emptyStages(), rec)

	wanted := []voxel.Coords{{X: 0, Z: 0}, {X: -1, Z: 0}, {X: 0, Z: -1}, {X: -1, Z: -1}}
	e.Connect("alice")
	e.RequestChunks("alice", wanted)
	for _, coords := range wanted {
		waitForReady(t, e, coords)
	}

	applyUpdates(t, e, rawEdit(0, 30, 0, stoneID))

	// All four chunks got fresh meshes with empty dirty sets.
	for _, coords := range wanted {
		chunk := e.chunks.Get(coords)
		require.NotNil(t, chunk, "%v", coords)
		require.Empty(t, chunk.UpdatedLevels, "%v still dirty", coords)
	}
}

func TestUnknownBlockEditIsDropped(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, smallConfig(), emptyStages(), rec)
	center := voxel.Coords{X: 0, Z: 0}

	e.Connect("alice")
	e.RequestChunks("alice", []voxel.Coords{center})
	waitForReady(t, e, center)

	applyUpdates(t, e, rawEdit(8, 32, 8, 9999))
	require.Equal(t, uint32(0), world.GetVoxel(e.chunks, 8, 32, 8))
}

func TestOutOfWorldEditIsNoOp(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, smallConfig(), emptyStages(), rec)
	center := voxel.Coords{X: 0, Z: 0}

	e.Connect("alice")
	e.RequestChunks("alice", []voxel.Coords{center})
	waitForReady(t, e, center)

	e.PushUpdates([]world.VoxelUpdate{
		rawEdit(8, -1, 8, stoneID),
		rawEdit(8, 64, 8, stoneID),
		rawEdit(8000, 32, 8, stoneID), // beyond MaxChunk
	})
	e.Tick()
	require.Empty(t, e.updates)
}

// Idempotence: applying the same edit twice changes nothing the second time.
func TestEditIdempotence(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, smallConfig(), emptyStages(), rec)
	center := voxel.Coords{X: 0, Z: 0}

	e.Connect("alice")
	e.RequestChunks("alice", []voxel.Coords{center})
	waitForReady(t, e, center)

	applyUpdates(t, e, rawEdit(8, 32, 8, torchID))
	snapshotVoxels := append([]uint32(nil), e.chunks.Raw(center).Voxels...)
	snapshotLights := append([]uint32(nil), e.chunks.Raw(center).Lights...)
	snapshotHeights := append([]uint32(nil), e.chunks.Raw(center).HeightMap...)

	applyUpdates(t, e, rawEdit(8, 32, 8, torchID))

	require.Equal(t, snapshotVoxels, e.chunks.Raw(center).Voxels)
	require.Equal(t, snapshotLights, e.chunks.Raw(center).Lights)
	require.Equal(t, snapshotHeights, e.chunks.Raw(center).HeightMap)
}

func TestDeferredEditAppliesOnceChunkIsReady(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, smallConfig(), emptyStages(), rec)
	center := voxel.Coords{X: 0, Z: 0}

	// Push the edit before the chunk exists.
	e.PushUpdates([]world.VoxelUpdate{rawEdit(8, 32, 8, stoneID)})
	e.Tick()
	require.Len(t, e.updates, 1, "edit should defer, not drop")

	e.Connect("alice")
	e.RequestChunks("alice", []voxel.Coords{center})
	waitForReady(t, e, center)

	tickUntil(t, e, "deferred edit", func() bool { return len(e.updates) == 0 })
	require.Equal(t, uint32(stoneID), world.GetVoxel(e.chunks, 8, 32, 8))
}

// roofStage lays one solid layer at a fixed height, for sunlight tests.
type roofStage struct {
	y  int
	id uint32
}

func (s *roofStage) Name() string                 { return "roof" }
func (s *roofStage) Neighbors(world.Config) int   { return 0 }
func (s *roofStage) NeedsSpace() *world.SpaceData { return nil }

func (s *roofStage) Process(chunk *world.Chunk, _ Resources, _ *world.Space) *world.Chunk {
	for vx := chunk.Min[0]; vx < chunk.Max[0]; vx++ {
		for vz := chunk.Min[2]; vz < chunk.Max[2]; vz++ {
			world.SetVoxel(chunk, vx, s.y, vz, s.id)
		}
	}
	return chunk
}
