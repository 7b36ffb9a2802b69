// Package engine runs the chunk lifecycle of a voxel world: the staged
// generation pipeline, light propagation, meshing, block updates and the
// per-client interest bookkeeping, all orchestrated by a single tick loop.
//
// The tick loop is the only writer of the chunk map. Workers receive cloned
// chunks and hand results back over channels, so the map needs no locking.
package engine

import (
	"context"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"voxelize/internal/profiling"
	"voxelize/internal/storage"
	"voxelize/internal/voxel"
	"voxelize/internal/world"
)

// Client is the engine's view of one connected client.
type Client struct {
	ID           string
	Position     [3]float64
	CurrentChunk voxel.Coords
}

// Engine ties the chunk map, pipeline, mesher, interests and update queue
// together under one tick loop.
type Engine struct {
	cfg world.Config
	res Resources

	chunks    *world.ChunkMap
	pipeline  *Pipeline
	mesher    *Mesher
	interests *Interests

	updates []world.VoxelUpdate

	// inbox carries requests from transport goroutines onto the tick loop,
	// which is the only goroutine allowed to mutate engine state.
	inboxMu sync.Mutex
	inbox   []func()

	clients   map[string]*Client
	transport Transport

	saver *storage.Saver

	log     *zap.Logger
	metrics *Metrics
}

// New assembles an engine. A nil stages slice selects the default terrain
// lineup; a nil metrics registerer leaves the collectors unregistered.
func New(
	cfg world.Config,
	res Resources,
	stages []Stage,
	transport Transport,
	log *zap.Logger,
	metricsReg prometheus.Registerer,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if stages == nil {
		stages = DefaultStages()
	}
	res.Config = cfg

	e := &Engine{
		cfg:       cfg,
		res:       res,
		chunks:    world.NewChunkMap(cfg),
		pipeline:  NewPipeline(res, stages),
		mesher:    NewMesher(res),
		interests: NewInterests(),
		clients:   make(map[string]*Client),
		transport: transport,
		log:       log,
		metrics:   NewMetrics(metricsReg),
	}

	if cfg.Saving {
		e.saver = storage.NewSaver(cfg.SaveDir, log)
	}

	return e, nil
}

// SetTransport installs the outbound transport. Call before Run: the
// transport usually needs the engine first, so it cannot be a New parameter.
func (e *Engine) SetTransport(transport Transport) {
	e.transport = transport
}

// Enqueue schedules a function onto the tick loop. Transport goroutines use
// this for every engine mutation: connects, interest changes, edits.
func (e *Engine) Enqueue(fn func()) {
	e.inboxMu.Lock()
	e.inbox = append(e.inbox, fn)
	e.inboxMu.Unlock()
}

func (e *Engine) drainInbox() {
	e.inboxMu.Lock()
	pending := e.inbox
	e.inbox = nil
	e.inboxMu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// Chunks exposes the chunk map; callers outside the tick loop may only read.
func (e *Engine) Chunks() *world.ChunkMap {
	return e.chunks
}

// Config returns the world config.
func (e *Engine) Config() world.Config {
	return e.cfg
}

// Connect registers a client.
func (e *Engine) Connect(clientID string) {
	e.clients[clientID] = &Client{ID: clientID}
	e.log.Info("client connected", zap.String("client", clientID))
}

// Disconnect removes a client and all of its interests. In-flight chunk work
// keeps running; its results simply stop being broadcast to this client.
func (e *Engine) Disconnect(clientID string) {
	delete(e.clients, clientID)
	e.interests.RemoveClient(clientID)
	e.log.Info("client disconnected", zap.String("client", clientID))
}

// SetClientPosition records a client's world position, feeding the interest
// weights.
func (e *Engine) SetClientPosition(clientID string, x, y, z float64) {
	if client, ok := e.clients[clientID]; ok {
		client.Position = [3]float64{x, y, z}
	}
}

// RequestChunks subscribes a client to chunk coordinates and schedules any
// that are not ready yet.
func (e *Engine) RequestChunks(clientID string, coords []voxel.Coords) {
	for _, c := range coords {
		if !e.chunks.IsWithinWorld(c) {
			continue
		}

		e.interests.Add(c, clientID)

		if e.chunks.IsChunkReady(c) {
			e.chunks.AddChunkToSend(c, world.MessageLoad)
			continue
		}

		// A chunk parked after generation resumes at the mesher; anything
		// else (missing or mid-generation) goes through the pipeline.
		if chunk := e.chunks.Raw(c); chunk != nil && chunk.Status != world.StatusGenerating {
			e.mesher.Add(c, false)
		} else if !e.mesher.Has(c) {
			e.pipeline.Add(c, false)
		}
	}
}

// UnloadChunks drops a client's interest in chunk coordinates.
func (e *Engine) UnloadChunks(clientID string, coords []voxel.Coords) {
	for _, c := range coords {
		e.interests.Remove(c, clientID)
	}
}

// PushUpdates enqueues proposed block edits for the next ticks.
func (e *Engine) PushUpdates(updates []world.VoxelUpdate) {
	e.updates = append(e.updates, updates...)
}

// Run ticks the engine until the context is cancelled, then shuts down.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Close()
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one iteration of every system in declared order: current-chunk
// update, generation, updating, sending.
func (e *Engine) Tick() {
	start := time.Now()
	defer func() {
		e.metrics.TickDuration.Observe(time.Since(start).Seconds())
		profiling.ResetFrame()
	}()

	e.drainInbox()

	e.updateCurrentChunks()
	e.recalculateInterests()

	toNotify := map[voxel.Coords]struct{}{}
	e.harvestPipeline(toNotify)
	e.dispatchPipeline(toNotify)
	e.harvestMesher(toNotify)
	e.dispatchMesher()
	e.notifyListeners(toNotify)

	e.processUpdates()

	e.sendChunks()

	e.metrics.PipelineQueue.Set(float64(e.pipeline.QueueLen()))
	e.metrics.MesherQueue.Set(float64(e.mesher.QueueLen()))
	e.metrics.LoadedChunks.Set(float64(e.chunks.Len()))
}

// Close drains the pools, flushes every chunk to disk and stops the saver.
func (e *Engine) Close() {
	e.pipeline.Close()
	e.mesher.Close()

	if e.saver != nil {
		e.chunks.All(func(chunk *world.Chunk) {
			e.queueSave(chunk)
		})
		e.saver.Close()
	}
}

func (e *Engine) chunkOptions() world.ChunkOptions {
	return world.ChunkOptions{
		Size:      e.cfg.ChunkSize,
		MaxHeight: e.cfg.MaxHeight,
		SubChunks: e.cfg.SubChunks,
	}
}

func (e *Engine) updateCurrentChunks() {
	defer profiling.Track("engine.updateCurrentChunks")()
	for _, client := range e.clients {
		vx, vy, vz := voxel.MapWorldToVoxel(client.Position[0], client.Position[1], client.Position[2])
		client.CurrentChunk = voxel.MapVoxelToChunk(vx, vy, vz, e.cfg.ChunkSize)
	}
}

func (e *Engine) recalculateInterests() {
	positions := make(map[string]voxel.Coords, len(e.clients))
	for id, client := range e.clients {
		positions[id] = client.CurrentChunk
	}
	e.interests.Recalculate(positions)
}

/* ------------------------------ generation ------------------------------ */

func (e *Engine) harvestPipeline(toNotify map[voxel.Coords]struct{}) {
	defer profiling.Track("engine.harvestPipeline")()

	for _, result := range e.pipeline.Results() {
		chunk := result.Chunk

		for _, change := range result.Changes {
			e.applyExtraChange(change)
		}

		if chunk.Status != world.StatusGenerating {
			continue
		}

		next := chunk.Stage + result.Processed
		if next >= len(e.pipeline.Stages()) {
			chunk.Status = world.StatusMeshing
			e.pipeline.Remove(chunk.Coords)
			// Chunks generated purely as neighbor context park here with
			// their data available; they only mesh once a client asks.
			if e.interests.Has(chunk.Coords) {
				e.mesher.Add(chunk.Coords, false)
			}
			e.metrics.ChunksGenerated.Inc()
		} else {
			chunk.Stage = next
			e.pipeline.Add(chunk.Coords, true)
		}

		toNotify[chunk.Coords] = struct{}{}
		e.chunks.Renew(chunk)
	}
}

// applyExtraChange resolves one spilled write: directly onto ready chunks,
// buffered into pipeline leftovers otherwise.
func (e *Engine) applyExtraChange(change world.VoxelUpdate) {
	coords := voxel.MapVoxelToChunk(change.Voxel[0], change.Voxel[1], change.Voxel[2], e.cfg.ChunkSize)

	if e.chunks.IsChunkReady(coords) {
		e.applyLeftover(change)
		e.mesher.Add(coords, false)
		return
	}

	e.pipeline.Leftovers[coords] = append(e.pipeline.Leftovers[coords], change)
}

// applyLeftover writes a buffered change onto the live chunk map and patches
// the column height incrementally.
func (e *Engine) applyLeftover(change world.VoxelUpdate) {
	vx, vy, vz := change.Voxel[0], change.Voxel[1], change.Voxel[2]

	e.chunks.SetRawVoxel(vx, vy, vz, change.Raw)

	id := voxel.ExtractID(change.Raw)
	height := int(e.chunks.GetMaxHeight(vx, vz))

	if e.res.Registry.IsAir(id) {
		if vy == height {
			for y := vy - 1; y >= 0; y-- {
				if y == 0 || e.res.Registry.CheckHeight(world.GetVoxel(e.chunks, vx, y, vz)) {
					e.chunks.SetMaxHeight(vx, vz, uint32(y))
					break
				}
			}
		}
	} else if height < vy {
		e.chunks.SetMaxHeight(vx, vz, uint32(vy))
	}
}

func (e *Engine) dispatchPipeline(toNotify map[voxel.Coords]struct{}) {
	defer profiling.Track("engine.dispatchPipeline")()

	if e.pipeline.QueueLen() == 0 {
		return
	}

	e.pipeline.Sort(e.interests)

	budget := e.cfg.MaxChunksPerTick
	for budget > 0 {
		coords, ok := e.pipeline.Pop()
		if !ok {
			break
		}

		if !e.chunks.IsWithinWorld(coords) {
			e.pipeline.Remove(coords)
			continue
		}

		chunk := e.chunks.Raw(coords)
		if chunk == nil {
			if loaded := e.tryLoad(coords); loaded != nil {
				e.pipeline.Remove(coords)
				e.chunks.Renew(loaded)
				if e.interests.Has(coords) {
					e.mesher.Add(coords, false)
				}
				// Chunks waiting on this one never see a pipeline result,
				// so wake them from here.
				toNotify[coords] = struct{}{}
				continue
			}

			chunk = world.NewChunk(uuid.NewString(), coords.X, coords.Z, e.chunkOptions())
			e.chunks.Renew(chunk)
		}

		if chunk.Status != world.StatusGenerating {
			e.pipeline.Remove(coords)
			continue
		}

		stage := e.pipeline.Stages()[chunk.Stage]
		margin := stage.Neighbors(e.cfg)

		if margin > 0 && !e.pipelineDependenciesReady(coords, chunk.Stage, margin) {
			// The chunk stays tracked; a listener wakes it up.
			continue
		}

		var space *world.Space
		if data := stage.NeedsSpace(); data != nil {
			space = e.chunks.MakeSpace(coords, max(margin, 1)).Needs(*data).Build()
		}

		e.pipeline.Process(chunk.Clone(), space, chunk.Stage)
		budget--
	}
}

// pipelineDependenciesReady checks the neighbor ring a stage requires. Any
// missing or lagging neighbor registers this chunk as its listener (and is
// itself scheduled when absent).
func (e *Engine) pipelineDependenciesReady(coords voxel.Coords, stageIndex, margin int) bool {
	radius := int(math.Ceil(float64(margin) / float64(e.cfg.ChunkSize)))

	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			if x == 0 && z == 0 || x*x+z*z > radius*radius {
				continue
			}

			nCoords := voxel.Coords{X: coords.X + x, Z: coords.Z + z}
			if !e.chunks.IsWithinWorld(nCoords) || e.chunks.IsChunkReady(nCoords) {
				continue
			}

			neighbor := e.chunks.Raw(nCoords)
			if neighbor != nil && neighbor.Status == world.StatusGenerating && neighbor.Stage >= stageIndex {
				continue
			}
			if neighbor != nil && neighbor.Status != world.StatusGenerating {
				continue
			}

			if neighbor == nil {
				// The neighbor only exists as generation context; create the
				// demand for it here.
				e.pipeline.Add(nCoords, false)
			}

			e.chunks.AddListener(nCoords, coords)
			return false
		}
	}

	return true
}

func (e *Engine) tryLoad(coords voxel.Coords) *world.Chunk {
	if e.saver == nil {
		return nil
	}

	data, err := storage.LoadChunk(e.cfg.SaveDir, coords)
	if err != nil {
		if !os.IsNotExist(err) {
			e.log.Warn("failed to load chunk", zap.String("chunk", coords.Name()), zap.Error(err))
		}
		return nil
	}

	chunk := world.NewChunk(data.ID, coords.X, coords.Z, e.chunkOptions())
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	if len(data.Voxels) != len(chunk.Voxels) || len(data.HeightMap) != len(chunk.HeightMap) {
		e.log.Warn("persisted chunk has wrong dimensions, regenerating",
			zap.String("chunk", coords.Name()))
		return nil
	}

	copy(chunk.Voxels, data.Voxels)
	copy(chunk.HeightMap, data.HeightMap)
	// Lights are not persisted; the mesh pass re-propagates them.
	chunk.Status = world.StatusMeshing

	return chunk
}

func (e *Engine) harvestMesher(toNotify map[voxel.Coords]struct{}) {
	defer profiling.Track("engine.harvestMesher")()

	for _, chunk := range e.mesher.Results() {
		kind := world.MessageLoad

		if live := e.chunks.Raw(chunk.Coords); live != nil {
			if live.Status == world.StatusReady {
				kind = world.MessageUpdate
			}

			// The mesh pass never writes voxels or heights, so the live
			// arrays are authoritative: edits may have landed while the job
			// was in flight. Their dirty levels trigger a follow-up remesh.
			chunk.Voxels = live.Voxels
			chunk.HeightMap = live.HeightMap
			if live.Meshes != nil {
				chunk.Lights = live.Lights
			}
			for level := range live.UpdatedLevels {
				chunk.UpdatedLevels[level] = struct{}{}
			}
		}

		chunk.Status = world.StatusReady
		e.mesher.Remove(chunk.Coords)
		e.chunks.Renew(chunk)
		e.chunks.AddChunkToSend(chunk.Coords, kind)

		if len(chunk.UpdatedLevels) > 0 {
			e.mesher.Add(chunk.Coords, false)
		}

		toNotify[chunk.Coords] = struct{}{}
		e.metrics.ChunksMeshed.Inc()
	}
}

func (e *Engine) dispatchMesher() {
	defer profiling.Track("engine.dispatchMesher")()

	if e.mesher.QueueLen() == 0 {
		return
	}

	e.mesher.Sort(e.interests)

	budget := e.cfg.MaxChunksPerTick
	for budget > 0 {
		coords, ok := e.mesher.Pop()
		if !ok {
			break
		}

		chunk := e.chunks.Raw(coords)
		if chunk == nil {
			e.mesher.Remove(coords)
			continue
		}

		if !e.meshDependenciesReady(coords) {
			continue
		}

		// Flush buffered spill writes now that the chunk is about to mesh.
		if leftovers, ok := e.pipeline.Leftovers[coords]; ok {
			for _, change := range leftovers {
				e.applyLeftover(change)
			}
			delete(e.pipeline.Leftovers, coords)
			chunk = e.chunks.Raw(coords)
		}

		if e.cfg.Saving {
			e.queueSave(chunk)
		}

		builder := e.chunks.MakeSpace(coords, int(e.cfg.MaxLightLevel)).
			NeedsVoxels().NeedsHeightMaps()
		if chunk.Meshes != nil {
			builder = builder.NeedsLights()
		}
		space := builder.Strict().Build()

		clone := chunk.Clone()
		// The job owns these dirty levels now; anything flagged on the live
		// chunk from here on is new work.
		chunk.UpdatedLevels = make(map[int]struct{})

		e.mesher.Process(clone, space)
		budget--
	}
}

// meshDependenciesReady requires every chunk light could traverse from the
// center to at least have left the generation pipeline.
func (e *Engine) meshDependenciesReady(coords voxel.Coords) bool {
	for _, nCoords := range e.chunks.LightTraversedChunks(coords) {
		if !e.chunks.IsWithinWorld(nCoords) {
			continue
		}

		neighbor := e.chunks.Raw(nCoords)
		if neighbor == nil {
			e.pipeline.Add(nCoords, false)
			e.chunks.AddListener(nCoords, coords)
			return false
		}
		if neighbor.Status == world.StatusGenerating {
			e.chunks.AddListener(nCoords, coords)
			return false
		}
	}
	return true
}

func (e *Engine) notifyListeners(toNotify map[voxel.Coords]struct{}) {
	for coords := range toNotify {
		for _, nCoords := range e.chunks.TakeListeners(coords) {
			neighbor := e.chunks.Raw(nCoords)
			if neighbor == nil || neighbor.Status == world.StatusGenerating {
				e.pipeline.Add(nCoords, true)
			} else if neighbor.Status == world.StatusMeshing {
				e.mesher.Add(nCoords, true)
			}
		}
	}
}

func (e *Engine) queueSave(chunk *world.Chunk) {
	if e.saver == nil {
		return
	}
	e.saver.Queue(storage.ChunkData{
		Coords:    chunk.Coords,
		ID:        chunk.ID,
		Voxels:    append([]uint32(nil), chunk.Voxels...),
		HeightMap: append([]uint32(nil), chunk.HeightMap...),
	})
}

/* -------------------------------- sending ------------------------------- */

func (e *Engine) sendChunks() {
	defer profiling.Track("engine.sendChunks")()

	if e.transport == nil {
		e.chunks.DrainToSend(0)
		return
	}

	sent := make(map[string]int)
	items := e.chunks.DrainToSend(0)

	for index, item := range items {
		chunk := e.chunks.Get(item.Coords)
		if chunk == nil {
			continue
		}

		message := &Message{
			Type:   MessageTypeLoad,
			Chunks: []ChunkPayload{chunkPayload(chunk, item.Kind == world.MessageLoad)},
		}
		if item.Kind == world.MessageUpdate {
			message.Type = MessageTypeUpdate
		} else if item.Kind == world.MessageUnload {
			message = &Message{Type: MessageTypeUnload, Unloads: []voxel.Coords{item.Coords}}
		}

		delivered := false
		blocked := false
		for _, clientID := range e.interests.ClientsFor(item.Coords) {
			if sent[clientID] >= e.cfg.MaxResponsePerTick {
				blocked = true
				continue
			}
			e.transport.Send(clientID, message)
			sent[clientID]++
			delivered = true
		}

		// Nobody had budget left: put the rest back and stop for this tick.
		if blocked && !delivered {
			for _, rest := range items[index:] {
				e.chunks.AddChunkToSend(rest.Coords, rest.Kind)
			}
			return
		}
	}
}
