package engine

import (
	"runtime"
	"sort"
	"sync"

	"voxelize/internal/lights"
	"voxelize/internal/meshing"
	"voxelize/internal/voxel"
	"voxelize/internal/world"
)

type meshJob struct {
	chunk *world.Chunk
	space *world.Space
}

// Mesher owns the queue of chunks waiting for light propagation and mesh
// extraction, and the worker pool that runs both.
type Mesher struct {
	res Resources

	chunks map[voxel.Coords]struct{}
	queue  []voxel.Coords

	jobs    chan meshJob
	results chan *world.Chunk
	wg      sync.WaitGroup
}

// NewMesher starts the meshing worker pool.
func NewMesher(res Resources) *Mesher {
	m := &Mesher{
		res:     res,
		chunks:  make(map[voxel.Coords]struct{}),
		jobs:    make(chan meshJob, 256),
		results: make(chan *world.Chunk, 256),
	}

	workers := max(runtime.NumCPU()-1, 1)
	for range workers {
		m.wg.Add(1)
		go m.worker()
	}

	return m
}

// Close stops the worker pool. In-flight jobs run to completion.
func (m *Mesher) Close() {
	close(m.jobs)
	m.wg.Wait()
}

// Has reports whether a chunk is waiting or in flight.
func (m *Mesher) Has(coords voxel.Coords) bool {
	_, ok := m.chunks[coords]
	return ok
}

// Add queues a chunk for meshing, mirroring Pipeline.Add's requeue rules.
func (m *Mesher) Add(coords voxel.Coords, requeue bool) {
	if m.Has(coords) {
		if !requeue {
			return
		}
		for _, queued := range m.queue {
			if queued == coords {
				return
			}
		}
		m.queue = append(m.queue, coords)
		return
	}

	m.chunks[coords] = struct{}{}
	m.queue = append(m.queue, coords)
}

// Remove takes a chunk out of the mesher's tracking.
func (m *Mesher) Remove(coords voxel.Coords) {
	delete(m.chunks, coords)
}

// QueueLen returns how many chunks are waiting to be dispatched.
func (m *Mesher) QueueLen() int {
	return len(m.queue)
}

// Sort reorders the waiting queue by interest weight, nearest first.
func (m *Mesher) Sort(interests *Interests) {
	sort.SliceStable(m.queue, func(i, j int) bool {
		return interests.Less(m.queue[i], m.queue[j])
	})
}

// Pop takes the next queued coordinate; the chunk stays tracked until its
// result is harvested.
func (m *Mesher) Pop() (voxel.Coords, bool) {
	if len(m.queue) == 0 {
		return voxel.Coords{}, false
	}
	coords := m.queue[0]
	m.queue = m.queue[1:]
	return coords, true
}

// Process hands a cloned chunk and its strict space to the worker pool.
func (m *Mesher) Process(chunk *world.Chunk, space *world.Space) {
	m.jobs <- meshJob{chunk: chunk, space: space}
}

// Results drains every finished chunk without blocking.
func (m *Mesher) Results() []*world.Chunk {
	var results []*world.Chunk
	for {
		select {
		case chunk := <-m.results:
			results = append(results, chunk)
		default:
			return results
		}
	}
}

func (m *Mesher) worker() {
	defer m.wg.Done()

	for job := range m.jobs {
		m.results <- MeshChunk(job.chunk, job.space, m.res)
	}
}

// MeshChunk runs the full mesh pass for one chunk against its space: initial
// light propagation when the chunk has never been lit, then geometry
// extraction for every dirty sub-chunk.
func MeshChunk(chunk *world.Chunk, space *world.Space, res Resources) *world.Chunk {
	cfg := res.Config

	// A chunk fresh out of the pipeline has no meshes yet; light it from
	// scratch and adopt the propagated field.
	if chunk.Meshes == nil {
		lights.Propagate(space, res.Registry, cfg)
		if propagated := space.LightsAt(chunk.Coords); propagated != nil {
			chunk.Lights = append(chunk.Lights[:0], propagated...)
		}
		chunk.Meshes = make(map[int]*world.SubMesh, cfg.SubChunks)
	}

	blocksPerSubChunk := cfg.MaxHeight / cfg.SubChunks

	for level := range chunk.UpdatedLevels {
		min := [3]int{chunk.Min[0], level * blocksPerSubChunk, chunk.Min[2]}
		max := [3]int{chunk.Max[0], (level + 1) * blocksPerSubChunk, chunk.Max[2]}

		chunk.Meshes[level] = &world.SubMesh{
			Level:       level,
			Opaque:      meshing.MeshSpace(min, max, space, res.Registry, cfg, meshing.PassOpaque),
			Transparent: meshing.MeshSpace(min, max, space, res.Registry, cfg, meshing.PassTransparent),
		}
	}

	chunk.UpdatedLevels = make(map[int]struct{})

	return chunk
}
