package engine

import (
	"runtime"
	"sort"
	"sync"

	"voxelize/internal/voxel"
	"voxelize/internal/world"
)

// pipelineJob carries one chunk through one (or more, when merged) stages on
// a worker goroutine.
type pipelineJob struct {
	chunk *world.Chunk
	space *world.Space
	// index of the first stage to run.
	index int
}

// PipelineResult is a processed chunk returned to the tick loop.
type PipelineResult struct {
	Chunk *world.Chunk
	// Changes are the writes that spilled outside the chunk.
	Changes []world.VoxelUpdate
	// Processed is how many consecutive stages the worker executed.
	Processed int
}

// Pipeline owns the ordered stage list and the queue of chunks moving through
// it. Chunks are dispatched to a worker pool one stage at a time; the tick
// loop harvests results and advances their status.
type Pipeline struct {
	res    Resources
	stages []Stage

	// chunks tracks every coordinate currently inside the pipeline, queued
	// or in flight, guaranteeing at most one job per chunk.
	chunks map[voxel.Coords]struct{}
	queue  []voxel.Coords

	// Leftovers buffers spilled writes for chunks that were not ready to
	// take them; they are applied right before the target chunk meshes.
	Leftovers map[voxel.Coords][]world.VoxelUpdate

	jobs    chan pipelineJob
	results chan PipelineResult
	wg      sync.WaitGroup
}

// NewPipeline builds a pipeline with the given stage lineup and starts its
// worker pool.
func NewPipeline(res Resources, stages []Stage) *Pipeline {
	p := &Pipeline{
		res:       res,
		stages:    stages,
		chunks:    make(map[voxel.Coords]struct{}),
		Leftovers: make(map[voxel.Coords][]world.VoxelUpdate),
		jobs:      make(chan pipelineJob, 256),
		results:   make(chan PipelineResult, 256),
	}

	workers := max(runtime.NumCPU()-1, 1)
	for range workers {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Close stops the worker pool. In-flight jobs run to completion.
func (p *Pipeline) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// Stages returns the stage lineup.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// Has reports whether a chunk is inside the pipeline.
func (p *Pipeline) Has(coords voxel.Coords) bool {
	_, ok := p.chunks[coords]
	return ok
}

// Add pushes a chunk into the queue. Chunks already in the pipeline are left
// alone unless requeue is set, which re-queues a tracked chunk that is
// currently not queued (used by listener notifications).
func (p *Pipeline) Add(coords voxel.Coords, requeue bool) {
	if len(p.stages) == 0 {
		return
	}

	if p.Has(coords) {
		if !requeue {
			return
		}
		for _, queued := range p.queue {
			if queued == coords {
				return
			}
		}
		p.queue = append(p.queue, coords)
		return
	}

	p.chunks[coords] = struct{}{}
	p.queue = append(p.queue, coords)
}

// Remove takes a chunk out of the pipeline entirely.
func (p *Pipeline) Remove(coords voxel.Coords) {
	delete(p.chunks, coords)
}

// QueueLen returns how many chunks are waiting to be dispatched.
func (p *Pipeline) QueueLen() int {
	return len(p.queue)
}

// Sort reorders the waiting queue by interest weight, nearest first.
func (p *Pipeline) Sort(interests *Interests) {
	sort.SliceStable(p.queue, func(i, j int) bool {
		return interests.Less(p.queue[i], p.queue[j])
	})
}

// Pop takes the next queued coordinate. The chunk stays tracked in the
// pipeline so it cannot be double-dispatched.
func (p *Pipeline) Pop() (voxel.Coords, bool) {
	if len(p.queue) == 0 {
		return voxel.Coords{}, false
	}
	coords := p.queue[0]
	p.queue = p.queue[1:]
	return coords, true
}

// Process hands a chunk to the worker pool for the stage at index. The chunk
// must be a clone; the worker owns it until the result is harvested.
func (p *Pipeline) Process(chunk *world.Chunk, space *world.Space, index int) {
	p.jobs <- pipelineJob{chunk: chunk, space: space, index: index}
}

// Results drains every finished job without blocking.
func (p *Pipeline) Results() []PipelineResult {
	var results []PipelineResult
	for {
		select {
		case result := <-p.results:
			results = append(results, result)
		default:
			return results
		}
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		chunk := job.chunk
		index := job.index

		chunk = p.stages[index].Process(chunk, p.res, job.space)
		processed := 1

		// Consecutive stages with no space and no neighbor requirements are
		// fused into the same pass; the collapse is invisible to callers.
		for index+processed < len(p.stages) {
			next := p.stages[index+processed]
			if next.NeedsSpace() != nil || next.Neighbors(p.res.Config) > 0 {
				break
			}
			chunk = next.Process(chunk, p.res, nil)
			processed++
		}

		changes := chunk.ExtraChanges
		chunk.ExtraChanges = nil

		p.results <- PipelineResult{Chunk: chunk, Changes: changes, Processed: processed}
	}
}
