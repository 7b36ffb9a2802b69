package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine's prometheus collectors.
type Metrics struct {
	ChunksGenerated prometheus.Counter
	ChunksMeshed    prometheus.Counter
	VoxelUpdates    prometheus.Counter
	UpdatesDropped  prometheus.Counter
	PipelineQueue   prometheus.Gauge
	MesherQueue     prometheus.Gauge
	LoadedChunks    prometheus.Gauge
	TickDuration    prometheus.Histogram
}

// NewMetrics builds and registers the engine collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChunksGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxelize", Name: "chunks_generated_total",
			Help: "Chunks that completed the generation pipeline.",
		}),
		ChunksMeshed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxelize", Name: "chunks_meshed_total",
			Help: "Chunk mesh passes completed.",
		}),
		VoxelUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxelize", Name: "voxel_updates_total",
			Help: "Voxel edits applied.",
		}),
		UpdatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxelize", Name: "voxel_updates_dropped_total",
			Help: "Voxel edits rejected by validation.",
		}),
		PipelineQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxelize", Name: "pipeline_queue_depth",
			Help: "Chunks waiting in the generation queue.",
		}),
		MesherQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxelize", Name: "mesher_queue_depth",
			Help: "Chunks waiting in the meshing queue.",
		}),
		LoadedChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxelize", Name: "loaded_chunks",
			Help: "Chunks currently held in memory.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxelize", Name: "tick_duration_seconds",
			Help:    "Wall time of one engine tick.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ChunksGenerated, m.ChunksMeshed,
			m.VoxelUpdates, m.UpdatesDropped,
			m.PipelineQueue, m.MesherQueue, m.LoadedChunks,
			m.TickDuration,
		)
	}

	return m
}
