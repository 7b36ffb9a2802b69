package storage

import (
	"sync"

	"go.uber.org/zap"

	"voxelize/internal/voxel"
)

// Saver writes chunks to disk on a dedicated background goroutine so the tick
// loop never blocks on I/O. Saves for the same chunk queued back-to-back are
// deduplicated: the latest snapshot wins.
type Saver struct {
	dir string
	log *zap.Logger

	mu      sync.Mutex
	pending map[voxel.Coords]ChunkData

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewSaver starts the background save loop.
func NewSaver(dir string, log *zap.Logger) *Saver {
	s := &Saver{
		dir:     dir,
		log:     log,
		pending: make(map[voxel.Coords]ChunkData),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.loop()
	return s
}

// Queue schedules a chunk snapshot for saving, replacing any snapshot of the
// same chunk still waiting.
func (s *Saver) Queue(data ChunkData) {
	s.mu.Lock()
	s.pending[data.Coords] = data
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Saver) loop() {
	defer close(s.stopped)
	for {
		select {
		case <-s.wake:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *Saver) flush() {
	for {
		s.mu.Lock()
		var data ChunkData
		found := false
		for coords, entry := range s.pending {
			data = entry
			found = true
			delete(s.pending, coords)
			break
		}
		s.mu.Unlock()

		if !found {
			return
		}

		if err := SaveChunk(s.dir, data); err != nil {
			s.log.Warn("failed to save chunk",
				zap.String("chunk", data.Coords.Name()),
				zap.Error(err))
		}
	}
}

// Close flushes everything still pending and waits for the loop to stop.
func (s *Saver) Close() {
	s.once.Do(func() {
		close(s.done)
	})
	<-s.stopped
}
