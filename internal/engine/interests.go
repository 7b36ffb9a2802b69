package engine

import (
	"voxelize/internal/voxel"
)

// Interests tracks which clients want which chunks, plus a per-chunk weight
// recomputed every tick from the squared chunk distance to each interested
// client. Queues drain smaller weights first, so chunks close to clients win.
type Interests struct {
	coords  map[voxel.Coords]map[string]struct{}
	weights map[voxel.Coords]float64
}

// NewInterests creates an empty interest table.
func NewInterests() *Interests {
	return &Interests{
		coords:  make(map[voxel.Coords]map[string]struct{}),
		weights: make(map[voxel.Coords]float64),
	}
}

// Add subscribes a client to a chunk. Idempotent.
func (i *Interests) Add(coords voxel.Coords, clientID string) {
	clients, ok := i.coords[coords]
	if !ok {
		clients = make(map[string]struct{})
		i.coords[coords] = clients
	}
	clients[clientID] = struct{}{}
}

// Remove unsubscribes a client from a chunk. Removing the last client evicts
// the entry and its weight. Idempotent.
func (i *Interests) Remove(coords voxel.Coords, clientID string) {
	clients, ok := i.coords[coords]
	if !ok {
		return
	}
	delete(clients, clientID)
	if len(clients) == 0 {
		delete(i.coords, coords)
		delete(i.weights, coords)
	}
}

// RemoveClient drops every interest a client holds.
func (i *Interests) RemoveClient(clientID string) {
	for coords := range i.coords {
		i.Remove(coords, clientID)
	}
}

// Has reports whether any client is interested in a chunk.
func (i *Interests) Has(coords voxel.Coords) bool {
	return len(i.coords[coords]) > 0
}

// ClientsFor returns the ids of clients interested in a chunk.
func (i *Interests) ClientsFor(coords voxel.Coords) []string {
	clients := i.coords[coords]
	ids := make([]string, 0, len(clients))
	for id := range clients {
		ids = append(ids, id)
	}
	return ids
}

// Recalculate rebuilds every chunk weight from the clients' current chunk
// positions.
func (i *Interests) Recalculate(clientChunks map[string]voxel.Coords) {
	i.weights = make(map[voxel.Coords]float64, len(i.coords))

	for coords, clients := range i.coords {
		weight := 0.0
		for clientID := range clients {
			if current, ok := clientChunks[clientID]; ok {
				weight += coords.DistanceSquared(current)
			}
		}
		i.weights[coords] = weight
	}
}

// Less orders two chunks for queue draining: smaller weight first; chunks
// without any weight sort last.
func (i *Interests) Less(a, b voxel.Coords) bool {
	weightA, okA := i.weights[a]
	weightB, okB := i.weights[b]
	if okA != okB {
		return okA
	}
	return weightA < weightB
}
