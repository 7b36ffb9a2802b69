package engine

import (
	"voxelize/internal/voxel"
	"voxelize/internal/world"
)

// MessageType tags an outbound message.
type MessageType string

const (
	MessageTypeLoad   MessageType = "load"
	MessageTypeUpdate MessageType = "update"
	MessageTypeUnload MessageType = "unload"
)

// ChunkPayload is the full chunk content of a Load (or chunk-level Update)
// message.
type ChunkPayload struct {
	X      int              `json:"x"`
	Z      int              `json:"z"`
	ID     string           `json:"id"`
	Meshes []*world.SubMesh `json:"meshes"`
	Voxels []uint32         `json:"voxels,omitempty"`
	Lights []uint32         `json:"lights,omitempty"`
}

// UpdateEntry is one fine-grained voxel edit result.
type UpdateEntry struct {
	Vx    int    `json:"vx"`
	Vy    int    `json:"vy"`
	Vz    int    `json:"vz"`
	Voxel uint32 `json:"voxel"`
	Light uint32 `json:"light"`
}

// Message is an outbound server message. Encoding is the transport's concern.
type Message struct {
	Type    MessageType    `json:"type"`
	Chunks  []ChunkPayload `json:"chunks,omitempty"`
	Updates []UpdateEntry  `json:"updates,omitempty"`
	Unloads []voxel.Coords `json:"unloads,omitempty"`
}

// Transport delivers messages to connected clients. The websocket server
// implements it; tests substitute a recorder.
type Transport interface {
	// Send delivers a message to one client. Implementations drop Load
	// messages first under backpressure, never Updates.
	Send(clientID string, message *Message)
	// Broadcast delivers a message to every connected client.
	Broadcast(message *Message)
}

func chunkPayload(chunk *world.Chunk, withData bool) ChunkPayload {
	payload := ChunkPayload{
		X:  chunk.Coords.X,
		Z:  chunk.Coords.Z,
		ID: chunk.ID,
	}

	meshes := make([]*world.SubMesh, 0, len(chunk.Meshes))
	for level := range chunk.Options.SubChunks {
		if mesh, ok := chunk.Meshes[level]; ok {
			meshes = append(meshes, mesh)
		}
	}
	payload.Meshes = meshes

	if withData {
		payload.Voxels = chunk.Voxels
		payload.Lights = chunk.Lights
	}

	return payload
}
