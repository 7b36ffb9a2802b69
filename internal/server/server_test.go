package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"voxelize/internal/engine"
	"voxelize/internal/registry"
	"voxelize/internal/voxel"
	"voxelize/internal/world"
)

func testWorldConfig() world.Config {
	cfg := world.DefaultConfig()
	cfg.ChunkSize = 16
	cfg.MaxHeight = 64
	cfg.SubChunks = 8
	cfg.MaxChunksPerTick = 64
	cfg.MinChunk = [2]int{-4, -4}
	cfg.MaxChunk = [2]int{4, 4}
	return cfg
}

func startTestServer(t *testing.T) (*Server, *httptest.Server, context.CancelFunc) {
	t.Helper()
	log := zaptest.NewLogger(t)

	eng, err := engine.New(
		testWorldConfig(),
		engine.Resources{Registry: registry.Default()},
		[]engine.Stage{&engine.HeightMapStage{}},
		nil,
		log,
		nil,
	)
	require.NoError(t, err)

	srv := New(eng, Options{Addr: ":0"}, log)
	eng.SetTransport(srv)

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx, 5*time.Millisecond)

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		httpSrv.Close()
	})

	return srv, httpSrv, cancel
}

func dial(t *testing.T, httpSrv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClientReceivesChunkLoad(t *testing.T) {
	_, httpSrv, _ := startTestServer(t)
	conn := dial(t, httpSrv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "load",
		"chunks": []voxel.Coords{{X: 0, Z: 0}},
	}))

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var message engine.Message
	for {
		require.NoError(t, conn.ReadJSON(&message))
		if message.Type == engine.MessageTypeLoad {
			break
		}
	}

	require.Len(t, message.Chunks, 1)
	payload := message.Chunks[0]
	require.Equal(t, 0, payload.X)
	require.Equal(t, 0, payload.Z)
	require.NotEmpty(t, payload.Voxels)
	require.NotEmpty(t, payload.Lights)
}

func TestClientEditIsBroadcast(t *testing.T) {
	_, httpSrv, _ := startTestServer(t)
	conn := dial(t, httpSrv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "load",
		"chunks": []voxel.Coords{{X: 0, Z: 0}},
	}))

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	// Wait for the chunk to arrive before editing it.
	var message engine.Message
	for {
		require.NoError(t, conn.ReadJSON(&message))
		if message.Type == engine.MessageTypeLoad {
			break
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "update",
		"updates": []map[string]any{
			{"vx": 8, "vy": 32, "vz": 8, "voxel": 1},
		},
	}))

	for {
		require.NoError(t, conn.ReadJSON(&message))
		if message.Type == engine.MessageTypeUpdate && len(message.Updates) > 0 {
			break
		}
	}

	entry := message.Updates[0]
	require.Equal(t, 8, entry.Vx)
	require.Equal(t, 32, entry.Vy)
	require.Equal(t, uint32(1), entry.Voxel&0xFFFF)
}

func TestUnknownMessageTypeIsIgnored(t *testing.T) {
	_, httpSrv, _ := startTestServer(t)
	conn := dial(t, httpSrv)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus"}))

	// The connection stays alive and functional.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "load",
		"chunks": []voxel.Coords{{X: 1, Z: 1}},
	}))

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var message engine.Message
	require.NoError(t, conn.ReadJSON(&message))
}
