// Package server exposes the engine over a gorilla/websocket transport: one
// connection per client, JSON messages, with a prometheus metrics endpoint on
// the same mux.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"voxelize/internal/engine"
	"voxelize/internal/voxel"
	"voxelize/internal/world"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 16,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Options configure a Server.
type Options struct {
	Addr string

	// Metrics mounts /metrics backed by this gatherer when non-nil.
	Metrics prometheus.Gatherer
}

// Server accepts websocket clients and bridges them onto the engine's tick
// loop. It implements engine.Transport.
type Server struct {
	engine *engine.Engine
	log    *zap.Logger

	httpServer *http.Server

	mu      sync.RWMutex
	clients map[string]*client
}

// New builds a server around an engine.
func New(eng *engine.Engine, options Options, log *zap.Logger) *Server {
	s := &Server{
		engine:  eng,
		log:     log,
		clients: make(map[string]*client),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	if options.Metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(options.Metrics, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:    options.Addr,
		Handler: mux,
	}

	return s
}

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown closes every client connection and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(uuid.NewString(), conn, s.log)

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.engine.Enqueue(func() { s.engine.Connect(c.id) })

	go c.writePump()
	s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()

		s.engine.Enqueue(func() { s.engine.Disconnect(c.id) })
		c.close()
	}()

	c.conn.SetReadLimit(1 << 22)

	for {
		var incoming clientMessage
		if err := c.conn.ReadJSON(&incoming); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("client read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		s.dispatch(c.id, &incoming)
	}
}

// clientMessage is the inbound message model.
type clientMessage struct {
	Type string `json:"type"`

	// Chunks are the chunk coordinates of load/unload requests.
	Chunks []voxel.Coords `json:"chunks,omitempty"`

	// Updates are proposed voxel edits.
	Updates []struct {
		Vx    int    `json:"vx"`
		Vy    int    `json:"vy"`
		Vz    int    `json:"vz"`
		Voxel uint32 `json:"voxel"`
	} `json:"updates,omitempty"`

	// Position is the client's world position.
	Position *[3]float64 `json:"position,omitempty"`
}

func (s *Server) dispatch(clientID string, incoming *clientMessage) {
	switch incoming.Type {
	case "load":
		coords := append([]voxel.Coords(nil), incoming.Chunks...)
		s.engine.Enqueue(func() { s.engine.RequestChunks(clientID, coords) })

	case "unload":
		coords := append([]voxel.Coords(nil), incoming.Chunks...)
		s.engine.Enqueue(func() { s.engine.UnloadChunks(clientID, coords) })

	case "update":
		updates := make([]world.VoxelUpdate, 0, len(incoming.Updates))
		for _, u := range incoming.Updates {
			updates = append(updates, world.VoxelUpdate{
				Voxel: [3]int{u.Vx, u.Vy, u.Vz},
				Raw:   u.Voxel,
			})
		}
		s.engine.Enqueue(func() { s.engine.PushUpdates(updates) })

	case "position":
		if incoming.Position != nil {
			p := *incoming.Position
			s.engine.Enqueue(func() { s.engine.SetClientPosition(clientID, p[0], p[1], p[2]) })
		}

	default:
		s.log.Warn("unknown client message type",
			zap.String("client", clientID),
			zap.String("type", incoming.Type))
	}
}

/* ---------------------------- engine.Transport --------------------------- */

// Send delivers a message to one client. Under backpressure Load messages are
// dropped first; Update messages always queue.
func (s *Server) Send(clientID string, message *engine.Message) {
	s.mu.RLock()
	c := s.clients[clientID]
	s.mu.RUnlock()

	if c != nil {
		c.send(message)
	}
}

// Broadcast delivers a message to every connected client.
func (s *Server) Broadcast(message *engine.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		c.send(message)
	}
}

/* --------------------------------- client -------------------------------- */

const (
	sendQueueSize = 256
	writeWait     = 10 * time.Second
)

type client struct {
	id   string
	conn *websocket.Conn
	log  *zap.Logger

	outbound chan *engine.Message

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(id string, conn *websocket.Conn, log *zap.Logger) *client {
	return &client{
		id:       id,
		conn:     conn,
		log:      log,
		outbound: make(chan *engine.Message, sendQueueSize),
		closed:   make(chan struct{}),
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// send queues a message for the write pump. A full queue sheds Load messages
// (the client will re-request) but blocks briefly for Updates, which must not
// be lost.
func (c *client) send(message *engine.Message) {
	if message.Type == engine.MessageTypeLoad {
		select {
		case c.outbound <- message:
		case <-c.closed:
		default:
			c.log.Warn("dropping load message under backpressure", zap.String("client", c.id))
		}
		return
	}

	select {
	case c.outbound <- message:
	case <-c.closed:
	}
}

func (c *client) writePump() {
	for {
		select {
		case message := <-c.outbound:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}
