package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
	"github.com/samirrijal/livemap/internal/pkg/metrics"
)

// wsMessage is sent by the client.
//
//	{"action":"popup","layer":"vehicles","id":"1710","open":true}
//	{"action":"resync"}
type wsMessage struct {
	Action string `json:"action"`
	Layer  string `json:"layer,omitempty"`
	ID     string `json:"id,omitempty"`
	Open   bool   `json:"open,omitempty"`
}

// wsFrame is sent to the client.
type wsFrame struct {
	Type    string               `json:"type"` // hello | events | ack | error
	Session string               `json:"session,omitempty"`
	Layer   domain.LayerKind     `json:"layer,omitempty"`
	Events  []domain.MarkerEvent `json:"events,omitempty"`
	Action  string               `json:"action,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Hub fans layer snapshots out to WebSocket sessions. It implements
// ports.SnapshotSink; every session diffs snapshots against its own
// marker views.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	latest   map[domain.LayerKind][]domain.MarkerSpec
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]*session),
		latest:   make(map[domain.LayerKind][]domain.MarkerSpec),
	}
}

// PublishSnapshot implements ports.SnapshotSink.
func (h *Hub) PublishSnapshot(layer domain.LayerKind, specs []domain.MarkerSpec) {
	h.mu.Lock()
	h.latest[layer] = specs
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.enqueue(layer, specs)
	}
}

// Sessions returns the number of connected sessions.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	latest := make(map[domain.LayerKind][]domain.MarkerSpec, len(h.latest))
	for layer, specs := range h.latest {
		latest[layer] = specs
	}
	h.mu.Unlock()

	for layer, specs := range latest {
		s.enqueue(layer, specs)
	}
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()
}

// resync drops a session's views and queues the latest snapshots again,
// so the client receives every marker as an addition.
func (h *Hub) resync(s *session) {
	for _, view := range s.views {
		view.Reset()
	}
	h.mu.RLock()
	latest := make(map[domain.LayerKind][]domain.MarkerSpec, len(h.latest))
	for layer, specs := range h.latest {
		latest[layer] = specs
	}
	h.mu.RUnlock()

	for layer, specs := range latest {
		s.enqueue(layer, specs)
	}
}

// session is one WebSocket connection with its own marker views.
type session struct {
	id    string
	views map[domain.LayerKind]*usecases.MarkerSet

	mu      sync.Mutex
	pending map[domain.LayerKind][]domain.MarkerSpec
	notify  chan struct{}

	writeMu sync.Mutex
	conn    frameWriter
}

func newSession(conn frameWriter) *session {
	views := make(map[domain.LayerKind]*usecases.MarkerSet, len(domain.Layers))
	for _, layer := range domain.Layers {
		views[layer] = usecases.NewMarkerSet(layer)
	}
	return &session{
		id:      uuid.NewString(),
		views:   views,
		pending: make(map[domain.LayerKind][]domain.MarkerSpec),
		notify:  make(chan struct{}, 1),
		conn:    conn,
	}
}

// enqueue keeps only the newest unsent snapshot of each layer. Snapshots
// are full state, so an overwritten one is safe to lose.
func (s *session) enqueue(layer domain.LayerKind, specs []domain.MarkerSpec) {
	s.mu.Lock()
	if _, waiting := s.pending[layer]; waiting {
		metrics.DroppedSnapshots.Inc()
	}
	s.pending[layer] = specs
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// flush applies pending snapshots to the session's views and writes the
// resulting events, one frame per layer.
func (s *session) flush() error {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[domain.LayerKind][]domain.MarkerSpec)
	s.mu.Unlock()

	for _, layer := range domain.Layers {
		specs, ok := pending[layer]
		if !ok {
			continue
		}
		view, ok := s.views[layer]
		if !ok {
			continue
		}
		events := view.Apply(specs)
		if len(events) == 0 {
			continue
		}
		if err := s.write(wsFrame{Type: "events", Layer: layer, Events: events}); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) write(frame wsFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// handle processes one client message.
func (s *session) handle(hub *Hub, raw []byte) error {
	var m wsMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return s.write(wsFrame{Type: "error", Error: "invalid JSON"})
	}

	switch m.Action {
	case "popup":
		layer, err := domain.ParseLayer(m.Layer)
		if err != nil {
			return s.write(wsFrame{Type: "error", Action: m.Action, Error: err.Error()})
		}
		if err := s.views[layer].SetPopupOpen(m.ID, m.Open); err != nil {
			if errors.Is(err, domain.ErrMarkerNotFound) {
				return s.write(wsFrame{Type: "error", Action: m.Action, Layer: layer, Error: "marker not found: " + m.ID})
			}
			return err
		}
		return s.write(wsFrame{Type: "ack", Action: m.Action, Layer: layer})

	case "resync":
		hub.resync(s)
		return s.write(wsFrame{Type: "ack", Action: m.Action})

	default:
		return s.write(wsFrame{Type: "error", Action: m.Action, Error: "unknown action: " + m.Action})
	}
}

// WebSocketHandler returns a handler that streams marker events to the
// client. Each connection starts from an empty view and receives the
// current markers as additions.
func WebSocketHandler(hub *Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		s := newSession(c)
		logger := slog.Default().With("session", s.id, "remote", c.RemoteAddr().String())
		logger.Info("ws client connected")

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		if err := s.write(wsFrame{Type: "hello", Session: s.id}); err != nil {
			return
		}
		hub.register(s)
		defer hub.unregister(s)

		// Writer: snapshots and keep-alive pings
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-s.notify:
					if err := s.flush(); err != nil {
						logger.Debug("ws write failed", "error", err)
						_ = c.Close()
						return
					}
				case <-ticker.C:
					if err := s.ping(); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			if err := s.handle(hub, msg); err != nil {
				logger.Debug("ws handle failed", "error", err)
				break
			}
		}

		close(done)
		logger.Info("ws client disconnected")
	}
}
