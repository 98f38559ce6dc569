package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/basislabs/basisd/pkg/coin"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 512,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is handled by the main server.
		return true
	},
}

// subscriberBuffer bounds the per-subscriber event queue. A subscriber
// that cannot keep up loses events rather than stalling the engine loop.
const subscriberBuffer = 128

// Hub fans engine events out to websocket subscribers. Subscribers
// filter by event kind: a bond-market UI can follow NewBond/BondFulfilled
// without seeing every transfer. No filter means every event.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
	log  *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		log:  log,
	}
}

// Broadcast delivers an event message to every subscriber whose filter
// matches its kind. A subscriber with a full queue misses the event;
// the stream is best-effort, the REST queries are the source of truth.
func (h *Hub) Broadcast(msg EventMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.wants(msg.Event.Kind) {
			continue
		}
		select {
		case sub.send <- msg:
		default:
			// Queue full; the subscriber misses this event.
		}
	}
}

// SubscriberCount reports the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) attach(sub *subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	total := len(h.subs)
	h.mu.Unlock()
	h.log.Infow("event subscriber connected", "remote", sub.remote, "total", total)
}

func (h *Hub) detach(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
	}
	total := len(h.subs)
	h.mu.Unlock()
	h.log.Infow("event subscriber disconnected", "remote", sub.remote, "total", total)
}

// subscriber is one websocket connection and its event-kind filter.
type subscriber struct {
	conn   *websocket.Conn
	send   chan EventMessage
	remote string

	mu    sync.Mutex
	kinds map[coin.EventKind]struct{} // nil or empty = all kinds
}

// wants reports whether the subscriber's filter matches the kind.
func (s *subscriber) wants(kind coin.EventKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

// setFilter replaces or clears the event-kind filter. An empty list
// clears it, returning the subscriber to the full stream.
func (s *subscriber) setFilter(kinds []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(kinds) == 0 {
		s.kinds = nil
		return
	}
	s.kinds = make(map[coin.EventKind]struct{}, len(kinds))
	for _, k := range kinds {
		s.kinds[coin.EventKind(k)] = struct{}{}
	}
}

// serveReads consumes filter updates from the client until the
// connection drops, then detaches the subscriber.
func (s *subscriber) serveReads(h *Hub) {
	defer func() {
		h.detach(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(4 << 10)
	s.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warnw("event subscriber read error", "remote", s.remote, "err", err)
			}
			return
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			h.log.Warnw("bad subscription message", "remote", s.remote, "err", err)
			continue
		}
		switch req.Op {
		case "filter":
			s.setFilter(req.Kinds)
		default:
			h.log.Warnw("unknown subscription op", "remote", s.remote, "op", req.Op)
		}
	}
}

// serveWrites pushes queued events to the client and keeps the
// connection alive with pings.
func (s *subscriber) serveWrites() {
	ping := time.NewTicker(30 * time.Second)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if !ok {
				// Detached by the hub.
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket upgrades the connection and attaches it to the event
// stream. Clients start on the full stream and may narrow it with
// {"op":"filter","kinds":[...]}.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "err", err)
		return
	}

	sub := &subscriber{
		conn:   conn,
		send:   make(chan EventMessage, subscriberBuffer),
		remote: conn.RemoteAddr().String(),
	}
	s.hub.attach(sub)

	go sub.serveWrites()
	go sub.serveReads(s.hub)
}
