package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sprintpulse/sprintpulse/internal/api"
	"github.com/sprintpulse/sprintpulse/internal/store"
)

// Events carried in Message.Event.
const (
	EventSnapshot = "snapshot"
	EventRun      = "run"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks belong to the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients. Run is set on run events.
type Message struct {
	Event string               `json:"event"`
	Run   *store.RunStatus     `json:"run,omitempty"`
	Data  api.SnapshotResponse `json:"data"`
}

// Hub keeps the connected dashboards current. Each subscriber receives the
// reports on connect, on every tick and after every run, restricted to the
// boards it asked for.
type Hub struct {
	store    *store.Store
	interval time.Duration

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// New creates a Hub that reads from st and refreshes clients every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		subs:     make(map[*subscriber]struct{}),
	}
}

// Run refreshes subscribers every interval until ctx is cancelled, then
// disconnects them all.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.disconnectAll()
			return
		case <-t.C:
			if h.Count() > 0 {
				h.fanOut(EventSnapshot)
			}
		}
	}
}

// Publish sends the current reports tagged with event to every subscriber
// right away. Run events also carry the store's last run status.
func (h *Hub) Publish(event string) {
	h.fanOut(event)
}

// ServeHTTP upgrades the request and streams reports until the client
// goes away. The optional board query parameter (repeated or comma
// separated) limits the feed to those board names.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	boards := boardFilter(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		slog.Debug("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	sub := newSubscriber(conn, boards)
	h.add(sub)
	defer h.remove(sub)

	if data, err := h.encode(h.message(EventSnapshot), sub.boards); err == nil {
		sub.offer(data)
	}

	go sub.writeLoop()
	sub.readLoop()
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	slog.Debug("ws: subscriber connected", "boards", s.filterKey(), "subscribers", n)
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.out)
	}
	h.mu.Unlock()
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		close(s.out)
		delete(h.subs, s)
	}
}

// fanOut builds the message once and encodes it once per distinct board
// filter among the subscribers.
func (h *Hub) fanOut(event string) {
	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	msg := h.message(event)
	encoded := make(map[string][]byte)
	for _, s := range targets {
		key := s.filterKey()
		data, ok := encoded[key]
		if !ok {
			var err error
			if data, err = h.encode(msg, s.boards); err != nil {
				slog.Error("ws: encode message", "event", event, "err", err)
				return
			}
			encoded[key] = data
		}
		if !s.offer(data) {
			slog.Warn("ws: disconnecting subscriber that fell behind", "boards", key)
			h.remove(s)
		}
	}
}

func (h *Hub) message(event string) Message {
	m := Message{Event: event, Data: api.BuildSnapshot(h.store)}
	if event == EventRun {
		m.Run = h.store.LastRun()
	}
	return m
}

// encode marshals msg keeping only the reports of boards. A nil filter
// keeps every report.
func (h *Hub) encode(msg Message, boards map[string]struct{}) ([]byte, error) {
	if boards != nil {
		kept := make([]api.ReportResponse, 0, len(boards))
		for _, r := range msg.Data.Reports {
			if _, ok := boards[r.Board]; ok {
				kept = append(kept, r)
			}
		}
		msg.Data.Reports = kept
	}
	return json.Marshal(msg)
}

func boardFilter(r *http.Request) map[string]struct{} {
	var boards map[string]struct{}
	for _, v := range r.URL.Query()["board"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name == "" {
				continue
			}
			if boards == nil {
				boards = make(map[string]struct{})
			}
			boards[name] = struct{}{}
		}
	}
	return boards
}
