package ws

import (
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	idleTimeout   = 60 * time.Second
	heartbeat     = idleTimeout * 9 / 10
	queueDepth    = 16
	maxClientRead = 512
)

// subscriber is one dashboard connection. out is closed by the hub when
// the subscriber is removed.
type subscriber struct {
	conn   *websocket.Conn
	out    chan []byte
	boards map[string]struct{} // nil means every board
	key    string
}

func newSubscriber(conn *websocket.Conn, boards map[string]struct{}) *subscriber {
	s := &subscriber{
		conn:   conn,
		out:    make(chan []byte, queueDepth),
		boards: boards,
	}
	if boards != nil {
		names := make([]string, 0, len(boards))
		for b := range boards {
			names = append(names, b)
		}
		sort.Strings(names)
		s.key = strings.Join(names, ",")
	}
	return s
}

// filterKey identifies the board filter; subscribers sharing it receive
// identical bytes.
func (s *subscriber) filterKey() string { return s.key }

// offer queues data without blocking and reports whether it fit.
func (s *subscriber) offer(data []byte) bool {
	select {
	case s.out <- data:
		return true
	default:
		return false
	}
}

// writeLoop owns all writes to the connection: queued messages and the
// keepalive pings. It exits when out is closed or a write fails.
func (s *subscriber) writeLoop() {
	ping := time.NewTicker(heartbeat)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case msg, open := <-s.out:
			if !open {
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))    //nolint:errcheck
				s.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			kind, data = websocket.TextMessage, msg
		case <-ping.C:
			kind = websocket.PingMessage
		}
		s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := s.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

// readLoop discards anything the client sends and returns once the
// connection fails or stays silent past idleTimeout. Pongs extend the
// deadline.
func (s *subscriber) readLoop() {
	defer s.conn.Close()
	s.conn.SetReadLimit(maxClientRead)
	extend := func(string) error { return s.conn.SetReadDeadline(time.Now().Add(idleTimeout)) }
	extend("") //nolint:errcheck
	s.conn.SetPongHandler(extend)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
