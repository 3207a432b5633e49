package lan

import (
	"sync"
	"time"

	"github.com/ColinKOB/PhotoParty/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Snapshots carry every photo of the round
	maxMessageSize = 8 << 20

	sendBufferSize = 256
)

// link is one websocket to a peer. The write pump is the only writer, which
// keeps outgoing messages in Send order.
type link struct {
	h      transport.Handle
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	log    zerolog.Logger
	mu     sync.Mutex
	closed bool
}

func newLink(h transport.Handle, conn *websocket.Conn, log zerolog.Logger) *link {
	return &link{
		h:    h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		log:  log.With().Str("peer", string(h)).Logger(),
	}
}

func (l *link) enqueue(data []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	select {
	case l.send <- data:
		return true
	default:
		l.log.Warn().Msg("send buffer full, message dropped")
		return false
	}
}

// close reports whether this call closed the link.
func (l *link) close() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.closed = true
	close(l.done)
	return true
}

// run blocks in the read pump and calls onClose once the link is gone.
func (l *link) run(onMessage func([]byte), onClose func()) {
	go l.writePump()
	l.readPump(onMessage)
	if l.close() {
		onClose()
	}
}

func (l *link) readPump(onMessage func([]byte)) {
	l.conn.SetReadLimit(maxMessageSize)
	_ = l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		onMessage(message)
	}
}

func (l *link) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = l.conn.Close()
	}()
	for {
		select {
		case <-l.done:
			_ = l.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case message := <-l.send:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				l.log.Debug().Err(err).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
