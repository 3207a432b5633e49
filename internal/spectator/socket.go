// Package spectator pushes every committed snapshot to browsers watching the
// game on a shared screen.
package spectator

import (
	"net/http"
	"sync"

	"github.com/ColinKOB/PhotoParty/internal/game"
	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog"
)

const (
	room       = "spectators"
	eventState = "game:state"
	eventSync  = "game:sync"
)

type Server struct {
	log zerolog.Logger
	io  *socketio.Server

	mu      sync.RWMutex
	latest  *View
	watched int
}

func New(log zerolog.Logger) *Server {
	return &Server{log: log.With().Str("component", "spectator").Logger()}
}

// Mount attaches the Socket.IO server to r and starts serving it.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		s.Join(room)
		srv.mu.Lock()
		srv.watched++
		latest := srv.latest
		srv.mu.Unlock()
		srv.log.Info().Str("sid", s.ID()).Msg("spectator connected")
		if latest != nil {
			s.Emit(eventState, latest)
		}
		return nil
	})

	// game:sync lets a page that missed updates ask for the current view
	io.OnEvent("/", eventSync, func(s socketio.Conn) map[string]any {
		if v := srv.Latest(); v != nil {
			return map[string]any{"state": v}
		}
		return map[string]any{"error": "no session"}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		sid := ""
		if s != nil {
			sid = s.ID()
		}
		srv.log.Error().Str("sid", sid).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		srv.mu.Lock()
		srv.watched--
		srv.mu.Unlock()
		srv.log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("spectator disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			srv.log.Error().Err(err).Msg("socket.io server stopped")
		}
	}()
	srv.mu.Lock()
	srv.io = io
	srv.mu.Unlock()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	r.GET("/api/spectate", func(c *gin.Context) {
		if v := srv.Latest(); v != nil {
			c.JSON(http.StatusOK, v)
			return
		}
		c.Status(http.StatusNotFound)
	})
	return io
}

// Observe publishes a committed snapshot.
func (srv *Server) Observe(seq uint64, s *game.Session) {
	v := NewView(seq, s)
	srv.mu.Lock()
	if srv.latest != nil && srv.latest.Seq > seq && srv.latest.Code == v.Code {
		srv.mu.Unlock()
		return
	}
	srv.latest = &v
	io := srv.io
	srv.mu.Unlock()
	if io != nil {
		io.BroadcastToRoom("/", room, eventState, v)
	}
}

func (srv *Server) Latest() *View {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	return srv.latest
}

// Spectators counts connected sockets.
func (srv *Server) Spectators() int {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	return srv.watched
}

func (srv *Server) Close() error {
	srv.mu.Lock()
	io := srv.io
	srv.io = nil
	srv.mu.Unlock()
	if io == nil {
		return nil
	}
	return io.Close()
}
