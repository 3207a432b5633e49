// Package lan carries peer links over websockets on the local network. The
// hosting device serves HTTP; joining devices dial it directly or find it
// through mDNS.
package lan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ColinKOB/PhotoParty/internal/transport"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/mdns"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type Config struct {
	// Listen is the host:port to serve on; ":0" picks a free port.
	Listen        string
	EnableMDNS    bool
	InviteTimeout time.Duration
	Logger        zerolog.Logger
}

type Transport struct {
	cfg    Config
	log    zerolog.Logger
	engine *gin.Engine
	srv    *http.Server
	ln     net.Listener
	events *transport.Queue
	dialer *websocket.Dialer
	up     websocket.Upgrader

	mu     sync.Mutex
	links  map[transport.Handle]*link
	advert *transport.Advert
	zone   *mdns.Server
	closed bool
}

// New binds the listener and starts serving immediately.
func New(cfg Config) (*Transport, error) {
	if cfg.Listen == "" {
		cfg.Listen = ":0"
	}
	if cfg.InviteTimeout <= 0 {
		cfg.InviteTimeout = transport.DefaultInviteTimeout
	}
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, transport.Errorf(transport.SessionFailed, "listen", "%v", err)
	}
	t := &Transport{
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "lan").Logger(),
		ln:     ln,
		events: transport.NewQueue(),
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.InviteTimeout},
		up: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		links: make(map[transport.Handle]*link),
	}
	t.engine = t.routes()
	t.srv = &http.Server{Handler: cors.AllowAll().Handler(t.engine), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := t.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error().Err(err).Msg("http server stopped")
		}
	}()
	t.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return t, nil
}

// Engine exposes the router so other components can mount routes.
func (t *Transport) Engine() *gin.Engine { return t.engine }

// Addr is the bound listener address.
func (t *Transport) Addr() string { return t.ln.Addr().String() }

func (t *Transport) Port() int {
	if a, ok := t.ln.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

func (t *Transport) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		t.log.Debug().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})
	r.GET("/api/session", func(c *gin.Context) {
		if ad, ok := t.currentAdvert(); ok {
			c.JSON(http.StatusOK, ad)
			return
		}
		c.Status(http.StatusNotFound)
	})
	r.GET("/peer", t.handlePeer)
	return r
}

func (t *Transport) currentAdvert() (transport.Advert, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.advert == nil || t.closed {
		return transport.Advert{}, false
	}
	return *t.advert, true
}

func (t *Transport) handlePeer(c *gin.Context) {
	ad, ok := t.currentAdvert()
	if !ok || c.Query("code") != ad.Code {
		c.JSON(http.StatusForbidden, gin.H{"error": "not_hosting"})
		return
	}
	conn, err := t.up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		t.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	h := transport.Handle("in-" + uuid.NewString())
	t.log.Info().Str("peer", string(h)).Str("remote", c.Request.RemoteAddr).Msg("peer connected")
	t.attach(h, conn)
}

// attach registers the link, announces it, and serves it on a new goroutine.
func (t *Transport) attach(h transport.Handle, conn *websocket.Conn) {
	l := newLink(h, conn, t.log)
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.links[h] = l
	t.mu.Unlock()

	t.events.Push(transport.Event{Kind: transport.PeerConnected, Peer: h})
	go l.run(func(data []byte) {
		t.events.Push(transport.Event{Kind: transport.MessageReceived, Peer: h, Data: data})
	}, func() {
		t.mu.Lock()
		delete(t.links, h)
		t.mu.Unlock()
		t.log.Info().Str("peer", string(h)).Msg("peer disconnected")
		t.events.Push(transport.Event{Kind: transport.PeerDisconnected, Peer: h})
	})
}

func (t *Transport) Advertise(code string, info transport.HostInfo) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.Errorf(transport.SessionFailed, "advertise", "transport closed")
	}
	ad := transport.Advert{Code: code, Host: info, Addr: t.Addr()}
	t.advert = &ad
	old := t.zone
	t.zone = nil
	t.mu.Unlock()

	if old != nil {
		_ = old.Shutdown()
	}
	if !t.cfg.EnableMDNS {
		return nil
	}
	zone, err := startAdvertising(ad, t.Port())
	if err != nil {
		return transport.Errorf(transport.SessionFailed, "advertise", "%v", err)
	}
	t.mu.Lock()
	t.zone = zone
	t.mu.Unlock()
	t.log.Info().Str("code", code).Int("port", t.Port()).Msg("advertising session")
	return nil
}

func (t *Transport) StopAdvertising() {
	t.mu.Lock()
	zone := t.zone
	t.zone = nil
	t.advert = nil
	t.mu.Unlock()
	if zone != nil {
		_ = zone.Shutdown()
	}
}

func (t *Transport) Discover(ctx context.Context) (<-chan transport.Advert, error) {
	if !t.cfg.EnableMDNS {
		return nil, transport.Errorf(transport.SessionFailed, "discover", "mDNS disabled")
	}
	out := make(chan transport.Advert)
	go browse(ctx, t.log, out)
	return out, nil
}

// Lookup asks a host at addr for its advert. It serves manual joins when
// multicast is unavailable.
func (t *Transport) Lookup(ctx context.Context, addr string) (transport.Advert, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.InviteTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/api/session", nil)
	if err != nil {
		return transport.Advert{}, transport.Errorf(transport.SessionFailed, "lookup", "%v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return transport.Advert{}, transport.ConnectError(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return transport.Advert{}, transport.Errorf(transport.Rejected, "lookup", "%s is not hosting", addr)
	}
	if resp.StatusCode/100 != 2 {
		return transport.Advert{}, transport.Errorf(transport.SessionFailed, "lookup", "status %d", resp.StatusCode)
	}
	var ad transport.Advert
	if err := json.NewDecoder(resp.Body).Decode(&ad); err != nil {
		return transport.Advert{}, transport.Errorf(transport.SessionFailed, "lookup", "%v", err)
	}
	// the host reports its bind address which may be a wildcard
	ad.Addr = addr
	return ad, nil
}

func (t *Transport) Connect(ctx context.Context, ad transport.Advert) (transport.Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.InviteTimeout)
	defer cancel()
	u := url.URL{Scheme: "ws", Host: ad.Addr, Path: "/peer", RawQuery: url.Values{"code": {ad.Code}}.Encode()}
	conn, resp, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			return "", transport.Errorf(transport.Rejected, "connect", "%s refused code %s", ad.Addr, ad.Code)
		}
		return "", transport.ConnectError(ctx, err)
	}
	h := transport.Handle("out-" + uuid.NewString())
	t.log.Info().Str("peer", string(h)).Str("addr", ad.Addr).Str("code", ad.Code).Msg("connected to host")
	t.attach(h, conn)
	return h, nil
}

func (t *Transport) Send(data []byte, to ...transport.Handle) error {
	var missing []transport.Handle
	for _, h := range to {
		t.mu.Lock()
		l := t.links[h]
		t.mu.Unlock()
		if l == nil || !l.enqueue(data) {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return transport.Errorf(transport.NotConnected, "send", "peers %v", missing)
	}
	return nil
}

func (t *Transport) Disconnect(h transport.Handle) {
	t.mu.Lock()
	l := t.links[h]
	delete(t.links, h)
	t.mu.Unlock()
	if l != nil {
		l.close()
	}
}

func (t *Transport) Peers() []transport.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]transport.Handle, 0, len(t.links))
	for h := range t.links {
		out = append(out, h)
	}
	return out
}

func (t *Transport) Events() <-chan transport.Event { return t.events.C() }

func (t *Transport) Close() error {
	t.StopAdvertising()
	for _, h := range t.Peers() {
		t.Disconnect(h)
	}
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := t.srv.Shutdown(ctx)
	t.events.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
