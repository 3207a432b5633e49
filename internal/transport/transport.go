// Package transport is the peer link contract used by the game engine.
package transport

import (
	"context"
	"time"
)

// DefaultInviteTimeout bounds a connection handshake.
const DefaultInviteTimeout = 30 * time.Second

// Handle identifies a connected peer. It carries no player identity.
type Handle string

// HostInfo is the display metadata a host advertises next to its code.
type HostInfo struct {
	Name   string `json:"hostName"`
	Avatar string `json:"hostEmoji"`
}

// Advert is one discovered session.
type Advert struct {
	Code string   `json:"gameCode"`
	Host HostInfo `json:"host"`
	Addr string   `json:"addr"`
}

type EventKind int

const (
	PeerConnected EventKind = iota + 1
	PeerDisconnected
	MessageReceived
)

func (k EventKind) String() string {
	switch k {
	case PeerConnected:
		return "connected"
	case PeerDisconnected:
		return "disconnected"
	case MessageReceived:
		return "message"
	}
	return "unknown"
}

// Event is delivered on the single inbound channel of a Transport.
type Event struct {
	Kind EventKind
	Peer Handle
	Data []byte
}

// Transport delivers opaque messages between peers. Delivery is reliable and
// ordered per sender while the link is up; Send never blocks on the network.
// All methods are safe for concurrent use.
type Transport interface {
	Advertise(code string, info HostInfo) error
	StopAdvertising()
	// Discover streams adverts until ctx is done. Calling it again restarts discovery.
	Discover(ctx context.Context) (<-chan Advert, error)
	// Connect blocks until the host accepts, rejects, or ctx expires.
	Connect(ctx context.Context, ad Advert) (Handle, error)
	Send(data []byte, to ...Handle) error
	// Disconnect drops a link. The remote side observes PeerDisconnected; the
	// local side does not.
	Disconnect(h Handle)
	Peers() []Handle
	Events() <-chan Event
	Close() error
}
