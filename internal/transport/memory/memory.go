// Package memory is an in-process transport. Every transport created from
// the same Network can discover and connect to the others.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ColinKOB/PhotoParty/internal/transport"
	"github.com/google/uuid"
)

type Network struct {
	mu       sync.Mutex
	nodes    map[string]*Transport
	watchers map[string]chan transport.Advert
}

func NewNetwork() *Network {
	return &Network{nodes: make(map[string]*Transport), watchers: make(map[string]chan transport.Advert)}
}

// NewTransport registers a node reachable at addr.
func (n *Network) NewTransport(addr string) *Transport {
	t := &Transport{
		net:       n,
		addr:      addr,
		events:    transport.NewQueue(),
		links:     make(map[transport.Handle]*link),
		accepting: true,
	}
	n.mu.Lock()
	n.nodes[addr] = t
	n.mu.Unlock()
	return t
}

func (n *Network) node(addr string) *Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nodes[addr]
}

func (n *Network) adverts() []transport.Advert {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []transport.Advert
	for _, t := range n.nodes {
		if ad, ok := t.currentAdvert(); ok {
			out = append(out, ad)
		}
	}
	return out
}

func (n *Network) announce(ad transport.Advert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.watchers {
		select {
		case ch <- ad:
		default:
		}
	}
}

type link struct {
	remote       *Transport
	remoteHandle transport.Handle
}

type Transport struct {
	net    *Network
	addr   string
	events *transport.Queue

	mu        sync.Mutex
	links     map[transport.Handle]*link
	advert    *transport.Advert
	accepting bool
	closed    bool
}

func (t *Transport) Addr() string { return t.addr }

// SetAccepting makes incoming Connect calls hang until their context expires.
func (t *Transport) SetAccepting(ok bool) {
	t.mu.Lock()
	t.accepting = ok
	t.mu.Unlock()
}

func (t *Transport) currentAdvert() (transport.Advert, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.advert == nil || t.closed {
		return transport.Advert{}, false
	}
	return *t.advert, true
}

func (t *Transport) Advertise(code string, info transport.HostInfo) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.Errorf(transport.SessionFailed, "advertise", "transport closed")
	}
	ad := transport.Advert{Code: code, Host: info, Addr: t.addr}
	t.advert = &ad
	t.mu.Unlock()
	t.net.announce(ad)
	return nil
}

func (t *Transport) StopAdvertising() {
	t.mu.Lock()
	t.advert = nil
	t.mu.Unlock()
}

func (t *Transport) Discover(ctx context.Context) (<-chan transport.Advert, error) {
	id := uuid.NewString()
	watch := make(chan transport.Advert, 16)
	t.net.mu.Lock()
	t.net.watchers[id] = watch
	t.net.mu.Unlock()

	out := make(chan transport.Advert)
	go func() {
		defer close(out)
		defer func() {
			t.net.mu.Lock()
			delete(t.net.watchers, id)
			t.net.mu.Unlock()
		}()
		for _, ad := range t.net.adverts() {
			select {
			case out <- ad:
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case ad := <-watch:
				select {
				case out <- ad:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (t *Transport) Connect(ctx context.Context, ad transport.Advert) (transport.Handle, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, transport.DefaultInviteTimeout)
		defer cancel()
	}
	host := t.net.node(ad.Addr)
	if host == nil || host == t {
		return "", transport.Errorf(transport.SessionFailed, "connect", "no peer at %q", ad.Addr)
	}

	host.mu.Lock()
	accepting := host.accepting
	host.mu.Unlock()
	if !accepting {
		<-ctx.Done()
		return "", transport.ConnectError(ctx, ctx.Err())
	}

	current, ok := host.currentAdvert()
	if !ok || current.Code != ad.Code {
		return "", transport.Errorf(transport.Rejected, "connect", "peer %q is not hosting %s", ad.Addr, ad.Code)
	}

	local := transport.Handle(fmt.Sprintf("%s#%s", host.addr, uuid.NewString()[:8]))
	remote := transport.Handle(fmt.Sprintf("%s#%s", t.addr, uuid.NewString()[:8]))

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return "", transport.Errorf(transport.SessionFailed, "connect", "transport closed")
	}
	t.links[local] = &link{remote: host, remoteHandle: remote}
	t.mu.Unlock()

	host.mu.Lock()
	if host.closed {
		host.mu.Unlock()
		t.mu.Lock()
		delete(t.links, local)
		t.mu.Unlock()
		return "", transport.Errorf(transport.SessionFailed, "connect", "peer closed")
	}
	host.links[remote] = &link{remote: t, remoteHandle: local}
	host.mu.Unlock()

	host.events.Push(transport.Event{Kind: transport.PeerConnected, Peer: remote})
	t.events.Push(transport.Event{Kind: transport.PeerConnected, Peer: local})
	return local, nil
}

func (t *Transport) Send(data []byte, to ...transport.Handle) error {
	var missing []transport.Handle
	for _, h := range to {
		t.mu.Lock()
		l := t.links[h]
		t.mu.Unlock()
		if l == nil {
			missing = append(missing, h)
			continue
		}
		buf := append([]byte(nil), data...)
		l.remote.events.Push(transport.Event{Kind: transport.MessageReceived, Peer: l.remoteHandle, Data: buf})
	}
	if len(missing) > 0 {
		return transport.Errorf(transport.NotConnected, "send", "unknown peers %v", missing)
	}
	return nil
}

func (t *Transport) Disconnect(h transport.Handle) {
	t.mu.Lock()
	l := t.links[h]
	delete(t.links, h)
	t.mu.Unlock()
	if l == nil {
		return
	}
	l.remote.mu.Lock()
	_, ok := l.remote.links[l.remoteHandle]
	delete(l.remote.links, l.remoteHandle)
	l.remote.mu.Unlock()
	if ok {
		l.remote.events.Push(transport.Event{Kind: transport.PeerDisconnected, Peer: l.remoteHandle})
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
	for _, h := range t.Peers() {
		t.Disconnect(h)
	}
	t.mu.Lock()
	t.closed = true
	t.advert = nil
	t.mu.Unlock()
	t.net.mu.Lock()
	if t.net.nodes[t.addr] == t {
		delete(t.net.nodes, t.addr)
	}
	t.net.mu.Unlock()
	t.events.Close()
	return nil
}
