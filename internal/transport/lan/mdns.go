package lan

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ColinKOB/PhotoParty/internal/transport"
	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

const (
	serviceType   = "_photoparty._tcp"
	browseEvery   = 2 * time.Second
	browseTimeout = time.Second

	keyCode   = "gameCode"
	keyHost   = "hostName"
	keyAvatar = "hostEmoji"
)

func startAdvertising(ad transport.Advert, port int) (*mdns.Server, error) {
	host, _ := os.Hostname()
	txt := []string{
		keyCode + "=" + ad.Code,
		keyHost + "=" + ad.Host.Name,
		keyAvatar + "=" + ad.Host.Avatar,
	}
	svc, err := mdns.NewMDNSService(ad.Code, serviceType, "", host+".", port, localIPv4(), txt)
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	srv, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}
	return srv, nil
}

// localIPv4 lists non-loopback IPv4 addresses; nil lets mdns resolve the hostname.
func localIPv4() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var ips []net.IP
	for _, a := range addrs {
		if n, ok := a.(*net.IPNet); ok && !n.IP.IsLoopback() && n.IP.To4() != nil {
			ips = append(ips, n.IP)
		}
	}
	return ips
}

// browse queries repeatedly until ctx ends, emitting each session once.
func browse(ctx context.Context, log zerolog.Logger, out chan<- transport.Advert) {
	defer close(out)
	seen := map[string]bool{}
	for {
		entries := make(chan *mdns.ServiceEntry, 16)
		go func() {
			params := mdns.DefaultParams(serviceType)
			params.Entries = entries
			params.Timeout = browseTimeout
			params.DisableIPv6 = true
			if err := mdns.Query(params); err != nil {
				log.Debug().Err(err).Msg("mdns query failed")
			}
			close(entries)
		}()
		for e := range entries {
			ad, ok := advertFromEntry(e)
			if !ok || seen[ad.Code+"@"+ad.Addr] {
				continue
			}
			seen[ad.Code+"@"+ad.Addr] = true
			select {
			case out <- ad:
			case <-ctx.Done():
				for range entries {
				}
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(browseEvery):
		}
	}
}

func advertFromEntry(e *mdns.ServiceEntry) (transport.Advert, bool) {
	fields := map[string]string{}
	for _, f := range e.InfoFields {
		k, v, ok := strings.Cut(f, "=")
		if ok {
			fields[k] = v
		}
	}
	code := fields[keyCode]
	if code == "" || e.AddrV4 == nil || e.Port == 0 {
		return transport.Advert{}, false
	}
	return transport.Advert{
		Code: code,
		Host: transport.HostInfo{Name: fields[keyHost], Avatar: fields[keyAvatar]},
		Addr: net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port)),
	}, true
}
