package netwatch

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// Prober checks whether the remote can be reached.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// DialProber opens and closes a TCP connection to Address (host:port).
type DialProber struct {
	Address string
}

func (p DialProber) Probe(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Pinger is anything with a Ping, such as the remote store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingProber pings the remote store itself.
type PingProber struct {
	Target Pinger
}

func (p PingProber) Probe(ctx context.Context) error {
	return p.Target.Ping(ctx)
}

// AddressFromURL derives a host:port to dial from a remote URL, filling in
// the scheme's default port.
func AddressFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse remote url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("remote url %q has no host", raw)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "postgres", "postgresql":
			port = "5432"
		case "http":
			port = "80"
		default:
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
