// Package netcheck provides an injectable connectivity capability so
// online/offline routing is testable without real network state.
package netcheck

import (
	"context"
	"net"
	"net/url"
	"time"
)

// Checker reports whether the assistant webhook is reachable.
type Checker interface {
	Online(ctx context.Context) bool
}

// Probe checks connectivity with a short TCP dial to the webhook host.
type Probe struct {
	addr    string
	timeout time.Duration
}

// NewProbe creates a probe for the webhook URL's host.
func NewProbe(webhookURL string) (*Probe, error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return nil, err
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host = net.JoinHostPort(u.Hostname(), "443")
		default:
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}
	return &Probe{addr: host, timeout: 3 * time.Second}, nil
}

// Online dials the webhook host and reports success.
func (p *Probe) Online(ctx context.Context) bool {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Static is a fixed connectivity answer, for tests and forced-offline
// operation.
type Static bool

// Online returns the fixed answer.
func (s Static) Online(context.Context) bool {
	return bool(s)
}
