package currency

import (
	"context"
	"net"
	"time"
)

// Prober reports whether the rate feed can currently be reached.
type Prober interface {
	Online(ctx context.Context) bool
}

// DialProber considers the network available when a TCP connection to
// Address can be opened within Timeout.
type DialProber struct {
	Address string
	Timeout time.Duration
}

func (p DialProber) Online(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// StaticProber always returns the same answer.
type StaticProber bool

func (p StaticProber) Online(context.Context) bool { return bool(p) }
