package ballast

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
)

// DefaultMaxProbeTime is the deadline applied to a single liveness probe
// when a Pool is not configured otherwise.
const DefaultMaxProbeTime = 3 * time.Second

// Prober classifies a single Backend as alive or dead. Implementations
// must be safe to call concurrently from many workers, must honor ctx's
// deadline, and must never panic -- any internal error is reported as
// false, never propagated.
type Prober interface {
	Alive(ctx context.Context, b *Backend) bool
}

// TrivialProber always reports a backend alive. Useful for tests and
// static pools where liveness is assumed rather than measured.
type TrivialProber struct{}

// Alive always returns true.
func (TrivialProber) Alive(context.Context, *Backend) bool { return true }

// TCPProber reports a backend alive if a TCP connection to
// (Address, Port) can be established before ctx's deadline.
type TCPProber struct {
	dialer *net.Dialer
}

// NewTCPProber builds a TCPProber. A zero value is also usable.
func NewTCPProber() *TCPProber {
	return &TCPProber{dialer: &net.Dialer{}}
}

// Alive opens and immediately closes a TCP connection to the backend.
func (p *TCPProber) Alive(ctx context.Context, b *Backend) bool {
	dialer := p.dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(b.Address, fmt.Sprintf("%d", b.Port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// HTTPProber reports a backend alive if a GET to
// scheme://address:port returns a 2xx or 3xx status.
type HTTPProber struct {
	// Secure selects https instead of http for the probe URL.
	Secure bool
	// Client performs the probe request. Defaults to a client built on
	// github.com/hashicorp/go-cleanhttp's pooled transport.
	Client *http.Client
}

// NewHTTPProber builds an HTTPProber with a pooled default client.
func NewHTTPProber(secure bool) *HTTPProber {
	return &HTTPProber{
		Secure: secure,
		Client: cleanhttp.DefaultPooledClient(),
	}
}

// Alive issues the probe GET request and reports success iff the response
// status is in [200, 400).
func (p *HTTPProber) Alive(ctx context.Context, b *Backend) bool {
	client := p.Client
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}

	scheme := "http"
	if p.Secure {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s:%d", scheme, b.Address, b.Port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

// withProbeDeadline derives a ctx bounded by maxProbeTime, even when the
// caller's ctx has no deadline of its own.
func withProbeDeadline(ctx context.Context, maxProbeTime time.Duration) (context.Context, context.CancelFunc) {
	if maxProbeTime <= 0 {
		maxProbeTime = DefaultMaxProbeTime
	}
	return context.WithTimeout(ctx, maxProbeTime)
}
