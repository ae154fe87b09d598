// Package discovery provides the static, in-process Discovery source.
// Dynamic sources that need extra dependencies (DNS, Consul) live in their
// own subpackages so a caller who only needs a fixed address list does not
// pull those dependencies in.
package discovery

import (
	"context"
	"strconv"
	"strings"

	"github.com/radishllc/ballast"
)

// DefaultPort is used for a "host" entry with no explicit ":port" suffix.
const DefaultPort = 80

// Static is a fixed collection of backends, ported from balast's
// StaticServerList. Entries may be a *ballast.Backend, a "host" string
// (DefaultPort is assumed), or a "host:port" string. Snapshot always
// returns the same set -- it exists to let static pools participate in the
// same Pool/refresh machinery as dynamic discovery sources.
type Static struct {
	backends []*ballast.Backend
}

// New builds a Static discovery source from a mix of *ballast.Backend and
// string entries. It returns a *ballast.ConfigurationError for any entry
// that is neither.
func New(entries ...any) (*Static, error) {
	backends := make([]*ballast.Backend, 0, len(entries))
	for _, entry := range entries {
		b, err := toBackend(entry)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	return &Static{backends: backends}, nil
}

// Snapshot returns a defensive copy of the configured backend list. It
// never fails and ignores ctx -- there is no I/O to cancel.
func (s *Static) Snapshot(_ context.Context) ([]*ballast.Backend, error) {
	out := make([]*ballast.Backend, len(s.backends))
	copy(out, s.backends)
	return out, nil
}

func toBackend(entry any) (*ballast.Backend, error) {
	switch v := entry.(type) {
	case *ballast.Backend:
		return v, nil
	case string:
		host, port, err := splitHostPort(v)
		if err != nil {
			return nil, err
		}
		return ballast.NewBackend(host, port), nil
	default:
		return nil, ballast.NewConfigurationErrorf("static discovery: entry %v is neither a *ballast.Backend nor a string", entry)
	}
}

func splitHostPort(addr string) (string, uint16, error) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return host, DefaultPort, nil
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, ballast.NewConfigurationErrorf("static discovery: invalid port in %q: %v", addr, err)
	}
	return host, uint16(port), nil
}
