package ballast

import (
	"fmt"
	"sync/atomic"
	"time"
)

const (
	// DefaultWeight is the advisory weight assigned to a Backend when none
	// is specified. Priority dominates weight; see Rule.
	DefaultWeight = 1
	// DefaultPriority is assigned to a Backend when none is specified.
	// Lower values sort first.
	DefaultPriority = 1
	// DefaultTTL is the advisory TTL hint assigned to a Backend when the
	// discovery source that produced it did not supply one.
	DefaultTTL = 300 * time.Second
)

// Backend is an addressable endpoint plus the metadata a Rule and Pool need
// to select and health-check it. Equality is defined on (Address, Port)
// only; ordering (byPriority) is by Priority, tie-broken by (Address, Port).
// The only mutable
// field is the liveness flag, which is safe to read and write concurrently
// without additional locking (spec: "lock-free single-word writes").
type Backend struct {
	Address  string
	Port     uint16
	Weight   int
	Priority int
	TTL      time.Duration

	alive atomic.Bool
}

// BackendOption configures optional Backend fields at construction.
type BackendOption func(*Backend)

// WithWeight overrides the default weight of 1.
func WithWeight(w int) BackendOption {
	return func(b *Backend) { b.Weight = w }
}

// WithPriority overrides the default priority of 1. Lower values are
// preferred by selection rules.
func WithPriority(p int) BackendOption {
	return func(b *Backend) { b.Priority = p }
}

// WithTTL overrides the default TTL hint of 300 seconds. The core never
// acts on TTL itself; it is preserved for discovery sources and callers
// that do.
func WithTTL(ttl time.Duration) BackendOption {
	return func(b *Backend) { b.TTL = ttl }
}

// NewBackend constructs a Backend with alive=false until a probe or
// request proves otherwise.
func NewBackend(address string, port uint16, opts ...BackendOption) *Backend {
	b := &Backend{
		Address:  address,
		Port:     port,
		Weight:   DefaultWeight,
		Priority: DefaultPriority,
		TTL:      DefaultTTL,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Alive reports whether the backend's most recent probe or request
// succeeded. Safe to call concurrently with SetAlive from any goroutine.
func (b *Backend) Alive() bool {
	return b.alive.Load()
}

// SetAlive sets the liveness flag directly. Exported so external Prober
// and Discovery implementations outside this module can construct and
// seed backends; the Pool and the probe strategies use it as well.
func (b *Backend) SetAlive(alive bool) {
	b.alive.Store(alive)
}

// Equal reports whether two backends share the same (Address, Port) pair.
// Metadata (weight, priority, TTL, liveness) is ignored.
func (b *Backend) Equal(other *Backend) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Address == other.Address && b.Port == other.Port
}

// key returns the value used to de-duplicate backends within a set.
func (b *Backend) key() backendKey {
	return backendKey{address: b.Address, port: b.Port}
}

type backendKey struct {
	address string
	port    uint16
}

func (b *Backend) String() string {
	return fmt.Sprintf(
		"Backend(%s:%d, ttl:%s, weight:%d, priority:%d, alive:%t)",
		b.Address, b.Port, b.TTL, b.Weight, b.Priority, b.Alive(),
	)
}

// byPriority sorts backends by Priority ascending, tie-broken by
// (Address, Port) for determinism -- the ordering RoundRobinRule and
// PriorityWeightedRule both rely on.
type byPriority []*Backend

func (s byPriority) Len() int      { return len(s) }
func (s byPriority) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byPriority) Less(i, j int) bool {
	if s[i].Priority != s[j].Priority {
		return s[i].Priority < s[j].Priority
	}
	if s[i].Address != s[j].Address {
		return s[i].Address < s[j].Address
	}
	return s[i].Port < s[j].Port
}
