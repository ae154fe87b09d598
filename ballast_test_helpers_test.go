package ballast

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
)

// fixedDiscovery returns a Discovery whose Snapshot always yields backends.
type fixedDiscovery struct {
	backends []*Backend
}

func (f *fixedDiscovery) Snapshot(context.Context) ([]*Backend, error) {
	out := make([]*Backend, len(f.backends))
	copy(out, f.backends)
	return out, nil
}

// staticDiscovery builds a fixedDiscovery with n distinct backends, useful
// wherever a test just needs "some backends" without caring about address.
func staticDiscovery(t *testing.T, n int) Discovery {
	t.Helper()
	backends := make([]*Backend, 0, n)
	for i := 0; i < n; i++ {
		backends = append(backends, NewBackend(fmt.Sprintf("backend-%d.example.test", i), 80))
	}
	return &fixedDiscovery{backends: backends}
}

// blockingProber never settles on its own; it blocks until unblock is
// closed, and records whether ctx's deadline fired first. Used to prove a
// caller-configured max probe time is actually enforced.
type blockingProber struct {
	unblock     chan struct{}
	sawDeadline atomic.Bool
}

func (b *blockingProber) Alive(ctx context.Context, _ *Backend) bool {
	select {
	case <-ctx.Done():
		b.sawDeadline.Store(true)
		return false
	case <-b.unblock:
		return true
	}
}
