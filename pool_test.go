package ballast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_ProbeNowReplacesKnownSet(t *testing.T) {
	pool := NewPool(staticDiscovery(t, 2), WithProber(TrivialProber{}), WithProbeOnStart(false))

	require.NoError(t, pool.ProbeNow(t.Context()))

	known := pool.KnownBackends()
	require.Len(t, known, 2)
	for _, b := range known {
		require.True(t, b.Alive())
	}
}

func TestPool_ProbeNowMarksDeadBackendsUnreachable(t *testing.T) {
	pool := NewPool(staticDiscovery(t, 2), WithProber(alwaysDownProber{}), WithProbeOnStart(false))

	require.NoError(t, pool.ProbeNow(t.Context()))

	require.Len(t, pool.KnownBackends(), 2)
	require.Empty(t, pool.ReachableBackends())
}

func TestPool_ProbeNowEmptiesKnownSetOnDiscoveryFailure(t *testing.T) {
	pool := NewPool(staticDiscovery(t, 2), WithProber(TrivialProber{}), WithProbeOnStart(false))
	require.NoError(t, pool.ProbeNow(t.Context()))
	require.Len(t, pool.KnownBackends(), 2)

	pool.discovery = failingDiscovery{}
	err := pool.ProbeNow(t.Context())
	require.Error(t, err)

	require.Empty(t, pool.KnownBackends())
	require.Empty(t, pool.ReachableBackends())
}

func TestPool_ProbeNowHonorsMaxProbeTime(t *testing.T) {
	blocking := &blockingProber{unblock: make(chan struct{})}
	defer close(blocking.unblock)

	pool := NewPool(staticDiscovery(t, 1),
		WithProber(blocking),
		WithProbeOnStart(false),
		WithMaxProbeTime(10*time.Millisecond),
	)

	require.NoError(t, pool.ProbeNow(context.Background()))
	require.True(t, blocking.sawDeadline.Load())
}

func TestPool_MarkServerDown(t *testing.T) {
	pool := NewPool(staticDiscovery(t, 1), WithProber(TrivialProber{}), WithProbeOnStart(false))
	require.NoError(t, pool.ProbeNow(t.Context()))

	backend := pool.KnownBackends()[0]
	require.True(t, backend.Alive())

	pool.MarkServerDown(backend)
	require.False(t, backend.Alive())
}

func TestPool_StartAndClose(t *testing.T) {
	pool := NewPool(staticDiscovery(t, 1),
		WithProber(TrivialProber{}),
		WithProbeInterval(10*time.Millisecond),
	)
	defer pool.Close()

	require.Eventually(t, func() bool {
		return len(pool.KnownBackends()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close()) // idempotent
}

func TestPool_DoubleStartIsNoop(t *testing.T) {
	pool := NewPool(staticDiscovery(t, 1), WithProbeOnStart(false))
	defer pool.Close()

	pool.Start()
	pool.Start() // must not panic or deadlock

	require.True(t, pool.loopRunning)
}
