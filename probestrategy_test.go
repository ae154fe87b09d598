package ballast

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingProber struct {
	calls atomic.Int64
	alive bool
}

func (p *countingProber) Alive(context.Context, *Backend) bool {
	p.calls.Add(1)
	return p.alive
}

type panickyProber struct{}

func (panickyProber) Alive(context.Context, *Backend) bool {
	panic("boom")
}

type failingDiscovery struct{}

func (failingDiscovery) Snapshot(context.Context) ([]*Backend, error) {
	return nil, errors.New("discovery unavailable")
}

func TestSerialProbeStrategy_ProbesEveryCandidate(t *testing.T) {
	prober := &countingProber{alive: true}
	strategy := &SerialProbeStrategy{}

	results, err := strategy.Probe(context.Background(), prober, staticDiscovery(t, 5), DefaultMaxProbeTime)
	require.NoError(t, err)
	require.Len(t, results, 5)
	require.EqualValues(t, 5, prober.calls.Load())
	for _, b := range results {
		require.True(t, b.Alive())
	}
}

func TestWorkerPoolProbeStrategy_ProbesEveryCandidate(t *testing.T) {
	prober := &countingProber{alive: true}
	strategy := &WorkerPoolProbeStrategy{MaxWorkers: 2}

	results, err := strategy.Probe(context.Background(), prober, staticDiscovery(t, 7), DefaultMaxProbeTime)
	require.NoError(t, err)
	require.Len(t, results, 7)
	require.EqualValues(t, 7, prober.calls.Load())
}

func TestGoroutineProbeStrategy_ProbesEveryCandidate(t *testing.T) {
	prober := &countingProber{alive: true}
	strategy := &GoroutineProbeStrategy{}

	results, err := strategy.Probe(context.Background(), prober, staticDiscovery(t, 7), DefaultMaxProbeTime)
	require.NoError(t, err)
	require.Len(t, results, 7)
	require.EqualValues(t, 7, prober.calls.Load())
}

func TestProbeStrategies_EmptyDiscoverySpawnsNothing(t *testing.T) {
	prober := &countingProber{alive: true}

	for _, strategy := range []ProbeStrategy{
		&SerialProbeStrategy{},
		&WorkerPoolProbeStrategy{},
		&GoroutineProbeStrategy{},
	} {
		results, err := strategy.Probe(context.Background(), prober, staticDiscovery(t, 0), DefaultMaxProbeTime)
		require.NoError(t, err)
		require.Empty(t, results)
	}
	require.EqualValues(t, 0, prober.calls.Load())
}

func TestProbeStrategies_DiscoveryFailurePropagates(t *testing.T) {
	for _, strategy := range []ProbeStrategy{
		&SerialProbeStrategy{},
		&WorkerPoolProbeStrategy{},
		&GoroutineProbeStrategy{},
	} {
		_, err := strategy.Probe(context.Background(), TrivialProber{}, failingDiscovery{}, DefaultMaxProbeTime)
		require.Error(t, err)
		var discErr *DiscoveryError
		require.ErrorAs(t, err, &discErr)
	}
}

func TestProbeOne_RecoversFromPanickingProber(t *testing.T) {
	b := NewBackend("a", 1)
	b.SetAlive(true)

	strategy := &SerialProbeStrategy{}
	results, err := strategy.Probe(context.Background(), panickyProber{}, &fixedDiscovery{backends: []*Backend{b}}, DefaultMaxProbeTime)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.False(t, results[0].Alive())
}
