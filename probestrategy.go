package ballast

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkerPoolMaxWorkers bounds WorkerPoolProbeStrategy's concurrency
// even when a refresh sweep's candidate count is very large.
const DefaultWorkerPoolMaxWorkers = 64

// ProbeStrategy fans a Prober out across a Discovery snapshot and returns
// one Backend per candidate, each with its alive flag set. maxProbeTime
// bounds every individual probe (falling back to DefaultMaxProbeTime if
// <= 0); it is the caller's (Pool's) configured per-probe deadline, not a
// property of the strategy itself. Implementations differ only in
// concurrency; all must preserve the full candidate set (not only the live
// ones) and must be exception-safe: a single prober failure must not abort
// the batch. Empty input returns empty output without spawning any
// workers.
type ProbeStrategy interface {
	Probe(ctx context.Context, p Prober, d Discovery, maxProbeTime time.Duration) ([]*Backend, error)
}

func candidatesFor(ctx context.Context, d Discovery) ([]*Backend, error) {
	candidates, err := d.Snapshot(ctx)
	if err != nil {
		return nil, newDiscoveryError(err)
	}
	return candidates, nil
}

// probeOne runs a single backend through a Prober, recovering from any
// panic so that one misbehaving Prober call cannot abort a batch.
func probeOne(ctx context.Context, p Prober, b *Backend, maxProbeTime time.Duration) {
	probeCtx, cancel := withProbeDeadline(ctx, maxProbeTime)
	defer cancel()

	alive := func() (result bool) {
		defer func() {
			if recover() != nil {
				result = false
			}
		}()
		return p.Alive(probeCtx, b)
	}()

	b.SetAlive(alive)
}

// SerialProbeStrategy probes candidates sequentially and accumulates the results.
type SerialProbeStrategy struct{}

// Probe implements ProbeStrategy.
func (s *SerialProbeStrategy) Probe(ctx context.Context, p Prober, d Discovery, maxProbeTime time.Duration) ([]*Backend, error) {
	candidates, err := candidatesFor(ctx, d)
	if err != nil {
		return nil, err
	}
	for _, b := range candidates {
		probeOne(ctx, p, b, maxProbeTime)
	}
	return candidates, nil
}

// WorkerPoolProbeStrategy dispatches candidates to a bounded worker pool
// sized to min(len(candidates), MaxWorkers).
type WorkerPoolProbeStrategy struct {
	MaxWorkers int
}

// Probe implements ProbeStrategy.
func (w *WorkerPoolProbeStrategy) Probe(ctx context.Context, p Prober, d Discovery, maxProbeTime time.Duration) ([]*Backend, error) {
	candidates, err := candidatesFor(ctx, d)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	maxWorkers := w.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = DefaultWorkerPoolMaxWorkers
	}
	if maxWorkers > len(candidates) {
		maxWorkers = len(candidates)
	}

	jobs := make(chan *Backend)
	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				probeOne(ctx, p, b, maxProbeTime)
			}
		}()
	}
	for _, b := range candidates {
		jobs <- b
	}
	close(jobs)
	wg.Wait()

	return candidates, nil
}

// GoroutineProbeStrategy spawns one goroutine per candidate, joined via
// errgroup before returning -- the direct Go analogue of the original's
// cooperative greenlet-per-candidate strategy.
type GoroutineProbeStrategy struct{}

// Probe implements ProbeStrategy.
func (g *GoroutineProbeStrategy) Probe(ctx context.Context, p Prober, d Discovery, maxProbeTime time.Duration) ([]*Backend, error) {
	candidates, err := candidatesFor(ctx, d)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, b := range candidates {
		b := b
		group.Go(func() error {
			probeOne(groupCtx, p, b, maxProbeTime)
			return nil
		})
	}
	// Every goroutine returns nil (probeOne recovers prober panics itself),
	// so Wait always returns nil; it is used only to join the goroutines.
	_ = group.Wait()

	return candidates, nil
}
