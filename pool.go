package ballast

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultProbeInterval is how often the background refresh loop re-probes
// the discovery source when a Pool is not configured otherwise.
const DefaultProbeInterval = 30 * time.Second

// Pool owns the mutable set of known backends, their liveness flags, and
// the periodic refresh loop that re-probes them. It provides safe
// concurrent read access (KnownBackends, ReachableBackends) while the loop
// swaps the known set wholesale.
type Pool struct {
	discovery     Discovery
	prober        Prober
	probeStrategy ProbeStrategy
	rule          Rule
	logger        hclog.Logger

	probeInterval time.Duration
	maxProbeTime  time.Duration

	setMu sync.RWMutex
	set   *backendSet

	lifecycleMu sync.Mutex
	loopRunning bool
	loopStopped chan struct{}
	stopLoop    context.CancelFunc

	startOnNew bool
}

// PoolOption configures a Pool at construction.
type PoolOption func(*Pool)

// WithRule overrides the default RoundRobinRule.
func WithRule(r Rule) PoolOption {
	return func(p *Pool) { p.rule = r }
}

// WithProber overrides the default TCPProber.
func WithProber(pr Prober) PoolOption {
	return func(p *Pool) { p.prober = pr }
}

// WithProbeStrategy overrides the default SerialProbeStrategy.
func WithProbeStrategy(s ProbeStrategy) PoolOption {
	return func(p *Pool) { p.probeStrategy = s }
}

// WithProbeInterval overrides DefaultProbeInterval.
func WithProbeInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.probeInterval = d }
}

// WithMaxProbeTime overrides DefaultMaxProbeTime.
func WithMaxProbeTime(d time.Duration) PoolOption {
	return func(p *Pool) { p.maxProbeTime = d }
}

// WithLogger overrides the default no-op logger. The pool names its
// sub-logger "pool".
func WithLogger(l hclog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// WithProbeOnStart controls whether NewPool starts the background refresh
// loop immediately. Defaults to true; pass false to construct a Pool whose
// loop is started later via Start.
func WithProbeOnStart(start bool) PoolOption {
	return func(p *Pool) { p.startOnNew = start }
}

// NewPool constructs a Pool bound to discovery, applies opts, and -- unless
// WithProbeOnStart(false) was given -- starts the background refresh loop.
func NewPool(discovery Discovery, opts ...PoolOption) *Pool {
	p := &Pool{
		discovery:     discovery,
		prober:        NewTCPProber(),
		probeStrategy: &SerialProbeStrategy{},
		rule:          NewRoundRobinRule(),
		logger:        hclog.NewNullLogger(),
		probeInterval: DefaultProbeInterval,
		maxProbeTime:  DefaultMaxProbeTime,
		set:           newBackendSet(nil),
		startOnNew:    true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("pool")
	p.rule.bind(p)

	if p.startOnNew {
		p.Start()
	}
	return p
}

// KnownBackends returns a defensive copy of the current known set.
func (p *Pool) KnownBackends() []*Backend {
	p.setMu.RLock()
	defer p.setMu.RUnlock()
	return p.set.slice()
}

// ReachableBackends returns a defensive copy of the backends in the known
// set whose Alive flag is currently set.
func (p *Pool) ReachableBackends() []*Backend {
	p.setMu.RLock()
	defer p.setMu.RUnlock()
	return p.set.reachable()
}

// ChooseBackend selects one backend via the bound Rule. Returns
// ErrNoReachableServers if the rule finds none.
func (p *Pool) ChooseBackend() (*Backend, error) {
	return p.rule.Choose()
}

// MarkServerDown sets b's liveness flag to false. Idempotent; does not
// require the set lock since it only mutates an already-owned Backend's
// atomic flag.
func (p *Pool) MarkServerDown(b *Backend) {
	p.logger.Debug("marking server down", "backend", b.String())
	b.SetAlive(false)
}

// ProbeNow runs one synchronous probe sweep over the discovery source and
// replaces the known set wholesale with the result. A failed sweep -- the
// probe strategy returning an error, such as a discovery error (which a
// Discovery that honors ctx also returns once ctx is canceled) -- still
// replaces the known set, with an empty one: per spec, a failed snapshot means callers see no
// reachable servers until discovery recovers, not the last-known set
// served indefinitely.
func (p *Pool) ProbeNow(ctx context.Context) error {
	results, err := p.probeStrategy.Probe(ctx, p.prober, p.discovery, p.maxProbeTime)
	if err != nil {
		p.setMu.Lock()
		p.set = newBackendSet(nil)
		p.setMu.Unlock()
		return err
	}
	p.setMu.Lock()
	p.set = newBackendSet(results)
	p.setMu.Unlock()
	return nil
}

// ProbeNowAsync runs one probe sweep in the background without blocking
// the caller, mirroring the original ballast library's ping_async. Errors
// are logged, not returned, same as the background refresh loop.
func (p *Pool) ProbeNowAsync() {
	go func() {
		if err := p.ProbeNow(context.Background()); err != nil {
			p.logger.Error("background probe sweep failed", "error", err)
		}
	}()
}

// ProbeOne synchronously probes a single backend and updates its Alive
// flag in place. It does not touch the pool's known set membership.
func (p *Pool) ProbeOne(ctx context.Context, b *Backend) error {
	probeCtx, cancel := withProbeDeadline(ctx, p.maxProbeTime)
	defer cancel()
	b.SetAlive(p.prober.Alive(probeCtx, b))
	return nil
}

// SetProbeInterval updates the interval used between refresh sweeps. If
// the background loop is currently running, it is restarted so the next
// wait uses the new value.
func (p *Pool) SetProbeInterval(d time.Duration) {
	p.lifecycleMu.Lock()
	p.probeInterval = d
	running := p.loopRunning
	p.lifecycleMu.Unlock()

	if running {
		p.stopLocked()
		p.Start()
	}
}

// Start starts the background refresh loop if it is not already running.
// Safe to call on a Pool constructed with WithProbeOnStart(false).
func (p *Pool) Start() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()
	if p.loopRunning {
		p.logger.Debug("background refresh loop already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.stopLoop = cancel
	p.loopRunning = true
	stopped := make(chan struct{})
	p.loopStopped = stopped

	go p.refreshLoop(ctx, stopped)
}

// Close stops the background refresh loop; subsequent ProbeNow calls still
// work, but no automatic refresh happens afterward. Safe to call more than
// once.
func (p *Pool) Close() error {
	p.stopLocked()
	return nil
}

func (p *Pool) stopLocked() {
	p.lifecycleMu.Lock()
	if !p.loopRunning {
		p.lifecycleMu.Unlock()
		return
	}
	p.loopRunning = false
	cancel := p.stopLoop
	stopped := p.loopStopped
	p.lifecycleMu.Unlock()

	cancel()
	<-stopped
}

// refreshLoop is the single dedicated background worker: probe, acquire the
// pool-write lock only to replace the known set wholesale, release, sleep.
// Errors during a sweep are logged and never propagated -- the loop itself
// is infallible, per spec.
func (p *Pool) refreshLoop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	for {
		if err := p.ProbeNow(ctx); err != nil {
			p.logger.Warn("error refreshing backend pool", "error", err)
		}

		p.lifecycleMu.Lock()
		interval := p.probeInterval
		p.lifecycleMu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
