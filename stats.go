package ballast

import "time"

// Stats is an advisory, read-only hook into a backend's observed health.
// It mirrors the original ballast library's ServerStats/LoadBalancerStats
// surface, which was itself a stub -- no production selection rule reads
// real numbers from it yet. It exists so a PriorityWeightedRule variant, or
// an external metrics integration, has a place to plug in without changing
// Rule's signature (see the Open Question in SPEC_FULL.md §9).
type Stats interface {
	// ActiveRequests returns the number of requests currently in flight
	// against the backend.
	ActiveRequests() int
	// Utilization returns an implementation-defined load figure, e.g.
	// requests-in-flight over a configured capacity.
	Utilization() float64
	// FailureCount returns the number of failed attempts observed since
	// the backend was last marked alive.
	FailureCount() int
	// AverageResponseTime returns a rolling average response latency.
	AverageResponseTime() time.Duration
	// Tripped reports whether the backend has been circuit-broken by
	// whatever is recording these stats. The core pool never reads this;
	// it is surfaced for external consumers only.
	Tripped() bool
}

// NopStats is a Stats implementation that reports zero values for
// everything. No Pool, Rule or Service in this package holds a Stats.
type NopStats struct{}

// ActiveRequests implements Stats.
func (NopStats) ActiveRequests() int { return 0 }

// Utilization implements Stats.
func (NopStats) Utilization() float64 { return 0 }

// FailureCount implements Stats.
func (NopStats) FailureCount() int { return 0 }

// AverageResponseTime implements Stats.
func (NopStats) AverageResponseTime() time.Duration { return 0 }

// Tripped implements Stats.
func (NopStats) Tripped() bool { return false }
