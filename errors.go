package ballast

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoReachableServers is returned when a selection rule or the pool finds
// no backend with its alive flag set, and as the terminal error once a
// Service retry loop has exhausted the reachable set.
var ErrNoReachableServers = errors.New("ballast: no reachable servers found")

// ConfigurationError reports invalid or contradictory construction inputs,
// e.g. both a Pool and a raw address list passed to NewService.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ballast: configuration error: %s", e.Msg)
}

func newConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// NewConfigurationErrorf builds a *ConfigurationError for use by Discovery
// implementations (including those in subpackages) that need to report a
// malformed construction input using the same taxonomy Pool and Service use.
func NewConfigurationErrorf(format string, args ...interface{}) *ConfigurationError {
	return newConfigurationError(format, args...)
}

// DiscoveryError wraps a failure from a Discovery.Snapshot call. The pool's
// background refresh loop swallows it (logging instead); a caller invoking
// a Discovery directly sees it returned as-is.
type DiscoveryError struct {
	cause error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("ballast: discovery failed: %v", e.cause)
}

func (e *DiscoveryError) Unwrap() error {
	return e.cause
}

func newDiscoveryError(cause error) *DiscoveryError {
	return &DiscoveryError{cause: errors.WithStack(cause)}
}

// NewDiscoveryErrorf builds a *DiscoveryError for use by Discovery
// implementations (including those in subpackages) that need to report a
// runtime lookup failure -- a failed DNS exchange, a failed Consul catalog
// call -- using the same taxonomy Pool's refresh loop uses. Unlike
// ConfigurationError, this is for failures that can clear up on their own
// (the resolver comes back, the network recovers), not invalid input.
func NewDiscoveryErrorf(format string, args ...interface{}) *DiscoveryError {
	return newDiscoveryError(fmt.Errorf(format, args...))
}

// TransportError wraps a per-request I/O failure from the HTTP client used
// by Service. It is never returned directly from Service.Do -- it only
// triggers a retry against a different backend -- but it is exported so
// Prober implementations and tests can recognize the classification.
type TransportError struct {
	cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ballast: transport error: %v", e.cause)
}

func (e *TransportError) Unwrap() error {
	return e.cause
}

func newTransportError(cause error) *TransportError {
	return &TransportError{cause: errors.WithStack(cause)}
}
