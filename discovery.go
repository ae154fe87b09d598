package ballast

import "context"

// Discovery produces a current snapshot of candidate backends. It is
// called on demand by a ProbeStrategy during a refresh sweep. A Discovery
// implementation is responsible for its own timeouts; it must respect ctx
// and must not block indefinitely. A failed snapshot returns a non-nil
// error, which the Pool's refresh loop converts into an empty replacement
// set (spec: "no answer is no change isn't safe -- replace with empty
// reachable set after probing").
type Discovery interface {
	Snapshot(ctx context.Context) ([]*Backend, error)
}
