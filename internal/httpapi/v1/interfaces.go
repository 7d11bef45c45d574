package v1

import "context"

// ReadyChecker is implemented by stores that can report readiness, such as
// the postgres store pinging its pool. The memory store does not implement
// it and is always considered ready.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
