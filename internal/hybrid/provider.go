package hybrid

import "context"

// Provider is one AI backend the dispatcher can try. Lower Priority is
// tried first. Available lets a provider take itself out of rotation
// (missing credentials, circuit open) without failing dispatches.
type Provider interface {
	Name() string
	Priority() int
	Available() bool
	Invoke(ctx context.Context, req Request) (any, error)
}
