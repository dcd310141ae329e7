package fetch

import (
	"context"
	"fmt"
)

// poolSize bounds concurrent calls into fragile blocking providers.
const poolSize = 3

// CallPool serializes calls to a provider whose client library tolerates
// only a few concurrent requests. At most poolSize calls run at once;
// each call carries its own deadline.
type CallPool struct {
	slots chan struct{}
}

// NewCallPool creates a pool with the default concurrency bound.
func NewCallPool() *CallPool {
	return &CallPool{slots: make(chan struct{}, poolSize)}
}

// Do runs fn under a pool slot. It blocks until a slot is free or the
// context expires.
func (p *CallPool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for pool slot: %v", ErrTimeout, ctx.Err())
	}

	defer func() { <-p.slots }()

	return fn(ctx)
}
