package runtime

import "context"

// ResourcePool is the set of connections a synchronous handler depends on.
// Verify runs before every synchronous dispatch; when a handler fails with an
// error the pool reports as Disconnected, Recover is called before the error
// is returned to the broker.
type ResourcePool interface {
	Verify(ctx context.Context) error
	Recover(ctx context.Context) error
	Disconnected(err error) bool
}

type nopPool struct{}

func (nopPool) Verify(context.Context) error  { return nil }
func (nopPool) Recover(context.Context) error { return nil }
func (nopPool) Disconnected(error) bool       { return false }

// poolChain verifies and recovers every member pool.
type poolChain []ResourcePool

func (c poolChain) Verify(ctx context.Context) error {
	for _, pool := range c {
		if err := pool.Verify(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c poolChain) Recover(ctx context.Context) error {
	var first error
	for _, pool := range c {
		if err := pool.Recover(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c poolChain) Disconnected(err error) bool {
	for _, pool := range c {
		if pool.Disconnected(err) {
			return true
		}
	}
	return false
}

func newPool(pools ...ResourcePool) ResourcePool {
	var chain poolChain
	for _, pool := range pools {
		if pool != nil {
			chain = append(chain, pool)
		}
	}
	switch len(chain) {
	case 0:
		return nopPool{}
	case 1:
		return chain[0]
	default:
		return chain
	}
}
