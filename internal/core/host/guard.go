package host

import "github.com/rl1809/marketplace/internal/core/domain"

// Guard rejects a call into a component that is already executing one of its
// guarded operations further up the stack.
type Guard struct {
	entered bool
}

// Enter marks the component busy. The returned func must be deferred.
func (g *Guard) Enter() (func(), error) {
	if g.entered {
		return nil, domain.ErrReentrantCall
	}
	g.entered = true
	return func() { g.entered = false }, nil
}
