package reflex

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// IdentityResolver is the identity resolution collaborator. Resolve may
// block on an external lookup; the connection caches its result.
type IdentityResolver interface {
	Resolve(ctx context.Context) (any, error)
}

// IdentityResolverFunc adapts a function to the IdentityResolver interface.
type IdentityResolverFunc func(ctx context.Context) (any, error)

func (f IdentityResolverFunc) Resolve(ctx context.Context) (any, error) {
	return f(ctx)
}

// Connection is the long-lived per-socket state shared by every dispatch
// cycle on one connection. The identity resolved through it is cached for
// the lifetime of the connection: invocations are NOT idempotent for
// identity-derived data unless Reload busts the cache. The surrounding
// transport serializes dispatch cycles per connection; the mutex guards
// Reload racing a read from another goroutine.
type Connection struct {
	id       string
	resolver IdentityResolver

	mu       sync.Mutex
	identity any
	resolved bool
}

// NewConnection creates a connection context. resolver may be nil, in which
// case Identity returns nil without error.
func NewConnection(resolver IdentityResolver) *Connection {
	return &Connection{
		id:       uuid.NewString(),
		resolver: resolver,
	}
}

// ID is the stable identifier of this connection, used to scope session
// values in the store.
func (c *Connection) ID() string { return c.id }

// Identity returns the connection's principal, resolving it on first call
// and serving the cached value afterwards. Resolution errors are not
// cached; the next invocation retries.
func (c *Connection) Identity(ctx context.Context) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return c.identity, nil
	}
	if c.resolver == nil {
		return nil, nil
	}
	identity, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	c.identity = identity
	c.resolved = true
	return identity, nil
}

// Reload busts the identity cache. The next Identity call resolves fresh.
func (c *Connection) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = nil
	c.resolved = false
}
