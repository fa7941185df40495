package reflex

import (
	"context"
	"net/url"

	"github.com/assuntaw/stimulus-reflex/internal/protocol"
	"github.com/assuntaw/stimulus-reflex/internal/store"
)

// Context is the accessor layer a handler sees during one invocation.
// It is owned by a single dispatch cycle and must not outlive it.
type Context struct {
	reflexID string
	element  *protocol.Element
	url      string
	params   url.Values
	conn     *Connection
	store    store.Store

	flash      map[string]string
	outputs    map[string]any
	broadcasts map[string]any
}

// ReflexID is the correlation id of this invocation. Read-only for
// handler code; it is identical at decode, dispatch, and reply.
func (rc *Context) ReflexID() string { return rc.reflexID }

// Element is the attribute bag of the triggering UI element.
func (rc *Context) Element() *protocol.Element { return rc.element }

// URL is the address of the page that triggered the reflex.
func (rc *Context) URL() string { return rc.url }

// Params holds the nearest-form parameters.
func (rc *Context) Params() url.Values { return rc.params }

// Connection is the long-lived context this invocation runs on.
func (rc *Context) Connection() *Connection { return rc.conn }

// Identity returns the connection's principal, cached at connection scope.
// Stale by design after the underlying source changes; call ReloadIdentity
// to observe fresh data.
func (rc *Context) Identity(ctx context.Context) (any, error) {
	return rc.conn.Identity(ctx)
}

// ReloadIdentity busts the connection's identity cache.
func (rc *Context) ReloadIdentity() { rc.conn.Reload() }

// SessionGet reads a session value scoped to this connection.
func (rc *Context) SessionGet(ctx context.Context, key string) (string, error) {
	return rc.store.GetSessionValue(ctx, rc.conn.ID(), key)
}

// SessionSet writes a session value scoped to this connection.
func (rc *Context) SessionSet(ctx context.Context, key, value string) error {
	return rc.store.SetSessionValue(ctx, rc.conn.ID(), key, value)
}

// Flash records a transient message forwarded once with the result.
func (rc *Context) Flash(key, message string) {
	if rc.flash == nil {
		rc.flash = make(map[string]string)
	}
	rc.flash[key] = message
}

// Expose declares a value to forward to the render collaborator with the
// reply. Nothing is forwarded implicitly; only exposed values travel.
func (rc *Context) Expose(key string, value any) {
	if rc.outputs == nil {
		rc.outputs = make(map[string]any)
	}
	rc.outputs[key] = value
}

// Broadcast declares a value to fan out to every connection, not just the
// origin.
func (rc *Context) Broadcast(key string, value any) {
	if rc.broadcasts == nil {
		rc.broadcasts = make(map[string]any)
	}
	rc.broadcasts[key] = value
}
