package reflex

import (
	"context"
	"runtime/debug"

	"github.com/assuntaw/stimulus-reflex/internal/protocol"
	"github.com/assuntaw/stimulus-reflex/internal/store"
)

// Result is the explicit outbound contract of one dispatch cycle: the
// correlation id, a flag marking the render as reflex-triggered, and the
// values the handler chose to expose.
type Result struct {
	ReflexID   string
	Class      string
	Method     string
	Triggered  bool
	Outputs    map[string]any
	Broadcasts map[string]any
	Flash      map[string]string
}

// Dispatcher resolves decoded invocation requests against a registry and
// runs the bound handler with the accessor layer in scope.
type Dispatcher struct {
	registry *Registry
	tokens   protocol.TokenResolver
	store    store.Store
}

func NewDispatcher(registry *Registry, tokens protocol.TokenResolver, st store.Store) *Dispatcher {
	return &Dispatcher{registry: registry, tokens: tokens, store: st}
}

// Registry returns the dispatcher's class registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch runs one cycle: resolve the designation, invoke the handler on
// conn, apply rescue policies to any error, and collect exposed values.
// It has no side effects of its own beyond the invocation.
func (d *Dispatcher) Dispatch(ctx context.Context, conn *Connection, req *protocol.InvocationRequest) (*Result, error) {
	class, fn, err := d.registry.Resolve(req.Target, req.Method)
	if err != nil {
		return nil, err
	}

	req.Element.BindResolver(d.tokens)
	rc := &Context{
		reflexID: req.ReflexID,
		element:  req.Element,
		url:      req.URL,
		params:   req.Params,
		conn:     conn,
		store:    d.store,
	}

	if err := invoke(ctx, fn, rc); err != nil {
		recovery, ok := d.registry.resolveRescue(class, err)
		if !ok {
			return nil, err
		}
		if err := recovery(rc, err); err != nil {
			return nil, err
		}
	}

	method := req.Method
	if method == "" {
		method = MethodDefaultReflex
	}
	return &Result{
		ReflexID:   req.ReflexID,
		Class:      class.Name(),
		Method:     method,
		Triggered:  true,
		Outputs:    rc.outputs,
		Broadcasts: rc.broadcasts,
		Flash:      rc.flash,
	}, nil
}

// invoke runs the handler, converting panics into RecoveryError so rescue
// policies can handle them.
func invoke(ctx context.Context, fn Handler, rc *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RecoveryError{
				PanicValue: r,
				StackTrace: string(debug.Stack()),
			}
		}
	}()
	return fn(ctx, rc)
}
