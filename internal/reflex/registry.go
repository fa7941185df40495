package reflex

import (
	"context"
	"fmt"
	"sync"
)

// Reserved method names. default_reflex is claimed by the catch-all hook,
// morph by the render collaborator contract.
const (
	MethodDefaultReflex = "default_reflex"
	MethodMorph         = "morph"
)

// IsReservedMethod reports whether name may not be registered or invoked.
func IsReservedMethod(name string) bool {
	return name == MethodDefaultReflex || name == MethodMorph
}

// Handler is one registered reflex method.
type Handler func(ctx context.Context, rc *Context) error

// Class is a registered handler class: a named set of methods, an optional
// catch-all, an optional parent for shared behavior, and ordered rescue
// rules.
type Class struct {
	name      string
	parent    string
	methods   map[string]Handler
	defaultFn Handler
	rescues   []rescueRule
}

// NewClass creates an unregistered class. Register it with Registry.Register
// once its methods are declared.
func NewClass(name string) *Class {
	return &Class{
		name:    name,
		methods: make(map[string]Handler),
	}
}

func (c *Class) Name() string { return c.name }

// Extends declares the parent class whose methods and rescue rules this
// class inherits. The parent must be registered by dispatch time.
func (c *Class) Extends(parent string) *Class {
	c.parent = parent
	return c
}

// Method registers a handler method. Reserved names are rejected.
func (c *Class) Method(name string, fn Handler) error {
	if IsReservedMethod(name) {
		return fmt.Errorf("%w: %q on class %s", ErrReservedName, name, c.name)
	}
	if name == "" {
		return fmt.Errorf("reflex: empty method name on class %s", c.name)
	}
	c.methods[name] = fn
	return nil
}

// Default sets the catch-all handler invoked for a bare "ClassName"
// designation.
func (c *Class) Default(fn Handler) *Class {
	c.defaultFn = fn
	return c
}

// Registry maps class names to registered classes.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class)}
}

// Register adds a class. Duplicate names are rejected.
func (r *Registry) Register(c *Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[c.name]; ok {
		return fmt.Errorf("%w: %s", ErrClassRegistered, c.name)
	}
	r.classes[c.name] = c
	return nil
}

// Lookup returns the class registered under name.
func (r *Registry) Lookup(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// maxAncestorDepth bounds the parent walk against declaration cycles.
const maxAncestorDepth = 32

// ancestors yields class and its declared parents, nearest first.
func (r *Registry) ancestors(class *Class) []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []*Class{class}
	cur := class
	for i := 0; cur.parent != "" && i < maxAncestorDepth; i++ {
		parent, ok := r.classes[cur.parent]
		if !ok {
			break
		}
		chain = append(chain, parent)
		cur = parent
	}
	return chain
}

// Resolve finds the handler for a designation. An empty method designates
// the nearest declared catch-all. Reserved method names fail for every
// class; unregistered classes and methods fail with ErrMethodNotFound.
func (r *Registry) Resolve(className, method string) (*Class, Handler, error) {
	if method != "" && IsReservedMethod(method) {
		return nil, nil, fmt.Errorf("%w: %q", ErrReservedName, method)
	}
	class, ok := r.Lookup(className)
	if !ok {
		return nil, nil, fmt.Errorf("%w: class %s not registered", ErrMethodNotFound, className)
	}
	for _, c := range r.ancestors(class) {
		if method == "" {
			if c.defaultFn != nil {
				return class, c.defaultFn, nil
			}
			continue
		}
		if fn, ok := c.methods[method]; ok {
			return class, fn, nil
		}
	}
	if method == "" {
		return nil, nil, fmt.Errorf("%w: %s has no default handler", ErrMethodNotFound, className)
	}
	return nil, nil, fmt.Errorf("%w: %s#%s", ErrMethodNotFound, className, method)
}
