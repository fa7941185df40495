package protocol

import (
	"context"
	"fmt"
	"strings"
)

// TokenMode selects the encoding of a reference token.
type TokenMode string

const (
	// TokenSigned is the tamper-evident encoding. Decodable only with the
	// resolver's private verification material.
	TokenSigned TokenMode = "signed"
	// TokenUnsigned is the compact, unprotected encoding.
	TokenUnsigned TokenMode = "unsigned"
)

// TokenResolver decodes reference tokens embedded in element attributes
// into fully-loaded domain entities.
type TokenResolver interface {
	Decode(ctx context.Context, token string, mode TokenMode) (any, error)
}

// TokenResolverFunc adapts a function to the TokenResolver interface.
type TokenResolverFunc func(ctx context.Context, token string, mode TokenMode) (any, error)

func (f TokenResolverFunc) Decode(ctx context.Context, token string, mode TokenMode) (any, error) {
	return f(ctx, token, mode)
}

// Attr is a single element attribute. Value is a string for everything
// except the checked/selected flags, which are booleans.
type Attr struct {
	Name  string
	Value any
}

// refCell memoizes one token resolution for the lifetime of the request.
type refCell struct {
	resolved bool
	entity   any
	err      error
}

// Element is the ordered attribute bag of the UI element that triggered
// a reflex. It is owned by a single dispatch cycle and is not safe for
// concurrent use.
type Element struct {
	attrs   []Attr
	index   map[string]int
	dataset map[string]string
	values  []string

	resolver TokenResolver
	signed   map[string]*refCell
	unsigned map[string]*refCell
}

func newElement() *Element {
	return &Element{
		index:    make(map[string]int),
		dataset:  make(map[string]string),
		signed:   make(map[string]*refCell),
		unsigned: make(map[string]*refCell),
	}
}

func (e *Element) set(name string, value any) {
	key := strings.ToLower(name)
	if i, ok := e.index[key]; ok {
		e.attrs[i].Value = value
		return
	}
	e.index[key] = len(e.attrs)
	e.attrs = append(e.attrs, Attr{Name: name, Value: value})
}

// Get returns the attribute value by name, case-insensitively.
// The value is a bool for the checked/selected flags, a string otherwise.
func (e *Element) Get(name string) (any, bool) {
	i, ok := e.index[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return e.attrs[i].Value, true
}

// Attr returns the string form of an attribute, "" if absent.
// Boolean flags render as "true"/"false".
func (e *Element) Attr(name string) string {
	v, ok := e.Get(name)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}

// Flag reports a boolean flag attribute such as checked or selected.
func (e *Element) Flag(name string) bool {
	v, ok := e.Get(name)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// ID returns the element's id attribute.
func (e *Element) ID() string { return e.Attr("id") }

// Dataset returns the data-* attribute value for key, "" if absent.
func (e *Element) Dataset(key string) string { return e.dataset[key] }

// DatasetAll returns a copy of the dataset mapping.
func (e *Element) DatasetAll() map[string]string {
	out := make(map[string]string, len(e.dataset))
	for k, v := range e.dataset {
		out[k] = v
	}
	return out
}

// Values returns the multi-value sequence for checkbox collections and
// multiple selects. Nil when the element carries none.
func (e *Element) Values() []string { return e.values }

// Attrs returns the attributes in wire order.
func (e *Element) Attrs() []Attr {
	out := make([]Attr, len(e.attrs))
	copy(out, e.attrs)
	return out
}

// BindResolver attaches the token resolver used by Signed and Unsigned.
// The dispatcher binds one per invocation.
func (e *Element) BindResolver(r TokenResolver) { e.resolver = r }

// Signed resolves the tamper-evident reference token stored in the named
// attribute into a domain entity. The resolution is performed once per
// request and memoized, errors included.
func (e *Element) Signed(ctx context.Context, name string) (any, error) {
	return e.resolveRef(ctx, name, TokenSigned, e.signed)
}

// Unsigned resolves the compact reference token stored in the named
// attribute. Same memoization contract as Signed.
func (e *Element) Unsigned(ctx context.Context, name string) (any, error) {
	return e.resolveRef(ctx, name, TokenUnsigned, e.unsigned)
}

func (e *Element) resolveRef(ctx context.Context, name string, mode TokenMode, cells map[string]*refCell) (any, error) {
	key := strings.ToLower(name)
	if cell, ok := cells[key]; ok && cell.resolved {
		return cell.entity, cell.err
	}
	cell := &refCell{resolved: true}

	token := e.refToken(name)
	if token == "" {
		cell.err = resolutionErr("no token in attribute %q", name)
		cells[key] = cell
		return nil, cell.err
	}
	if e.resolver == nil {
		cell.err = resolutionErr("no resolver bound for attribute %q", name)
		cells[key] = cell
		return nil, cell.err
	}
	// The cell is stored only after Decode returns; a panicking resolver
	// leaves no cell behind, so the next access resolves again.
	entity, err := e.resolver.Decode(ctx, token, mode)
	if err != nil {
		cell.err = resolutionErr("attribute %q: %v", name, err)
		cells[key] = cell
		return nil, cell.err
	}
	cell.entity = entity
	cells[key] = cell
	return entity, nil
}

// refToken looks the token up in the attributes first, then the dataset.
func (e *Element) refToken(name string) string {
	if v, ok := e.Get(name); ok {
		if s, isString := v.(string); isString {
			return s
		}
		return ""
	}
	return e.dataset[name]
}
