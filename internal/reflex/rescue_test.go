package reflex

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/assuntaw/stimulus-reflex/internal/protocol"
)

var errRecordMissing = errors.New("record missing")

func failingClass(t *testing.T, name string, failWith error) *Class {
	t.Helper()
	c := NewClass(name)
	if err := c.Method("work", func(_ context.Context, _ *Context) error {
		return failWith
	}); err != nil {
		t.Fatalf("Method failed: %v", err)
	}
	return c
}

func dispatchOne(t *testing.T, registry *Registry, target string) (*Result, error) {
	t.Helper()
	d := newTestDispatcher(t, registry)
	req := decodeEnvelope(t, protocol.Envelope{
		Type:     protocol.TypeReflex,
		Target:   target,
		ReflexID: protocol.NewReflexID(),
		Element:  json.RawMessage(`{"id":"e"}`),
	})
	return d.Dispatch(context.Background(), NewConnection(nil), req)
}

func TestRescueFirstMatchWins(t *testing.T) {
	registry := NewRegistry()
	c := failingClass(t, "Example", errRecordMissing)

	fired := ""
	c.RescueFrom(errRecordMissing, func(rc *Context, _ error) error {
		fired = "first"
		rc.Expose("recovered", true)
		return nil
	})
	c.RescueFrom(errRecordMissing, func(_ *Context, _ error) error {
		fired = "second"
		return nil
	})
	if err := registry.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := dispatchOne(t, registry, "Example#work")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if fired != "first" {
		t.Fatalf("fired = %q, want first (declaration order)", fired)
	}
	if result.Outputs["recovered"] != true {
		t.Fatal("recovery did not expose its output")
	}
}

func TestRescueWalksAncestorChain(t *testing.T) {
	registry := NewRegistry()

	base := NewClass("ApplicationReflex")
	baseFired := false
	base.RescueFrom(errRecordMissing, func(_ *Context, _ error) error {
		baseFired = true
		return nil
	})
	if err := registry.Register(base); err != nil {
		t.Fatalf("Register base failed: %v", err)
	}

	child := failingClass(t, "ChildReflex", errRecordMissing).Extends("ApplicationReflex")
	if err := registry.Register(child); err != nil {
		t.Fatalf("Register child failed: %v", err)
	}

	if _, err := dispatchOne(t, registry, "ChildReflex#work"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !baseFired {
		t.Fatal("inherited rescue policy did not fire")
	}
}

func TestRescueClassPolicyShadowsParent(t *testing.T) {
	registry := NewRegistry()

	fired := ""
	base := NewClass("ApplicationReflex")
	base.RescueFrom(errRecordMissing, func(_ *Context, _ error) error {
		fired = "base"
		return nil
	})
	if err := registry.Register(base); err != nil {
		t.Fatalf("Register base failed: %v", err)
	}

	child := failingClass(t, "ChildReflex", errRecordMissing).Extends("ApplicationReflex")
	child.RescueFrom(errRecordMissing, func(_ *Context, _ error) error {
		fired = "child"
		return nil
	})
	if err := registry.Register(child); err != nil {
		t.Fatalf("Register child failed: %v", err)
	}

	if _, err := dispatchOne(t, registry, "ChildReflex#work"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if fired != "child" {
		t.Fatalf("fired = %q, want child (nearest class first)", fired)
	}
}

func TestRescueUnmatchedPropagates(t *testing.T) {
	registry := NewRegistry()
	c := failingClass(t, "Example", errRecordMissing)
	c.RescueFrom(errors.New("unrelated"), func(_ *Context, _ error) error { return nil })
	if err := registry.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := dispatchOne(t, registry, "Example#work"); !errors.Is(err, errRecordMissing) {
		t.Fatalf("Dispatch error = %v, want errRecordMissing to propagate", err)
	}
}

func TestRescueReplacementErrorPropagates(t *testing.T) {
	registry := NewRegistry()
	replacement := errors.New("fallback render required")
	c := failingClass(t, "Example", errRecordMissing)
	c.RescueFrom(errRecordMissing, func(_ *Context, _ error) error {
		return replacement
	})
	if err := registry.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := dispatchOne(t, registry, "Example#work"); !errors.Is(err, replacement) {
		t.Fatalf("Dispatch error = %v, want replacement error", err)
	}
}

func TestRescueMatchesRecoveredPanic(t *testing.T) {
	registry := NewRegistry()
	c := NewClass("Example")
	if err := c.Method("work", func(_ context.Context, _ *Context) error {
		panic("boom")
	}); err != nil {
		t.Fatalf("Method failed: %v", err)
	}
	c.RescueMatch(func(err error) bool {
		var rec *RecoveryError
		return errors.As(err, &rec)
	}, func(rc *Context, _ error) error {
		rc.Expose("recovered_panic", true)
		return nil
	})
	if err := registry.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := dispatchOne(t, registry, "Example#work")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Outputs["recovered_panic"] != true {
		t.Fatal("panic was not rescued")
	}
}
