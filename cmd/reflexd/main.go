package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/assuntaw/stimulus-reflex/internal/config"
	"github.com/assuntaw/stimulus-reflex/internal/protocol"
	"github.com/assuntaw/stimulus-reflex/internal/reflex"
	"github.com/assuntaw/stimulus-reflex/internal/store"
	"github.com/assuntaw/stimulus-reflex/internal/ws"
)

func main() {
	cfg, err := config.Load(os.Getenv("REFLEXD_CONFIG"))
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	var st store.Store
	if cfg.Store.RedisAddr != "" {
		st = store.NewRedisStore(cfg.Store.RedisAddr)
		log.Printf("use redis store: %s", cfg.Store.RedisAddr)
	} else {
		st = store.NewMemoryStore()
		log.Printf("use memory store")
	}

	registry := reflex.NewRegistry()
	if err := registerExample(registry); err != nil {
		log.Fatalf("register reflex classes failed: %v", err)
	}

	dispatcher := reflex.NewDispatcher(registry, passthroughResolver{}, st)
	hub := ws.NewHub(st, dispatcher, cfg.Server.AuthToken, headerIdentity, time.Duration(cfg.Store.InvokedTTLSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Server.SocketPath, hub.HandleReflex)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	log.Printf("reflexd listening on %s path=%s", cfg.Server.ListenAddr, cfg.Server.SocketPath)
	if err := http.ListenAndServe(cfg.Server.ListenAddr, mux); err != nil {
		log.Fatalf("reflexd server failed: %v", err)
	}
}

// headerIdentity resolves the connection principal from the handshake.
func headerIdentity(r *http.Request) reflex.IdentityResolver {
	principal := r.Header.Get("X-Reflex-Identity")
	return reflex.IdentityResolverFunc(func(_ context.Context) (any, error) {
		return principal, nil
	})
}

// passthroughResolver treats reference tokens as the entity itself. Real
// deployments plug in a resolver backed by their entity storage.
type passthroughResolver struct{}

func (passthroughResolver) Decode(_ context.Context, token string, _ protocol.TokenMode) (any, error) {
	return token, nil
}

// registerExample installs a small demonstration class hierarchy.
func registerExample(registry *reflex.Registry) error {
	application := reflex.NewClass("ApplicationReflex")
	if err := application.Method("ping", func(_ context.Context, rc *reflex.Context) error {
		rc.Expose("pong", rc.ReflexID())
		return nil
	}); err != nil {
		return err
	}
	if err := registry.Register(application); err != nil {
		return err
	}

	example := reflex.NewClass("ExampleReflex").Extends("ApplicationReflex")
	if err := example.Method("work", func(ctx context.Context, rc *reflex.Context) error {
		count, _ := rc.SessionGet(ctx, "work_count")
		n, _ := strconv.Atoi(count)
		n++
		if err := rc.SessionSet(ctx, "work_count", strconv.Itoa(n)); err != nil {
			return err
		}
		rc.Expose("element_id", rc.Element().ID())
		rc.Expose("work_count", n)
		return nil
	}); err != nil {
		return err
	}
	example.Default(func(_ context.Context, rc *reflex.Context) error {
		rc.Expose("handled_by", "default")
		return nil
	})
	return registry.Register(example)
}
