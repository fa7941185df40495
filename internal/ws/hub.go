package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/assuntaw/stimulus-reflex/internal/protocol"
	"github.com/assuntaw/stimulus-reflex/internal/reflex"
	"github.com/assuntaw/stimulus-reflex/internal/store"
	"github.com/gorilla/websocket"
)

// Error codes surfaced to the transport collaborator.
const (
	codeDecodeFailed   = "DECODE_FAILED"
	codeMethodNotFound = "METHOD_NOT_FOUND"
	codeReservedName   = "RESERVED_NAME"
	codeReflexFailed   = "REFLEX_FAILED"
)

// IdentityFactory builds the identity resolution collaborator for one
// accepted socket, typically from handshake credentials.
type IdentityFactory func(r *http.Request) reflex.IdentityResolver

type clientConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	reflex *reflex.Connection
}

func (c *clientConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub owns the socket endpoints. Each connection gets one long-lived
// reflex.Connection; the per-connection read loop serializes dispatch
// cycles, so no two invocations run concurrently on one connection.
type Hub struct {
	store      store.Store
	dispatcher *reflex.Dispatcher
	authToken  string
	identity   IdentityFactory
	invokedTTL time.Duration

	upgrader websocket.Upgrader

	connMu sync.RWMutex
	conns  map[*clientConn]struct{}
}

func NewHub(st store.Store, d *reflex.Dispatcher, authToken string, identity IdentityFactory, invokedTTL time.Duration) *Hub {
	if invokedTTL <= 0 {
		invokedTTL = 24 * time.Hour
	}
	return &Hub{
		store:      st,
		dispatcher: d,
		authToken:  authToken,
		identity:   identity,
		invokedTTL: invokedTTL,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		conns: make(map[*clientConn]struct{}),
	}
}

func (h *Hub) HandleReflex(w http.ResponseWriter, r *http.Request) {
	if h.authToken != "" && r.Header.Get("Authorization") != "Bearer "+h.authToken {
		log.Printf("reflex unauthorized: remote=%s", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade reflex ws failed: %v", err)
		return
	}

	var resolver reflex.IdentityResolver
	if h.identity != nil {
		resolver = h.identity(r)
	}
	client := &clientConn{conn: conn, reflex: reflex.NewConnection(resolver)}

	h.connMu.Lock()
	h.conns[client] = struct{}{}
	connCount := len(h.conns)
	h.connMu.Unlock()

	log.Printf("reflex connected: remote=%s connection_id=%s active_conns=%d", r.RemoteAddr, client.reflex.ID(), connCount)
	h.readLoop(client)
}

func (h *Hub) readLoop(client *clientConn) {
	defer func() {
		h.connMu.Lock()
		delete(h.conns, client)
		connCount := len(h.conns)
		h.connMu.Unlock()
		_ = client.conn.Close()
		log.Printf("reflex disconnected: connection_id=%s active_conns=%d", client.reflex.ID(), connCount)
	}()

	for {
		var env protocol.Envelope
		if err := client.conn.ReadJSON(&env); err != nil {
			log.Printf("recv client->reflexd failed: %v", err)
			return
		}
		h.logEvent("recv client->reflexd", env)

		switch env.Type {
		case protocol.TypeIdentityReload:
			client.reflex.Reload()
			ack := protocol.Envelope{
				Type:      protocol.TypeIdentityReloaded,
				ReflexID:  env.ReflexID,
				Timestamp: time.Now().UnixMilli(),
				Payload: mustJSON(protocol.ReloadAckPayload{
					ConnectionID: client.reflex.ID(),
					Success:      true,
				}),
			}
			h.logEvent("send reflexd->client(identity reloaded)", ack)
			if err := client.WriteJSON(ack); err != nil {
				log.Printf("send reload ack failed: %v", err)
			}
		case protocol.TypeReflex:
			if err := h.handleReflex(context.Background(), client, env); err != nil {
				log.Printf("handle reflex failed: reflex_id=%s err=%v", env.ReflexID, err)
				errEnv := protocol.Envelope{
					Type:      protocol.TypeReflexError,
					ReflexID:  env.ReflexID,
					Target:    env.Target,
					Timestamp: time.Now().UnixMilli(),
					Payload:   mustJSON(protocol.ErrorPayload{Code: errorCode(err), Message: err.Error()}),
				}
				h.logEvent("send reflexd->client(error)", errEnv)
				if werr := client.WriteJSON(errEnv); werr != nil {
					log.Printf("send error envelope failed: %v", werr)
				}
			}
		default:
			log.Printf("ignore unknown envelope: type=%s reflex_id=%s", env.Type, env.ReflexID)
		}
	}
}

func (h *Hub) handleReflex(ctx context.Context, client *clientConn, env protocol.Envelope) error {
	// Interactions normally carry a client-generated id; server-originated
	// ones get theirs here, before decode.
	if strings.TrimSpace(env.ReflexID) == "" {
		env.ReflexID = protocol.NewReflexID()
		log.Printf("generate reflex_id: reflex_id=%s target=%s", env.ReflexID, env.Target)
	}

	req, err := protocol.Decode(env)
	if err != nil {
		return err
	}

	seen, err := h.store.IsInvoked(ctx, req.ReflexID)
	if err != nil {
		return err
	}
	if seen {
		if serr := h.store.SetStage(ctx, req.ReflexID, store.StageHalted, h.invokedTTL); serr != nil {
			log.Printf("set stage failed: reflex_id=%s err=%v", req.ReflexID, serr)
		}
		ack := protocol.Envelope{
			Type:      protocol.TypeReflexResult,
			ReflexID:  req.ReflexID,
			Target:    env.Target,
			Timestamp: time.Now().UnixMilli(),
			Payload: mustJSON(protocol.ResultPayload{
				ReflexID: req.ReflexID,
				Message:  "duplicate ignored",
			}),
		}
		h.logEvent("send reflexd->client(duplicate)", ack)
		return client.WriteJSON(ack)
	}

	result, err := h.dispatcher.Dispatch(ctx, client.reflex, req)
	if err != nil {
		if serr := h.store.SetStage(ctx, req.ReflexID, store.StageFailed, h.invokedTTL); serr != nil {
			log.Printf("set stage failed: reflex_id=%s err=%v", req.ReflexID, serr)
		}
		return err
	}

	if err := h.store.MarkInvoked(ctx, req.ReflexID, h.invokedTTL); err != nil {
		return err
	}
	if err := h.store.SetStage(ctx, req.ReflexID, store.StageCompleted, h.invokedTTL); err != nil {
		return err
	}

	reply := protocol.Envelope{
		Type:      protocol.TypeReflexResult,
		ReflexID:  result.ReflexID,
		Target:    env.Target,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(protocol.ResultPayload{
			ReflexID:  result.ReflexID,
			Triggered: result.Triggered,
			Outputs:   result.Outputs,
			Flash:     result.Flash,
		}),
	}
	h.logEvent("send reflexd->client(result)", reply)
	if err := client.WriteJSON(reply); err != nil {
		return err
	}

	if len(result.Broadcasts) > 0 {
		fanout := protocol.Envelope{
			Type:      protocol.TypeReflexBroadcast,
			ReflexID:  result.ReflexID,
			Target:    env.Target,
			Timestamp: time.Now().UnixMilli(),
			Payload: mustJSON(protocol.BroadcastPayload{
				ReflexID: result.ReflexID,
				Outputs:  result.Broadcasts,
			}),
		}
		h.logEvent("send reflexd->all(broadcast)", fanout)
		h.broadcast(fanout)
	}
	return nil
}

func (h *Hub) broadcast(env protocol.Envelope) {
	h.connMu.RLock()
	defer h.connMu.RUnlock()
	log.Printf("broadcast to conns: count=%d type=%s reflex_id=%s", len(h.conns), env.Type, env.ReflexID)
	for client := range h.conns {
		if err := client.WriteJSON(env); err != nil {
			log.Printf("broadcast to conn failed: %v", err)
		}
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, protocol.ErrDecode):
		return codeDecodeFailed
	case errors.Is(err, reflex.ErrReservedName):
		return codeReservedName
	case errors.Is(err, reflex.ErrMethodNotFound):
		return codeMethodNotFound
	default:
		return codeReflexFailed
	}
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func (h *Hub) logEvent(prefix string, env protocol.Envelope) {
	log.Printf("%s: type=%s reflex_id=%s target=%s timestamp=%d", prefix, env.Type, env.ReflexID, env.Target, env.Timestamp)
}
