package protocol

import "encoding/json"

// Envelope types exchanged with clients.
const (
	TypeReflex           = "reflex"
	TypeReflexResult     = "reflex:result"
	TypeReflexError      = "reflex:error"
	TypeReflexBroadcast  = "reflex:broadcast"
	TypeIdentityReload   = "identity:reload"
	TypeIdentityReloaded = "identity:reloaded"
)

type Envelope struct {
	Type      string          `json:"type"`
	ReflexID  string          `json:"reflex_id,omitempty"`
	Target    string          `json:"target,omitempty"`
	URL       string          `json:"url,omitempty"`
	FormData  string          `json:"form_data,omitempty"`
	Element   json.RawMessage `json:"element,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type ResultPayload struct {
	ReflexID  string            `json:"reflex_id"`
	Triggered bool              `json:"triggered"`
	Outputs   map[string]any    `json:"outputs,omitempty"`
	Flash     map[string]string `json:"flash,omitempty"`
	Message   string            `json:"message,omitempty"`
}

type BroadcastPayload struct {
	ReflexID string         `json:"reflex_id"`
	Outputs  map[string]any `json:"outputs"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ReloadAckPayload struct {
	ConnectionID string `json:"connection_id"`
	Success      bool   `json:"success"`
}
