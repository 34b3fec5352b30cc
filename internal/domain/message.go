package domain

import (
	"encoding/json"
	"time"
)

// Envelope is the generic framing every session message rides in. The
// channel multiplexes unrelated assistant traffic (auth, heartbeat,
// transcript, execute) alongside the resolve pair; payloads stay raw until
// a handler for the type decodes them.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	MsgTypeResolve   = "ds_resolve"
	MsgTypeContext   = "ds_context"
	MsgTypeHeartbeat = "heartbeat"
)

// ResolveRequest is the backend asking for the text behind matched node ids.
// It holds vectors only, never the original text, so the device answers.
type ResolveRequest struct {
	NodeIDs   []string `json:"node_ids"`
	SessionID string   `json:"session_id"`
}

// ContextNode is one resolved id in a ContextReply.
type ContextNode struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ContextReply answers a ResolveRequest. Ids missing from the local graph
// are dropped, not errored; an unreadable graph still yields an empty list.
type ContextReply struct {
	SessionID string        `json:"session_id"`
	Nodes     []ContextNode `json:"nodes"`
}
