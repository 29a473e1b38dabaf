// Package protocol defines the WebSocket message types and structures used for
// communication between the client and server. All messages are serialized as
// JSON and follow a consistent envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeFindPartner = "find_partner"
	TypeMessage     = "message"
	TypeTyping      = "typing"
	TypeNewChat     = "new_chat"
	TypePing        = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated    = "session_created"
	TypeWaitingForPartner = "waiting_for_partner"
	TypePartnerFound      = "partner_found"
	TypePartnerTyping     = "partner_typing"
	TypePartnerLeft       = "partner_left"
	TypeMatchTimeout      = "match_timeout"
	TypeRateLimited       = "rate_limited"
	TypeError             = "error"
	TypePong              = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// FindPartnerMsg is sent by the client to enter the waiting pool with a
// user-chosen nickname.
type FindPartnerMsg struct {
	Type     string `json:"type"`
	Nickname string `json:"nickname"`
}

// ChatMsg is a text message sent by the client within a room.
type ChatMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Text   string `json:"text"`
}

// TypingMsg indicates whether the client is currently typing.
type TypingMsg struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

// NewChatMsg is sent by the client to leave its current room and look for a
// different partner.
type NewChatMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent by the server when a new session is established.
type SessionCreatedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// WaitingForPartnerMsg acknowledges that the client has entered the waiting
// pool. It is sent on the initial request and again whenever the client is
// re-enqueued (new chat, or automatic requeue after the partner disconnects).
type WaitingForPartnerMsg struct {
	Type string `json:"type"`
}

// PartnerFoundMsg is sent by the server when two waiting users are paired.
type PartnerFoundMsg struct {
	Type            string `json:"type"`
	RoomID          string `json:"room_id"`
	PartnerNickname string `json:"partner_nickname"`
}

// ServerChatMsg is a text message relayed from the partner by the server.
// The id and timestamp are assigned server-side at delivery time.
type ServerChatMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	From string `json:"from"` // always "partner" on the receiving side
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
}

// PartnerTypingMsg relays the partner's typing indicator to the client.
type PartnerTypingMsg struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// PartnerLeftMsg is sent by the server when the chat partner has disconnected
// or moved on to a new chat.
type PartnerLeftMsg struct {
	Type string `json:"type"`
}

// MatchTimeoutMsg is sent by the server when the waiting period expired
// without another user appearing. It is distinct from partner_left.
type MatchTimeoutMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RateLimitedMsg is sent by the server when the client has been rate-limited.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeFindPartner:
		var m FindPartnerMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessage:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping:
		var m TypingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeNewChat:
		var m NewChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the Server*Msg structs; this function marshals it to JSON,
// injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
