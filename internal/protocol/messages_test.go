package protocol

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid find_partner message
// ---------------------------------------------------------------------------

func TestParseClientMessage_FindPartner(t *testing.T) {
	input := []byte(`{"type":"find_partner","nickname":"maung maung"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeFindPartner {
		t.Fatalf("expected type %q, got %q", TypeFindPartner, msgType)
	}

	fm, ok := msg.(FindPartnerMsg)
	if !ok {
		t.Fatalf("expected FindPartnerMsg, got %T", msg)
	}
	if fm.Nickname != "maung maung" {
		t.Errorf("expected nickname %q, got %q", "maung maung", fm.Nickname)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a valid message (chat) message
// ---------------------------------------------------------------------------

func TestParseClientMessage_ChatMsg(t *testing.T) {
	input := []byte(`{"type":"message","room_id":"abc-123","text":"Hello!"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeMessage {
		t.Fatalf("expected type %q, got %q", TypeMessage, msgType)
	}

	cm, ok := msg.(ChatMsg)
	if !ok {
		t.Fatalf("expected ChatMsg, got %T", msg)
	}
	if cm.RoomID != "abc-123" {
		t.Errorf("expected room_id %q, got %q", "abc-123", cm.RoomID)
	}
	if cm.Text != "Hello!" {
		t.Errorf("expected text %q, got %q", "Hello!", cm.Text)
	}
}

// ---------------------------------------------------------------------------
// Test: Creating a partner_found server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_PartnerFound(t *testing.T) {
	payload := PartnerFoundMsg{
		RoomID:          "uuid-456",
		PartnerNickname: "anonymous",
	}

	data, err := NewServerMessage(TypePartnerFound, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Decode back and verify structure.
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypePartnerFound {
		t.Errorf("expected type %q, got %v", TypePartnerFound, result["type"])
	}
	if result["room_id"] != "uuid-456" {
		t.Errorf("expected room_id %q, got %v", "uuid-456", result["room_id"])
	}
	if result["partner_nickname"] != "anonymous" {
		t.Errorf("expected partner_nickname %q, got %v", "anonymous", result["partner_nickname"])
	}
}

// ---------------------------------------------------------------------------
// Test: NewServerMessage injects the type over the payload's zero value
// ---------------------------------------------------------------------------

func TestNewServerMessage_InjectsType(t *testing.T) {
	data, err := NewServerMessage(TypeMatchTimeout, MatchTimeoutMsg{
		Message: "No other users are online right now. Please try again later.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if result["type"] != TypeMatchTimeout {
		t.Errorf("expected type %q, got %v", TypeMatchTimeout, result["type"])
	}
	if result["message"] == "" {
		t.Error("expected non-empty message field")
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing an unknown message type returns an error
// ---------------------------------------------------------------------------

func TestParseClientMessage_UnknownType(t *testing.T) {
	input := []byte(`{"type":"unknown_type","data":"something"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected an error for unknown message type, got nil")
	}
	if msg != nil {
		t.Errorf("expected nil message for unknown type, got %v", msg)
	}
	if msgType != "unknown_type" {
		t.Errorf("expected returned type %q, got %q", "unknown_type", msgType)
	}
}

// ---------------------------------------------------------------------------
// Test: Server-only types are rejected from clients
// ---------------------------------------------------------------------------

func TestParseClientMessage_ServerOnlyType(t *testing.T) {
	input := []byte(`{"type":"partner_found","room_id":"r1"}`)

	if _, _, err := ParseClientMessage(input); err == nil {
		t.Fatal("expected an error for server-only message type, got nil")
	}
}

// ---------------------------------------------------------------------------
// Test: Round-trip of a relayed chat message
// ---------------------------------------------------------------------------

func TestRoundTrip_ServerChatMsg(t *testing.T) {
	original := ServerChatMsg{
		ID:   "msg-uuid",
		From: "partner",
		Text: "hey there",
		Ts:   1756500000000,
	}

	data, err := NewServerMessage(TypeMessage, original)
	if err != nil {
		t.Fatalf("failed to create server message: %v", err)
	}

	var decoded ServerChatMsg
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if decoded.Type != TypeMessage {
		t.Errorf("type mismatch: expected %q, got %q", TypeMessage, decoded.Type)
	}
	if decoded.ID != original.ID {
		t.Errorf("id mismatch: expected %q, got %q", original.ID, decoded.ID)
	}
	if decoded.From != "partner" {
		t.Errorf("from mismatch: expected %q, got %q", "partner", decoded.From)
	}
	if decoded.Text != original.Text {
		t.Errorf("text mismatch: expected %q, got %q", original.Text, decoded.Text)
	}
	if decoded.Ts != original.Ts {
		t.Errorf("ts mismatch: expected %d, got %d", original.Ts, decoded.Ts)
	}
}

// ---------------------------------------------------------------------------
// Test: Envelope UnmarshalJSON edge cases
// ---------------------------------------------------------------------------

func TestEnvelope_MissingType(t *testing.T) {
	input := []byte(`{"data":"no type field"}`)
	var env Envelope
	if err := json.Unmarshal(input, &env); err == nil {
		t.Fatal("expected error for missing type field, got nil")
	}
}

func TestEnvelope_InvalidJSON(t *testing.T) {
	input := []byte(`{invalid json}`)
	var env Envelope
	if err := json.Unmarshal(input, &env); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing all client message types succeeds
// ---------------------------------------------------------------------------

func TestParseClientMessage_AllTypes(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantType string
	}{
		{"find_partner", `{"type":"find_partner","nickname":"mo"}`, TypeFindPartner},
		{"message", `{"type":"message","room_id":"id1","text":"hi"}`, TypeMessage},
		{"typing", `{"type":"typing","room_id":"id1","is_typing":true}`, TypeTyping},
		{"new_chat", `{"type":"new_chat","room_id":"id1"}`, TypeNewChat},
		{"ping", `{"type":"ping"}`, TypePing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msgType, msg, err := ParseClientMessage([]byte(tc.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msgType != tc.wantType {
				t.Errorf("expected type %q, got %q", tc.wantType, msgType)
			}
			if msg == nil {
				t.Error("expected non-nil message")
			}
		})
	}
}
