package ws

import (
	"log"
	"time"

	"github.com/mtsl/pairchat/internal/protocol"
)

// MessageHandler is the callback signature for handling a parsed client
// message. The msg parameter is the concrete struct returned by
// protocol.ParseClientMessage (protocol.FindPartnerMsg, protocol.ChatMsg,
// and so on).
type MessageHandler func(conn *Connection, msg interface{})

// MessageDispatcher routes incoming WebSocket messages to registered handlers
// based on the message type. It answers the built-in ping/pong keepalive
// internally and sends structured error responses for malformed or
// unsupported messages.
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	server   *Server
}

// NewMessageDispatcher creates a MessageDispatcher. The server reference is
// assigned later via SetServer, since NewServer requires the Dispatch
// callback.
func NewMessageDispatcher() *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
	}
}

// SetServer assigns the Server reference used for sending responses.
func (d *MessageDispatcher) SetServer(server *Server) {
	d.server = server
}

// Register associates a MessageHandler with a message type. An existing
// handler for the same type is silently replaced.
func (d *MessageDispatcher) Register(msgType string, handler MessageHandler) {
	d.handlers[msgType] = handler
}

// Dispatch is the onMessage callback implementation. It parses the raw bytes
// into a typed message, handles ping internally, and routes all other types
// to the registered handler. Parse errors and unregistered types produce an
// error message back to the client.
func (d *MessageDispatcher) Dispatch(conn *Connection, data []byte) {
	msgType, msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		log.Printf("[ws] dispatch parse error session=%s: %v", conn.ID, err)
		d.SendError(conn, "parse_error", "invalid message format")
		return
	}

	if msgType == protocol.TypePing {
		d.sendPong(conn)
		return
	}

	handler, ok := d.handlers[msgType]
	if !ok {
		log.Printf("[ws] unsupported message type=%q session=%s", msgType, conn.ID)
		d.SendError(conn, "unsupported_type", "unsupported message type")
		return
	}

	handler(conn, msg)
}

// SendError sends a structured error message to the client. Errors during
// construction or transmission are logged but not propagated.
func (d *MessageDispatcher) SendError(conn *Connection, code string, message string) {
	data, err := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
		Code:    code,
		Message: message,
	})
	if err != nil {
		log.Printf("[ws] build error message session=%s: %v", conn.ID, err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("[ws] send error message session=%s: %v", conn.ID, err)
	}
}

// SendRateLimited tells the client it has been rate limited and when it may
// retry.
func (d *MessageDispatcher) SendRateLimited(conn *Connection, retryAfter int) {
	data, err := protocol.NewServerMessage(protocol.TypeRateLimited, protocol.RateLimitedMsg{
		RetryAfter: retryAfter,
	})
	if err != nil {
		log.Printf("[ws] build rate_limited message session=%s: %v", conn.ID, err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("[ws] send rate_limited message session=%s: %v", conn.ID, err)
	}
}

// sendPong responds to a client ping and refreshes the connection's
// LastActive timestamp.
func (d *MessageDispatcher) sendPong(conn *Connection) {
	conn.LastActive = time.Now()

	data, err := protocol.NewServerMessage(protocol.TypePong, protocol.PongMsg{})
	if err != nil {
		log.Printf("[ws] build pong message session=%s: %v", conn.ID, err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("[ws] send pong message session=%s: %v", conn.ID, err)
	}
}
