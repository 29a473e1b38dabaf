package messaging

import (
	"encoding/json"
	"log"
	"time"
)

// QueueEvent is published on pair.queue.joined and pair.queue.left.
type QueueEvent struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"` // queue.left only
	Ts        int64  `json:"ts"`
}

// RoomCreatedEvent is published on pair.room.created.
type RoomCreatedEvent struct {
	RoomID   string `json:"room_id"`
	SessionA string `json:"session_a"`
	SessionB string `json:"session_b"`
	Ts       int64  `json:"ts"`
}

// RoomDissolvedEvent is published on pair.room.dissolved.
type RoomDissolvedEvent struct {
	RoomID     string  `json:"room_id"`
	Reason     string  `json:"reason"` // "disconnect" or "new_chat"
	AgeSeconds float64 `json:"age_seconds"`
	Ts         int64   `json:"ts"`
}

// MatchTimeoutEvent is published on pair.match.timeout.
type MatchTimeoutEvent struct {
	SessionID     string  `json:"session_id"`
	WaitedSeconds float64 `json:"waited_seconds"`
	Ts            int64   `json:"ts"`
}

// EventPublisher publishes coordinator lifecycle events to NATS. It satisfies
// the coordinator's Events interface. Publishing is fire-and-forget: NATS
// writes are buffered client-side, and a failed publish is logged, never
// surfaced to the coordinator.
type EventPublisher struct {
	client *NATSClient
}

// NewEventPublisher creates an EventPublisher over an established client.
func NewEventPublisher(client *NATSClient) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) publish(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[events] marshal %s: %v", subject, err)
		return
	}
	if err := p.client.Publish(subject, data); err != nil {
		log.Printf("[events] publish %s: %v", subject, err)
	}
}

// QueueJoined publishes a pair.queue.joined event.
func (p *EventPublisher) QueueJoined(sessionID string) {
	p.publish(SubjectQueueJoined, QueueEvent{
		SessionID: sessionID,
		Ts:        time.Now().Unix(),
	})
}

// QueueLeft publishes a pair.queue.left event.
func (p *EventPublisher) QueueLeft(sessionID, reason string) {
	p.publish(SubjectQueueLeft, QueueEvent{
		SessionID: sessionID,
		Reason:    reason,
		Ts:        time.Now().Unix(),
	})
}

// RoomCreated publishes a pair.room.created event.
func (p *EventPublisher) RoomCreated(roomID, sessionA, sessionB string) {
	p.publish(SubjectRoomCreated, RoomCreatedEvent{
		RoomID:   roomID,
		SessionA: sessionA,
		SessionB: sessionB,
		Ts:       time.Now().Unix(),
	})
}

// RoomDissolved publishes a pair.room.dissolved event.
func (p *EventPublisher) RoomDissolved(roomID, reason string, age time.Duration) {
	p.publish(SubjectRoomDissolved, RoomDissolvedEvent{
		RoomID:     roomID,
		Reason:     reason,
		AgeSeconds: age.Seconds(),
		Ts:         time.Now().Unix(),
	})
}

// MatchTimedOut publishes a pair.match.timeout event.
func (p *EventPublisher) MatchTimedOut(sessionID string, waited time.Duration) {
	p.publish(SubjectMatchTimeout, MatchTimeoutEvent{
		SessionID:     sessionID,
		WaitedSeconds: waited.Seconds(),
		Ts:            time.Now().Unix(),
	})
}
