package main

import (
	"context"
	"log"
	"time"

	"github.com/mtsl/pairchat/internal/coordinator"
	"github.com/mtsl/pairchat/internal/presence"
)

// presenceEvents fans coordinator lifecycle events out to the NATS publisher
// and mirrors session status into Redis. The coordinator invokes events with
// its lock held, so all Redis writes happen on background goroutines.
type presenceEvents struct {
	store *presence.Store
	next  coordinator.Events
}

func newPresenceEvents(store *presence.Store, next coordinator.Events) *presenceEvents {
	return &presenceEvents{store: store, next: next}
}

func (p *presenceEvents) QueueJoined(sessionID string) {
	p.next.QueueJoined(sessionID)
	go p.mirror(sessionID, func(ctx context.Context) error {
		return p.store.SetWaiting(ctx, sessionID)
	})
}

func (p *presenceEvents) QueueLeft(sessionID, reason string) {
	p.next.QueueLeft(sessionID, reason)
}

func (p *presenceEvents) RoomCreated(roomID, sessionA, sessionB string) {
	p.next.RoomCreated(roomID, sessionA, sessionB)
	for _, sid := range []string{sessionA, sessionB} {
		sid := sid
		go p.mirror(sid, func(ctx context.Context) error {
			return p.store.SetChatting(ctx, sid, roomID)
		})
	}
}

func (p *presenceEvents) RoomDissolved(roomID, reason string, age time.Duration) {
	p.next.RoomDissolved(roomID, reason, age)
}

func (p *presenceEvents) MatchTimedOut(sessionID string, waited time.Duration) {
	p.next.MatchTimedOut(sessionID, waited)
	go p.mirror(sessionID, func(ctx context.Context) error {
		return p.store.SetIdle(ctx, sessionID)
	})
}

// mirror runs one advisory presence write with a bounded timeout. Failures
// are logged and never affect pairing state.
func (p *presenceEvents) mirror(sessionID string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Printf("[presence] mirror update for session=%s: %v", sessionID, err)
	}
}
