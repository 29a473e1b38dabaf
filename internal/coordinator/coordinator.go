// Package coordinator implements the matchmaking and room-lifecycle core: the
// waiting pool, the room table, and the retry schedule that promotes
// long-waiting users into a match. All state lives in memory in a single
// authoritative instance; every operation — including retry ticks — runs
// under one mutex so that pool-pop-and-room-creation and
// dissolution-and-requeue are atomic. A connection is always in exactly one
// of three states: absent, waiting, or in a room.
package coordinator

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mtsl/pairchat/internal/chat"
	"github.com/mtsl/pairchat/internal/metrics"
	"github.com/mtsl/pairchat/internal/protocol"
)

// TimeoutMessage is the human-readable reason delivered with match_timeout.
const TimeoutMessage = "No other users are online right now. Please try again later."

// Dissolution reasons, reported in lifecycle events and the match log.
const (
	ReasonDisconnect = "disconnect"
	ReasonNewChat    = "new_chat"
)

// Sender delivers an encoded server message to a connection. The WebSocket
// server satisfies this interface; tests substitute an in-memory recorder.
type Sender interface {
	Send(sessionID string, data []byte) error
}

// Events receives coordinator lifecycle notifications. They are invoked on
// the operation's goroutine, possibly with coordinator locks held:
// implementations must not block and must not call back into the coordinator.
type Events interface {
	QueueJoined(sessionID string)
	QueueLeft(sessionID, reason string)
	RoomCreated(roomID, sessionA, sessionB string)
	RoomDissolved(roomID, reason string, age time.Duration)
	MatchTimedOut(sessionID string, waited time.Duration)
}

// nopEvents is used when no event publisher is wired.
type nopEvents struct{}

func (nopEvents) QueueJoined(string)                          {}
func (nopEvents) QueueLeft(string, string)                    {}
func (nopEvents) RoomCreated(string, string, string)          {}
func (nopEvents) RoomDissolved(string, string, time.Duration) {}
func (nopEvents) MatchTimedOut(string, time.Duration)         {}

// Config holds coordinator tuning parameters.
type Config struct {
	RetryInterval time.Duration // period between re-checks for a waiting session
	MaxAttempts   int           // re-checks before the wait is declared timed out
}

// DefaultConfig returns the production defaults: a re-check every 5 seconds,
// up to 360 attempts (about 30 minutes of waiting).
func DefaultConfig() Config {
	return Config{
		RetryInterval: 5 * time.Second,
		MaxAttempts:   360,
	}
}

// connState is the coordinator-side state of one connection.
type connState int

const (
	stateIdle connState = iota
	stateWaiting
	statePaired
)

// handle is the coordinator's record of a live connection: identity, display
// name, and current room if any. The room reference is owned entirely by the
// coordinator.
type handle struct {
	sessionID string
	nickname  string
	state     connState
	roomID    string
}

// outbound is a server message queued under the mutex and flushed after it is
// released, since sends may block on the network.
type outbound struct {
	sessionID string
	data      []byte
}

// Coordinator orchestrates the waiting pool and room table. It is the sole
// mutator of both.
type Coordinator struct {
	cfg    Config
	sender Sender
	events Events

	mu    sync.Mutex
	pool  *waitPool
	rooms map[string]*Room
	conns map[string]*handle
	retry *retrySchedule

	done     chan struct{}
	wake     chan struct{}
	stopOnce sync.Once
}

// New creates a Coordinator. events may be nil.
func New(cfg Config, sender Sender, events Events) *Coordinator {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultConfig().RetryInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if events == nil {
		events = nopEvents{}
	}
	return &Coordinator{
		cfg:    cfg,
		sender: sender,
		events: events,
		pool:   newWaitPool(),
		rooms:  make(map[string]*Room),
		conns:  make(map[string]*handle),
		retry:  newRetrySchedule(),
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
}

// Start launches the retry loop. It returns immediately.
func (c *Coordinator) Start() {
	go c.retryLoop()
}

// Stop shuts down the retry loop. Pending waiting entries are not notified;
// Stop is intended for process shutdown where connections are being closed
// anyway.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// RequestMatch places a connection into matchmaking. If another user is
// already waiting, the oldest waiter is popped and a room is created
// atomically; both sides are notified with the room ID and the peer's
// nickname. Otherwise the caller joins the waiting pool and a retry entry is
// armed.
//
// A repeat call while the connection is already waiting or in a room is a
// no-op and returns false.
func (c *Coordinator) RequestMatch(sessionID, nickname string) bool {
	c.mu.Lock()
	h := c.conns[sessionID]
	if h != nil && h.state != stateIdle {
		c.mu.Unlock()
		log.Printf("[coordinator] duplicate find_partner from session=%s ignored", sessionID)
		return false
	}
	if h == nil {
		h = &handle{sessionID: sessionID}
		c.conns[sessionID] = h
	}
	h.nickname = nickname

	var out []outbound
	c.enqueueOrPairLocked(h, &out)
	c.mu.Unlock()

	c.flush(out)
	return true
}

// RelayMessage delivers text to the other member of the room, tagged with a
// server-assigned message ID and delivery timestamp. If fromSession is not a
// current member of the room the message is silently dropped — the peer may
// have just disconnected, which is not an error the sender needs to see.
func (c *Coordinator) RelayMessage(roomID, fromSession, text string) {
	c.mu.Lock()
	room := c.rooms[roomID]
	if room == nil || !room.IsMember(fromSession) {
		c.mu.Unlock()
		return
	}
	peer := room.Partner(fromSession)
	data, err := protocol.NewServerMessage(protocol.TypeMessage, protocol.ServerChatMsg{
		ID:   uuid.New().String(),
		From: "partner",
		Text: text,
		Ts:   time.Now().UnixMilli(),
	})
	c.mu.Unlock()

	if err != nil {
		log.Printf("[coordinator] build message for room=%s: %v", roomID, err)
		return
	}
	metrics.MessagesTotal.WithLabelValues("relayed").Inc()
	c.flush([]outbound{{sessionID: peer, data: data}})
}

// RelayTyping delivers a typing indicator to the other member of the room.
// Last write wins; nothing is buffered. Non-members are silently ignored,
// matching RelayMessage.
func (c *Coordinator) RelayTyping(roomID, fromSession string, isTyping bool) {
	c.mu.Lock()
	room := c.rooms[roomID]
	if room == nil || !room.IsMember(fromSession) {
		c.mu.Unlock()
		return
	}
	peer := room.Partner(fromSession)
	data, err := protocol.NewServerMessage(protocol.TypePartnerTyping, protocol.PartnerTypingMsg{
		IsTyping: isTyping,
	})
	c.mu.Unlock()

	if err != nil {
		log.Printf("[coordinator] build typing for room=%s: %v", roomID, err)
		return
	}
	c.flush([]outbound{{sessionID: peer, data: data}})
}

// LeaveForNewChat dissolves the caller's room and re-enqueues the caller for
// a fresh match with the same nickname. The other member is told its partner
// left but is NOT requeued: leaving for a new chat expresses "I want a new
// partner", which is a different intent from losing the connection. Calls
// referencing a room the session is not a member of are ignored.
func (c *Coordinator) LeaveForNewChat(sessionID, roomID string) {
	c.mu.Lock()
	room := c.rooms[roomID]
	if room == nil || !room.IsMember(sessionID) {
		c.mu.Unlock()
		return
	}

	var out []outbound
	c.dissolveLocked(room, sessionID, ReasonNewChat, &out)

	h := c.conns[sessionID]
	if h != nil {
		log.Printf("[coordinator] new_chat: requeueing session=%s nickname=%s",
			sessionID, chat.MaskNickname(h.nickname))
		c.enqueueOrPairLocked(h, &out)
	}
	c.mu.Unlock()

	c.flush(out)
}

// HandleDisconnect removes a connection from all coordinator state. A waiting
// session leaves the pool and its retry entry is cancelled. A paired
// session's room is dissolved; the survivor is told its partner left and is
// automatically re-enqueued, so a crash or closed tab never strands the
// remaining user. Calling HandleDisconnect again for the same session is a
// no-op.
func (c *Coordinator) HandleDisconnect(sessionID string) {
	c.mu.Lock()
	h := c.conns[sessionID]
	if h == nil {
		c.mu.Unlock()
		return
	}
	delete(c.conns, sessionID)

	var out []outbound
	switch h.state {
	case stateWaiting:
		c.pool.remove(sessionID)
		c.retry.cancel(sessionID)
		c.events.QueueLeft(sessionID, ReasonDisconnect)

	case statePaired:
		room := c.rooms[h.roomID]
		if room != nil {
			survivorID := room.Partner(sessionID)
			c.dissolveLocked(room, sessionID, ReasonDisconnect, &out)
			if survivor := c.conns[survivorID]; survivor != nil {
				log.Printf("[coordinator] disconnect: auto-requeueing survivor session=%s nickname=%s",
					survivorID, chat.MaskNickname(survivor.nickname))
				c.enqueueOrPairLocked(survivor, &out)
			}
		}
	}
	c.mu.Unlock()

	c.flush(out)
}

// ---------------------------------------------------------------------------
// Internal transitions (all require c.mu held)
// ---------------------------------------------------------------------------

// enqueueOrPairLocked is the single entry point into matchmaking for a
// connection that is currently idle: pair immediately with the oldest waiter,
// or join the pool and arm a retry entry.
func (c *Coordinator) enqueueOrPairLocked(h *handle, out *[]outbound) {
	now := time.Now()
	if other := c.pool.popOldest(); other != nil {
		c.pairLocked(&waiter{sessionID: h.sessionID, nickname: h.nickname, enqueuedAt: now}, other, out)
		return
	}

	c.pool.push(&waiter{sessionID: h.sessionID, nickname: h.nickname, enqueuedAt: now})
	c.retry.arm(h.sessionID, now.Add(c.cfg.RetryInterval))
	c.wakeRetryLoop()
	h.state = stateWaiting
	h.roomID = ""

	data, err := protocol.NewServerMessage(protocol.TypeWaitingForPartner, protocol.WaitingForPartnerMsg{})
	if err == nil {
		*out = append(*out, outbound{sessionID: h.sessionID, data: data})
	}
	c.events.QueueJoined(h.sessionID)

	log.Printf("[coordinator] enqueued session=%s nickname=%s (waiting=%d)",
		h.sessionID, chat.MaskNickname(h.nickname), c.pool.len())
}

// pairLocked atomically turns two waiters into one room. Both retry entries
// are cancelled so no late tick can double-match either side. b is the waiter
// popped from the pool; a is the incoming requester (or a second pooled
// waiter promoted by a retry tick).
func (c *Coordinator) pairLocked(a, b *waiter, out *[]outbound) {
	roomID := uuid.New().String()
	now := time.Now()

	c.retry.cancel(a.sessionID)
	c.retry.cancel(b.sessionID)

	room := &Room{ID: roomID, MemberA: a.sessionID, MemberB: b.sessionID, CreatedAt: now}
	c.rooms[roomID] = room

	for _, w := range []*waiter{a, b} {
		if h := c.conns[w.sessionID]; h != nil {
			h.state = statePaired
			h.roomID = roomID
		}
		metrics.MatchWaitSeconds.Observe(now.Sub(w.enqueuedAt).Seconds())
	}
	metrics.MatchesTotal.Inc()

	msgA, errA := protocol.NewServerMessage(protocol.TypePartnerFound, protocol.PartnerFoundMsg{
		RoomID:          roomID,
		PartnerNickname: b.nickname,
	})
	if errA == nil {
		*out = append(*out, outbound{sessionID: a.sessionID, data: msgA})
	}
	msgB, errB := protocol.NewServerMessage(protocol.TypePartnerFound, protocol.PartnerFoundMsg{
		RoomID:          roomID,
		PartnerNickname: a.nickname,
	})
	if errB == nil {
		*out = append(*out, outbound{sessionID: b.sessionID, data: msgB})
	}

	c.events.RoomCreated(roomID, a.sessionID, b.sessionID)

	log.Printf("[coordinator] paired %s <-> %s room=%s (waiting=%d rooms=%d)",
		chat.MaskNickname(a.nickname), chat.MaskNickname(b.nickname),
		roomID[:8], c.pool.len(), len(c.rooms))
}

// dissolveLocked removes a room, notifies the departing member's peer that
// its partner left, and resets both handles to idle. Requeueing decisions
// belong to the caller: the disconnect path requeues the survivor, the
// new-chat path requeues only the leaver.
func (c *Coordinator) dissolveLocked(room *Room, departing, reason string, out *[]outbound) {
	delete(c.rooms, room.ID)
	age := room.Age(time.Now())

	for _, sid := range []string{room.MemberA, room.MemberB} {
		if h := c.conns[sid]; h != nil {
			h.state = stateIdle
			h.roomID = ""
		}
	}

	if peer := room.Partner(departing); c.conns[peer] != nil {
		data, err := protocol.NewServerMessage(protocol.TypePartnerLeft, protocol.PartnerLeftMsg{})
		if err == nil {
			*out = append(*out, outbound{sessionID: peer, data: data})
		}
	}

	c.events.RoomDissolved(room.ID, reason, age)

	log.Printf("[coordinator] room dissolved room=%s reason=%s age=%s (rooms=%d)",
		room.ID[:8], reason, age.Round(time.Second), len(c.rooms))
}

// wakeRetryLoop nudges the retry loop to re-evaluate its next deadline after
// a new entry was armed. Non-blocking: a pending wake is enough.
func (c *Coordinator) wakeRetryLoop() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// flush sends queued messages after the mutex has been released. Send errors
// are logged and otherwise ignored; a failed connection is cleaned up by the
// transport layer's own read/heartbeat paths.
func (c *Coordinator) flush(out []outbound) {
	for _, o := range out {
		if err := c.sender.Send(o.sessionID, o.data); err != nil {
			log.Printf("[coordinator] send to session=%s failed: %v", o.sessionID, err)
		}
	}
}
