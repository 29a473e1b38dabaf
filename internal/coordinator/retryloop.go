package coordinator

import (
	"log"
	"time"

	"github.com/mtsl/pairchat/internal/chat"
	"github.com/mtsl/pairchat/internal/metrics"
	"github.com/mtsl/pairchat/internal/protocol"
)

// idleWait is the sleep used when no retry entry is armed. The loop is woken
// early through the wake channel whenever a new entry is scheduled.
const idleWait = time.Minute

// retryLoop drives the retry schedule: it sleeps until the earliest pending
// fire time, then processes every due entry. Immediate pairing only happens
// when a new request arrives, so without this loop the first user into an
// empty pool would wait forever.
func (c *Coordinator) retryLoop() {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		c.mu.Lock()
		deadline, ok := c.retry.nextDeadline()
		c.mu.Unlock()

		wait := idleWait
		if ok {
			if wait = time.Until(deadline); wait < 0 {
				wait = 0
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-c.done:
			return
		case <-c.wake:
			// A new entry was armed; recompute the deadline.
		case <-timer.C:
			c.processDue()
		}
	}
}

// processDue handles every retry entry whose fire time has passed. Each tick
// is an event under the same coordinator mutex as all other operations, so a
// tick can never race a disconnect or a concurrent pairing for the same
// session.
func (c *Coordinator) processDue() {
	var out []outbound

	c.mu.Lock()
	now := time.Now()
	for {
		e := c.retry.popDue(now)
		if e == nil {
			break
		}

		if !c.pool.contains(e.sessionID) {
			// Already matched or removed; the entry is stale. Dropping it
			// here is the cancellation path for anything cancel missed.
			continue
		}

		// Promote: pair with the longest-waiting other entry, if any.
		if other := c.pool.oldestExcept(e.sessionID); other != nil {
			me := c.pool.remove(e.sessionID)
			c.pool.remove(other.sessionID)
			c.pairLocked(other, me, &out)
			continue
		}

		e.attempts++
		if e.attempts >= c.cfg.MaxAttempts {
			me := c.pool.remove(e.sessionID)
			c.timeoutLocked(me, &out)
			continue
		}

		// Still alone: keep the pool position and re-arm.
		c.retry.reschedule(e, now.Add(c.cfg.RetryInterval))
	}
	c.mu.Unlock()

	c.flush(out)
}

// timeoutLocked expires a waiting entry that exhausted its attempt ceiling:
// the session leaves the pool, is told the match timed out, and returns to
// idle so a later find_partner starts fresh.
func (c *Coordinator) timeoutLocked(me *waiter, out *[]outbound) {
	waited := time.Since(me.enqueuedAt)

	if h := c.conns[me.sessionID]; h != nil {
		h.state = stateIdle
		h.roomID = ""
	}

	data, err := protocol.NewServerMessage(protocol.TypeMatchTimeout, protocol.MatchTimeoutMsg{
		Message: TimeoutMessage,
	})
	if err == nil {
		*out = append(*out, outbound{sessionID: me.sessionID, data: data})
	}

	metrics.MatchTimeoutsTotal.Inc()
	c.events.MatchTimedOut(me.sessionID, waited)

	log.Printf("[coordinator] match timeout session=%s nickname=%s waited=%s",
		me.sessionID, chat.MaskNickname(me.nickname), waited.Round(time.Second))
}
