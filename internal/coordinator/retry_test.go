package coordinator

import (
	"testing"
	"time"
)

func TestRetrySchedule_ArmAndPop(t *testing.T) {
	s := newRetrySchedule()
	now := time.Now()

	s.arm("a", now.Add(30*time.Millisecond))
	s.arm("b", now.Add(10*time.Millisecond))
	s.arm("c", now.Add(20*time.Millisecond))

	if s.len() != 3 {
		t.Fatalf("expected 3 armed entries, got %d", s.len())
	}

	// Nothing is due yet.
	if e := s.popDue(now); e != nil {
		t.Fatalf("expected nothing due, got %s", e.sessionID)
	}

	// Entries come out in fire-time order.
	later := now.Add(time.Second)
	var order []string
	for {
		e := s.popDue(later)
		if e == nil {
			break
		}
		order = append(order, e.sessionID)
	}
	want := []string{"b", "c", "a"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestRetrySchedule_ArmIsIdempotent(t *testing.T) {
	s := newRetrySchedule()
	now := time.Now()

	s.arm("a", now.Add(10*time.Millisecond))
	s.arm("a", now.Add(time.Hour)) // must not displace the first

	if s.len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.len())
	}
	deadline, ok := s.nextDeadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if deadline.After(now.Add(time.Minute)) {
		t.Fatalf("re-arm displaced the original fire time: %v", deadline)
	}
}

func TestRetrySchedule_Cancel(t *testing.T) {
	s := newRetrySchedule()
	now := time.Now()

	s.arm("a", now)
	s.arm("b", now.Add(time.Millisecond))
	s.cancel("a")
	s.cancel("missing") // no-op

	if s.len() != 1 {
		t.Fatalf("expected 1 entry after cancel, got %d", s.len())
	}
	e := s.popDue(now.Add(time.Second))
	if e == nil || e.sessionID != "b" {
		t.Fatalf("expected b, got %v", e)
	}
}

func TestRetrySchedule_Reschedule(t *testing.T) {
	s := newRetrySchedule()
	now := time.Now()

	s.arm("a", now)
	e := s.popDue(now)
	if e == nil {
		t.Fatal("expected a due entry")
	}
	e.attempts++

	s.reschedule(e, now.Add(10*time.Millisecond))
	if s.len() != 1 {
		t.Fatalf("expected entry re-armed, got %d", s.len())
	}

	e2 := s.popDue(now.Add(time.Second))
	if e2 == nil || e2.sessionID != "a" {
		t.Fatalf("expected a, got %v", e2)
	}
	if e2.attempts != 1 {
		t.Fatalf("expected attempt count preserved, got %d", e2.attempts)
	}
}

func TestProcessDue_LoneWaiterKeepsPoolPosition(t *testing.T) {
	c, rec := newTestCoordinator()
	c.RequestMatch("a", "alice")

	// Force the armed entry due and process it.
	c.mu.Lock()
	e := c.retry.popDue(time.Now().Add(time.Hour))
	c.retry.reschedule(e, time.Now().Add(-time.Millisecond))
	c.mu.Unlock()

	c.processDue()

	if !c.poolContains("a") {
		t.Fatal("lone waiter must stay pooled after a re-check")
	}
	c.mu.Lock()
	armed := c.retry.len()
	c.mu.Unlock()
	if armed != 1 {
		t.Fatalf("expected re-armed retry entry, got %d", armed)
	}
	if got := rec.countType("a", "match_timeout"); got != 0 {
		t.Fatalf("waiter timed out prematurely (%d timeouts)", got)
	}
}

func TestProcessDue_PromotesTwoWaiters(t *testing.T) {
	c, rec := newTestCoordinator()
	now := time.Now()

	// Seed two pooled sessions whose immediate pairing was missed, the state
	// a retry tick exists to repair.
	c.mu.Lock()
	c.conns["a"] = &handle{sessionID: "a", nickname: "alice", state: stateWaiting}
	c.conns["b"] = &handle{sessionID: "b", nickname: "bob", state: stateWaiting}
	c.pool.push(&waiter{sessionID: "a", nickname: "alice", enqueuedAt: now.Add(-time.Second)})
	c.pool.push(&waiter{sessionID: "b", nickname: "bob", enqueuedAt: now})
	c.retry.arm("a", now.Add(-time.Millisecond))
	c.retry.arm("b", now.Add(-time.Millisecond))
	c.mu.Unlock()

	c.processDue()

	if c.RoomCount() != 1 {
		t.Fatalf("expected 1 room, got %d", c.RoomCount())
	}
	if c.WaitingCount() != 0 {
		t.Fatalf("expected empty pool, got %d", c.WaitingCount())
	}
	c.mu.Lock()
	armed := c.retry.len()
	c.mu.Unlock()
	if armed != 0 {
		t.Fatalf("expected both retry entries consumed, got %d", armed)
	}

	roomA := roomIDFor(t, rec, "a")
	roomB := roomIDFor(t, rec, "b")
	if roomA != roomB {
		t.Fatalf("partners got different rooms: %s vs %s", roomA, roomB)
	}
}

func TestProcessDue_StaleEntryDropped(t *testing.T) {
	c, _ := newTestCoordinator()
	now := time.Now()

	// An armed entry for a session no longer pooled must be discarded.
	c.mu.Lock()
	c.retry.arm("ghost", now.Add(-time.Millisecond))
	c.mu.Unlock()

	c.processDue()

	c.mu.Lock()
	armed := c.retry.len()
	c.mu.Unlock()
	if armed != 0 {
		t.Fatalf("expected stale entry dropped, got %d armed", armed)
	}
}

func TestMatchTimeout_DeliveredOnce(t *testing.T) {
	rec := newRecorder()
	c := New(Config{RetryInterval: 5 * time.Millisecond, MaxAttempts: 2}, rec, nil)
	c.Start()
	defer c.Stop()

	start := time.Now()
	c.RequestMatch("a", "alice")

	deadline := time.Now().Add(2 * time.Second)
	for rec.countType("a", "match_timeout") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("match_timeout never delivered")
		}
		time.Sleep(time.Millisecond)
	}

	// Give stray ticks a chance to misfire, then check exactly-once delivery.
	time.Sleep(50 * time.Millisecond)
	if got := rec.countType("a", "match_timeout"); got != 1 {
		t.Fatalf("expected exactly 1 match_timeout, got %d", got)
	}

	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("timeout took too long: %s", waited)
	}
	if c.WaitingCount() != 0 {
		t.Fatalf("expected timed-out session out of the pool, got %d", c.WaitingCount())
	}

	msg := rec.last("a")
	if msg["message"] != TimeoutMessage {
		t.Errorf("expected timeout message %q, got %v", TimeoutMessage, msg["message"])
	}

	// The session is idle again and may retry.
	if !c.RequestMatch("a", "alice") {
		t.Fatal("expected RequestMatch to succeed after timeout")
	}
}
