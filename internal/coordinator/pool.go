package coordinator

import "time"

// waiter is a single entry in the waiting pool: a connection that asked for a
// partner and has none yet.
type waiter struct {
	sessionID  string
	nickname   string
	enqueuedAt time.Time
}

// waitPool is the FIFO collection of connections seeking a partner. The pool
// is not goroutine-safe on its own; all access happens under the coordinator
// mutex. A session appears in the pool at most once.
type waitPool struct {
	entries []*waiter
}

func newWaitPool() *waitPool {
	return &waitPool{}
}

// push appends a new waiter. The caller is responsible for ensuring the
// session is not already pooled.
func (p *waitPool) push(w *waiter) {
	p.entries = append(p.entries, w)
}

// popOldest removes and returns the longest-waiting entry, or nil if the pool
// is empty.
func (p *waitPool) popOldest() *waiter {
	if len(p.entries) == 0 {
		return nil
	}
	w := p.entries[0]
	p.entries = p.entries[1:]
	return w
}

// oldestExcept returns the longest-waiting entry whose session differs from
// sessionID, without removing it. Returns nil if no such entry exists.
func (p *waitPool) oldestExcept(sessionID string) *waiter {
	for _, w := range p.entries {
		if w.sessionID != sessionID {
			return w
		}
	}
	return nil
}

// remove deletes the entry for sessionID. Returns the removed waiter, or nil
// if the session was not pooled.
func (p *waitPool) remove(sessionID string) *waiter {
	for i, w := range p.entries {
		if w.sessionID == sessionID {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return w
		}
	}
	return nil
}

// contains reports whether sessionID is currently pooled.
func (p *waitPool) contains(sessionID string) bool {
	for _, w := range p.entries {
		if w.sessionID == sessionID {
			return true
		}
	}
	return false
}

// len returns the number of pooled entries.
func (p *waitPool) len() int {
	return len(p.entries)
}
