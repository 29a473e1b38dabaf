package coordinator

import (
	"container/heap"
	"time"
)

// retryEntry is one armed re-check for a waiting session. Entries live in a
// single min-heap keyed by next fire time, so cancellation on match or
// disconnect is a single removal rather than a scattered timer hunt.
type retryEntry struct {
	sessionID string
	attempts  int
	nextFire  time.Time
	index     int // heap index, maintained by retryHeap
}

type retryHeap []*retryEntry

func (h retryHeap) Len() int           { return len(h) }
func (h retryHeap) Less(i, j int) bool { return h[i].nextFire.Before(h[j].nextFire) }
func (h retryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *retryHeap) Push(x interface{}) {
	e := x.(*retryEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *retryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// retrySchedule is the time-ordered schedule of pending re-checks, owned by
// the coordinator and accessed only under its mutex.
type retrySchedule struct {
	heap retryHeap
	byID map[string]*retryEntry
}

func newRetrySchedule() *retrySchedule {
	return &retrySchedule{byID: make(map[string]*retryEntry)}
}

// arm schedules the first re-check for a session. If an entry already exists
// it is left untouched (a session waits at most once at a time).
func (s *retrySchedule) arm(sessionID string, fireAt time.Time) {
	if _, ok := s.byID[sessionID]; ok {
		return
	}
	e := &retryEntry{sessionID: sessionID, nextFire: fireAt}
	s.byID[sessionID] = e
	heap.Push(&s.heap, e)
}

// cancel removes a session's pending re-check. It is a no-op if none is
// armed, which makes cancellation safe to call on every state transition.
func (s *retrySchedule) cancel(sessionID string) {
	e, ok := s.byID[sessionID]
	if !ok {
		return
	}
	delete(s.byID, sessionID)
	if e.index >= 0 {
		heap.Remove(&s.heap, e.index)
	}
}

// popDue removes and returns the entry with the earliest fire time if it is
// due at now, or nil otherwise.
func (s *retrySchedule) popDue(now time.Time) *retryEntry {
	if len(s.heap) == 0 {
		return nil
	}
	if s.heap[0].nextFire.After(now) {
		return nil
	}
	e := heap.Pop(&s.heap).(*retryEntry)
	delete(s.byID, e.sessionID)
	return e
}

// reschedule re-arms an entry popped by popDue for its next fire time.
func (s *retrySchedule) reschedule(e *retryEntry, fireAt time.Time) {
	e.nextFire = fireAt
	s.byID[e.sessionID] = e
	heap.Push(&s.heap, e)
}

// nextDeadline returns the earliest pending fire time. ok is false when the
// schedule is empty.
func (s *retrySchedule) nextDeadline() (time.Time, bool) {
	if len(s.heap) == 0 {
		return time.Time{}, false
	}
	return s.heap[0].nextFire, true
}

// len returns the number of armed entries.
func (s *retrySchedule) len() int {
	return len(s.heap)
}
