package coordinator

import "time"

// RoomStatus describes one active room for status reporting.
type RoomStatus struct {
	RoomID    string
	CreatedAt time.Time
	Age       time.Duration
}

// WaitingStatus describes one waiting-pool entry for status reporting.
// Position is 1-based FIFO order; nicknames are deliberately omitted.
type WaitingStatus struct {
	Position int
	WaitTime time.Duration
}

// Snapshot is a point-in-time read of the coordinator's state. It is derived
// from the pool and room table on demand; there are no separate counters to
// keep in sync.
type Snapshot struct {
	WaitingUsers int
	ActiveRooms  int
	ActiveUsers  int // waiting + 2 per room
	Rooms        []RoomStatus
	Waiting      []WaitingStatus
}

// Snapshot returns the read-only introspection view of the coordinator:
// waiting-pool size, active room count, per-room age, and per-entry elapsed
// wait. It never mutates state.
func (c *Coordinator) Snapshot() Snapshot {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		WaitingUsers: c.pool.len(),
		ActiveRooms:  len(c.rooms),
		ActiveUsers:  c.pool.len() + len(c.rooms)*2,
		Rooms:        make([]RoomStatus, 0, len(c.rooms)),
		Waiting:      make([]WaitingStatus, 0, c.pool.len()),
	}

	for _, room := range c.rooms {
		snap.Rooms = append(snap.Rooms, RoomStatus{
			RoomID:    room.ID,
			CreatedAt: room.CreatedAt,
			Age:       room.Age(now),
		})
	}

	for i, w := range c.pool.entries {
		snap.Waiting = append(snap.Waiting, WaitingStatus{
			Position: i + 1,
			WaitTime: now.Sub(w.enqueuedAt),
		})
	}

	return snap
}

// WaitingCount returns the current waiting-pool size. Used by the Prometheus
// gauge functions.
func (c *Coordinator) WaitingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool.len()
}

// RoomCount returns the current number of active rooms.
func (c *Coordinator) RoomCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}
