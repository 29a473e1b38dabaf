package coordinator

import "time"

// Room is an active pairing of exactly two connections. Rooms are created
// whole at pairing time and never mutated to swap members; the only path to a
// different partner is dissolution plus a fresh pairing.
type Room struct {
	ID        string
	MemberA   string // session ID
	MemberB   string // session ID
	CreatedAt time.Time
}

// Partner returns the other member's session ID, or "" if sessionID is not a
// member of the room.
func (r *Room) Partner(sessionID string) string {
	switch sessionID {
	case r.MemberA:
		return r.MemberB
	case r.MemberB:
		return r.MemberA
	}
	return ""
}

// IsMember reports whether sessionID belongs to the room.
func (r *Room) IsMember(sessionID string) bool {
	return sessionID == r.MemberA || sessionID == r.MemberB
}

// Age returns how long the room has existed.
func (r *Room) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
