package ws

import (
	"encoding/json"
	"net/http"
	"time"
)

// statusResponse is the JSON shape served by /status. Room IDs are truncated
// and nicknames are omitted entirely, so the endpoint exposes no identity.
type statusResponse struct {
	Status       string          `json:"status"`
	Uptime       string          `json:"uptime"`
	Connections  int             `json:"connections"`
	WaitingUsers int             `json:"waiting_users"`
	ActiveRooms  int             `json:"active_rooms"`
	ActiveUsers  int             `json:"active_users"`
	Rooms        []roomStatus    `json:"rooms"`
	Waiting      []waitingStatus `json:"waiting"`
}

type roomStatus struct {
	ID         string `json:"id"` // truncated room ID
	AgeSeconds int    `json:"age_seconds"`
}

type waitingStatus struct {
	Position    int `json:"position"` // 1-based FIFO order
	WaitSeconds int `json:"wait_seconds"`
}

// handleStatus serves the pairing-state introspection view: waiting-pool
// size and per-entry wait times, active rooms and their ages, and the
// derived active-user count. Returns 503 when no snapshot source is wired.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.snapshotFn == nil {
		http.Error(w, "status unavailable", http.StatusServiceUnavailable)
		return
	}

	snap := s.snapshotFn()

	resp := statusResponse{
		Status:       "ok",
		Uptime:       time.Since(s.startedAt).Round(time.Second).String(),
		Connections:  s.conns.Count(),
		WaitingUsers: snap.WaitingUsers,
		ActiveRooms:  snap.ActiveRooms,
		ActiveUsers:  snap.ActiveUsers,
		Rooms:        make([]roomStatus, 0, len(snap.Rooms)),
		Waiting:      make([]waitingStatus, 0, len(snap.Waiting)),
	}

	for _, room := range snap.Rooms {
		resp.Rooms = append(resp.Rooms, roomStatus{
			ID:         truncateID(room.RoomID),
			AgeSeconds: int(room.Age.Seconds()),
		})
	}

	for _, entry := range snap.Waiting {
		resp.Waiting = append(resp.Waiting, waitingStatus{
			Position:    entry.Position,
			WaitSeconds: int(entry.WaitTime.Seconds()),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// truncateID shortens a room UUID to its first 8 characters for display.
func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
