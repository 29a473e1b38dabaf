// Package presence mirrors per-session state into Redis for operational
// visibility: which server holds a session, whether it is idle, waiting, or
// chatting, and in which room. The in-memory coordinator remains the single
// authority for matchmaking; presence is advisory, TTL-bounded, and updated
// by the transport layer after coordinator transitions.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SessionPrefix is the Redis key prefix for all session hashes.
	SessionPrefix = "session:"

	// SessionTTL is the time-to-live for session keys in Redis.
	SessionTTL = 1 * time.Hour

	// Status constants mirroring the coordinator's per-connection states.
	StatusIdle     = "idle"
	StatusWaiting  = "waiting"
	StatusChatting = "chatting"
)

// Session is a session's presence record as stored in Redis.
type Session struct {
	ID         string `redis:"id"`
	Status     string `redis:"status"`      // idle | waiting | chatting
	RoomID     string `redis:"room_id"`     // empty unless chatting
	Nickname   string `redis:"nickname"`    // set on first find_partner
	Server     string `redis:"server"`      // which server instance owns the connection
	CreatedAt  int64  `redis:"created_at"`  // unix timestamp
	LastActive int64  `redis:"last_active"` // unix timestamp
}

// Store manages presence records in Redis.
type Store struct {
	client     *redis.Client
	serverName string
}

// NewStore creates a presence store connected to Redis.
func NewStore(redisAddr string, serverName string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("presence: redis connection failed: %w", err)
	}

	return &Store{client: client, serverName: serverName}, nil
}

// Create stores a new presence record with idle status and the standard TTL.
func (s *Store) Create(ctx context.Context, sessionID string) error {
	key := SessionPrefix + sessionID
	now := time.Now().Unix()

	record := map[string]interface{}{
		"id":          sessionID,
		"status":      StatusIdle,
		"room_id":     "",
		"nickname":    "",
		"server":      s.serverName,
		"created_at":  now,
		"last_active": now,
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, record)
	pipe.Expire(ctx, key, SessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves a presence record. Returns nil if not found.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	key := SessionPrefix + sessionID
	var session Session
	err := s.client.HGetAll(ctx, key).Scan(&session)
	if err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, nil // not found
	}
	return &session, nil
}

// SetNickname stores the nickname chosen on find_partner.
func (s *Store) SetNickname(ctx context.Context, sessionID string, nickname string) error {
	key := SessionPrefix + sessionID
	return s.client.HSet(ctx, key, "nickname", nickname, "last_active", time.Now().Unix()).Err()
}

// SetWaiting marks the session as waiting for a partner and refreshes the TTL.
func (s *Store) SetWaiting(ctx context.Context, sessionID string) error {
	return s.setStatus(ctx, sessionID, StatusWaiting, "")
}

// SetChatting marks the session as chatting in the given room.
func (s *Store) SetChatting(ctx context.Context, sessionID string, roomID string) error {
	return s.setStatus(ctx, sessionID, StatusChatting, roomID)
}

// SetIdle resets the session to idle and clears any room reference.
func (s *Store) SetIdle(ctx context.Context, sessionID string) error {
	return s.setStatus(ctx, sessionID, StatusIdle, "")
}

func (s *Store) setStatus(ctx context.Context, sessionID, status, roomID string) error {
	key := SessionPrefix + sessionID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "status", status, "room_id", roomID, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, SessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes a presence record.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	key := SessionPrefix + sessionID
	return s.client.Del(ctx, key).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages
// (the rate limiter shares this connection).
func (s *Store) Client() *redis.Client {
	return s.client
}
