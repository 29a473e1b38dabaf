package matchlog

import (
	"context"
	"testing"
	"time"
)

func TestCreate_InvalidReason(t *testing.T) {
	// Reason validation happens before any database access.
	store := NewStore(nil)

	err := store.Create(context.Background(), &Record{
		RoomID:      "room-1",
		Reason:      "vanished",
		AgeSeconds:  12.5,
		DissolvedAt: time.Now(),
	})
	if err == nil {
		t.Fatal("expected error for unknown reason")
	}
}

func TestValidReasons(t *testing.T) {
	for _, reason := range []string{"disconnect", "new_chat"} {
		if !validReasons[reason] {
			t.Errorf("expected %q to be a valid reason", reason)
		}
	}
	if validReasons["timeout"] {
		t.Error("timeout is not a room dissolution reason")
	}
}
