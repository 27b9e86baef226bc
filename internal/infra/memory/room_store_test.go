package memory

import (
	"context"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
)

func TestRoomStoreLifecycle(t *testing.T) {
	store := NewRoomStore()

	room := store.GetOrCreate("abc123")
	if room == nil {
		t.Fatalf("expected room")
	}
	if room.Code() != "ABC123" {
		t.Fatalf("expected normalized code, got %q", room.Code())
	}
	if got, ok := store.Get(" Abc123 "); !ok || got != room {
		t.Fatalf("expected case-insensitive lookup to find the room")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 room, got %d", store.Len())
	}

	store.DeleteIfEmpty("abc123")
	if _, ok := store.Get("ABC123"); ok {
		t.Fatalf("expected idle lobby room removed")
	}
}

func TestRoomStoreShutdown(t *testing.T) {
	store := NewRoomStore()
	store.GetOrCreate("R1")
	store.GetOrCreate("R2")

	store.Shutdown()
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}

func TestSessionRecorderRetention(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rec := NewSessionRecorderWithClock(24*time.Hour, func() time.Time { return now })
	ctx := context.Background()

	_ = rec.CreateTeamSessionRecord(ctx, domain.TeamSessionRecord{RoomCode: "R1", TeamID: "red", PlayerID: "p1"})
	if _, online, ok := rec.Record("R1", "p1"); !ok || !online {
		t.Fatalf("expected online record")
	}

	_ = rec.MarkOffline(ctx, "R1", "p1")
	if _, online, ok := rec.Record("R1", "p1"); !ok || online {
		t.Fatalf("expected offline record")
	}

	now = now.Add(25 * time.Hour)
	if _, _, ok := rec.Record("R1", "p1"); ok {
		t.Fatalf("expected record to expire after retention window")
	}
}
