package redis

import (
	"context"
	"fmt"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long team session records are kept.
const DefaultRetention = 24 * time.Hour

// SessionRecorder persists team session records as Redis hashes:
//
//	HSET session:{room}:{player} roomCode .. teamId .. online 1
//	EXPIRE session:{room}:{player} <retention>
//	SADD session-index:{room} {player}
//
// with the index sharing the same retention.
type SessionRecorder struct {
	client    *redis.Client
	retention time.Duration
}

func NewSessionRecorder(client *redis.Client, retention time.Duration) *SessionRecorder {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &SessionRecorder{client: client, retention: retention}
}

func (s *SessionRecorder) CreateTeamSessionRecord(ctx context.Context, rec domain.TeamSessionRecord) error {
	key := s.recordKey(rec.RoomCode, rec.PlayerID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"roomCode":    rec.RoomCode,
		"teamId":      rec.TeamID,
		"teamName":    rec.TeamName,
		"playerId":    rec.PlayerID,
		"displayName": rec.DisplayName,
		"joinedAt":    rec.JoinedAt.UTC().Format(time.RFC3339Nano),
		"online":      1,
	})
	pipe.Expire(ctx, key, s.retention)
	pipe.SAdd(ctx, s.roomKey(rec.RoomCode), rec.PlayerID)
	pipe.Expire(ctx, s.roomKey(rec.RoomCode), s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create team session record: %w", err)
	}
	return nil
}

// MarkOffline flips the online flag without extending the record's retention.
func (s *SessionRecorder) MarkOffline(ctx context.Context, roomCode, playerID string) error {
	key := s.recordKey(roomCode, playerID)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	if n == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, key, "online", 0, "offlineAt", time.Now().UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	return nil
}

// Players lists the player ids recorded for a room within the retention window.
func (s *SessionRecorder) Players(ctx context.Context, roomCode string) ([]string, error) {
	return s.client.SMembers(ctx, s.roomKey(roomCode)).Result()
}

func (s *SessionRecorder) recordKey(roomCode, playerID string) string {
	return "session:" + roomCode + ":" + playerID
}

func (s *SessionRecorder) roomKey(roomCode string) string {
	return "session-index:" + roomCode
}
