package redis

import (
	"context"
	"sync"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Room state stays in the local map; Redis only carries a liveness marker per
// room code.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) GetOrCreate(code string) *app.Room {
	code = domain.NormalizeRoomCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[code]; ok {
		return room
	}
	room := app.NewRoom(code)
	s.rooms[code] = room
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(code), time.Now().UTC().Format(time.RFC3339), s.ttl).Err()
	return room
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[domain.NormalizeRoomCode(code)]
	return room, ok
}

func (s *RoomStore) Delete(code string) {
	code = domain.NormalizeRoomCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	_ = s.client.Del(context.Background(), s.key(code)).Err()
}

func (s *RoomStore) DeleteIfEmpty(code string) {
	code = domain.NormalizeRoomCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return
	}
	if room.Disposable() {
		delete(s.rooms, code)
		_ = s.client.Del(context.Background(), s.key(code)).Err()
	}
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Shutdown disconnects every room and removes the liveness markers.
func (s *RoomStore) Shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, room := range s.rooms {
		room.Shutdown()
		delete(s.rooms, code)
		_ = s.client.Del(ctx, s.key(code)).Err()
	}
}

func (s *RoomStore) key(code string) string {
	return "room:live:" + code
}
