package memory

import (
	"sync"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/domain"
)

// RoomStore is an in-memory implementation of app.RoomRepository.
// Rooms live until they are deleted or the process exits.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
	now   func() time.Time
}

func NewRoomStore() *RoomStore {
	return NewRoomStoreWithClock(time.Now)
}

// NewRoomStoreWithClock creates rooms that read time from now.
func NewRoomStoreWithClock(now func() time.Time) *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*app.Room),
		now:   now,
	}
}

func (s *RoomStore) GetOrCreate(code string) *app.Room {
	code = domain.NormalizeRoomCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[code]; ok {
		return room
	}
	room := app.NewRoomWithClock(code, s.now)
	s.rooms[code] = room
	return room
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[domain.NormalizeRoomCode(code)]
	return room, ok
}

func (s *RoomStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, domain.NormalizeRoomCode(code))
}

// DeleteIfEmpty drops a room only when it has nobody online and nothing to lose.
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
	}
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Shutdown disconnects every room's subscribers and empties the store.
func (s *RoomStore) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, room := range s.rooms {
		room.Shutdown()
		delete(s.rooms, code)
	}
}
