package memory

import (
	"context"
	"sync"
	"time"

	"classroom-quiz-service/internal/domain"
)

// SessionRecorder keeps team session records in memory with a retention TTL.
// Expired records are pruned lazily on write.
type SessionRecorder struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	records map[string]*storedRecord
}

type storedRecord struct {
	rec       domain.TeamSessionRecord
	online    bool
	expiresAt time.Time
}

func NewSessionRecorder(ttl time.Duration) *SessionRecorder {
	return NewSessionRecorderWithClock(ttl, time.Now)
}

// NewSessionRecorderWithClock allows deterministic expiry in tests.
func NewSessionRecorderWithClock(ttl time.Duration, clock func() time.Time) *SessionRecorder {
	return &SessionRecorder{
		ttl:     ttl,
		clock:   clock,
		records: make(map[string]*storedRecord),
	}
}

func (s *SessionRecorder) CreateTeamSessionRecord(_ context.Context, rec domain.TeamSessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	s.pruneLocked(now)
	s.records[recordKey(rec.RoomCode, rec.PlayerID)] = &storedRecord{
		rec:       rec,
		online:    true,
		expiresAt: now.Add(s.ttl),
	}
	return nil
}

func (s *SessionRecorder) MarkOffline(_ context.Context, roomCode, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[recordKey(roomCode, playerID)]; ok && r.expiresAt.After(s.clock()) {
		r.online = false
	}
	return nil
}

// Record returns a live record and whether the player is still online.
func (s *SessionRecorder) Record(roomCode, playerID string) (domain.TeamSessionRecord, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordKey(roomCode, playerID)]
	if !ok || !r.expiresAt.After(s.clock()) {
		return domain.TeamSessionRecord{}, false, false
	}
	return r.rec, r.online, true
}

func (s *SessionRecorder) pruneLocked(now time.Time) {
	for k, r := range s.records {
		if !r.expiresAt.After(now) {
			delete(s.records, k)
		}
	}
}

func recordKey(roomCode, playerID string) string {
	return roomCode + "/" + playerID
}
