package report

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrReportNotFound = errors.New("report not found")

// Report is the archived output for one completed room.
type Report struct {
	RoomCode    string
	Analytics   Analytics
	Workbook    []byte
	Chart       []byte
	EmailedTo   string
	CompletedAt time.Time
}

// Store archives reports by room code. A later report for the same code replaces the earlier one.
type Store interface {
	Save(ctx context.Context, r Report) error
	Get(ctx context.Context, roomCode string) (Report, error)
}

type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]Report
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]Report)}
}

func (s *MemoryStore) Save(_ context.Context, r Report) error {
	s.mu.Lock()
	s.reports[r.RoomCode] = r
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, roomCode string) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[roomCode]
	if !ok {
		return Report{}, ErrReportNotFound
	}
	return r, nil
}
