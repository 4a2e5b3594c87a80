package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/svarvel/meethub/internal/domain"
)

// Memory is an in-process MeetingStore for tests and ad hoc
// deployments that run without a database.
type Memory struct {
	mu       sync.RWMutex
	meetings map[string]*domain.Meeting
}

func NewMemory() *Memory {
	return &Memory{meetings: make(map[string]*domain.Meeting)}
}

func (s *Memory) Create(_ context.Context, name string) (*domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := domain.NewMeeting(name)
	for {
		if _, taken := s.meetings[m.Code]; !taken {
			break
		}
		m.Code = domain.GenerateRoomCode()
	}
	s.meetings[m.Code] = m
	cp := *m
	return &cp, nil
}

func (s *Memory) Get(_ context.Context, code string) (*domain.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[code]
	if !ok || !m.Active {
		return nil, ErrMeetingNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Memory) List(_ context.Context) ([]domain.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		if m.Active {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) End(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[code]
	if !ok {
		return ErrMeetingNotFound
	}
	if m.Active {
		now := time.Now().UTC()
		m.Active = false
		m.EndedAt = &now
	}
	return nil
}

func (s *Memory) Exists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[code]
	return ok && m.Active, nil
}
