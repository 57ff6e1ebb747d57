package progress

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore - хранилище прогресса в памяти процесса.
// Просроченные записи удаляются при каждом Set и Get.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// MemoryOption настраивает MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(ttl time.Duration, logger *zap.Logger, opts ...MemoryOption) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.Named("MemoryProgressStore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Set(_ context.Context, sessionID string, percent int, status Status, message string) (Entry, error) {
	if err := validate(sessionID, status); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)

	entry := Entry{
		SessionID: sessionID,
		Percent:   ClampPercent(percent),
		Status:    status,
		Message:   message,
		Timestamp: now,
	}
	s.entries[sessionID] = entry
	return entry, nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())

	entry, ok := s.entries[sessionID]
	if !ok {
		return Entry{}, notFound(sessionID)
	}
	return entry, nil
}

// Delete удаляет запись. Отсутствующая или уже просроченная запись - not-found.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())

	if _, ok := s.entries[sessionID]; !ok {
		return notFound(sessionID)
	}
	delete(s.entries, sessionID)
	return nil
}

// Len - количество записей, включая еще не выметенные просроченные.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	removed := 0
	for id, e := range s.entries {
		if now.Sub(e.Timestamp) > s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("Expired progress entries removed", zap.Int("count", removed))
	}
}
