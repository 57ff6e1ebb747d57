package generation

import (
	"context"
	"sync"

	"destiny-server/internal/models"

	"github.com/google/uuid"
)

// Registry - реестр активных прогонов на стороне вызывающего кода.
// Не дает запустить второй прогон для того же отчета и позволяет дождаться
// завершения всех прогонов при остановке сервера.
type Registry struct {
	mu       sync.Mutex
	active   map[uuid.UUID]struct{}
	wg       sync.WaitGroup
	draining bool
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[uuid.UUID]struct{})}
}

// Acquire резервирует id. Возвращенную функцию нужно вызвать, когда прогон завершится;
// повторные вызовы безопасны.
func (r *Registry) Acquire(id uuid.UUID) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draining {
		return nil, models.ErrShuttingDown
	}
	if _, busy := r.active[id]; busy {
		return nil, models.ErrGenerationInProgress
	}
	r.active[id] = struct{}{}
	r.wg.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, id)
			r.mu.Unlock()
			r.wg.Done()
		})
	}, nil
}

// IsActive сообщает, идет ли сейчас прогон для id.
func (r *Registry) IsActive(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[id]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Drain запрещает новые прогоны и ждет завершения текущих или отмены ctx.
func (r *Registry) Drain(ctx context.Context) error {
	r.mu.Lock()
	r.draining = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
