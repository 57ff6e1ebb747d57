package generation

import (
	"sync"

	"destiny-server/internal/models"
)

// EventType - тип события, отправляемого клиенту.
type EventType string

const (
	EventChunk EventType = "chunk"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event - событие выходного канала генерации.
type Event struct {
	Type         EventType
	Content      string
	TotalLength  int
	PreviewReady bool
	Message      string
}

type ChunkPayload struct {
	Content      string `json:"content"`
	TotalLength  int    `json:"totalLength"`
	PreviewReady bool   `json:"previewReady"`
}

type DonePayload struct {
	TotalLength int `json:"totalLength"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Payload возвращает тело события в том виде, в каком оно уходит клиенту.
func (e Event) Payload() any {
	switch e.Type {
	case EventDone:
		return DonePayload{TotalLength: e.TotalLength}
	case EventError:
		return ErrorPayload{Message: e.Message}
	default:
		return ChunkPayload{Content: e.Content, TotalLength: e.TotalLength, PreviewReady: e.PreviewReady}
	}
}

// Terminal - после этого события канал закрывается.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Sink - выходной канал к клиенту. Send не должен блокироваться:
// любая ошибка означает, что клиент отключился.
type Sink interface {
	Send(ev Event) error
	Close()
}

// ChannelSink - буферизованный канал событий между оркестратором и транспортом (SSE, WebSocket).
// Close можно вызывать с обеих сторон и сколько угодно раз.
type ChannelSink struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

func NewChannelSink(bufferSize int) *ChannelSink {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &ChannelSink{events: make(chan Event, bufferSize)}
}

// Send кладет событие в буфер без ожидания.
func (s *ChannelSink) Send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.ErrSinkClosed
	}
	select {
	case s.events <- ev:
		return nil
	default:
		return models.ErrSinkFull
	}
}

func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// Events - канал для чтения транспортом. Закрывается вместе с синком.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}
