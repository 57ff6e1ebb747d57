package generation

import "time"

// FlushReason - причина записи накопленного текста в хранилище.
type FlushReason string

const (
	FlushReasonSize    FlushReason = "size"
	FlushReasonTime    FlushReason = "time"
	FlushReasonPreview FlushReason = "preview"
	FlushReasonFinal   FlushReason = "final"
	FlushReasonError   FlushReason = "error"
)

// Policy решает, пора ли сбрасывать буфер. Состояние - длина и время последнего сброса.
// Проверка выполняется при поступлении чанка, отдельного таймера нет.
type Policy struct {
	SizeThreshold int
	TimeThreshold time.Duration

	lastLength int
	lastFlush  time.Time
}

// NewPolicy создает политику с базовой точкой в момент start.
func NewPolicy(sizeThreshold int, timeThreshold time.Duration, start time.Time) *Policy {
	return &Policy{
		SizeThreshold: sizeThreshold,
		TimeThreshold: timeThreshold,
		lastFlush:     start,
	}
}

// Due сообщает, нужен ли сброс при текущей длине буфера length.
// Без прироста текста сброс не нужен, даже если истек интервал.
func (p *Policy) Due(length int, now time.Time) (FlushReason, bool) {
	if length-p.lastLength <= 0 {
		return "", false
	}
	if p.SizeThreshold > 0 && length-p.lastLength >= p.SizeThreshold {
		return FlushReasonSize, true
	}
	if p.TimeThreshold > 0 && now.Sub(p.lastFlush) >= p.TimeThreshold {
		return FlushReasonTime, true
	}
	return "", false
}

// Reset переносит базовую точку на текущий сброс.
func (p *Policy) Reset(length int, now time.Time) {
	p.lastLength = length
	p.lastFlush = now
}

// Baseline возвращает длину и время последнего сброса.
func (p *Policy) Baseline() (int, time.Time) {
	return p.lastLength, p.lastFlush
}
