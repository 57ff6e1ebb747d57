// Package generation ведет прогон генерации отчета: принимает чанки от источника токенов,
// один раз вырезает превью, периодически сохраняет накопленный текст и пересылает
// события клиенту, пока тот подключен.
package generation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"destiny-server/internal/models"
	"destiny-server/internal/preview"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenSource отдает текст отчета фрагментами. onChunk вызывается последовательно
// в порядке получения. Ошибка может прийти в любой момент, в том числе после части текста.
type TokenSource interface {
	StreamReport(ctx context.Context, input models.GenerationInput, onChunk func(chunk string) error) error
}

// ReportStore - долговременное хранилище отчетов с частичным обновлением полей.
type ReportStore interface {
	UpdateReport(ctx context.Context, id uuid.UUID, upd models.ReportUpdate) error
}

// Notifier получает уведомление о завершении прогона.
type Notifier interface {
	NotifyReportFinished(ctx context.Context, n models.ReportNotification) error
}

// Config - параметры прогона.
type Config struct {
	PreviewThreshold   int
	PreviewSuffix      string
	FlushSizeThreshold int
	FlushTimeThreshold time.Duration
	// Таймаут одной записи в хранилище.
	WriteTimeout time.Duration
	// Попытки финального сброса и базовая задержка между ними.
	FinalFlushAttempts int
	FinalFlushBackoff  time.Duration
	// Ограничение на весь прогон. 0 - без ограничения.
	RunTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PreviewThreshold:   1800,
		PreviewSuffix:      preview.DefaultSuffix,
		FlushSizeThreshold: 3000,
		FlushTimeThreshold: 30 * time.Second,
		WriteTimeout:       10 * time.Second,
		FinalFlushAttempts: 3,
		FinalFlushBackoff:  500 * time.Millisecond,
		RunTimeout:         10 * time.Minute,
	}
}

// Result - итог прогона.
type Result struct {
	ReportID        uuid.UUID
	Status          models.ReportStatus
	TotalLength     int
	Flushes         int
	FailedFlushes   int
	PreviewProduced bool
	Disconnected    bool
	Err             error
}

// Run - дескриптор запущенного прогона.
type Run struct {
	ReportID uuid.UUID
	done     chan struct{}
	result   Result
}

// Done закрывается, когда прогон завершил финальный сброс.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result возвращает итог. Имеет смысл только после закрытия Done.
func (r *Run) Result() Result {
	<-r.done
	return r.result
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

type Orchestrator struct {
	source   TokenSource
	store    ReportStore
	notifier Notifier
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
}

func NewOrchestrator(source TokenSource, store ReportStore, cfg Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.FinalFlushAttempts < 1 {
		cfg.FinalFlushAttempts = 1
	}
	o := &Orchestrator{
		source: source,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.Named("Orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start запускает прогон в отдельной горутине. Контекст прогона не связан с запросом:
// отключение клиента его не отменяет. sink может быть nil.
func (o *Orchestrator) Start(input models.GenerationInput, sink Sink) *Run {
	run := &Run{ReportID: input.ReportID, done: make(chan struct{})}
	go func() {
		defer close(run.done)
		ctx := context.Background()
		if o.cfg.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
			defer cancel()
		}
		run.result = o.Execute(ctx, input, sink)
	}()
	return run
}

// runState - буфер и флаги одного прогона. Принадлежит только своему прогону.
type runState struct {
	id             uuid.UUID
	buf            strings.Builder
	length         int
	sink           Sink
	connected      bool
	previewHandled bool
	// pendingPreview - превью, которое еще не удалось записать. Уходит с каждым
	// следующим сбросом, пока запись не пройдет.
	pendingPreview *string
	policy         *Policy
	flushes        int
	failedFlushes  int
	logger         *zap.Logger
}

// Execute выполняет прогон синхронно. ctx ограничивает только чтение из источника токенов:
// записи в хранилище идут со своим таймаутом, чтобы финальный сброс прошел и после отмены.
func (o *Orchestrator) Execute(ctx context.Context, input models.GenerationInput, sink Sink) Result {
	started := o.now()
	st := &runState{
		id:        input.ReportID,
		sink:      sink,
		connected: sink != nil,
		policy:    NewPolicy(o.cfg.FlushSizeThreshold, o.cfg.FlushTimeThreshold, started),
		logger:    o.logger.With(zap.String("report_id", input.ReportID.String())),
	}

	runsStarted.Inc()
	activeRuns.Inc()
	defer activeRuns.Dec()
	st.logger.Info("Generation run started")

	streamErr := o.source.StreamReport(ctx, input, func(chunk string) error {
		o.handleChunk(st, chunk)
		return nil
	})

	status := models.ReportStatusCompleted
	if streamErr != nil {
		status = models.ReportStatusFailed
		o.finishFailed(st, streamErr)
	} else {
		o.finishCompleted(st)
	}
	if sink != nil {
		sink.Close()
	}

	res := Result{
		ReportID:        st.id,
		Status:          status,
		TotalLength:     st.length,
		Flushes:         st.flushes,
		FailedFlushes:   st.failedFlushes,
		PreviewProduced: st.previewHandled && st.pendingPreview == nil,
		Disconnected:    !st.connected,
		Err:             streamErr,
	}

	runsFinished.WithLabelValues(string(status)).Inc()
	runDuration.WithLabelValues(string(status)).Observe(o.now().Sub(started).Seconds())
	st.logger.Info("Generation run finished",
		zap.String("status", string(status)),
		zap.Int("total_length", res.TotalLength),
		zap.Int("flushes", res.Flushes),
		zap.Int("failed_flushes", res.FailedFlushes),
		zap.Bool("client_disconnected", res.Disconnected),
		zap.Error(streamErr),
	)

	o.notify(st, input, res)
	return res
}

func (o *Orchestrator) handleChunk(st *runState, chunk string) {
	if chunk == "" {
		return
	}
	chunksReceived.Inc()
	st.buf.WriteString(chunk)
	st.length += utf8.RuneCountInString(chunk)

	var previewText *string
	if !st.previewHandled && o.cfg.PreviewThreshold > 0 && st.length >= o.cfg.PreviewThreshold {
		p := preview.Extract(st.buf.String(), o.cfg.PreviewThreshold, o.cfg.PreviewSuffix)
		previewText = &p
		st.previewHandled = true
		st.pendingPreview = previewText
		previewsProduced.Inc()
		st.logger.Info("Preview produced", zap.Int("buffer_length", st.length), zap.Int("preview_length", utf8.RuneCountInString(p)))
	}

	o.forward(st, Event{
		Type:         EventChunk,
		Content:      chunk,
		TotalLength:  st.length,
		PreviewReady: st.previewHandled,
	})

	now := o.now()
	if previewText != nil {
		full := st.buf.String()
		o.flush(st, models.ReportUpdate{PreviewText: previewText, FullText: &full}, FlushReasonPreview, now)
		return
	}
	if reason, ok := st.policy.Due(st.length, now); ok {
		full := st.buf.String()
		o.flush(st, models.ReportUpdate{FullText: &full}, reason, now)
	}
}

// forward отправляет событие клиенту, если он еще подключен. Ошибка отправки
// только снимает флаг connected.
func (o *Orchestrator) forward(st *runState, ev Event) {
	if !st.connected {
		return
	}
	if err := st.sink.Send(ev); err != nil {
		st.connected = false
		clientDisconnects.Inc()
		st.logger.Info("Client output detached, generation continues", zap.Error(err), zap.Int("total_length", st.length))
	}
}

// flush пишет обновление в хранилище. Базовая точка политики сдвигается при любой попытке,
// иначе недоступная БД получала бы запись на каждый чанк.
func (o *Orchestrator) flush(st *runState, upd models.ReportUpdate, reason FlushReason, now time.Time) error {
	st.policy.Reset(st.length, now)
	st.flushes++
	if upd.PreviewText == nil && st.pendingPreview != nil {
		upd.PreviewText = st.pendingPreview
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.WriteTimeout)
	defer cancel()
	if err := o.store.UpdateReport(ctx, st.id, upd); err != nil {
		st.failedFlushes++
		flushFailures.WithLabelValues(string(reason)).Inc()
		st.logger.Warn("Report flush failed, generation continues",
			zap.String("reason", string(reason)),
			zap.Int("total_length", st.length),
			zap.Error(err),
		)
		return err
	}
	if upd.PreviewText != nil {
		st.pendingPreview = nil
	}
	flushesTotal.WithLabelValues(string(reason)).Inc()
	st.logger.Debug("Report flushed", zap.String("reason", string(reason)), zap.Int("total_length", st.length))
	return nil
}

// flushWithRetry - финальный сброс с экспоненциальной задержкой между попытками.
func (o *Orchestrator) flushWithRetry(st *runState, upd models.ReportUpdate, reason FlushReason) {
	baseDelay := o.cfg.FinalFlushBackoff
	for attempt := 1; attempt <= o.cfg.FinalFlushAttempts; attempt++ {
		if err := o.flush(st, upd, reason, o.now()); err == nil {
			return
		}
		if attempt == o.cfg.FinalFlushAttempts {
			st.logger.Error("Final report flush failed after all attempts",
				zap.Int("attempts", attempt),
				zap.Int("total_length", st.length),
			)
			return
		}
		if baseDelay <= 0 {
			continue
		}
		delay := float64(baseDelay) * math.Pow(2, float64(attempt-1))
		delay += delay * 0.1 * (rand.Float64()*2 - 1)
		wait := time.Duration(delay)
		if wait < baseDelay {
			wait = baseDelay
		}
		time.Sleep(wait)
	}
}

func (o *Orchestrator) finishCompleted(st *runState) {
	status := models.ReportStatusCompleted
	full := st.buf.String()
	o.flushWithRetry(st, models.ReportUpdate{FullText: &full, Status: &status}, FlushReasonFinal)
	o.forward(st, Event{Type: EventDone, TotalLength: st.length})
}

func (o *Orchestrator) finishFailed(st *runState, cause error) {
	status := models.ReportStatusFailed
	msg := cause.Error()
	upd := models.ReportUpdate{Status: &status, ErrorMessage: &msg}
	if st.length > 0 {
		full := st.buf.String()
		upd.FullText = &full
	}
	o.flushWithRetry(st, upd, FlushReasonError)
	o.forward(st, Event{Type: EventError, Message: userMessage(cause, st.length)})
}

func (o *Orchestrator) notify(st *runState, input models.GenerationInput, res Result) {
	if o.notifier == nil {
		return
	}
	n := models.ReportNotification{
		ReportID:        res.ReportID.String(),
		UserID:          input.UserID,
		Status:          res.Status,
		TotalLength:     res.TotalLength,
		PreviewProduced: res.PreviewProduced,
		FinishedAt:      o.now().UTC(),
	}
	if res.Err != nil {
		n.ErrorDetails = res.Err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.WriteTimeout)
	defer cancel()
	if err := o.notifier.NotifyReportFinished(ctx, n); err != nil {
		st.logger.Warn("Failed to publish report notification", zap.Error(err))
	}
}

// userMessage формирует понятное пользователю описание причины сбоя.
func userMessage(cause error, savedLength int) string {
	var reason string
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		reason = "report generation timed out"
	case errors.Is(cause, context.Canceled):
		reason = "report generation was cancelled"
	default:
		reason = fmt.Sprintf("report generation failed: %v", cause)
	}
	if savedLength > 0 {
		return reason + "; the text received so far has been saved"
	}
	return reason
}
