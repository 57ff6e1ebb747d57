package handler

import (
	"io"
	"net/http"
	"slices"
	"time"

	"destiny-server/internal/generation"
	"destiny-server/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время на запись одного сообщения клиенту.
	writeWait = 10 * time.Second
	// Время ожидания pong от клиента.
	pongWait = 60 * time.Second
	// Период пингов. Должен быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Клиент ничего не присылает, кроме управляющих кадров.
	maxMessageSize = 512
)

// generateSSE запускает генерацию и транслирует события как Server-Sent Events.
// Уход клиента закрывает синк, но прогон продолжается до конца.
func (h *Handler) generateSSE(c *gin.Context) {
	id, ok := parseReportID(c)
	if !ok {
		return
	}

	sink := generation.NewChannelSink(h.opts.SinkBufferSize)
	run, err := h.reports.StartGeneration(c.Request.Context(), id, middleware.UserID(c), sink)
	if err != nil {
		sink.Close()
		handleServiceError(c, err)
		return
	}
	log := h.logger.With(zap.String("report_id", id.String()), zap.String("transport", "sse"))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	activeStreams.WithLabelValues("sse").Inc()
	defer activeStreams.WithLabelValues("sse").Dec()

	events := sink.Events()
	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(string(ev.Type), ev.Payload())
			streamEventsSent.WithLabelValues("sse", string(ev.Type)).Inc()
			return !ev.Terminal()
		case <-clientGone:
			return false
		}
	})
	sink.Close()

	select {
	case <-run.Done():
		log.Debug("SSE stream finished with the run")
	default:
		log.Info("Client left before generation finished, run continues in background")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, "*") || slices.Contains(h.opts.AllowedOrigins, origin)
}

// generateWS - тот же поток событий, но JSON-кадрами по WebSocket.
func (h *Handler) generateWS(c *gin.Context) {
	id, ok := parseReportID(c)
	if !ok {
		return
	}
	if !h.checkOrigin(c.Request) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	sink := generation.NewChannelSink(h.opts.SinkBufferSize)
	if _, err := h.reports.StartGeneration(c.Request.Context(), id, middleware.UserID(c), sink); err != nil {
		sink.Close()
		handleServiceError(c, err)
		return
	}
	log := h.logger.With(zap.String("report_id", id.String()), zap.String("transport", "ws"))

	up := upgrader
	up.CheckOrigin = h.checkOrigin
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту, прогон идет без получателя.
		log.Error("Failed to upgrade connection", zap.Error(err))
		sink.Close()
		return
	}

	activeStreams.WithLabelValues("ws").Inc()
	defer activeStreams.WithLabelValues("ws").Dec()

	go readPump(conn, sink, log)
	writePump(conn, sink, log)
}

// readPump нужен только для обработки close/pong: любая ошибка чтения закрывает синк.
func readPump(conn *websocket.Conn, sink *generation.ChannelSink, log *zap.Logger) {
	defer sink.Close()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, sink *generation.ChannelSink, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sink.Close()
		_ = conn.Close()
	}()

	events := sink.Events()
	for {
		select {
		case ev, open := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(streamFrame{Event: string(ev.Type), Data: ev.Payload()}); err != nil {
				log.Info("WebSocket write failed, client marked as disconnected", zap.Error(err))
				return
			}
			streamEventsSent.WithLabelValues("ws", string(ev.Type)).Inc()
			if ev.Terminal() {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Info("WebSocket ping failed", zap.Error(err))
				return
			}
		}
	}
}
