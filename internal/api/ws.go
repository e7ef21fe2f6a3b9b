package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"github.com/mr1hm/robot-scan-console/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamEvents pushes every broadcast event to a WebSocket client until
// either side goes away.
func (h *Handler) streamEvents(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	id, events := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)

	metrics.ActiveStreams.WithLabelValues("websocket").Inc()
	defer metrics.ActiveStreams.WithLabelValues("websocket").Dec()
	slog.Info("websocket client connected", "subscriber_id", id, "remote", c.ClientIP())

	// Clients only listen; the read loop exists to notice closes and pongs.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			slog.Info("websocket client disconnected", "subscriber_id", id)
			return
		case e, ok := <-events:
			if !ok {
				_ = conn.WriteControl(gorilla.CloseMessage,
					gorilla.FormatCloseMessage(gorilla.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				conn.Close()
				<-closed
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				slog.Warn("websocket write failed", "subscriber_id", id, "error", err)
				conn.Close()
				<-closed
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(gorilla.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				<-closed
				return
			}
		}
	}
}
