// Package websocket streams one task's event sequence to a single
// websocket client, adapted from the hub/client connection pattern used
// for the original chat websocket onto eventbus's narrower one-task,
// one-subscriber-set contract.
package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CherryPod/sentinel-sub000/internal/domain/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // production deployments should restrict this
	},
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Handler serves a task's event stream over a websocket connection.
type Handler struct {
	bus    *eventbus.Bus
	logger *zap.Logger
}

func NewHandler(bus *eventbus.Bus, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{bus: bus, logger: logger}
}

// ServeTaskEvents upgrades the connection and relays every event published
// for the task id in the URL until the task reaches a terminal state (the
// orchestrator calls UnsubscribeAll, which closes the channel) or the
// client disconnects.
func (h *Handler) ServeTaskEvents(c *gin.Context) {
	taskID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := h.bus.Subscribe(taskID)
	defer unsubscribe()

	// Drain client frames (close detection only — the gateway doesn't
	// accept commands over this channel) on its own goroutine.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal task event", zap.Error(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
