package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"creative-studio-backend/internal/notify"
)

const keepAliveInterval = 30 * time.Second

type EventsHandler struct {
	broker *notify.Broker
}

func NewEventsHandler(broker *notify.Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

// Stream godoc
// @Summary     Notification stream
// @Description Server-sent events. Recent notifications are replayed on connect.
// @Tags        events
// @Produce     text/event-stream
// @Security    Bearer
// @Router      /events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	ch, unsubscribe := h.broker.Subscribe(uid)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	var lastID int64
	for _, n := range h.broker.Recent(uid) {
		c.SSEvent("notification", n)
		lastID = n.ID
	}
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case n, open := <-ch:
			if !open {
				return
			}
			if n.ID <= lastID {
				continue
			}
			c.SSEvent("notification", n)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}
