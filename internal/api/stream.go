package api

import (
	"io"
	"net/http"
	"sync"
	"time"

	"webmonitor/internal/api/types"
	"webmonitor/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// StreamHandler pushes monitoring events to clients over Server-Sent
// Events and WebSocket.
type StreamHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader

	closing   chan struct{}
	closeOnce sync.Once
}

// NewStreamHandler creates a stream handler. WebSocket upgrades are
// accepted from the given origins; "*" accepts any origin.
func NewStreamHandler(hub *events.Hub, origins []string) *StreamHandler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return &StreamHandler{
		hub:     hub,
		closing: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
	}
}

// Close ends all open streams.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// streamed lists the event types worth a dashboard notification. Routine
// check results only go to WebSocket clients.
var streamed = map[string]bool{
	events.TypeSiteDown:      true,
	events.TypeSiteRecovered: true,
	events.TypeNotification:  true,
}

// SSE handles GET /notifications/stream
//
// Down, recovery and notification events are written as one text message
// each until the client disconnects.
func (h *StreamHandler) SSE(c *gin.Context) {
	ch, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	// The stream outlives the server write timeout
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("Could not clear write deadline for stream")
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	log.Debug().Str("request_id", c.GetString("request_id")).Msg("Notification stream opened")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-h.closing:
			return false
		case e, ok := <-ch:
			if !ok {
				return false
			}
			if streamed[e.Type] {
				c.SSEvent("message", e.Message)
			}
			return true
		}
	})

	log.Debug().Str("request_id", c.GetString("request_id")).Msg("Notification stream closed")
}

// WebSocket handles GET /ws
//
// Events are sent as JSON frames. The connection is kept alive with pings;
// messages from the client are ignored.
func (h *StreamHandler) WebSocket(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.JSON(http.StatusBadRequest, types.ValidationError("websocket upgrade required"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.writeLoop(conn, ch, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("WebSocket closed unexpectedly")
			}
			break
		}
	}

	close(done)
}

// writeLoop is the only writer on conn.
func (h *StreamHandler) writeLoop(conn *websocket.Conn, ch <-chan events.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(fn func() error) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return false
		}
		if err := fn(); err != nil {
			log.Debug().Err(err).Msg("WebSocket write failed")
			conn.Close()
			return false
		}
		return true
	}

	if !write(func() error {
		return conn.WriteJSON(events.NewEvent("connected", 0, "", "WebSocket connection established"))
	}) {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-h.closing:
			write(func() error {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				return conn.WriteMessage(websocket.CloseMessage, msg)
			})
			conn.Close()
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if !write(func() error { return conn.WriteJSON(e) }) {
				return
			}
		case <-ticker.C:
			if !write(func() error { return conn.WriteMessage(websocket.PingMessage, nil) }) {
				return
			}
		}
	}
}
