package ws

import (
	"net/http"
	"time"

	"ai-scam-shield-demo/backend/internal/guard"
	"ai-scam-shield-demo/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The admin surface is token-authenticated before the upgrade; origin
	// checks belong to the fronting proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventFeed streams new security events to a connected admin dashboard.
// Slow consumers miss events rather than backpressuring the request path.
func EventFeed(events *guard.EventLog, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.LogError(err, "websocket upgrade failed")
			return
		}

		sub, cancel := events.Subscribe()
		defer cancel()
		defer conn.Close()

		// Reader goroutine: we never expect messages, but reading is what
		// surfaces close frames.
		done := make(chan struct{})
		go func() {
			defer close(done)
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
			case event, ok := <-sub:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(event); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}
}
