package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"webchat-signaling/internal/config"
	"webchat-signaling/internal/signaling"
)

// NewRouter builds the HTTP surface: a health check and the websocket
// endpoint that hands connections to the hub.
func NewRouter(hub *signaling.Hub, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", serveWs(hub, cfg, logger))

	return r
}

// serveWs returns the handler that upgrades requests to websockets.
func serveWs(hub *signaling.Hub, cfg *config.Config, logger *slog.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin header.
				return true
			}
			return cfg.OriginAllowed(origin)
		},
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "remote", c.Request.RemoteAddr, "error", err)
			return
		}
		hub.Accept(conn)
	}
}
