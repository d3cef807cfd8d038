package api

import (
	"net/http"

	"webmonitor/internal/api/types"

	"github.com/gin-gonic/gin"
)

// setupRoutes configures API routes. The same surface is served at the
// root and under /api.
func (s *Server) setupRoutes() {
	baseHandler := NewHandler(s.engine, s.storage)
	sites := NewSiteHandler(s.engine)
	s.streams = NewStreamHandler(s.engine.Events(), s.config.CORSOrigins)
	stream := s.streams
	auth := NewAuthHandler(s.storage.Repositories().Admins)

	register := func(g *gin.RouterGroup) {
		g.GET("/ping", baseHandler.Ping)
		g.GET("/health", baseHandler.Health)

		g.POST("/login", auth.Login)

		g.GET("/websites", sites.List)
		g.POST("/websites", sites.Create)
		g.PUT("/websites/:id", sites.Update)
		g.DELETE("/websites/:id", sites.Delete)
		g.POST("/check/:id", sites.Check)
		g.POST("/notify", sites.Notify)

		g.GET("/notifications/stream", stream.SSE)
		g.GET("/ws", stream.WebSocket)
	}

	register(&s.router.RouterGroup)
	register(s.router.Group("/api"))

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, types.NewError(types.CodeNotFound, "Not found"))
	})
}
