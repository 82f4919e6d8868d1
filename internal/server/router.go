package server

import (
	"github.com/gin-gonic/gin"
	"snapvault/internal/client"
	"snapvault/internal/handler"
	"snapvault/internal/hub"
	"snapvault/internal/store"
)

type Deps struct {
	Store  *store.Store
	Client *client.Client
	Hub    *hub.Hub
}

// NewRouter builds the local status API: the attach point for a
// presentation layer running on the same machine.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	statusHandler := &handler.StatusHandler{Store: deps.Store}
	r.GET("/status", statusHandler.Status)
	r.GET("/runs", statusHandler.Runs)

	historyHandler := &handler.HistoryHandler{Client: deps.Client}
	r.GET("/history", historyHandler.List)

	wsHandler := &handler.EventStreamHandler{Hub: deps.Hub}
	r.GET("/ws", wsHandler.Serve)

	return r
}
