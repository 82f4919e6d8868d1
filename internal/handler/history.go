package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"snapvault/internal/client"
)

// HistoryHandler proxies the remote session history so the presentation
// layer only ever talks to the local API.
type HistoryHandler struct {
	Client *client.Client
}

func (h *HistoryHandler) List(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
			return
		}
		page = v
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = v
	}

	sessions, err := h.Client.History(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
