package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"snapvault/internal/store"
)

type StatusHandler struct {
	Store *store.Store
}

func (h *StatusHandler) Status(c *gin.Context) {
	deviceID, err := h.Store.DeviceID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var lastBackup interface{}
	if t, ok, err := h.Store.LastBackupTime(); err == nil && ok {
		lastBackup = t.Format(time.RFC3339)
	}

	runs, err := h.Store.RecentRuns(1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var lastRun interface{}
	if len(runs) > 0 {
		lastRun = runView(runs[0])
	}

	c.JSON(http.StatusOK, gin.H{
		"deviceId":       deviceID,
		"lastBackupTime": lastBackup,
		"lastRun":        lastRun,
	})
}

func (h *StatusHandler) Runs(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = v
	}

	runs, err := h.Store.RecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]gin.H, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, runView(run))
	}
	c.JSON(http.StatusOK, gin.H{"runs": resp})
}

func runView(run store.BackupRun) gin.H {
	return gin.H{
		"sessionId":  run.SessionID,
		"status":     run.Status,
		"error":      run.Error,
		"contacts":   run.Contacts,
		"photos":     run.Photos,
		"videos":     run.Videos,
		"startedAt":  run.StartedAt.UnixMilli(),
		"finishedAt": run.FinishedAt.UnixMilli(),
	}
}
