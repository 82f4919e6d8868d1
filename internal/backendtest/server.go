// Package backendtest provides an in-process stand-in for the remote backup
// server, used by client and orchestrator tests. It records every call and
// can inject failures per endpoint or per media filename.
package backendtest

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"snapvault/internal/model"
)

type MediaRecord struct {
	SessionID   string
	Filename    string
	Size        int64
	ContentType string
}

type Completion struct {
	SessionID string
	Status    string
	Error     string
}

type SessionRecord struct {
	ID        string
	Totals    model.SessionTotals
	Status    string
	StartedAt int64

	seq int
}

type Server struct {
	Secret string

	// Failure knobs: a non-zero status makes the endpoint answer with it.
	RegisterStatus int
	StartStatus    int
	ContactsStatus int
	CompleteStatus int
	// Media uploads whose filename is listed here are rejected.
	FailMedia map[string]bool

	mu             sync.Mutex
	registered     []model.DeviceIdentity
	sessions       map[string]*SessionRecord
	contactBatches [][]model.Contact
	media          []MediaRecord
	mediaRequests  int
	completions    []Completion
}

func New() *Server {
	return &Server{
		Secret:    "backendtest-secret",
		FailMedia: map[string]bool{},
		sessions:  map[string]*SessionRecord{},
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.POST("/device/register", s.register)

	backup := r.Group("/backup")
	backup.Use(s.requireToken)
	backup.POST("/start", s.start)
	backup.POST("/contacts", s.contacts)
	backup.POST("/media", s.uploadMedia)
	backup.POST("/complete", s.complete)
	backup.GET("/history", s.history)

	return r
}

func (s *Server) requireToken(c *gin.Context) {
	token := c.GetHeader("X-Device-Token")
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing device token"})
		return
	}
	if _, err := verifyToken(token, s.Secret); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid device token"})
		return
	}
	c.Next()
}

func (s *Server) register(c *gin.Context) {
	if s.RegisterStatus != 0 {
		c.JSON(s.RegisterStatus, gin.H{"error": "registration rejected"})
		return
	}

	var identity model.DeviceIdentity
	if err := c.ShouldBindJSON(&identity); err != nil || identity.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := mintToken(identity.DeviceID, s.Secret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.registered = append(s.registered, identity)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"deviceToken": token})
}

func (s *Server) start(c *gin.Context) {
	if s.StartStatus != 0 {
		c.JSON(s.StartStatus, gin.H{"error": "session rejected"})
		return
	}

	var body struct {
		Type string `json:"type"`
		model.SessionTotals
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Type != "full" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	rec := &SessionRecord{
		ID:        uuid.NewString(),
		Totals:    body.SessionTotals,
		Status:    "active",
		StartedAt: time.Now().UnixMilli(),
	}
	s.mu.Lock()
	rec.seq = len(s.sessions)
	s.sessions[rec.ID] = rec
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"sessionId": rec.ID})
}

func (s *Server) contacts(c *gin.Context) {
	if s.ContactsStatus != 0 {
		c.JSON(s.ContactsStatus, gin.H{"error": "contacts rejected"})
		return
	}

	var body struct {
		SessionID string          `json:"sessionId"`
		Contacts  []model.Contact `json:"contacts"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Contacts == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[body.SessionID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	s.contactBatches = append(s.contactBatches, body.Contacts)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) uploadMedia(c *gin.Context) {
	s.mu.Lock()
	s.mediaRequests++
	s.mu.Unlock()

	sessionID := c.PostForm("sessionId")
	file, header, err := c.Request.FormFile("media")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	defer file.Close()

	if s.FailMedia[header.Filename] {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "media rejected"})
		return
	}

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	s.media = append(s.media, MediaRecord{
		SessionID:   sessionID,
		Filename:    header.Filename,
		Size:        size,
		ContentType: header.Header.Get("Content-Type"),
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) complete(c *gin.Context) {
	if s.CompleteStatus != 0 {
		c.JSON(s.CompleteStatus, gin.H{"error": "completion rejected"})
		return
	}

	var body struct {
		SessionID string `json:"sessionId"`
		Status    string `json:"status"`
		Error     string `json:"error"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || (body.Status != "completed" && body.Status != "failed") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[body.SessionID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	rec.Status = body.Status
	s.completions = append(s.completions, Completion(body))

	contacts := 0
	for _, batch := range s.contactBatches {
		contacts += len(batch)
	}
	media := 0
	for _, m := range s.media {
		if m.SessionID == body.SessionID {
			media++
		}
	}

	c.JSON(http.StatusOK, model.BackupResult{
		SessionID:   body.SessionID,
		Status:      body.Status,
		Contacts:    contacts,
		Media:       media,
		CompletedAt: time.Now().UnixMilli(),
	})
}

func (s *Server) history(c *gin.Context) {
	page := 1
	limit := 20
	if raw := c.Query("page"); raw != "" {
		if v, err := parsePositive(raw); err == nil {
			page = v
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if v, err := parsePositive(raw); err == nil {
			limit = v
		}
	}

	s.mu.Lock()
	all := make([]*SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		all = append(all, rec)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].seq > all[j].seq })

	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	resp := make([]model.SessionSummary, 0, end-start)
	for _, rec := range all[start:end] {
		resp = append(resp, model.SessionSummary{
			SessionID: rec.ID,
			Status:    rec.Status,
			Contacts:  rec.Totals.Contacts,
			Photos:    rec.Totals.Photos,
			Videos:    rec.Totals.Videos,
			StartedAt: rec.StartedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func parsePositive(raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return v, nil
}

// Recorded-state accessors, safe to call while the server is still serving.

func (s *Server) Registered() []model.DeviceIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DeviceIdentity(nil), s.registered...)
}

func (s *Server) Session(id string) (SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return SessionRecord{}, false
	}
	return *rec, true
}

func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) ContactBatches() [][]model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]model.Contact(nil), s.contactBatches...)
}

func (s *Server) Media() []MediaRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MediaRecord(nil), s.media...)
}

// MediaRequests counts every media upload attempt, rejected ones included.
func (s *Server) MediaRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mediaRequests
}

func (s *Server) Completions() []Completion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Completion(nil), s.completions...)
}
