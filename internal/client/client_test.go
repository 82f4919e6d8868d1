package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"snapvault/internal/backendtest"
	"snapvault/internal/model"
)

func newTestClient(t *testing.T) (*Client, *backendtest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	backend := backendtest.New()
	srv := httptest.NewServer(backend.Router())
	t.Cleanup(srv.Close)
	return New(srv.URL), backend
}

func register(t *testing.T, c *Client) {
	t.Helper()
	token, err := c.Register(context.Background(), model.DeviceIdentity{
		DeviceID:   "dev-1",
		DeviceName: "test-device",
		Platform:   "linux",
		AppVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	c.Token = token
}

func startSession(t *testing.T, c *Client, totals model.SessionTotals) string {
	t.Helper()
	id, err := c.StartSession(context.Background(), totals)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return id
}

func TestRegister(t *testing.T) {
	c, backend := newTestClient(t)
	register(t, c)

	if c.Token == "" {
		t.Fatalf("expected a device token")
	}
	registered := backend.Registered()
	if len(registered) != 1 || registered[0].DeviceID != "dev-1" {
		t.Fatalf("unexpected registrations: %+v", registered)
	}
}

func TestRegister_Rejected(t *testing.T) {
	c, backend := newTestClient(t)
	backend.RegisterStatus = http.StatusForbidden

	_, err := c.Register(context.Background(), model.DeviceIdentity{DeviceID: "dev-1"})
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistrationError, got %v", err)
	}
	if regErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", regErr.StatusCode)
	}
	if !strings.Contains(regErr.Message, "registration rejected") {
		t.Fatalf("expected server error message, got %q", regErr.Message)
	}
}

func TestStartSession(t *testing.T) {
	c, backend := newTestClient(t)
	register(t, c)

	totals := model.SessionTotals{Contacts: 3, Photos: 25, Videos: 2}
	id := startSession(t, c, totals)

	rec, ok := backend.Session(id)
	if !ok {
		t.Fatalf("session %q not recorded", id)
	}
	if rec.Totals != totals {
		t.Fatalf("expected totals %+v, got %+v", totals, rec.Totals)
	}
	if rec.Status != "active" {
		t.Fatalf("expected active session, got %q", rec.Status)
	}
}

func TestStartSession_Rejected(t *testing.T) {
	c, backend := newTestClient(t)
	register(t, c)
	backend.StartStatus = http.StatusServiceUnavailable

	_, err := c.StartSession(context.Background(), model.SessionTotals{})
	var sessErr *SessionError
	if !errors.As(err, &sessErr) {
		t.Fatalf("expected SessionError, got %v", err)
	}
	if sessErr.Op != "start" || sessErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected error: %+v", sessErr)
	}
}

func TestStartSession_MissingToken(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.StartSession(context.Background(), model.SessionTotals{})
	var sessErr *SessionError
	if !errors.As(err, &sessErr) {
		t.Fatalf("expected SessionError, got %v", err)
	}
	if sessErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", sessErr.StatusCode)
	}
}

func TestUploadContacts_EmptyListStillSent(t *testing.T) {
	c, backend := newTestClient(t)
	register(t, c)
	id := startSession(t, c, model.SessionTotals{})

	if err := c.UploadContacts(context.Background(), id, nil); err != nil {
		t.Fatalf("UploadContacts: %v", err)
	}

	batches := backend.ContactBatches()
	if len(batches) != 1 {
		t.Fatalf("expected exactly one contacts request, got %d", len(batches))
	}
	if len(batches[0]) != 0 {
		t.Fatalf("expected empty contact list, got %d", len(batches[0]))
	}
}

func TestUploadContacts_Rejected(t *testing.T) {
	c, backend := newTestClient(t)
	register(t, c)
	id := startSession(t, c, model.SessionTotals{})
	backend.ContactsStatus = http.StatusInternalServerError

	err := c.UploadContacts(context.Background(), id, []model.Contact{{ID: "c1", Name: "Ada"}})
	var upErr *UploadError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if upErr.Kind != "contacts" {
		t.Fatalf("expected contacts upload error, got %q", upErr.Kind)
	}
}

func TestUploadMedia(t *testing.T) {
	c, backend := newTestClient(t)
	register(t, c)
	id := startSession(t, c, model.SessionTotals{Photos: 1})

	asset := model.MediaAsset{ID: "p1", Filename: "IMG_001", Type: model.MediaPhoto}
	body := strings.NewReader("jpeg-bytes")
	if err := c.UploadMedia(context.Background(), id, asset, body); err != nil {
		t.Fatalf("UploadMedia: %v", err)
	}

	media := backend.Media()
	if len(media) != 1 {
		t.Fatalf("expected one media record, got %d", len(media))
	}
	if media[0].Filename != "IMG_001.jpg" {
		t.Fatalf("expected default .jpg extension, got %q", media[0].Filename)
	}
	if media[0].ContentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg part, got %q", media[0].ContentType)
	}
	if media[0].Size != int64(len("jpeg-bytes")) {
		t.Fatalf("unexpected size %d", media[0].Size)
	}
}

func TestUploadMedia_Rejected(t *testing.T) {
	c, backend := newTestClient(t)
	register(t, c)
	id := startSession(t, c, model.SessionTotals{Videos: 1})
	backend.FailMedia["clip.mp4"] = true

	asset := model.MediaAsset{ID: "v1", Filename: "clip", Type: model.MediaVideo}
	err := c.UploadMedia(context.Background(), id, asset, strings.NewReader("mp4-bytes"))
	var upErr *UploadError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if upErr.Kind != "media" || upErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected error: %+v", upErr)
	}
}

func TestComplete(t *testing.T) {
	c, backend := newTestClient(t)
	register(t, c)
	id := startSession(t, c, model.SessionTotals{})

	result, err := c.Complete(context.Background(), id, "completed", "")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.SessionID != id || result.Status != "completed" {
		t.Fatalf("unexpected result: %+v", result)
	}

	rec, _ := backend.Session(id)
	if rec.Status != "completed" {
		t.Fatalf("expected completed session, got %q", rec.Status)
	}
}

func TestComplete_Rejected(t *testing.T) {
	c, backend := newTestClient(t)
	register(t, c)
	id := startSession(t, c, model.SessionTotals{})
	backend.CompleteStatus = http.StatusConflict

	_, err := c.Complete(context.Background(), id, "failed", "boom")
	var sessErr *SessionError
	if !errors.As(err, &sessErr) {
		t.Fatalf("expected SessionError, got %v", err)
	}
	if sessErr.Op != "complete" || sessErr.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected error: %+v", sessErr)
	}
}

func TestHistory(t *testing.T) {
	c, _ := newTestClient(t)
	register(t, c)
	first := startSession(t, c, model.SessionTotals{Contacts: 1})
	if _, err := c.Complete(context.Background(), first, "completed", ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	second := startSession(t, c, model.SessionTotals{Photos: 2})

	sessions, err := c.History(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != second {
		t.Fatalf("expected newest session first, got %q", sessions[0].SessionID)
	}

	sessions, err = c.History(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("History page 2: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != first {
		t.Fatalf("expected the older session on page 2, got %+v", sessions)
	}
	if sessions[0].Status != "completed" {
		t.Fatalf("expected completed status, got %q", sessions[0].Status)
	}
}

func TestUploadFilenameDefaults(t *testing.T) {
	photo := model.MediaAsset{ID: "p1", Filename: "IMG_1", Type: model.MediaPhoto}
	if got := uploadFilename(photo); got != "IMG_1.jpg" {
		t.Fatalf("expected IMG_1.jpg, got %q", got)
	}

	video := model.MediaAsset{ID: "v1", Filename: "MOV_1", Type: model.MediaVideo}
	if got := uploadFilename(video); got != "MOV_1.mp4" {
		t.Fatalf("expected MOV_1.mp4, got %q", got)
	}

	named := model.MediaAsset{ID: "p2", Filename: "sunset.png", Type: model.MediaPhoto}
	if got := uploadFilename(named); got != "sunset.png" {
		t.Fatalf("expected sunset.png, got %q", got)
	}
}

func TestMIMEType(t *testing.T) {
	cases := []struct {
		asset model.MediaAsset
		want  string
	}{
		{model.MediaAsset{Filename: "a.jpg", Type: model.MediaPhoto}, "image/jpeg"},
		{model.MediaAsset{Filename: "a", Type: model.MediaPhoto}, "image/jpeg"},
		{model.MediaAsset{Filename: "b.mov", Type: model.MediaVideo}, "video/quicktime"},
		{model.MediaAsset{Filename: "b", Type: model.MediaVideo}, "video/mp4"},
		{model.MediaAsset{Filename: "odd.bin", Type: model.MediaPhoto}, "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := MIMEType(tc.asset); got != tc.want {
			t.Fatalf("MIMEType(%q): expected %q, got %q", tc.asset.Filename, tc.want, got)
		}
	}
}
