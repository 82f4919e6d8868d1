package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strconv"
	"strings"

	"snapvault/internal/model"
)

const tokenHeader = "X-Device-Token"

// Client talks to one backup server. Token is set once after registration
// and read-only for the rest of a run; a Client carries no session state,
// so one Client can serve any number of sequential runs.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
	}
}

// Register exchanges the device identity for a device token. The token is
// returned, not stored; the caller decides where it lives.
func (c *Client) Register(ctx context.Context, identity model.DeviceIdentity) (string, error) {
	resp, err := c.postJSON(ctx, "/device/register", identity)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RegistrationError{StatusCode: resp.StatusCode, Message: readError(resp.Body)}
	}

	var body struct {
		DeviceToken string `json:"deviceToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode register response: %w", err)
	}
	if body.DeviceToken == "" {
		return "", &RegistrationError{StatusCode: resp.StatusCode, Message: "empty device token"}
	}
	return body.DeviceToken, nil
}

// StartSession declares the expected totals and returns the server-assigned
// session id.
func (c *Client) StartSession(ctx context.Context, totals model.SessionTotals) (string, error) {
	payload := struct {
		Type string `json:"type"`
		model.SessionTotals
	}{Type: "full", SessionTotals: totals}

	resp, err := c.postJSON(ctx, "/backup/start", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SessionError{Op: "start", StatusCode: resp.StatusCode, Message: readError(resp.Body)}
	}

	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode start response: %w", err)
	}
	if body.SessionID == "" {
		return "", &SessionError{Op: "start", StatusCode: resp.StatusCode, Message: "empty session id"}
	}
	return body.SessionID, nil
}

// UploadContacts sends the whole contact set as one request. An empty set is
// still sent so the server sees the declared total honored.
func (c *Client) UploadContacts(ctx context.Context, sessionID string, contacts []model.Contact) error {
	if contacts == nil {
		contacts = []model.Contact{}
	}
	payload := struct {
		SessionID string          `json:"sessionId"`
		Contacts  []model.Contact `json:"contacts"`
	}{SessionID: sessionID, Contacts: contacts}

	resp, err := c.postJSON(ctx, "/backup/contacts", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UploadError{Kind: "contacts", StatusCode: resp.StatusCode, Message: readError(resp.Body)}
	}
	return nil
}

// UploadMedia transmits one asset as a multipart request. The content type is
// left to the multipart writer so it carries the boundary; only the device
// token header is set explicitly.
func (c *Client) UploadMedia(ctx context.Context, sessionID string, asset model.MediaAsset, r io.Reader) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("sessionId", sessionID); err != nil {
		return fmt.Errorf("write session field: %w", err)
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename=%q`, uploadFilename(asset)))
	header.Set("Content-Type", MIMEType(asset))
	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create media part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy media %s: %w", asset.ID, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/backup/media", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.Token != "" {
		req.Header.Set(tokenHeader, c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UploadError{Kind: "media", StatusCode: resp.StatusCode, Message: readError(resp.Body)}
	}
	return nil
}

// Complete terminates the session. status is "completed" or "failed";
// errMsg travels only with a failure.
func (c *Client) Complete(ctx context.Context, sessionID, status, errMsg string) (*model.BackupResult, error) {
	payload := struct {
		SessionID string `json:"sessionId"`
		Status    string `json:"status"`
		Error     string `json:"error,omitempty"`
	}{SessionID: sessionID, Status: status, Error: errMsg}

	resp, err := c.postJSON(ctx, "/backup/complete", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SessionError{Op: "complete", StatusCode: resp.StatusCode, Message: readError(resp.Body)}
	}

	var result model.BackupResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode complete response: %w", err)
	}
	return &result, nil
}

// History lists past sessions, newest first.
func (c *Client) History(ctx context.Context, page, limit int) ([]model.SessionSummary, error) {
	url := c.BaseURL + "/backup/history?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set(tokenHeader, c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SessionError{Op: "history", StatusCode: resp.StatusCode, Message: readError(resp.Body)}
	}

	var body struct {
		Sessions []model.SessionSummary `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}
	return body.Sessions, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set(tokenHeader, c.Token)
	}
	return c.HTTPClient.Do(req)
}

// uploadFilename fills in a default extension when the asset name has none.
func uploadFilename(asset model.MediaAsset) string {
	name := asset.Filename
	if name == "" {
		name = asset.ID
	}
	if path.Ext(name) == "" {
		switch asset.Type {
		case model.MediaPhoto:
			name += ".jpg"
		case model.MediaVideo:
			name += ".mp4"
		}
	}
	return name
}

// MIMEType infers the content type recorded for an asset from its upload
// filename; unknown extensions fall back to application/octet-stream.
func MIMEType(asset model.MediaAsset) string {
	switch strings.ToLower(path.Ext(uploadFilename(asset))) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
