package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// RegistrationError reports a failed device-registration handshake.
type RegistrationError struct {
	StatusCode int
	Message    string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("device registration failed (status %d): %s", e.StatusCode, e.Message)
}

// SessionError reports a failed session lifecycle call (start or complete).
type SessionError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
}

// UploadError reports a server-rejected upload. Kind is "contacts" or "media".
type UploadError struct {
	Kind       string
	StatusCode int
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s upload failed (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// readError extracts the server's {"error": "..."} envelope, falling back to
// the raw body text.
func readError(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
