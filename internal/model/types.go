package model

type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
	MediaAll   MediaType = "all"
)

type Contact struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Phones []string `json:"phoneNumbers"`
	Emails []string `json:"emails"`
}

type MediaAsset struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Type      MediaType `json:"mediaType"`
	URI       string    `json:"uri"`
	Size      int64     `json:"size"`
	Duration  float64   `json:"duration,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	CreatedAt int64     `json:"creationTime"`
}

type DeviceIdentity struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	Platform   string `json:"platform"`
	AppVersion string `json:"appVersion"`
}

// Progress is a transient per-batch snapshot; it is recomputed on every
// emission and never persisted.
type Progress struct {
	Type      string `json:"type"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

type SessionTotals struct {
	Contacts int `json:"totalContacts"`
	Photos   int `json:"totalPhotos"`
	Videos   int `json:"totalVideos"`
}

// BackupResult is the server's completion payload for one session.
type BackupResult struct {
	SessionID   string `json:"sessionId"`
	Status      string `json:"status"`
	Contacts    int    `json:"contacts"`
	Media       int    `json:"media"`
	CompletedAt int64  `json:"completedAt"`
}

// SessionSummary is one row of the server-side backup history.
type SessionSummary struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	Contacts  int    `json:"totalContacts"`
	Photos    int    `json:"totalPhotos"`
	Videos    int    `json:"totalVideos"`
	StartedAt int64  `json:"startedAt"`
}
