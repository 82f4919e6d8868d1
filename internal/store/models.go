package store

import "time"

// Setting is one persisted key/value pair (device token, device id,
// last backup time, active session id).
type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

// BackupRun records the local outcome of one backup run.
type BackupRun struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"index"`
	Status     string
	Error      string
	Contacts   int
	Photos     int
	Videos     int
	StartedAt  time.Time
	FinishedAt time.Time
}
