package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const (
	keyDeviceID       = "deviceId"
	keyDeviceToken    = "deviceToken"
	keyLastBackupTime = "lastBackupTime"
	keyActiveSession  = "activeSession"
)

// Store is the client's local persistence: a settings table plus backup run
// history, in a SQLite file owned by this struct.
type Store struct {
	db *gorm.DB
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&Setting{}, &BackupRun{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) get(key string) (string, error) {
	var setting Setting
	err := s.db.First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *Store) set(key, value string) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: key, Value: value}).Error
}

func (s *Store) delete(key string) error {
	return s.db.Delete(&Setting{}, "key = ?", key).Error
}

func (s *Store) DeviceID() (string, error)      { return s.get(keyDeviceID) }
func (s *Store) SetDeviceID(id string) error    { return s.set(keyDeviceID, id) }
func (s *Store) DeviceToken() (string, error)   { return s.get(keyDeviceToken) }
func (s *Store) SetDeviceToken(t string) error  { return s.set(keyDeviceToken, t) }
func (s *Store) ActiveSession() (string, error) { return s.get(keyActiveSession) }
func (s *Store) SetActiveSession(id string) error {
	return s.set(keyActiveSession, id)
}
func (s *Store) ClearActiveSession() error { return s.delete(keyActiveSession) }

// LastBackupTime reports the timestamp of the last successful run; ok is
// false when no run has succeeded yet.
func (s *Store) LastBackupTime() (t time.Time, ok bool, err error) {
	raw, err := s.get(keyLastBackupTime)
	if err != nil || raw == "" {
		return time.Time{}, false, err
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", keyLastBackupTime, err)
	}
	return t, true, nil
}

func (s *Store) SetLastBackupTime(t time.Time) error {
	return s.set(keyLastBackupTime, t.UTC().Format(time.RFC3339))
}

func (s *Store) RecordRun(run BackupRun) error {
	return s.db.Create(&run).Error
}

// RecentRuns lists local runs, newest first.
func (s *Store) RecentRuns(limit int) ([]BackupRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []BackupRun
	err := s.db.Order("started_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}
