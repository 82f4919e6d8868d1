package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"snapvault/internal/model"
)

// FileContacts reads a contacts export file (a JSON array of contacts).
type FileContacts struct {
	Path  string
	Perms Permissions
}

func NewFileContacts(path string, perms Permissions) *FileContacts {
	return &FileContacts{Path: path, Perms: perms}
}

func (s *FileContacts) Count(ctx context.Context) (int, error) {
	contacts, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(contacts), nil
}

func (s *FileContacts) List(ctx context.Context) ([]model.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Perms != nil && !s.Perms.Granted(ScopeContacts) {
		return nil, &PermissionError{Scope: ScopeContacts}
	}
	if s.Path == "" {
		return []model.Contact{}, nil
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.Contact{}, nil
		}
		return nil, fmt.Errorf("read contacts file: %w", err)
	}

	var contacts []model.Contact
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("parse contacts file: %w", err)
	}
	return contacts, nil
}
