package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeContactsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write contacts file: %v", err)
	}
	return path
}

func TestFileContacts_List(t *testing.T) {
	path := writeContactsFile(t, `[
		{"id":"c1","name":"Ada","phoneNumbers":["+1"],"emails":[]},
		{"id":"c2","name":"Grace","phoneNumbers":[],"emails":["g@example.com"]}
	]`)
	s := NewFileContacts(path, StaticPermissions{ScopeContacts: true})

	contacts, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(contacts))
	}
	if contacts[0].ID != "c1" || contacts[0].Name != "Ada" || contacts[0].Phones[0] != "+1" {
		t.Fatalf("unexpected contact: %+v", contacts[0])
	}

	n, err := s.Count(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("expected count 2, got %d, %v", n, err)
	}
}

func TestFileContacts_PermissionDenied(t *testing.T) {
	path := writeContactsFile(t, `[]`)
	s := NewFileContacts(path, StaticPermissions{})

	_, err := s.List(context.Background())
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if permErr.Scope != ScopeContacts {
		t.Fatalf("unexpected scope %q", permErr.Scope)
	}
}

func TestFileContacts_MissingFileIsEmpty(t *testing.T) {
	s := NewFileContacts(filepath.Join(t.TempDir(), "absent.json"), StaticPermissions{ScopeContacts: true})

	contacts, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(contacts) != 0 {
		t.Fatalf("expected no contacts, got %d", len(contacts))
	}
}

func TestFileContacts_MalformedFile(t *testing.T) {
	path := writeContactsFile(t, `{not json`)
	s := NewFileContacts(path, StaticPermissions{ScopeContacts: true})

	if _, err := s.List(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
