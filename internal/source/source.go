package source

import (
	"context"
	"fmt"
	"io"

	"snapvault/internal/model"
)

const (
	ScopeContacts = "contacts"
	ScopeMedia    = "media"
)

// PermissionError reports a denied device-permission scope.
type PermissionError struct {
	Scope string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Scope)
}

// Permissions answers whether a device-permission scope has been granted.
type Permissions interface {
	Granted(scope string) bool
}

// StaticPermissions is a fixed grant set, typically built from config.
type StaticPermissions map[string]bool

func (p StaticPermissions) Granted(scope string) bool { return p[scope] }

// ContactSource enumerates the device's contacts.
type ContactSource interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]model.Contact, error)
}

// MediaSource enumerates the device's media assets by type and resolves an
// asset to its content.
type MediaSource interface {
	Count(ctx context.Context, kind model.MediaType) (int, error)
	List(ctx context.Context, kind model.MediaType, limit int) ([]model.MediaAsset, error)
	Open(asset model.MediaAsset) (io.ReadCloser, error)
}
