package source

import (
	"context"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"snapvault/internal/model"
)

var photoExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".heic": true, ".webp": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true,
}

// Library indexes the media assets under one directory tree. The index is
// built by Scan and optionally kept fresh by Watch.
type Library struct {
	root  string
	perms Permissions

	mu     sync.RWMutex
	assets map[string]model.MediaAsset

	watcher *fsnotify.Watcher
}

func NewLibrary(root string, perms Permissions) *Library {
	return &Library{
		root:   root,
		perms:  perms,
		assets: make(map[string]model.MediaAsset),
	}
}

// Scan walks the tree and rebuilds the index. Unreadable entries are skipped.
func (l *Library) Scan() error {
	assets := make(map[string]model.MediaAsset)
	if l.root != "" {
		err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if asset, ok := l.describe(path); ok {
				assets[asset.ID] = asset
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	l.mu.Lock()
	l.assets = assets
	l.mu.Unlock()
	return nil
}

// Watch keeps the index in sync with filesystem changes until ctx is done.
// New directories are added to the watch set as they appear.
func (l *Library) Watch(ctx context.Context) error {
	if l.root == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	l.watcher = watcher

	if err := l.watchRecursive(l.root); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				l.handleEvent(ev)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("media watcher: %v", err)
			}
		}
	}()
	return nil
}

func (l *Library) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := l.watcher.Add(path); err != nil {
				log.Printf("media watcher: add %s: %v", path, err)
			}
		}
		return nil
	})
}

func (l *Library) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) {
				_ = l.watchRecursive(ev.Name)
				_ = l.Scan()
			}
			return
		}
		if asset, ok := l.describe(ev.Name); ok {
			l.mu.Lock()
			l.assets[asset.ID] = asset
			l.mu.Unlock()
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		id, ok := l.idFor(ev.Name)
		if !ok {
			return
		}
		l.mu.Lock()
		delete(l.assets, id)
		l.mu.Unlock()
	}
}

func (l *Library) Count(ctx context.Context, kind model.MediaType) (int, error) {
	assets, err := l.List(ctx, kind, 0)
	if err != nil {
		return 0, err
	}
	return len(assets), nil
}

// List returns assets of the given kind in stable id order, capped at limit
// when limit is positive.
func (l *Library) List(ctx context.Context, kind model.MediaType, limit int) ([]model.MediaAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.perms != nil && !l.perms.Granted(ScopeMedia) {
		return nil, &PermissionError{Scope: ScopeMedia}
	}

	l.mu.RLock()
	matched := make([]model.MediaAsset, 0, len(l.assets))
	for _, a := range l.assets {
		if kind == model.MediaAll || a.Type == kind {
			matched = append(matched, a)
		}
	}
	l.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (l *Library) Open(asset model.MediaAsset) (io.ReadCloser, error) {
	return os.Open(asset.URI)
}

// describe classifies one file by extension; non-media files are ignored.
func (l *Library) describe(path string) (model.MediaAsset, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	var kind model.MediaType
	switch {
	case photoExts[ext]:
		kind = model.MediaPhoto
	case videoExts[ext]:
		kind = model.MediaVideo
	default:
		return model.MediaAsset{}, false
	}

	info, err := os.Stat(path)
	if err != nil {
		return model.MediaAsset{}, false
	}
	id, ok := l.idFor(path)
	if !ok {
		return model.MediaAsset{}, false
	}

	return model.MediaAsset{
		ID:        id,
		Filename:  filepath.Base(path),
		Type:      kind,
		URI:       path,
		Size:      info.Size(),
		CreatedAt: info.ModTime().UnixMilli(),
	}, true
}

// idFor derives the stable asset id: the path relative to the library root.
func (l *Library) idFor(path string) (string, bool) {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
