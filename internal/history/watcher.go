package history

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/blogpush/internal/checksum"
	"github.com/starford/blogpush/internal/storage"
)

// Event kinds passed to an EventCallback.
const (
	EventChanged = "changed"
	EventRemoved = "removed"
)

// EventCallback is called after a watcher-driven change to the documents
// table. kind is EventChanged or EventRemoved; path is vault-relative.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the vault root and keeps the documents
// table current until ctx is cancelled.
//
// New directories are added to the watch list as they appear. Renames only
// report the old path, so they schedule a debounced reconciliation pass.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", vaultRoot))

	emit := func(kind, rel string) {
		if cb != nil {
			cb(kind, rel)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, emit)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					trackDir(db, store, vaultRoot, absPath, logger, emit)
					continue
				}
			}

			if !storage.IsDocument(absPath) {
				continue
			}
			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				cs := checksum.Sum(data)
				if prev, _ := db.GetChecksum(rel); prev == cs {
					continue
				}
				if err := db.UpsertDocument(rel, cs, time.Now()); err != nil {
					logger.Warn("watcher: track failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: changed", slog.String("path", rel))
				emit(EventChanged, rel)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteDocument(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("path", rel))
				emit(EventRemoved, rel)

			case ev.Op&fsnotify.Rename != 0:
				if delErr := db.DeleteDocument(rel); delErr == nil {
					emit(EventRemoved, rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes rows whose file is gone and tracks files that are new or
// changed on disk.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, emit func(kind, rel string)) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if db.DeleteDocument(p) == nil {
				emit(EventRemoved, p)
			}
		}
	}
	for _, m := range metas {
		if checksums[m.Path] == m.Checksum {
			continue
		}
		if db.UpsertDocument(m.Path, m.Checksum, m.UpdatedAt) == nil {
			emit(EventChanged, m.Path)
		}
	}
}

// trackDir records every document found in a newly created directory.
func trackDir(db *DB, store storage.Provider, vaultRoot, dirPath string, logger *slog.Logger, emit func(kind, rel string)) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsDocument(path) {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		data, readErr := store.Read(rel)
		if readErr != nil {
			return nil
		}
		if track(db, rel, data) == nil {
			logger.Debug("watcher: tracked from new dir", slog.String("path", rel))
			emit(EventChanged, rel)
		}
		return nil
	})
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && len(d.Name()) > 0 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		return nil
	})
}
