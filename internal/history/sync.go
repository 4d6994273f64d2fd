package history

import (
	"log/slog"
	"time"

	"github.com/starford/blogpush/internal/checksum"
	"github.com/starford/blogpush/internal/storage"
)

// Sync walks the vault and brings the documents table up to date:
//   - new/changed documents get their checksum recorded
//   - documents removed from disk are forgotten
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if checksums[m.Path] == m.Checksum {
			continue
		}
		if err := db.UpsertDocument(m.Path, m.Checksum, m.UpdatedAt); err != nil {
			logger.Warn("sync: track failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: tracked", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}
	return nil
}

// track records the checksum of data for path.
func track(db *DB, path string, data []byte) error {
	return db.UpsertDocument(path, checksum.Sum(data), time.Now())
}
