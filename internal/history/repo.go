package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/blogpush/internal/apperr"
	"github.com/starford/blogpush/internal/models"
)

const publicationColumns = `id, remote_path, local_path, title, sha, checksum, created, published_at`

// RecordPublication appends p to the journal and returns its id.
func (db *DB) RecordPublication(ctx context.Context, p models.Publication) (int64, error) {
	if p.PublishedAt.IsZero() {
		p.PublishedAt = time.Now()
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO publications (remote_path, local_path, title, sha, checksum, created, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.RemotePath, p.LocalPath, p.Title, p.SHA, p.Checksum, p.Created, p.PublishedAt)
	if err != nil {
		return 0, fmt.Errorf("history: record publication: %w", err)
	}
	return res.LastInsertId()
}

// ListPublications returns the most recent publications first.
func (db *DB) ListPublications(ctx context.Context, limit int) ([]models.Publication, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+publicationColumns+`
		FROM publications
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list publications: %w", err)
	}
	defer rows.Close()

	var out []models.Publication
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LastPublication returns the latest publication of a local document, or
// apperr.ErrNotFound.
func (db *DB) LastPublication(ctx context.Context, localPath string) (*models.Publication, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+publicationColumns+`
		FROM publications
		WHERE local_path = ?
		ORDER BY id DESC
		LIMIT 1
	`, localPath)
	p, err := scanPublication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPublication(s scanner) (models.Publication, error) {
	var p models.Publication
	err := s.Scan(&p.ID, &p.RemotePath, &p.LocalPath, &p.Title, &p.SHA, &p.Checksum, &p.Created, &p.PublishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("history: scan publication: %w", err)
	}
	return p, nil
}

// UpsertDocument stores the current checksum of a vault document.
func (db *DB) UpsertDocument(path, checksum string, updatedAt time.Time) error {
	_, err := db.conn.Exec(`
		INSERT INTO documents (path, checksum, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, path, checksum, updatedAt)
	if err != nil {
		return fmt.Errorf("history: upsert document: %w", err)
	}
	return nil
}

// DeleteDocument forgets a vault document. Its publications are kept.
func (db *DB) DeleteDocument(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("history: delete document: %w", err)
	}
	return nil
}

// GetChecksum returns the tracked checksum for a document, or "" if unknown.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("history: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path -> checksum for every tracked document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("history: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Status compares every tracked document with its latest publication.
func (db *DB) Status(ctx context.Context) ([]models.DocumentState, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT d.path, d.checksum, COALESCE(p.checksum, ''), p.published_at
		FROM documents d
		LEFT JOIN publications p
			ON p.id = (SELECT MAX(id) FROM publications WHERE local_path = d.path)
		ORDER BY d.path
	`)
	if err != nil {
		return nil, fmt.Errorf("history: status: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentState
	for rows.Next() {
		var (
			st          models.DocumentState
			publishedAt sql.NullTime
		)
		if err := rows.Scan(&st.Path, &st.Checksum, &st.PublishedChecksum, &publishedAt); err != nil {
			return nil, fmt.Errorf("history: scan status: %w", err)
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			st.PublishedAt = &t
		}
		st.Dirty = st.PublishedChecksum == "" || st.PublishedChecksum != st.Checksum
		out = append(out, st)
	}
	return out, rows.Err()
}
