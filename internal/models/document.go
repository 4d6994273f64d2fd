// Package models defines the domain types shared by blogpush packages.
package models

import "time"

// Document is a local editable text owned by the vault.
// Path is vault-relative and empty for in-memory selections.
type Document struct {
	Path  string `json:"path,omitempty"`
	Title string `json:"title,omitempty"`
	Text  string `json:"-"`
}

// DocumentMetadata is a lightweight representation returned by vault listings.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Publication records one successful push to the remote store.
type Publication struct {
	ID          int64     `json:"id"`
	RemotePath  string    `json:"remote_path"`
	LocalPath   string    `json:"local_path,omitempty"`
	Title       string    `json:"title"`
	SHA         string    `json:"sha"`
	Checksum    string    `json:"checksum,omitempty"`
	Created     bool      `json:"created"`
	PublishedAt time.Time `json:"published_at"`
}

// DocumentState compares a vault document with its last publication.
type DocumentState struct {
	Path              string     `json:"path"`
	Checksum          string     `json:"checksum"`
	PublishedChecksum string     `json:"published_checksum,omitempty"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
	Dirty             bool       `json:"dirty"`
}
