// Package storage defines the local vault file-system abstraction.
package storage

import "github.com/starford/blogpush/internal/models"

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every document under dir (relative to vault root).
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
}

// DocumentExtensions lists the file extensions treated as documents.
var DocumentExtensions = []string{".md", ".mdx"}
