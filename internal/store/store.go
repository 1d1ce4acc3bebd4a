// Package store defines the blob storage the gallery publishes into.
//
// Blobs are addressed by name ("atom.xml", "Sample.1.0.0.vsix", ...). Every
// stored object carries a revision, the hex SHA-256 of its content, which
// CompareAndSwap uses to make the feed's load-merge-store cycle atomic.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by Get when no blob has the requested name.
	ErrNotFound = errors.New("blob not found")
	// ErrConflict is returned by CompareAndSwap when the stored revision moved.
	ErrConflict = errors.New("blob revision conflict")
	// ErrInvalidName rejects empty names and names that try to escape the store.
	ErrInvalidName = errors.New("invalid blob name")
)

// Content types written by the gallery.
const (
	ContentTypeFeed    = "application/atom+xml"
	ContentTypePackage = "application/vsix"
	ContentTypeIcon    = "image/png"
	ContentTypeDefault = "application/octet-stream"
)

// Object is a stored blob.
type Object struct {
	Name        string
	Data        []byte
	ContentType string
	Revision    string
}

// Store is the blob storage contract.
type Store interface {
	// Get returns the named blob or ErrNotFound.
	Get(ctx context.Context, name string) (*Object, error)

	// Put stores data under name unconditionally.
	Put(ctx context.Context, name string, data []byte, contentType string) error

	// CompareAndSwap stores data under name only if the current revision equals
	// expected. An empty expected revision means the blob must not exist yet.
	// A mismatch returns ErrConflict and leaves the blob untouched.
	CompareAndSwap(ctx context.Context, name, expected string, data []byte, contentType string) error

	// List returns the names of all stored blobs, sorted.
	List(ctx context.Context) ([]string, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// RevisionOf returns the revision of data.
func RevisionOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateName rejects names that cannot be stored or served.
func ValidateName(name string) error {
	switch {
	case name == "":
		return ErrInvalidName
	case strings.ContainsAny(name, `/\`):
		return ErrInvalidName
	case name == "." || name == "..":
		return ErrInvalidName
	}
	return nil
}
