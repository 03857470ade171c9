// Package storage writes media objects to an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	ContentType string
	SizeBytes   int64
}

// Store is an object store addressed by key.
type Store interface {
	// Put writes body under key, replacing any existing object.
	Put(ctx context.Context, key, contentType string, body []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Head returns the object's metadata or ErrNotFound.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// URL returns the public URL for key.
	URL(key string) string
}

// Exists reports whether key is present in s.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
