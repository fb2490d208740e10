// Package storage holds document content, partitioned by owner.
// An object is addressed by (owner, name); the owner maps to exactly one
// partition and no operation reaches outside it.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"taxdocs/internal/model"
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrAlreadyExists = errors.New("object already exists")
	ErrIOFailure     = errors.New("storage i/o failure")
	ErrInvalidKey    = errors.New("invalid object key")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known, or -1 if unknown.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Owner        string
	Name         string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Key is the object's partition-relative path, "<owner>/<name>".
func (o ObjectInfo) Key() string {
	return o.Owner + "/" + o.Name
}

// Storage is an owner-partitioned object store. Implementations must be safe
// for concurrent use; a Get never observes a partially written object.
type Storage interface {
	// Put stores r under (owner, name). It never overwrites: an existing
	// object yields ErrAlreadyExists.
	Put(ctx context.Context, owner, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get opens an object for streaming. The caller closes the reader.
	Get(ctx context.Context, owner, name string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object. A missing object yields ErrNotFound; an object
	// that vanishes during the remove is treated as removed.
	Delete(ctx context.Context, owner, name string) error
	// Exists reports whether (owner, name) holds an object.
	Exists(ctx context.Context, owner, name string) (bool, error)
}

// checkKey rejects keys that are not plain segments. Hidden names are refused
// so staged uploads are never readable or deletable through the store.
func checkKey(owner, name string) error {
	if !model.ValidPathSegment(owner) || !model.ValidPathSegment(name) {
		return ErrInvalidKey
	}
	return nil
}
