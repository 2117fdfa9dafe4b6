// Package storage contains the image storage abstraction and its backends:
// a flat local directory and an S3-compatible object store.
package storage

import (
	"context"
	"io"
	"time"
)

// PutObjectOptions define optional parameters for writing objects.
// Size should be the exact number of bytes if known; if unknown, set to -1.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
// Location is the backend-specific reference persisted on the post row: an absolute
// file path for the local backend, the object key for MinIO.
type ObjectInfo struct {
	Name         string
	Location     string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage writes, reads and removes uploaded images.
type Storage interface {
	// Put stores the content under name. It must fail rather than overwrite an existing object.
	Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get opens the object previously returned as ObjectInfo.Location.
	Get(ctx context.Context, location string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes the object at location.
	Delete(ctx context.Context, location string) error
}
