// Package blobstore stores and retrieves raw key content with per-object
// TTL expiry and small attached metadata. It has no query capability; the
// catalog owns listing and aggregates.
package blobstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an object does not exist or has expired.
// Expired objects are indistinguishable from absent ones through this
// interface; that property is what lets the catalog sweep lazily.
var ErrNotFound = errors.New("blobstore: object not found")

// Object is a stored value with its metadata.
type Object struct {
	Data        []byte
	ContentType string
	Size        int64
	Expires     time.Time
}

// PutOptions carries the metadata attached to a stored object.
type PutOptions struct {
	ContentType string
	TTL         time.Duration
}

// Store is the object-store port consumed by the service layer.
type Store interface {
	// Put stores the content under id, overwriting any previous object.
	Put(ctx context.Context, id string, data []byte, opts PutOptions) error

	// Get returns the content and metadata together, or ErrNotFound.
	Get(ctx context.Context, id string) (*Object, error)

	// Stat returns metadata only (Data is nil), or ErrNotFound.
	Stat(ctx context.Context, id string) (*Object, error)

	// Delete removes the object. Deleting an absent object is not an error.
	Delete(ctx context.Context, id string) error
}
