package storage

import (
	"context"
	"io"
	"time"
)

// ObjectBrowser defines the read-only operations behind the storage browser
type ObjectBrowser interface {
	// List returns one page of objects under a prefix
	List(ctx context.Context, opts ListOptions) (*ObjectPage, error)

	// Open streams an object's content
	Open(ctx context.Context, key string) (*Object, error)

	// GetURL returns the URL for accessing an object
	GetURL(key string) string

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// Ping checks that the bucket is reachable
	Ping(ctx context.Context) error
}

// ListOptions narrows a listing. Cursor is the NextCursor of a previous page.
type ListOptions struct {
	Prefix    string
	Delimiter string
	Limit     int
	Cursor    string
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	URL          string    `json:"url"`
}

// ObjectPage is one page of a listing.
type ObjectPage struct {
	Objects    []ObjectInfo `json:"objects"`
	Prefixes   []string     `json:"prefixes"`
	NextCursor string       `json:"nextCursor,omitempty"`
	Truncated  bool         `json:"truncated"`
}

// Object is an open object body. Callers must close Body.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}
