// Package objstore is the blob store shards and training artifacts are
// written to.
package objstore

import (
	"context"
	"errors"
	"path"
	"strings"
)

var ErrNotFound = errors.New("object not found")

// Store keeps whole objects under slash-separated keys. List returns keys in
// lexical order.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Join builds a clean object key from parts.
func Join(parts ...string) string {
	return strings.TrimLeft(path.Join(parts...), "/")
}

func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".json":
		return "application/json"
	case ".bin":
		return "application/octet-stream"
	default:
		return ""
	}
}
