// Package kv persists small string values such as the session credential.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// Store is the key-value contract the session store relies on.
// Put writes every entry or none of them.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, entries map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
