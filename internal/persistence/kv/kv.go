// Package kv provides the key-value stores that hold the saved game blob.
package kv

import "context"

// Store is addressed by string keys holding string values. Get reports
// ok=false when the key has never been written.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
