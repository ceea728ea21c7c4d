// Package kvstore provides capacity-bounded key-value slots for the local
// fallback store.
package kvstore

import (
	"context"
	"errors"
)

//go:generate mockgen -source=kvstore.go -destination=../mocks/kvstore/mock_store.go -package=mock_kvstore

var (
	ErrNotFound      = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Store is a persistent key-value slot. Set returns ErrQuotaExceeded when
// the write would exceed the store capacity; the previous value is kept.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// entrySize is what one entry counts against a quota.
func entrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}

// checkQuota reports ErrQuotaExceeded when adding an entry of size to used
// bytes goes over quota. A non-positive quota is unlimited.
func checkQuota(quota, used, size int64) error {
	if quota > 0 && used+size > quota {
		return ErrQuotaExceeded
	}
	return nil
}
