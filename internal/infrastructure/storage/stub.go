package storage

import (
	"context"
	"sync"

	resetapp "github.com/a2zsellr/backend/internal/application/reset"
)

var _ resetapp.GalleryStorage = (*StubGalleryStorage)(nil)

// StubGalleryStorage records deleted keys in memory. It is used when object
// storage is not configured, where gallery rows only hold external URLs.
type StubGalleryStorage struct {
	mu      sync.Mutex
	deleted []string
	// FailKeys makes DeleteObject fail for the listed keys
	FailKeys map[string]error
}

// NewStubGalleryStorage creates a new StubGalleryStorage
func NewStubGalleryStorage() *StubGalleryStorage {
	return &StubGalleryStorage{}
}

// DeleteObject records the key
func (s *StubGalleryStorage) DeleteObject(_ context.Context, storageKey string) error {
	if storageKey == "" {
		return ErrStorageKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailKeys[storageKey]; ok {
		return err
	}
	s.deleted = append(s.deleted, storageKey)
	return nil
}

// Deleted returns the keys deleted so far
func (s *StubGalleryStorage) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.deleted))
	copy(out, s.deleted)
	return out
}
