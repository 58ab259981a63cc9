package testutil

import (
	"testing"

	"github.com/garrettladley/slackerp/internal/storage"
)

// NewStore returns a memory backend closed when t finishes.
func NewStore(t *testing.T) *storage.MemoryBackend {
	t.Helper()
	b := storage.NewMemoryBackend()
	t.Cleanup(func() { _ = b.Close() })
	return b
}
