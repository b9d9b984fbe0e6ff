package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// BlobStore is the object storage contract consumed by the engine.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	DeleteBatch(ctx context.Context, keys []string) error
	SignPutURL(ctx context.Context, key string, contentType string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

var errEmptyKey = errors.New("media: empty storage key")

// MemoryBlobStore keeps objects in process memory. It backs local development
// and tests; signed URLs are unsigned and only carry the expiry.
type MemoryBlobStore struct {
	mu            sync.RWMutex
	objects       map[string]memoryObject
	publicBaseURL string
	clock         func() time.Time
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryBlobStore constructs an empty in-memory store.
func NewMemoryBlobStore(publicBaseURL string) *MemoryBlobStore {
	return &MemoryBlobStore{
		objects:       make(map[string]memoryObject),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		clock:         time.Now,
	}
}

func (s *MemoryBlobStore) Put(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
	if strings.TrimSpace(key) == "" {
		return errEmptyKey
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("media: read body: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, contentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *MemoryBlobStore) DeleteBatch(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	for _, key := range keys {
		delete(s.objects, key)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryBlobStore) SignPutURL(_ context.Context, key string, _ string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errEmptyKey
	}
	expires := s.clock().Add(ttl).Unix()
	return fmt.Sprintf("%s?expires=%d", s.PublicURL(key), expires), nil
}

func (s *MemoryBlobStore) PublicURL(key string) string {
	return publicURLFor(s.publicBaseURL, key)
}

// Has reports whether an object is stored under key.
func (s *MemoryBlobStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

// Open returns the stored bytes for key.
func (s *MemoryBlobStore) Open(key string) (io.Reader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	object, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return bytes.NewReader(object.data), true
}

func publicURLFor(base, key string) string {
	trimmed := strings.TrimRight(base, "/")
	if trimmed == "" {
		return "/" + escapeKey(key)
	}
	return trimmed + "/" + escapeKey(key)
}
