package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// UploadsPrefix is where MemoryStorage objects are served from.
const UploadsPrefix = "/uploads"

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStorage keeps objects in process memory.
// Used for local development without MinIO and in tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]memoryObject),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *MemoryStorage) Save(ctx context.Context, path string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[path]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, path)
	return nil
}

// DeleteMany ignores missing objects, like S3 does.
func (s *MemoryStorage) DeleteMany(ctx context.Context, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range paths {
		delete(s.objects, p)
	}
	return nil
}

func (s *MemoryStorage) URL(path string) string {
	return s.baseURL + "/" + path
}

func (s *MemoryStorage) PathFromURL(url string) (string, bool) {
	return pathFromURL(s.baseURL, url)
}

// Exists reports whether an object is stored at path.
func (s *MemoryStorage) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[path]
	return ok
}

// Len returns the number of stored objects.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ServeHTTP serves stored objects below UploadsPrefix.
func (s *MemoryStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, UploadsPrefix+"/")

	s.mu.RLock()
	obj, ok := s.objects[path]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", obj.contentType)
	w.Header().Set("Cache-Control", "max-age=3600")
	_, _ = io.Copy(w, bytes.NewReader(obj.data))
}
