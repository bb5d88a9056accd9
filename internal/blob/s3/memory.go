package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// MemoryBlob is an in-process blob backend used when S3 is disabled.
type MemoryBlob struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// NewMemoryBlob creates an empty MemoryBlob.
func NewMemoryBlob() *MemoryBlob {
	return &MemoryBlob{objects: make(map[string]memObject)}
}

// Put stores data at path.
func (m *MemoryBlob) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("s3blob: memory put %s: %w", path, err)
	}
	m.mu.Lock()
	m.objects[path] = memObject{data: b, contentType: contentType, modified: time.Now().UTC()}
	m.mu.Unlock()
	return nil
}

// Get returns the object at path.
func (m *MemoryBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[path]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("s3blob: get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// List returns objects under prefix in key order.
func (m *MemoryBlob) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.BlobInfo
	for path, obj := range m.objects {
		if strings.HasPrefix(path, prefix) {
			out = append(out, domain.BlobInfo{
				Path:         path,
				Size:         int64(len(obj.data)),
				ContentType:  obj.contentType,
				LastModified: obj.modified,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Exists reports whether path is stored.
func (m *MemoryBlob) Exists(_ context.Context, path string) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[path]
	m.mu.RUnlock()
	return ok, nil
}

var (
	_ domain.BlobWriter = (*MemoryBlob)(nil)
	_ domain.BlobReader = (*MemoryBlob)(nil)
)
