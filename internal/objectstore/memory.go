package objectstore

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

// MemoryStore keeps objects in process memory. Used in local dev and tests.
type MemoryStore struct {
	bucket  string
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	info ObjectInfo
}

var _ ObjectStore = (*MemoryStore)(nil)

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: map[string]memoryObject{}}
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}

	info := ObjectInfo{
		Handle:      Handle(m.bucket, key),
		Size:        int64(buf.Len()),
		ContentType: contentType,
		UploadedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	m.objects[info.Handle] = memoryObject{data: buf.Bytes(), info: info}
	m.mu.Unlock()

	return &info, nil
}

func (m *MemoryStore) Stat(ctx context.Context, handle string) (*ObjectInfo, error) {
	if _, _, err := ParseHandle(handle); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[handle]
	if !ok {
		return nil, ErrObjectNotFound
	}
	info := obj.info
	return &info, nil
}

// Delete removes the object. A missing object is not an error.
func (m *MemoryStore) Delete(ctx context.Context, handle string) error {
	if _, _, err := ParseHandle(handle); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.objects, handle)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Type() string {
	return "memory"
}
