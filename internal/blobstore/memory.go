package blobstore

import (
	"context"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
	expires     time.Time
}

// Memory is an in-memory Store for tests. Its clock is injectable so expiry
// behavior can be exercised without sleeping.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memObject

	// Now reports the current time; defaults to time.Now.
	Now func() time.Time
}

// NewMemory creates an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject), Now: time.Now}
}

func (s *Memory) Put(_ context.Context, id string, data []byte, opts PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[id] = memObject{
		data:        buf,
		contentType: opts.ContentType,
		expires:     s.Now().Add(opts.TTL),
	}
	return nil
}

func (s *Memory) Get(_ context.Context, id string) (*Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[id]
	s.mu.RUnlock()
	if !ok || !obj.expires.After(s.Now()) {
		return nil, ErrNotFound
	}
	// Copy out so callers cannot mutate the stored bytes.
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return &Object{
		Data:        data,
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
		Expires:     obj.expires,
	}, nil
}

func (s *Memory) Stat(_ context.Context, id string) (*Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[id]
	s.mu.RUnlock()
	if !ok || !obj.expires.After(s.Now()) {
		return nil, ErrNotFound
	}
	return &Object{
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
		Expires:     obj.expires,
	}, nil
}

func (s *Memory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, id)
	return nil
}
