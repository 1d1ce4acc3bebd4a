package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MrSnakeDoc/gallery/internal/store"
)

// Store keeps blobs in a map. It backs tests and single-process deployments
// that do not need the feed to survive a restart.
type Store struct {
	mu    sync.RWMutex
	blobs map[string]*store.Object
}

// New creates an empty memory store.
func New() *Store {
	return &Store{
		blobs: make(map[string]*store.Object),
	}
}

// Get returns a copy of the named blob.
func (s *Store) Get(_ context.Context, name string) (*store.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.blobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	return copyObject(obj), nil
}

func (s *Store) Put(_ context.Context, name string, data []byte, contentType string) error {
	if err := store.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[name] = newObject(name, data, contentType)
	return nil
}

func (s *Store) CompareAndSwap(_ context.Context, name, expected string, data []byte, contentType string) error {
	if err := store.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := ""
	if obj, ok := s.blobs[name]; ok {
		current = obj.Revision
	}
	if current != expected {
		return fmt.Errorf("%w: %s", store.ErrConflict, name)
	}

	s.blobs[name] = newObject(name, data, contentType)
	return nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.blobs))
	for name := range s.blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func newObject(name string, data []byte, contentType string) *store.Object {
	if contentType == "" {
		contentType = store.ContentTypeDefault
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &store.Object{
		Name:        name,
		Data:        buf,
		ContentType: contentType,
		Revision:    store.RevisionOf(buf),
	}
}

func copyObject(o *store.Object) *store.Object {
	c := *o
	c.Data = make([]byte, len(o.Data))
	copy(c.Data, o.Data)
	return &c
}
