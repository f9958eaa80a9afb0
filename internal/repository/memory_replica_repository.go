package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/unclebandit/spinwin-backend/internal/model"
)

type memoryObject struct {
	meta    model.ReplicaObject
	content []byte
}

// MemoryReplicaObjectRepository is a process-local remote store for
// development and tests.
type MemoryReplicaObjectRepository struct {
	mu      sync.Mutex
	nextID  int
	objects map[string]*memoryObject
}

func NewMemoryReplicaObjectRepository() *MemoryReplicaObjectRepository {
	return &MemoryReplicaObjectRepository{objects: make(map[string]*memoryObject)}
}

func (m *MemoryReplicaObjectRepository) FindByName(_ context.Context, parent, name string) (*model.ReplicaObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *model.ReplicaObject
	for _, o := range m.objects {
		if o.meta.Parent != parent || o.meta.Name != name {
			continue
		}
		// lowest id first, matching the postgres ordering
		if found == nil || idLess(o.meta.ID, found.ID) {
			meta := o.meta
			found = &meta
		}
	}
	return found, nil
}

func (m *MemoryReplicaObjectRepository) Create(_ context.Context, parent, name string, content []byte) (*model.ReplicaObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.objects {
		if o.meta.Parent == parent && o.meta.Name == name {
			o.content = bytes.Clone(content)
			o.meta.Size = int64(len(content))
			o.meta.UpdatedAt = time.Now().UTC()
			meta := o.meta
			return &meta, nil
		}
	}

	m.nextID++
	obj := &memoryObject{
		meta: model.ReplicaObject{
			ID:        strconv.Itoa(m.nextID),
			Parent:    parent,
			Name:      name,
			Size:      int64(len(content)),
			UpdatedAt: time.Now().UTC(),
		},
		content: bytes.Clone(content),
	}
	m.objects[obj.meta.ID] = obj
	meta := obj.meta
	return &meta, nil
}

func (m *MemoryReplicaObjectRepository) Update(_ context.Context, id string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[id]
	if !ok {
		return fmt.Errorf("replica object %s not found", id)
	}
	obj.content = bytes.Clone(content)
	obj.meta.Size = int64(len(content))
	obj.meta.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryReplicaObjectRepository) Open(_ context.Context, id string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[id]
	if !ok {
		return nil, fmt.Errorf("replica object %s not found", id)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(obj.content))), nil
}

func (m *MemoryReplicaObjectRepository) Ping(context.Context) error {
	return nil
}

// Count returns how many objects are stored.
func (m *MemoryReplicaObjectRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func idLess(a, b string) bool {
	ai, _ := strconv.Atoi(a)
	bi, _ := strconv.Atoi(b)
	return ai < bi
}

var _ ReplicaObjectRepositoryInterface = (*MemoryReplicaObjectRepository)(nil)
