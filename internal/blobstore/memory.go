package blobstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process ObjectStore used by tests and local development.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]map[string]memoryObject
}

type memoryObject struct {
	data         []byte
	lastModified time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{buckets: map[string]map[string]memoryObject{}}
}

func (m *Memory) bucket(name string) map[string]memoryObject {
	b, ok := m.buckets[name]
	if !ok {
		b = map[string]memoryObject{}
		m.buckets[name] = b
	}
	return b
}

func (m *Memory) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	m.bucket(bucket)[key] = memoryObject{data: copied, lastModified: time.Now()}
	return nil
}

func (m *Memory) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.bucket(bucket)[key]
	if !ok {
		return nil, fmt.Errorf("get object %q: %w", key, ErrNotFound)
	}
	copied := make([]byte, len(obj.data))
	copy(copied, obj.data)
	return copied, nil
}

func (m *Memory) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bucket(bucket)[key]
	return ok, nil
}

func (m *Memory) Stat(_ context.Context, bucket, key string) (ObjectMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.bucket(bucket)[key]
	if !ok {
		return ObjectMeta{}, fmt.Errorf("stat object %q: %w", key, ErrNotFound)
	}
	return ObjectMeta{Key: key, Size: int64(len(obj.data)), LastModified: obj.lastModified}, nil
}

func (m *Memory) List(_ context.Context, bucket, prefix string) ([]ObjectMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ObjectMeta, 0, 8)
	for key, obj := range m.bucket(bucket) {
		if strings.HasPrefix(key, prefix) {
			result = append(result, ObjectMeta{Key: key, Size: int64(len(obj.data)), LastModified: obj.lastModified})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (m *Memory) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bucket(bucket), key)
	return nil
}

func (m *Memory) Copy(_ context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.bucket(srcBucket)[srcKey]
	if !ok {
		return fmt.Errorf("copy object %q: %w", srcKey, ErrNotFound)
	}
	copied := make([]byte, len(obj.data))
	copy(copied, obj.data)
	m.bucket(dstBucket)[dstKey] = memoryObject{data: copied, lastModified: time.Now()}
	return nil
}

// SetLastModified backdates an object, used by retention tests.
func (m *Memory) SetLastModified(bucket, key string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.bucket(bucket)[key]; ok {
		obj.lastModified = t
		m.bucket(bucket)[key] = obj
	}
}
