package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/savaki/stage-pipeline/internal/errors"
)

// Memory is an in-process Store used for local runs and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	// Now stamps LastModified; defaults to time.Now.
	Now func() time.Time

	// FailDelete makes Move leave the source behind, simulating a crash
	// between copy and delete.
	FailDelete bool
}

type memoryObject struct {
	data         []byte
	lastModified time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects: map[string]memoryObject{},
		Now:     time.Now,
	}
}

func memoryKey(bucket, key string) string {
	return bucket + "/" + key
}

func (m *Memory) Read(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[memoryKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", errors.ErrFileNotFound, bucket, key)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *Memory) Write(_ context.Context, bucket, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[memoryKey(bucket, key)] = memoryObject{
		data:         append([]byte(nil), data...),
		lastModified: m.Now(),
	}
	return nil
}

func (m *Memory) Move(_ context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := memoryKey(srcBucket, srcKey)
	obj, ok := m.objects[src]
	if !ok {
		return fmt.Errorf("%w: %s/%s", errors.ErrFileNotFound, srcBucket, srcKey)
	}

	dst := memoryKey(dstBucket, dstKey)
	if src == dst {
		return nil
	}

	m.objects[dst] = memoryObject{data: obj.data, lastModified: m.Now()}
	if !m.FailDelete {
		delete(m.objects, src)
	}
	return nil
}

func (m *Memory) List(_ context.Context, bucket, prefix string) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var objects []Object
	full := memoryKey(bucket, prefix)
	for k, obj := range m.objects {
		if !strings.HasPrefix(k, full) {
			continue
		}
		objects = append(objects, Object{
			Key:          strings.TrimPrefix(k, bucket+"/"),
			Size:         int64(len(obj.data)),
			LastModified: obj.lastModified,
		})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})
	return objects, nil
}

func (m *Memory) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[memoryKey(bucket, key)]
	return ok, nil
}

// Touch overrides the LastModified time of an existing object.
func (m *Memory) Touch(bucket, key string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memoryKey(bucket, key)
	if obj, ok := m.objects[k]; ok {
		obj.lastModified = t
		m.objects[k] = obj
	}
}
