package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Archive is an in-memory scan archive
type Archive struct {
	mu      sync.Mutex
	objects map[string]Object
	// Err, when set, is returned by every Put
	Err error
}

// Object is one archived scan
type Object struct {
	ContentType string
	Data        []byte
}

// NewArchive creates an empty archive
func NewArchive() *Archive {
	return &Archive{objects: make(map[string]Object)}
}

// Put stores data under key, or returns Err when it is set
func (a *Archive) Put(_ context.Context, key, contentType string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Err != nil {
		return a.Err
	}
	a.objects[key] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return nil
}

// PresignGet returns a memory:// link naming the key and lifetime
func (a *Archive) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.objects[key]; !ok {
		return "", errors.New("no such key")
	}
	return fmt.Sprintf("memory://%s?expires=%d", key, int(ttl.Seconds())), nil
}

// Get returns an archived object
func (a *Archive) Get(key string) (Object, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	obj, ok := a.objects[key]
	return obj, ok
}

// Len returns the number of archived objects
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.objects)
}
