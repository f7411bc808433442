package model

import (
	"sync"
	"sync/atomic"
)

// Lazy is a process-wide classifier handle. The model is loaded on first use
// and never reloaded; a failed load is remembered and returned on every call.
type Lazy struct {
	get    func() (Classifier, error)
	loaded atomic.Bool
}

// NewLazy returns a handle that loads the model described by cfg on first Get.
func NewLazy(cfg Config) *Lazy {
	return NewLazyFunc(func() (Classifier, error) { return Load(cfg) })
}

// NewLazyFunc returns a handle around an arbitrary loader.
func NewLazyFunc(load func() (Classifier, error)) *Lazy {
	l := &Lazy{}
	l.get = sync.OnceValues(func() (Classifier, error) {
		c, err := load()
		if err == nil {
			l.loaded.Store(true)
		}
		return c, err
	})
	return l
}

// Get returns the shared classifier, loading it if needed.
func (l *Lazy) Get() (Classifier, error) {
	return l.get()
}

// Loaded reports whether the model has been loaded successfully.
func (l *Lazy) Loaded() bool {
	return l.loaded.Load()
}

// Close releases the model if it was loaded.
func (l *Lazy) Close() error {
	if !l.loaded.Load() {
		return nil
	}
	c, err := l.get()
	if err != nil {
		return nil
	}
	return c.Close()
}
