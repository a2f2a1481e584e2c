// Package cache holds the process-lifetime read-mostly caches used by the analytics core.
package cache

import (
	"context"
	"sync/atomic"
)

// Loader fetches the value for a Lazy cache.
type Loader[T any] func(ctx context.Context) (T, error)

// Lazy is a get-or-populate cache that is filled on first successful use and
// never expires. Concurrent first use may run the loader more than once; the
// last successful load wins. Failed loads are not cached.
type Lazy[T any] struct {
	value  atomic.Pointer[T]
	loader Loader[T]
}

// NewLazy returns an empty cache backed by loader.
func NewLazy[T any](loader Loader[T]) *Lazy[T] {
	return &Lazy[T]{loader: loader}
}

// NewSeeded returns a cache that already holds v and never calls a loader.
func NewSeeded[T any](v T) *Lazy[T] {
	l := &Lazy[T]{}
	l.value.Store(&v)
	return l
}

// Get returns the cached value, loading it if absent.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	if v := l.value.Load(); v != nil {
		return *v, nil
	}

	var zero T
	if l.loader == nil {
		return zero, ErrNoLoader
	}

	v, err := l.loader(ctx)
	if err != nil {
		return zero, err
	}
	l.value.Store(&v)
	return v, nil
}

// Loaded reports whether a value is present.
func (l *Lazy[T]) Loaded() bool {
	return l.value.Load() != nil
}
