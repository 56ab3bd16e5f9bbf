// Package vfs provides the layered virtual file system the bundler compiles
// against: an ordered stack of read-through layers with synchronous and
// asynchronous variants, topped by a single writable layer for user edits.
package vfs

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
)

// NotFoundError is returned whenever every layer in a stack misses a path.
// It is the one error kind the file system raises; nothing else is used for
// flow control.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module not found: %s", e.Path)
}

// Layer is one entry in the read-through stack.
type Layer interface {
	// ReadSync returns the content at path and whether it was found.
	ReadSync(path string) ([]byte, bool)
	// ReadAsync returns the content at path, blocking on external I/O if needed.
	ReadAsync(ctx context.Context, path string) ([]byte, error)
	// ExistsSync reports existence without blocking on external I/O.
	ExistsSync(path string) bool
	// ExistsAsync reports existence, possibly via external I/O.
	ExistsAsync(ctx context.Context, path string) (bool, error)
}

// CacheResetter is implemented by layers that hold derived caches which must
// be dropped on Stack.ResetCache.
type CacheResetter interface {
	ResetCache()
}

// Normalize collapses "." and ".." segments and forces a leading "/" with
// forward-slash separators, matching the FS contract in §4.A of the spec.
func Normalize(p string) string {
	if p == "" {
		return "/"
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "/"
	}
	return cleaned
}

// Stack is an ordered sequence of layers. Index 0 is queried first; writes
// always land on the writable top layer, which is also layer 0.
type Stack struct {
	mu       sync.RWMutex
	layers   []Layer
	writable *MemoryLayer
}

// NewStack builds a stack whose writable top layer is a fresh MemoryLayer,
// followed by the given read-only (or further writable) layers in order.
func NewStack(rest ...Layer) *Stack {
	top := NewMemoryLayer()
	return &Stack{
		layers:   append([]Layer{top}, rest...),
		writable: top,
	}
}

// Push appends a layer to the bottom of the stack (queried last).
func (s *Stack) Push(l Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = append(s.layers, l)
}

// ReadSync returns the first hit across layers, or a NotFoundError.
func (s *Stack) ReadSync(p string) ([]byte, error) {
	p = Normalize(p)
	s.mu.RLock()
	layers := s.layers
	s.mu.RUnlock()
	for _, l := range layers {
		if data, ok := l.ReadSync(p); ok {
			return data, nil
		}
	}
	return nil, &NotFoundError{Path: p}
}

// ReadAsync is like ReadSync but allows layers to perform external I/O.
func (s *Stack) ReadAsync(ctx context.Context, p string) ([]byte, error) {
	p = Normalize(p)
	s.mu.RLock()
	layers := s.layers
	s.mu.RUnlock()
	for _, l := range layers {
		if data, ok := l.ReadSync(p); ok {
			return data, nil
		}
	}
	for _, l := range layers {
		data, err := l.ReadAsync(ctx, p)
		if err == nil {
			return data, nil
		}
	}
	return nil, &NotFoundError{Path: p}
}

// ExistsSync reports whether any layer has the path without external I/O.
func (s *Stack) ExistsSync(p string) bool {
	p = Normalize(p)
	s.mu.RLock()
	layers := s.layers
	s.mu.RUnlock()
	for _, l := range layers {
		if l.ExistsSync(p) {
			return true
		}
	}
	return false
}

// ExistsAsync reports whether any layer has the path, consulting external I/O
// on layers that support it.
func (s *Stack) ExistsAsync(ctx context.Context, p string) (bool, error) {
	p = Normalize(p)
	if s.ExistsSync(p) {
		return true, nil
	}
	s.mu.RLock()
	layers := s.layers
	s.mu.RUnlock()
	for _, l := range layers {
		ok, err := l.ExistsAsync(ctx, p)
		if err == nil && ok {
			return true, nil
		}
	}
	return false, nil
}

// WriteSync writes to the top writable layer.
func (s *Stack) WriteSync(p string, data []byte) {
	s.writable.Write(Normalize(p), data)
}

// ResetCache clears any derived caches held by layers in the stack (the
// resolver cache is separate and owned by the resolver, not the FS).
func (s *Stack) ResetCache() {
	s.mu.RLock()
	layers := s.layers
	s.mu.RUnlock()
	for _, l := range layers {
		if cr, ok := l.(CacheResetter); ok {
			cr.ResetCache()
		}
	}
}
