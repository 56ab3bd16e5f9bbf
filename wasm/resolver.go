//go:build js && wasm

package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"bundlr.dev/bundlr/bundler"
)

// asyncResolver implements vfs.AsyncResolver by round-tripping a
// "fs-request" event to the host and waiting for the matching "fs-response"
// inbound message, keyed by a locally generated request id.
type asyncResolver struct {
	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[string]chan bundler.FSResponse
	emit    func(kind string, payload any)
}

func newAsyncResolver() *asyncResolver {
	return &asyncResolver{pending: make(map[string]chan bundler.FSResponse)}
}

func (r *asyncResolver) ResolveFile(ctx context.Context, path string) ([]byte, error) {
	id := fmt.Sprintf("%d", r.nextID.Add(1))
	ch := make(chan bundler.FSResponse, 1)

	r.mu.Lock()
	r.pending[id] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	r.emit("fs-request", bundler.FSRequest{RequestID: id, Path: path})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-ch:
		if resp.Error != "" {
			return nil, fmt.Errorf("%s", resp.Error)
		}
		return resp.Result, nil
	}
}

func (r *asyncResolver) resolve(resp bundler.FSResponse) {
	r.mu.Lock()
	ch, ok := r.pending[resp.RequestID]
	r.mu.Unlock()
	if !ok {
		return
	}
	ch <- resp
}
