package vfs

import "context"

// AsyncResolver is the host-side collaborator that answers file requests the
// bundler cannot satisfy locally (e.g. a parent frame serving a real
// filesystem over a request/response channel). It is an external interface;
// the bridge layer below only depends on this shape.
type AsyncResolver interface {
	ResolveFile(ctx context.Context, path string) ([]byte, error)
}

// AsyncBridgeLayer delegates misses from upstream layers to an AsyncResolver.
// Synchronous reads are never satisfied by this layer per §4.A: it exists
// purely to extend ReadAsync/ExistsAsync.
type AsyncBridgeLayer struct {
	resolver AsyncResolver
}

// NewAsyncBridgeLayer wraps a host-side resolver as a Layer.
func NewAsyncBridgeLayer(resolver AsyncResolver) *AsyncBridgeLayer {
	return &AsyncBridgeLayer{resolver: resolver}
}

// ReadSync implements Layer; always a miss, synchronous reads are unsupported.
func (b *AsyncBridgeLayer) ReadSync(string) ([]byte, bool) { return nil, false }

// ReadAsync implements Layer.
func (b *AsyncBridgeLayer) ReadAsync(ctx context.Context, path string) ([]byte, error) {
	data, err := b.resolver.ResolveFile(ctx, path)
	if err != nil {
		return nil, &NotFoundError{Path: path}
	}
	return data, nil
}

// ExistsSync implements Layer; always false, see ReadSync.
func (b *AsyncBridgeLayer) ExistsSync(string) bool { return false }

// ExistsAsync implements Layer.
func (b *AsyncBridgeLayer) ExistsAsync(ctx context.Context, path string) (bool, error) {
	_, err := b.resolver.ResolveFile(ctx, path)
	return err == nil, nil
}
