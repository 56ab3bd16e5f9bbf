package vfs

import (
	"context"
	"strings"
)

// PackageResolver is the subset of the package registry the package layer
// needs: resolving an already-pinned package@version file path to content.
type PackageResolver interface {
	FetchFile(ctx context.Context, pkg, version, path string) ([]byte, error)
}

// PackageLayer is a read-through layer answering existence and content
// queries for any /node_modules/<name>/<version>/<file> path by consulting
// the package registry. It never supports synchronous reads, since fetching
// a package inherently requires network I/O.
type PackageLayer struct {
	resolver PackageResolver
}

// NewPackageLayer wraps a package registry as a Layer.
func NewPackageLayer(resolver PackageResolver) *PackageLayer {
	return &PackageLayer{resolver: resolver}
}

// ReadSync implements Layer; always a miss.
func (p *PackageLayer) ReadSync(string) ([]byte, bool) { return nil, false }

// ReadAsync implements Layer, parsing the node_modules path into a
// pkg/version/file triple and delegating to the registry.
func (p *PackageLayer) ReadAsync(ctx context.Context, path string) ([]byte, error) {
	pkg, version, file, ok := parseNodeModulesPath(path)
	if !ok {
		return nil, &NotFoundError{Path: path}
	}
	data, err := p.resolver.FetchFile(ctx, pkg, version, file)
	if err != nil {
		return nil, &NotFoundError{Path: path}
	}
	return data, nil
}

// ExistsSync implements Layer; always false.
func (p *PackageLayer) ExistsSync(string) bool { return false }

// ExistsAsync implements Layer.
func (p *PackageLayer) ExistsAsync(ctx context.Context, path string) (bool, error) {
	_, err := p.ReadAsync(ctx, path)
	return err == nil, nil
}

// parseNodeModulesPath splits /node_modules/<pkg>/<version>/<file...> and
// /node_modules/@scope/<pkg>/<version>/<file...> into their components.
func parseNodeModulesPath(path string) (pkg, version, file string, ok bool) {
	const prefix = "/node_modules/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 3)

	if strings.HasPrefix(rest, "@") {
		if len(parts) < 2 {
			return "", "", "", false
		}
		scopeAndName := parts[0] + "/" + parts[1]
		remaining := strings.SplitN(strings.TrimPrefix(rest, parts[0]+"/"+parts[1]+"/"), "/", 2)
		if len(remaining) < 2 {
			return "", "", "", false
		}
		return scopeAndName, remaining[0], remaining[1], true
	}

	if len(parts) < 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
