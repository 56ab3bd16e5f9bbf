package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"bundlr.dev/bundlr/manifest"
)

// npmMeta is the subset of the npm registry's package document used to
// resolve a semver range to a concrete version.
type npmMeta struct {
	Name     string            `json:"name"`
	DistTags map[string]string `json:"dist-tags"`
	Versions map[string]struct {
		Version string `json:"version"`
	} `json:"versions"`
}

// Registry resolves npm specifiers to concrete files, fetching package
// manifests and their contents through an ordered chain of CDN providers and
// caching both version resolutions and parsed manifests.
type Registry struct {
	fetcher    Fetcher
	npmBaseURL string
	chain      []Provider
	versions   *versionCache
	manifests  *manifestCache
}

// Option configures a Registry.
type Option func(*Registry)

// WithProviderChain overrides the CDN fallback order (default DefaultChain).
func WithProviderChain(chain ...Provider) Option {
	return func(r *Registry) { r.chain = chain }
}

// WithNPMRegistryURL overrides the metadata registry used for version
// resolution (default https://registry.npmjs.org).
func WithNPMRegistryURL(url string) Option {
	return func(r *Registry) { r.npmBaseURL = strings.TrimSuffix(url, "/") }
}

// WithManifestCacheSize bounds the number of parsed manifests retained.
func WithManifestCacheSize(n int) Option {
	return func(r *Registry) { r.manifests = newManifestCache(n) }
}

// New builds a Registry backed by fetcher, trying providers from
// DefaultChain unless overridden.
func New(fetcher Fetcher, opts ...Option) *Registry {
	r := &Registry{
		fetcher:    fetcher,
		npmBaseURL: "https://registry.npmjs.org",
		chain:      DefaultChain,
		versions:   newVersionCache(),
		manifests:  newManifestCache(200),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveVersion resolves a semver range (or dist-tag, or "latest") for pkg
// to a concrete published version, consulting the npm registry's metadata
// endpoint and caching the result.
func (r *Registry) ResolveVersion(ctx context.Context, pkg, rng string) (string, error) {
	if rng == "" {
		rng = "latest"
	}
	if v, ok := r.versions.get(pkg, rng); ok {
		return v, nil
	}

	url := fmt.Sprintf("%s/%s", r.npmBaseURL, pkg)
	data, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("resolve %s@%s: %w", pkg, rng, err)
	}
	var meta npmMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", fmt.Errorf("resolve %s@%s: parse registry metadata: %w", pkg, rng, err)
	}

	resolved, err := resolveFromMeta(&meta, rng)
	if err != nil {
		return "", fmt.Errorf("resolve %s@%s: %w", pkg, rng, err)
	}
	r.versions.set(pkg, rng, resolved)
	return resolved, nil
}

func resolveFromMeta(meta *npmMeta, rng string) (string, error) {
	if tag, ok := meta.DistTags[rng]; ok {
		return tag, nil
	}
	if _, ok := meta.Versions[rng]; ok {
		return rng, nil
	}
	versions := make([]string, 0, len(meta.Versions))
	for v := range meta.Versions {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return compareSemver(versions[i], versions[j]) < 0 })

	matched := matchVersion(versions, rng)
	if matched == "" {
		return "", fmt.Errorf("no version matching %q", rng)
	}
	return matched, nil
}

// FetchManifest retrieves and parses the package.json of pkg@version, trying
// each provider in the chain in order until one succeeds. It is loaded at
// most once per package@version even under concurrent requests.
func (r *Registry) FetchManifest(ctx context.Context, pkg, version string) (*manifest.Package, error) {
	return r.manifests.getOrLoad(pkg, version, func() (*manifest.Package, error) {
		var lastErr error
		for _, p := range r.chain {
			data, err := r.fetcher.Fetch(ctx, p.manifestURL(pkg, version))
			if err != nil {
				lastErr = err
				continue
			}
			pkgJSON, err := manifest.Parse(data)
			if err != nil {
				lastErr = err
				continue
			}
			return pkgJSON, nil
		}
		return nil, fmt.Errorf("fetch manifest %s@%s: all providers failed: %w", pkg, version, lastErr)
	})
}

// FetchFile retrieves the raw bytes of a file within pkg@version, trying
// each provider in the chain in order.
func (r *Registry) FetchFile(ctx context.Context, pkg, version, path string) ([]byte, error) {
	var lastErr error
	for _, p := range r.chain {
		data, err := r.fetcher.Fetch(ctx, p.fileURL(pkg, version, path))
		if err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}
	return nil, fmt.Errorf("fetch %s@%s/%s: all providers failed: %w", pkg, version, path, lastErr)
}

// ResetCache drops all cached manifests and version resolutions, forcing
// the next lookup for every package to hit the network again.
func (r *Registry) ResetCache() {
	r.manifests.clear()
	r.versions = newVersionCache()
}
