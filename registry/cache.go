package registry

import (
	"sync"

	"bundlr.dev/bundlr/manifest"
)

// manifestCache caches parsed manifests keyed by package@version, loading
// each key at most once even under concurrent callers.
type manifestCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
}

type cacheEntry struct {
	once sync.Once
	pkg  *manifest.Package
	err  error
}

func newManifestCache(maxSize int) *manifestCache {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &manifestCache{entries: make(map[string]*cacheEntry), maxSize: maxSize}
}

func cacheKey(name, version string) string { return name + "@" + version }

func (c *manifestCache) getOrLoad(name, version string, loader func() (*manifest.Package, error)) (*manifest.Package, error) {
	key := cacheKey(name, version)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		entry, ok = c.entries[key]
		if !ok {
			entry = &cacheEntry{}
			c.entries[key] = entry
			if len(c.order) >= c.maxSize {
				oldest := c.order[0]
				c.order = c.order[1:]
				delete(c.entries, oldest)
			}
			c.order = append(c.order, key)
		}
		c.mu.Unlock()
	}

	entry.once.Do(func() {
		entry.pkg, entry.err = loader()
	})
	return entry.pkg, entry.err
}

func (c *manifestCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

// versionCache memoizes resolved semver ranges, separately from manifests,
// since a range (e.g. "^1.2.0") can resolve differently as the upstream
// registry publishes new versions between bundler runs.
type versionCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func newVersionCache() *versionCache {
	return &versionCache{entries: make(map[string]string)}
}

func (c *versionCache) get(name, rng string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[cacheKey(name, rng)]
	return v, ok
}

func (c *versionCache) set(name, rng, resolved string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(name, rng)] = resolved
}
