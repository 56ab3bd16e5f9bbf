// Package resolver implements Node-style module specifier resolution
// against the bundler's virtual file system: relative and absolute paths,
// extension and index probing, and bare package specifiers resolved through
// package.json's exports/browser/main fields.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"bundlr.dev/bundlr/manifest"
	"bundlr.dev/bundlr/vfs"
)

// FileSystem is the subset of vfs.Stack the resolver needs.
type FileSystem interface {
	ExistsSync(path string) bool
	ExistsAsync(ctx context.Context, path string) (bool, error)
	ReadSync(path string) ([]byte, error)
}

// PackageSource resolves a bare specifier's package name to a manifest,
// pinning a semver range to a concrete version along the way.
type PackageSource interface {
	ResolveVersion(ctx context.Context, pkg, rng string) (string, error)
	FetchManifest(ctx context.Context, pkg, version string) (*manifest.Package, error)
}

// NotFoundError is returned when no candidate path exists for a specifier.
type NotFoundError struct {
	Importer   string
	Specifier  string
	Candidates []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot resolve %q from %q (tried: %s)", e.Specifier, e.Importer, strings.Join(e.Candidates, ", "))
}

// Resolver resolves import/require specifiers to concrete vfs paths. It is
// built with the builder pattern: each WithX method returns a new, fully
// independent Resolver so a base configuration can be shared and specialized
// without mutation races.
type Resolver struct {
	fs         FileSystem
	packages   PackageSource
	extensions []string
	mainFiles  []string
	conditions []string
	cache      *sync.Map // (importer+"\x00"+specifier) -> resolved path

	projectOnce sync.Once
	project     *projectConfig
}

// projectConfig holds the project-root configuration §4.B point 4 asks the
// resolver to honor: tsconfig.json/jsconfig.json "paths" aliases and the
// root package.json's "browser" field remapping of the project's own files.
// Loaded lazily, once, from the resolver's file system.
type projectConfig struct {
	aliases    []pathAlias
	browserPkg *manifest.Package
}

// pathAlias is one resolved "paths" entry: a bare-specifier pattern
// (optionally with one "*" wildcard) mapped to one or more baseUrl-relative
// target patterns, tried in order.
type pathAlias struct {
	prefix      string
	suffix      string
	hasWildcard bool
	targets     []string
}

// DefaultExtensions is the probe order used when a specifier names no
// extension.
var DefaultExtensions = []string{".js", ".mjs", ".jsx", ".ts", ".tsx", ".json"}

// DefaultMainFiles is the probe order used when a specifier resolves to a
// directory.
var DefaultMainFiles = []string{"index.js", "index.mjs", "index.ts", "index.json"}

// New builds a Resolver over fs, with packages (may be nil if the program
// has no bare specifiers to resolve) providing package.json lookups.
func New(fs FileSystem, packages PackageSource) *Resolver {
	return &Resolver{
		fs:         fs,
		packages:   packages,
		extensions: DefaultExtensions,
		mainFiles:  DefaultMainFiles,
		conditions: manifest.DefaultConditions,
		cache:      &sync.Map{},
	}
}

// WithExtensions returns a Resolver that probes the given extensions, in
// order, when a specifier is missing one.
func (r *Resolver) WithExtensions(exts []string) *Resolver {
	n := r.clone()
	n.extensions = exts
	return n
}

// WithMainFiles returns a Resolver that probes the given filenames, in
// order, when a specifier resolves to a directory.
func (r *Resolver) WithMainFiles(files []string) *Resolver {
	n := r.clone()
	n.mainFiles = files
	return n
}

// WithConditions returns a Resolver that resolves package.json "exports"
// using the given condition priority.
func (r *Resolver) WithConditions(conditions []string) *Resolver {
	n := r.clone()
	n.conditions = conditions
	return n
}

func (r *Resolver) clone() *Resolver {
	return &Resolver{
		fs:         r.fs,
		packages:   r.packages,
		extensions: r.extensions,
		mainFiles:  r.mainFiles,
		conditions: r.conditions,
		cache:      &sync.Map{}, // a reconfigured resolver starts with a fresh cache
	}
}

// Resolve resolves specifier as imported from importer (an absolute module
// path) to an absolute vfs path.
func (r *Resolver) Resolve(ctx context.Context, importer, specifier string) (string, error) {
	key := importer + "\x00" + specifier
	if cached, ok := r.cache.Load(key); ok {
		return cached.(string), nil
	}

	resolved, err := r.resolveUncached(ctx, importer, specifier)
	if err != nil {
		return "", err
	}
	r.cache.Store(key, resolved)
	return resolved, nil
}

// ResetCache drops all memoized resolutions, forcing every specifier to be
// re-probed against the file system on next use.
func (r *Resolver) ResetCache() {
	r.cache = &sync.Map{}
}

func (r *Resolver) resolveUncached(ctx context.Context, importer, specifier string) (string, error) {
	switch {
	case isRelativeOrAbsolute(specifier):
		return r.resolveFile(ctx, importer, specifier)
	default:
		if target, ok := r.matchPathAlias(specifier); ok {
			return r.resolveFile(ctx, importer, target)
		}
		return r.resolvePackage(ctx, specifier)
	}
}

func isRelativeOrAbsolute(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") || strings.HasPrefix(specifier, "/")
}

// resolveFile probes specifier (already relative or absolute) for an exact
// hit, then each extension, then each main file within it as a directory.
// Before probing, the project root package.json's "browser" field (§4.B
// point 4) gets a chance to redirect specifier to a different project file.
func (r *Resolver) resolveFile(ctx context.Context, importer, specifier string) (string, error) {
	base := specifier
	rewritten := false
	if pkg := r.loadProjectConfig().browserPkg; pkg != nil {
		if target, disabled, ok := pkg.BrowserReplacement(specifier); ok {
			if disabled {
				return "", &NotFoundError{Importer: importer, Specifier: specifier, Candidates: []string{"disabled via project package.json browser field"}}
			}
			base = "/" + strings.TrimPrefix(target, "./")
			rewritten = true
		}
	}
	if !rewritten && !strings.HasPrefix(base, "/") {
		base = path.Join(path.Dir(importer), specifier)
	}
	base = vfs.Normalize(base)

	var candidates []string
	probe := func(p string) (string, bool) {
		candidates = append(candidates, p)
		return p, r.exists(ctx, p)
	}

	if p, ok := probe(base); ok {
		return p, nil
	}
	for _, ext := range r.extensions {
		if p, ok := probe(base + ext); ok {
			return p, nil
		}
	}
	for _, main := range r.mainFiles {
		if p, ok := probe(path.Join(base, main)); ok {
			return p, nil
		}
	}
	return "", &NotFoundError{Importer: importer, Specifier: specifier, Candidates: candidates}
}

func (r *Resolver) exists(ctx context.Context, p string) bool {
	if r.fs.ExistsSync(p) {
		return true
	}
	ok, err := r.fs.ExistsAsync(ctx, p)
	return err == nil && ok
}

// resolvePackage resolves a bare specifier of the form
// "name[@range][/subpath]" or "@scope/name[@range][/subpath]" by pinning a
// version through the package source and following package.json's exports.
func (r *Resolver) resolvePackage(ctx context.Context, specifier string) (string, error) {
	if r.packages == nil {
		return "", &NotFoundError{Specifier: specifier, Candidates: []string{"no package source configured"}}
	}

	name, rng, subpath := splitBareSpecifier(specifier)

	version, err := r.packages.ResolveVersion(ctx, name, rng)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", specifier, err)
	}

	pkg, err := r.packages.FetchManifest(ctx, name, version)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", specifier, err)
	}

	exportSubpath := "."
	if subpath != "" {
		exportSubpath = "./" + subpath
	}

	if target, disabled, ok := pkg.BrowserReplacement(exportSubpath); ok {
		if disabled {
			return "", &NotFoundError{Specifier: specifier, Candidates: []string{"disabled via package.json browser field"}}
		}
		return vfs.Normalize(path.Join("/node_modules", name, version, target)), nil
	}

	target, err := pkg.ResolveExport(exportSubpath, &manifest.ResolveOptions{Conditions: r.conditions})
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", specifier, err)
	}

	return vfs.Normalize(path.Join("/node_modules", name, version, target)), nil
}

// splitBareSpecifier splits "lit@2.0.0/decorators.js" into ("lit", "2.0.0",
// "decorators.js"), defaulting range to "latest" when absent. Scoped names
// (@scope/pkg) are kept intact.
func splitBareSpecifier(specifier string) (name, rng, subpath string) {
	rest := specifier
	scope := ""
	if strings.HasPrefix(rest, "@") {
		idx := strings.Index(rest, "/")
		if idx < 0 {
			return rest, "latest", ""
		}
		scope = rest[:idx]
		rest = rest[idx+1:]
	}

	idx := strings.Index(rest, "/")
	head := rest
	if idx >= 0 {
		head = rest[:idx]
		subpath = rest[idx+1:]
	}

	if at := strings.LastIndex(head, "@"); at > 0 {
		rng = head[at+1:]
		head = head[:at]
	} else {
		rng = "latest"
	}

	if scope != "" {
		name = scope + "/" + head
	} else {
		name = head
	}
	return name, rng, subpath
}

// matchPathAlias checks specifier against the project's tsconfig/jsconfig
// "paths" entries, returning the first alias target (an absolute project
// path) it maps to.
func (r *Resolver) matchPathAlias(specifier string) (string, bool) {
	for _, a := range r.loadProjectConfig().aliases {
		if a.hasWildcard {
			if !strings.HasPrefix(specifier, a.prefix) || !strings.HasSuffix(specifier, a.suffix) {
				continue
			}
			matched := strings.TrimSuffix(strings.TrimPrefix(specifier, a.prefix), a.suffix)
			for _, t := range a.targets {
				return strings.Replace(t, "*", matched, 1), true
			}
		} else if specifier == a.prefix {
			for _, t := range a.targets {
				return t, true
			}
		}
	}
	return "", false
}

// loadProjectConfig reads /tsconfig.json (or /jsconfig.json) and the project
// root /package.json once per Resolver and caches the result. Absence of
// either file is not an error: the resolver simply has no aliases/browser
// overrides to apply.
func (r *Resolver) loadProjectConfig() *projectConfig {
	r.projectOnce.Do(func() {
		cfg := &projectConfig{}
		if data, err := r.fs.ReadSync("/tsconfig.json"); err == nil {
			cfg.aliases = parseTSConfigPaths(data)
		} else if data, err := r.fs.ReadSync("/jsconfig.json"); err == nil {
			cfg.aliases = parseTSConfigPaths(data)
		}
		if data, err := r.fs.ReadSync("/package.json"); err == nil {
			if pkg, err := manifest.Parse(data); err == nil {
				cfg.browserPkg = pkg
			}
		}
		r.project = cfg
	})
	return r.project
}

// tsconfigCompilerOptions is the subset of tsconfig.json/jsconfig.json this
// resolver honors: "paths" aliases relative to "baseUrl".
type tsconfigCompilerOptions struct {
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// parseTSConfigPaths parses a tsconfig.json/jsconfig.json's "paths" map into
// pathAlias entries, resolving each target against "baseUrl" (default ".",
// i.e. the project root).
func parseTSConfigPaths(data []byte) []pathAlias {
	var cfg tsconfigCompilerOptions
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil
	}
	baseURL := cfg.CompilerOptions.BaseURL
	if baseURL == "" {
		baseURL = "."
	}
	aliases := make([]pathAlias, 0, len(cfg.CompilerOptions.Paths))
	for pattern, targets := range cfg.CompilerOptions.Paths {
		prefix, suffix, wildcard := splitPathPattern(pattern)
		resolved := make([]string, 0, len(targets))
		for _, t := range targets {
			resolved = append(resolved, path.Join("/", baseURL, t))
		}
		aliases = append(aliases, pathAlias{prefix: prefix, suffix: suffix, hasWildcard: wildcard, targets: resolved})
	}
	return aliases
}

// splitPathPattern splits a tsconfig "paths" key at its one permitted "*"
// wildcard, e.g. "@app/*" -> ("@app/", "", true); "@app/util" -> ("@app/util", "", false).
func splitPathPattern(pattern string) (prefix, suffix string, wildcard bool) {
	idx := strings.Index(pattern, "*")
	if idx < 0 {
		return pattern, "", false
	}
	return pattern[:idx], pattern[idx+1:], true
}

// isVersionLike reports whether a string looks like a pinned semver (its
// leading component is numeric). Nothing in this package calls it; the
// registry performs the authoritative parse.
func isVersionLike(s string) bool {
	if s == "" {
		return false
	}
	parts := strings.SplitN(s, ".", 2)
	_, err := strconv.Atoi(strings.TrimPrefix(parts[0], "v"))
	return err == nil
}
