// Package bundler implements the orchestrator: it drives one compile
// request end-to-end through the virtual file system, resolver, package
// registry, transformation scheduler, and evaluation linker, emitting the
// status transitions and wire events described by the host message
// protocol.
package bundler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"bundlr.dev/bundlr/hmr"
	"bundlr.dev/bundlr/linker"
	"bundlr.dev/bundlr/manifest"
	"bundlr.dev/bundlr/module"
	"bundlr.dev/bundlr/preset"
	"bundlr.dev/bundlr/registry"
	"bundlr.dev/bundlr/resolver"
	"bundlr.dev/bundlr/scheduler"
	"bundlr.dev/bundlr/shim"
	"bundlr.dev/bundlr/vfs"
)

// Logger receives structured diagnostics from the orchestrator. Warning is
// used for recoverable problems (a package failed to preload, a transform
// skipped a file); Debug for verbose tracing.
type Logger interface {
	Warning(format string, args ...any)
	Debug(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warning(string, ...any) {}
func (nopLogger) Debug(string, ...any)   {}

// Config configures a new Bundler. Only FS is required; everything else
// has a sensible default.
type Config struct {
	FS                      *vfs.Stack
	Registry                *registry.Registry
	Presets                 *preset.Registry
	Logger                  Logger
	MaxConcurrentTransforms int
	AsyncResolver           vfs.AsyncResolver
}

// Bundler is one isolated compile engine instance. Tests and parallel
// compiles each construct their own; no state is process-global.
type Bundler struct {
	fs       *vfs.Stack
	reg      *registry.Registry
	res      *resolver.Resolver
	presets  *preset.Registry
	graph    *module.Graph
	sched    *scheduler.Scheduler[*module.Module]
	hot      *hmr.Controller
	lk       *linker.Linker
	logger   Logger
	statusCh chan StatusEvent

	firstLoad       bool
	currentPreset   *preset.Preset
	currentTemplate string
	depsSignature   string
	entryPath       string
}

// EntryPath returns the most recently resolved entry module path, or "" if
// no compile has succeeded yet.
func (b *Bundler) EntryPath() string { return b.entryPath }

// CompiledModules returns every module's compiled source, keyed by path,
// for callers (the CLI's static build output, the host's StateEvent
// snapshot) that need the whole graph rather than just the evaluated
// result.
func (b *Bundler) CompiledModules() map[string][]byte {
	out := make(map[string][]byte)
	for _, p := range b.graph.Paths() {
		if m, ok := b.graph.Get(p); ok && m.Compiled != nil {
			out[p] = m.Compiled
		}
	}
	return out
}

// Runtime returns the live goja runtime backing the most recent compile's
// linker, or nil if no compile has succeeded yet. Exposed for REPL-style
// evaluation of ad hoc commands against the already-evaluated program.
func (b *Bundler) Runtime() *goja.Runtime {
	if b.lk == nil {
		return nil
	}
	return b.lk.Runtime()
}

// New constructs a Bundler. The memory layer is seeded with built-in
// Node.js shims immediately so require("stream") etc. work from the first
// compile.
func New(cfg Config) *Bundler {
	if cfg.FS == nil {
		cfg.FS = vfs.NewStack()
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	if cfg.Presets == nil {
		cfg.Presets = preset.NewRegistry()
	}

	var pkgSource resolver.PackageSource
	if cfg.Registry != nil {
		pkgSource = cfg.Registry
		cfg.FS.Push(vfs.NewPackageLayer(cfg.Registry))
	}
	if cfg.AsyncResolver != nil {
		cfg.FS.Push(vfs.NewAsyncBridgeLayer(cfg.AsyncResolver))
	}

	shim.Seed(cfg.FS)

	maxConcurrent := cfg.MaxConcurrentTransforms
	if maxConcurrent <= 0 {
		maxConcurrent = 50
	}

	b := &Bundler{
		fs:        cfg.FS,
		reg:       cfg.Registry,
		res:       resolver.New(cfg.FS, pkgSource),
		presets:   cfg.Presets,
		graph:     module.NewGraph(),
		sched:     scheduler.New[*module.Module](maxConcurrent),
		hot:       hmr.NewController(),
		logger:    cfg.Logger,
		statusCh:  make(chan StatusEvent, 16),
		firstLoad: true,
	}
	return b
}

// Status returns the channel of status transitions for this compile
// engine, consumed by the CLI and the WASM bridge.
func (b *Bundler) Status() <-chan StatusEvent { return b.statusCh }

func (b *Bundler) emit(s Status) {
	select {
	case b.statusCh <- StatusEvent{Status: s}:
	default:
	}
}

// Evaluator is returned by a successful Compile. Run evaluates every
// registered runtime module (none, currently) followed by the entry
// module. Compile builds a fresh linker each time, so a Run after a
// recompile evaluates the entry and every module it requires again;
// re-evaluation is not limited to dirty modules.
type Evaluator struct {
	b        *Bundler
	entry    string
	noop     bool
}

// Run evaluates the program. A no-op evaluator (HTML-only projects)
// returns nil without touching the linker.
func (e *Evaluator) Run() (goja.Value, error) {
	if e.noop || e.entry == "" {
		return nil, nil
	}
	v, err := e.b.lk.Evaluate(e.entry)
	if err != nil {
		return nil, &EvaluationError{Path: e.entry, Cause: err}
	}
	return v, nil
}

// Compile runs one compile request end-to-end per §4.J's ten steps.
func (b *Bundler) Compile(ctx context.Context, req CompileRequest) (*Evaluator, error) {
	// Step 1: optionally enable the async FS bridge — handled at
	// construction time via Config.AsyncResolver; HasFileResolver is
	// honored by the caller choosing whether to supply one.

	// Step 2: on first load, start from an empty module map (the preset
	// is set up in step 3).
	if b.firstLoad {
		b.graph = module.NewGraph()
	}

	// Step 3: initialize the preset on first use, and again whenever the
	// requested template differs from the current one.
	if b.currentPreset == nil || b.currentTemplate != req.Template {
		p, ok := b.presets.Get(req.Template)
		if !ok {
			b.emit(StatusError)
			return nil, &PresetMissingError{Template: req.Template}
		}
		b.currentPreset = p
		b.currentTemplate = req.Template
	}

	// Step 4: emit status installing-dependencies.
	b.emit(StatusInstallingDependencies)

	// Step 5: diff files against FS; write changes; reset compilation on
	// changed modules.
	changed := b.applyFiles(req.Modules)
	for _, p := range changed {
		if m, ok := b.graph.Get(p); ok {
			m.Reset()
			b.sched.ModuleFinished(p)
			b.res.ResetCache()
			if b.lk != nil {
				b.lk.Invalidate(p)
			}
		}
	}

	// Step 6: when the preset opts into HMR, a changed non-entry module
	// that no ancestor accepted escalates to a full reload and the compile
	// stops there. The entry point is excluded: it can never have a
	// dependent to accept it, so without this exclusion every edit to the
	// entry — the common case — would spuriously escalate. Presets that
	// leave HMR disabled (the default) skip this check entirely and always
	// fall through to a plain recompile, matching §4.J step 6's "HMR is
	// disabled" case.
	if !b.firstLoad && b.currentPreset.HMREnabled {
		for _, p := range changed {
			if p == b.entryPath {
				continue
			}
			decision := b.hot.Evaluate(p, b.graph.TransitiveDependents)
			if decision.FullReload {
				b.emit(StatusDone)
				return &Evaluator{b: b, noop: true}, nil
			}
		}
	}

	// Step 7: on first load or a package.json change, (re)install
	// dependencies; force a full reload if the dependency signature moved.
	pkgChanged := containsPath(changed, "/package.json")
	if b.firstLoad || pkgChanged {
		sig, err := b.installDependencies(ctx)
		if err != nil {
			b.emit(StatusError)
			return nil, err
		}
		if !b.firstLoad && sig != b.depsSignature {
			b.depsSignature = sig
			b.emit(StatusDone)
			return &Evaluator{b: b, noop: true}, nil
		}
		b.depsSignature = sig
	}

	// Step 8: HTML-only projects skip JS bundling entirely.
	entry, htmlOnly, err := b.findEntry(ctx, req)
	if err != nil {
		b.emit(StatusError)
		return nil, err
	}
	if htmlOnly {
		b.emit(StatusDone)
		return &Evaluator{b: b, noop: true}, nil
	}

	// Step 9: transpile. Resolve and transform the entry and its closure.
	b.emit(StatusTranspiling)
	if err := b.transformClosure(ctx, entry); err != nil {
		b.emit(StatusError)
		return nil, err
	}

	// Step 10: mark entry, build the linker, return the evaluate thunk.
	if m, ok := b.graph.Get(entry); ok {
		m.IsEntry = true
	}
	b.entryPath = entry
	b.lk = linker.New(b.moduleSourceProvider(), shim.Resolve, b.hot)

	b.emit(StatusEvaluating)
	b.firstLoad = false
	b.emit(StatusDone)

	return &Evaluator{b: b, entry: entry}, nil
}

// applyFiles writes every FileInput into the writable memory layer and
// returns the normalized paths whose content actually changed.
func (b *Bundler) applyFiles(files map[string]FileInput) []string {
	var changed []string
	for _, f := range files {
		p := vfs.Normalize(f.Path)
		prev, err := b.fs.ReadSync(p)
		if err == nil && string(prev) == f.Code {
			continue
		}
		b.fs.WriteSync(p, []byte(f.Code))
		changed = append(changed, p)
	}
	sort.Strings(changed)
	return changed
}

func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}
	return false
}

// installDependencies parses package.json (if present), augments the
// dependency set via the current preset, and returns a normalized
// signature string used to detect a dependency-set change across compiles.
func (b *Bundler) installDependencies(ctx context.Context) (string, error) {
	data, err := b.fs.ReadSync("/package.json")
	if err != nil {
		return "", nil // no package.json: nothing to install
	}
	pkg, err := manifest.Parse(data)
	if err != nil {
		return "", fmt.Errorf("parse /package.json: %w", err)
	}

	deps := make(map[string]string, len(pkg.Dependencies))
	for name, rng := range pkg.Dependencies {
		deps[name] = rng
	}
	deps = b.currentPreset.AugmentDependencySet(deps)

	if b.reg != nil {
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			version, err := b.reg.ResolveVersion(ctx, name, deps[name])
			if err != nil {
				// §4.C: "on failure, synthesize a trivial manifest that
				// lists only the direct dependencies with the version
				// range stripped of leading range operators" — fall back
				// to a literal stand-in version rather than dropping the
				// dependency from the set entirely.
				version = registry.StripRangeOperators(deps[name])
				deps[name] = version
				b.logger.Warning("resolve %s: %v; falling back to %s", name, err, version)
			}
			if _, err := b.reg.FetchManifest(ctx, name, version); err != nil {
				b.logger.Warning("preload %s@%s: %v", name, version, err)
			}
		}
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	var sig strings.Builder
	for _, name := range names {
		sig.WriteString(name)
		sig.WriteByte('@')
		sig.WriteString(deps[name])
		sig.WriteByte(';')
	}
	return sig.String(), nil
}

// findEntry locates the JS entry point: an explicit package.json "main",
// else the first <script src=...> in /index.html, else the first existing
// file among /index.js, /index.ts, /index.jsx, /index.tsx and /main.js.
// The preset contributes no entry candidates. Returns htmlOnly=true when
// /index.html exists and none of these yields an entry.
func (b *Bundler) findEntry(ctx context.Context, req CompileRequest) (entry string, htmlOnly bool, err error) {
	if data, readErr := b.fs.ReadSync("/package.json"); readErr == nil {
		if pkg, perr := manifest.Parse(data); perr == nil && pkg.Main != "" {
			return vfs.Normalize("/" + strings.TrimPrefix(pkg.Main, "./")), false, nil
		}
	}

	hasHTML := b.fs.ExistsSync("/index.html")
	if hasHTML {
		if data, readErr := b.fs.ReadSync("/index.html"); readErr == nil {
			if src, found := findScriptSrc(data); found {
				return vfs.Normalize(src), false, nil
			}
		}
	}

	for _, candidate := range []string{"/index.js", "/index.ts", "/index.jsx", "/index.tsx", "/main.js"} {
		if b.fs.ExistsSync(candidate) {
			return candidate, false, nil
		}
	}

	if hasHTML {
		return "", true, nil
	}
	return "", false, &EntryPointUnresolvedError{Template: req.Template}
}

// findScriptSrc scans HTML for the first <script src="..."> tag.
func findScriptSrc(data []byte) (string, bool) {
	doc, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return "", false
	}
	var src string
	var found bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			for _, attr := range n.Attr {
				if attr.Key == "src" && attr.Val != "" {
					src = attr.Val
					found = true
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
			if found {
				return
			}
		}
	}
	walk(doc)
	return src, found
}

// transformClosure walks the entry module's dependency closure level by
// level, compiling each level's modules concurrently (bounded by the
// scheduler's semaphore) and discovering the next level from the
// dependencies each compile reports, surfacing the first compilation
// error encountered anywhere in the closure (moduleFinished, §4.E).
//
// Levels, not per-module recursion, are what make import cycles safe: a
// module's compile job never waits on another module's job from inside its
// own job function, so two modules that import each other can never
// deadlock on one another's scheduler slot.
func (b *Bundler) transformClosure(ctx context.Context, entry string) error {
	visited := map[string]bool{entry: true}
	frontier := []string{entry}

	for len(frontier) > 0 {
		type outcome struct {
			m   *module.Module
			err error
		}
		results := make([]outcome, len(frontier))

		var wg sync.WaitGroup
		for i, p := range frontier {
			wg.Add(1)
			go func(i int, p string) {
				defer wg.Done()
				m, err := b.compileOne(ctx, p)
				results[i] = outcome{m, err}
			}(i, p)
		}
		wg.Wait()

		var next []string
		for _, r := range results {
			if r.err != nil {
				return r.err
			}
			if r.m.CompilationError != nil {
				return r.m.CompilationError
			}
			deps := make([]string, 0, len(r.m.Dependencies))
			for _, target := range r.m.Dependencies {
				deps = append(deps, target)
			}
			sort.Strings(deps)
			for _, target := range deps {
				if !visited[target] {
					visited[target] = true
					next = append(next, target)
				}
			}
		}
		frontier = next
	}
	return nil
}

// compileOne is transformModule(path) from §4.E: reuse a module already
// compiled, otherwise read its source, run the transform chain, and
// resolve each discovered specifier to a dependency path. Concurrent calls
// for the same path collapse onto a single run via the scheduler.
func (b *Bundler) compileOne(ctx context.Context, p string) (*module.Module, error) {
	return b.sched.TransformModule(ctx, p, func(ctx context.Context) (*module.Module, error) {
		if existing, ok := b.graph.Get(p); ok && existing.Compiled != nil {
			return existing, nil
		}

		source, readErr := b.fs.ReadAsync(ctx, p)
		if readErr != nil {
			return nil, &ModuleNotFoundError{Path: p, Cause: readErr}
		}

		m, existed := b.graph.Get(p)
		if !existed {
			m = &module.Module{Path: p}
		}
		m.Source = source

		transformer := b.currentPreset.MapTransformers(p)
		if transformer == nil {
			m.CompilationError = &preset.ErrNoTransformer{Path: p}
			b.graph.Put(m)
			return m, nil
		}

		out, terr := transformer.Transform(ctx, preset.Input{Path: p, Source: source})
		if terr != nil {
			m.CompilationError = &TransformError{Path: p, Cause: terr}
			b.graph.Put(m)
			return m, nil
		}

		deps := make(map[string]string, len(out.Dependencies))
		for _, spec := range out.Dependencies {
			target, rerr := b.resolveSpecifier(ctx, p, spec)
			if rerr != nil {
				m.CompilationError = &ModuleNotFoundError{Path: spec, Origin: p, Cause: rerr}
				b.graph.Put(m)
				return m, nil
			}
			deps[spec] = target
		}

		m.Compiled = out.Code
		m.Specifiers = out.Dependencies
		m.Dependencies = deps
		m.CompilationError = nil
		b.graph.Put(m)
		return m, nil
	})
}

// resolveSpecifier resolves spec as imported from importer, checking the
// built-in shim table before falling through to the module resolver.
func (b *Bundler) resolveSpecifier(ctx context.Context, importer, spec string) (string, error) {
	if shimPath, ok := shim.Resolve(spec); ok {
		return shimPath, nil
	}
	return b.res.Resolve(ctx, importer, spec)
}

// moduleSourceProvider adapts the module graph (plus on-demand shim
// materialization) to the linker's ModuleProvider contract.
func (b *Bundler) moduleSourceProvider() linker.ModuleProvider {
	return func(p string) (linker.Source, error) {
		m, ok := b.graph.Get(p)
		if ok {
			return moduleSource{m}, nil
		}

		// Shims and other FS-resident-but-ungraphed files (e.g. a shim
		// required directly without going through the resolver's normal
		// walk) are materialized as a trivial passthrough module on demand.
		// Shim sources are plain ES5 with no further requires worth
		// discovering, so this skips the transform pipeline entirely.
		src, err := b.fs.ReadSync(p)
		if err != nil {
			return nil, &ModuleNotFoundError{Path: p}
		}
		m = &module.Module{Path: p, Source: src, Compiled: src, Dependencies: map[string]string{}}
		b.graph.Put(m)
		return moduleSource{m}, nil
	}
}

// moduleSource adapts *module.Module to linker.Source.
type moduleSource struct{ m *module.Module }

func (s moduleSource) Path() string                    { return s.m.Path }
func (s moduleSource) Code() []byte                    { return s.m.Compiled }
func (s moduleSource) Dependencies() map[string]string { return s.m.Dependencies }
