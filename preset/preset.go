// Package preset defines the transformer interface and the named preset
// registry the orchestrator consults to pick a transformation pipeline for
// a given entry point.
package preset

import (
	"context"
	"fmt"
	"sync"
)

// Input is the source handed to a Transformer.
type Input struct {
	Path   string
	Source []byte
}

// Output is a transformer's result: the code to hand to the evaluation
// linker, plus every specifier the source referenced (so the orchestrator
// can resolve and schedule them as dependencies).
type Output struct {
	Code         []byte
	Dependencies []string
}

// Transformer converts one module's source into linker-ready code.
type Transformer interface {
	// Test reports whether this transformer handles the given path, by
	// extension or content sniffing.
	Test(path string) bool
	// Transform compiles the input, returning the compiled code and its
	// dependency specifiers.
	Transform(ctx context.Context, in Input) (Output, error)
}

// Preset bundles an ordered list of transformers (first match wins) with
// a default HTML shell (DefaultHTML), which the compile pipeline does not
// read.
type Preset struct {
	Name         string
	Transformers []Transformer
	DefaultHTML  string

	// HMREnabled reports whether edits under this preset may be handled as
	// in-place hot updates. When false, the orchestrator never consults
	// per-module hot state on a changed, non-entry module and simply
	// recompiles (§4.D: "otherwise escalates to full page reload (the
	// preset decides whether it enables HMR)").
	HMREnabled bool

	// FrameworkDependencies lists packages (with a default version range)
	// this preset's transformers assume are present even when the user's
	// package.json doesn't list them directly, e.g. a JSX preset depending
	// on a runtime helper package (§4.F's augmentDependencies).
	FrameworkDependencies map[string]string
}

// AugmentDependencySet injects this preset's FrameworkDependencies into deps
// (a name→version-range map parsed from package.json), leaving any
// explicit, user-declared range untouched (§4.F: "a function
// augmentDependencies(deps) → deps that injects framework packages with
// default versions").
func (p *Preset) AugmentDependencySet(deps map[string]string) map[string]string {
	if len(p.FrameworkDependencies) == 0 {
		return deps
	}
	out := make(map[string]string, len(deps)+len(p.FrameworkDependencies))
	for name, rng := range deps {
		out[name] = rng
	}
	for name, rng := range p.FrameworkDependencies {
		if _, ok := out[name]; !ok {
			out[name] = rng
		}
	}
	return out
}

// MapTransformers returns the transformer that claims path, or nil if none
// does. Transformers are tried in registration order.
func (p *Preset) MapTransformers(path string) Transformer {
	for _, t := range p.Transformers {
		if t.Test(path) {
			return t
		}
	}
	return nil
}

// ErrNoTransformer is returned when no transformer in a preset claims a path.
type ErrNoTransformer struct {
	Path string
}

func (e *ErrNoTransformer) Error() string {
	return fmt.Sprintf("preset: no transformer for %q", e.Path)
}

// AugmentDependencies resolves the raw specifiers an Output reported into
// their concrete paths via resolve, filtering out any that fail to resolve
// (a quoted string that wasn't really an import is a transformer bug the
// caller should see, but resolve failures here are tolerated so a single
// bad specifier doesn't fail the whole module).
func (p *Preset) AugmentDependencies(specifiers []string, resolve func(specifier string) (string, error)) (resolved []string, failed map[string]error) {
	failed = make(map[string]error)
	for _, spec := range specifiers {
		path, err := resolve(spec)
		if err != nil {
			failed[spec] = err
			continue
		}
		resolved = append(resolved, path)
	}
	return resolved, failed
}

// Registry holds named presets, e.g. "default", "react", "preact".
type Registry struct {
	mu      sync.RWMutex
	presets map[string]*Preset
	def     string
}

// NewRegistry returns an empty preset registry.
func NewRegistry() *Registry {
	return &Registry{presets: make(map[string]*Preset)}
}

// Register adds a preset under its own Name. The first preset registered
// becomes the default.
func (r *Registry) Register(p *Preset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[p.Name] = p
	if r.def == "" {
		r.def = p.Name
	}
}

// Get returns the named preset, or the default preset if name is empty.
func (r *Registry) Get(name string) (*Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.def
	}
	p, ok := r.presets[name]
	return p, ok
}

// Alias makes name resolve to the same preset as target, e.g. so a
// framework-neutral template name like "vanilla" reaches the "default"
// preset without duplicating its transformer list. Reports false if target
// isn't registered.
func (r *Registry) Alias(name, target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.presets[target]
	if !ok {
		return false
	}
	r.presets[name] = p
	return true
}

// Names returns every registered preset name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.presets))
	for name := range r.presets {
		out = append(out, name)
	}
	return out
}
