// Package linker implements the evaluation linker: it executes compiled
// modules in dependency order inside a single goja.Runtime, using a
// synchronous require-style lookup and caching each module's exports the
// way CommonJS does.
package linker

import (
	"fmt"

	"github.com/dop251/goja"

	"bundlr.dev/bundlr/hmr"
)

// Source is the read-only view of a module the linker needs to evaluate
// it: its compiled code and its resolved dependency map.
type Source interface {
	Path() string
	Code() []byte
	Dependencies() map[string]string // specifier -> resolved path
}

// ShimResolver maps a bare specifier to a shim's module path, for
// require() calls that miss the module's own dependency map.
type ShimResolver func(specifier string) (path string, ok bool)

// ModuleProvider fetches a module record (and materializes it on demand for
// shims) given its resolved path.
type ModuleProvider func(path string) (Source, error)

// EvaluationError wraps a runtime exception raised while evaluating a
// module.
type EvaluationError struct {
	Path  string
	Cause error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s: %v", e.Path, e.Cause)
}

func (e *EvaluationError) Unwrap() error { return e.Cause }

// RequireError is raised when require(spec) cannot be satisfied by the
// module's dependency map or a built-in shim.
type RequireError struct {
	Specifier string
	Importer  string
}

func (e *RequireError) Error() string {
	return fmt.Sprintf("cannot require %q from %q", e.Specifier, e.Importer)
}

// Linker owns one goja.Runtime and the cache of evaluated module exports.
type Linker struct {
	vm       *goja.Runtime
	provider ModuleProvider
	shims    ShimResolver
	hot      *hmr.Controller

	programs map[string]*goja.Program
	exports  map[string]goja.Value
	evaling  map[string]bool // cycle guard: modules mid-evaluation
}

// New builds a Linker. provider fetches a module's compiled source given a
// resolved path (including on-demand shim materialization); shims maps a
// bare specifier to its shim path when a module's own dependency map
// misses; hot tracks per-module HMR state (may be nil to disable HMR
// bookkeeping, e.g. in tests that only check evaluation order).
func New(provider ModuleProvider, shims ShimResolver, hot *hmr.Controller) *Linker {
	return &Linker{
		vm:       goja.New(),
		provider: provider,
		shims:    shims,
		hot:      hot,
		programs: make(map[string]*goja.Program),
		exports:  make(map[string]goja.Value),
		evaling:  make(map[string]bool),
	}
}

// Runtime exposes the underlying goja runtime, e.g. for globals installation
// by the orchestrator (console, document, etc).
func (l *Linker) Runtime() *goja.Runtime { return l.vm }

// Evaluate runs path's module (compiling its goja.Program once and caching
// it) and returns its exports object, evaluating any not-yet-evaluated
// dependency transitively via require(). Re-entrant calls for an
// already-evaluated path return the cached exports without re-running the
// module body; a call for a module currently mid-evaluation (import cycle)
// returns its in-progress, partially populated exports object, matching
// CommonJS semantics.
func (l *Linker) Evaluate(path string) (goja.Value, error) {
	if exp, ok := l.exports[path]; ok {
		return exp, nil
	}

	mod, err := l.provider(path)
	if err != nil {
		return nil, &EvaluationError{Path: path, Cause: err}
	}

	program, ok := l.programs[path]
	if !ok {
		program, err = goja.Compile(path, wrapCommonJS(string(mod.Code()), path), false)
		if err != nil {
			return nil, &EvaluationError{Path: path, Cause: err}
		}
		l.programs[path] = program
	}

	exportsObj := l.vm.NewObject()
	moduleObj := l.vm.NewObject()
	_ = moduleObj.Set("exports", exportsObj)

	// Publish the exports object before running the body so a require()
	// cycle back into this module observes the (possibly still-empty)
	// object rather than recursing forever.
	l.exports[path] = exportsObj
	l.evaling[path] = true
	defer delete(l.evaling, path)

	requireFn := l.makeRequire(path, mod.Dependencies())

	wrapperFn, err := l.vm.RunProgram(program)
	if err != nil {
		delete(l.exports, path)
		return nil, &EvaluationError{Path: path, Cause: err}
	}
	fn, ok := goja.AssertFunction(wrapperFn)
	if !ok {
		delete(l.exports, path)
		return nil, &EvaluationError{Path: path, Cause: fmt.Errorf("compiled module did not produce a function")}
	}

	hotHandle := l.makeHotHandle(path)
	_, err = fn(goja.Undefined(), requireFn, moduleObj, exportsObj, l.vm.GlobalObject(), hotHandle)
	if err != nil {
		delete(l.exports, path)
		return nil, &EvaluationError{Path: path, Cause: err}
	}

	// module.exports may have been reassigned wholesale (e.g. `module.exports = Foo`).
	final := moduleObj.Get("exports")
	l.exports[path] = final
	return final, nil
}

// Invalidate drops the cached program and exports for path, forcing the
// next Evaluate to recompile and re-run it (used by HMR re-evaluation and
// by a plain full recompile of a changed module).
func (l *Linker) Invalidate(path string) {
	delete(l.programs, path)
	delete(l.exports, path)
}

func (l *Linker) makeRequire(importer string, deps map[string]string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		spec := call.Argument(0).String()

		target, ok := deps[spec]
		if !ok {
			if l.shims != nil {
				if shimPath, shimOK := l.shims(spec); shimOK {
					target = shimPath
					ok = true
				}
			}
		}
		if !ok {
			panic(l.vm.ToValue(map[string]any{
				"name":    "RequireError",
				"message": (&RequireError{Specifier: spec, Importer: importer}).Error(),
			}))
		}

		exp, err := l.Evaluate(target)
		if err != nil {
			panic(l.vm.ToValue(map[string]any{
				"name":    "EvaluationError",
				"message": err.Error(),
			}))
		}
		return exp
	}
}

func (l *Linker) makeHotHandle(path string) goja.Value {
	if l.hot == nil {
		return goja.Undefined()
	}
	state := l.hot.State(path)
	obj := l.vm.NewObject()
	_ = obj.Set("data", state.Data)
	_ = obj.Set("accept", func(call goja.FunctionCall) goja.Value {
		var handler hmr.Handler
		if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
			handler = func(data any) { _, _ = fn(goja.Undefined(), l.vm.ToValue(data)) }
		}
		state.Accept(handler)
		return goja.Undefined()
	})
	_ = obj.Set("dispose", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		state.Dispose(func(data any) { _, _ = fn(goja.Undefined(), l.vm.ToValue(data)) })
		return goja.Undefined()
	})
	_ = obj.Set("invalidate", func(call goja.FunctionCall) goja.Value {
		state.Invalidate()
		return goja.Undefined()
	})
	return obj
}

// wrapCommonJS wraps compiled module code as the (require, module, exports,
// global, hot) function body the linker invokes per evaluation, appending a
// sourceURL marker so stack traces and devtools name the module by path.
func wrapCommonJS(code, path string) string {
	return "(function(require, module, exports, global, __hot__) {\n" + code + "\n})\n//# sourceURL=" + path
}
