package bundler_test

import (
	"context"
	"testing"
	"time"

	"bundlr.dev/bundlr/bundler"
	"bundlr.dev/bundlr/preset"
	"bundlr.dev/bundlr/transform"
)

func newTestBundler() *bundler.Bundler {
	presets := preset.NewRegistry()
	transform.Register(presets)
	return bundler.New(bundler.Config{Presets: presets})
}

func TestCompileAndRunEvaluatesEntry(t *testing.T) {
	b := newTestBundler()
	ev, err := b.Compile(context.Background(), bundler.CompileRequest{
		Modules: map[string]bundler.FileInput{
			"/index.js": {Path: "/index.js", Code: `module.exports = { value: 1 + 2 };`},
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v, err := ev.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v == nil {
		t.Fatal("expected a non-nil evaluation result")
	}
	if got := v.ToObject(b.Runtime()).Get("value").ToInteger(); got != 3 {
		t.Errorf("got %v", got)
	}
	if b.EntryPath() != "/index.js" {
		t.Errorf("got entry path %q", b.EntryPath())
	}
}

func TestCompileVanillaTemplateResolves(t *testing.T) {
	// spec.md's own worked scenarios (S1-S3) request Template:"vanilla"; it
	// must reach the same preset as the unnamed default rather than fail
	// with PresetMissingError.
	b := newTestBundler()
	ev, err := b.Compile(context.Background(), bundler.CompileRequest{
		Template: "vanilla",
		Modules: map[string]bundler.FileInput{
			"/index.js": {Path: "/index.js", Code: `module.exports = { value: 1 };`},
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := ev.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestCompileWalksDependencyClosure(t *testing.T) {
	// The entry re-exports from "./lib.js", which the transform step
	// discovers via import extraction and the resolver turns into a graph
	// edge, so both modules end up compiled even though only the entry was
	// named as the root.
	b := newTestBundler()
	if _, err := b.Compile(context.Background(), bundler.CompileRequest{
		Modules: map[string]bundler.FileInput{
			"/index.js": {Path: "/index.js", Code: `export { value } from "./lib.js";`},
			"/lib.js":   {Path: "/lib.js", Code: `module.exports = { value: 21 };`},
		},
	}); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	compiled := b.CompiledModules()
	if _, ok := compiled["/index.js"]; !ok {
		t.Error("expected /index.js in CompiledModules")
	}
	if _, ok := compiled["/lib.js"]; !ok {
		t.Error("expected /lib.js in CompiledModules")
	}
}

func TestCompileRequireResolvesBuiltinShim(t *testing.T) {
	b := newTestBundler()
	ev, err := b.Compile(context.Background(), bundler.CompileRequest{
		Modules: map[string]bundler.FileInput{
			"/index.js": {Path: "/index.js", Code: `
				var EventEmitter = require("events");
				var emitter = new EventEmitter();
				var got = null;
				emitter.on("ping", function(v) { got = v; });
				emitter.emit("ping", "pong");
				module.exports = { got: got };
			`},
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v, err := ev.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := v.ToObject(b.Runtime()).Get("got").String(); got != "pong" {
		t.Errorf("got %q", got)
	}
}

func TestCompilePackageJSONMain(t *testing.T) {
	b := newTestBundler()
	_, err := b.Compile(context.Background(), bundler.CompileRequest{
		Modules: map[string]bundler.FileInput{
			"/package.json": {Path: "/package.json", Code: `{"name":"app","main":"./src/app.js"}`},
			"/src/app.js":   {Path: "/src/app.js", Code: `module.exports = {};`},
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if b.EntryPath() != "/src/app.js" {
		t.Errorf("got entry path %q", b.EntryPath())
	}
}

func TestCompileHTMLEntryFindsScriptSrc(t *testing.T) {
	b := newTestBundler()
	_, err := b.Compile(context.Background(), bundler.CompileRequest{
		Modules: map[string]bundler.FileInput{
			"/index.html": {Path: "/index.html", Code: `<!doctype html><html><body><script type="module" src="/app.js"></script></body></html>`},
			"/app.js":     {Path: "/app.js", Code: `module.exports = {};`},
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if b.EntryPath() != "/app.js" {
		t.Errorf("got entry path %q", b.EntryPath())
	}
}

func TestCompileHTMLOnlyIsNoop(t *testing.T) {
	b := newTestBundler()
	ev, err := b.Compile(context.Background(), bundler.CompileRequest{
		Modules: map[string]bundler.FileInput{
			"/index.html": {Path: "/index.html", Code: `<!doctype html><html><body>hi</body></html>`},
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	v, err := ev.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v != nil {
		t.Errorf("expected a nil result for a no-op HTML-only evaluator, got %v", v)
	}
}

func TestCompileNoEntryReturnsError(t *testing.T) {
	b := newTestBundler()
	_, err := b.Compile(context.Background(), bundler.CompileRequest{
		Modules: map[string]bundler.FileInput{
			"/readme.txt": {Path: "/readme.txt", Code: `hello`},
		},
	})
	if err == nil {
		t.Fatal("expected an error when no entry candidate exists")
	}
	if _, ok := err.(*bundler.EntryPointUnresolvedError); !ok {
		t.Errorf("got %T: %v", err, err)
	}
}

func TestCompileUnknownPresetErrors(t *testing.T) {
	b := newTestBundler()
	_, err := b.Compile(context.Background(), bundler.CompileRequest{
		Template: "does-not-exist",
		Modules: map[string]bundler.FileInput{
			"/index.js": {Path: "/index.js", Code: `module.exports = {};`},
		},
	})
	if err == nil {
		t.Fatal("expected an error for an unregistered template")
	}
	if _, ok := err.(*bundler.PresetMissingError); !ok {
		t.Errorf("got %T: %v", err, err)
	}
}

func TestCompileTwiceRecompilesChangedModule(t *testing.T) {
	b := newTestBundler()
	if _, err := b.Compile(context.Background(), bundler.CompileRequest{
		Modules: map[string]bundler.FileInput{
			"/index.js": {Path: "/index.js", Code: `module.exports = { value: 1 };`},
		},
	}); err != nil {
		t.Fatalf("first Compile: %v", err)
	}

	ev, err := b.Compile(context.Background(), bundler.CompileRequest{
		Modules: map[string]bundler.FileInput{
			"/index.js": {Path: "/index.js", Code: `module.exports = { value: 2 };`},
		},
	})
	if err != nil {
		t.Fatalf("second Compile: %v", err)
	}
	v, err := ev.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := v.ToObject(b.Runtime()).Get("value").ToInteger(); got != 2 {
		t.Errorf("expected the re-compiled module's updated value, got %v", got)
	}
}

func TestStatusEmitsDoneOnSuccess(t *testing.T) {
	b := newTestBundler()
	if _, err := b.Compile(context.Background(), bundler.CompileRequest{
		Modules: map[string]bundler.FileInput{
			"/index.js": {Path: "/index.js", Code: `module.exports = {};`},
		},
	}); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var sawDone bool
	for {
		select {
		case ev := <-b.Status():
			if ev.Status == bundler.StatusDone {
				sawDone = true
			}
		case <-time.After(50 * time.Millisecond):
			if !sawDone {
				t.Error("expected a StatusDone event on the status channel")
			}
			return
		}
	}
}

func TestRuntimeNilBeforeCompile(t *testing.T) {
	b := newTestBundler()
	if b.Runtime() != nil {
		t.Error("expected a nil Runtime before any successful compile")
	}
}
