package transform_test

import (
	"context"
	"strings"
	"testing"

	"bundlr.dev/bundlr/preset"
	"bundlr.dev/bundlr/transform"
)

func TestExtractImportsStaticAndDynamic(t *testing.T) {
	src := []byte(`import foo from "./foo.js";
export { bar } from "./bar.js";
const mod = import("./lazy.js");
`)
	imports, err := transform.ExtractImports(src)
	if err != nil {
		t.Fatalf("ExtractImports: %v", err)
	}

	want := map[string]bool{"./foo.js": false, "./bar.js": false, "./lazy.js": true}
	if len(imports) != len(want) {
		t.Fatalf("got %d imports, want %d: %+v", len(imports), len(want), imports)
	}
	for _, imp := range imports {
		dynamic, ok := want[imp.Specifier]
		if !ok {
			t.Errorf("unexpected specifier %q", imp.Specifier)
			continue
		}
		if imp.IsDynamic != dynamic {
			t.Errorf("%q: IsDynamic = %v, want %v", imp.Specifier, imp.IsDynamic, dynamic)
		}
	}
}

func TestExtractImportsNoImports(t *testing.T) {
	imports, err := transform.ExtractImports([]byte(`const x = 1;`))
	if err != nil {
		t.Fatalf("ExtractImports: %v", err)
	}
	if len(imports) != 0 {
		t.Errorf("got %+v", imports)
	}
}

func TestJSTransformerTest(t *testing.T) {
	tr := transform.JSTransformer{}
	for _, ext := range []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx"} {
		if !tr.Test("/index" + ext) {
			t.Errorf("expected JSTransformer to claim %s", ext)
		}
	}
	if tr.Test("/style.css") {
		t.Error("expected JSTransformer not to claim .css")
	}
}

func TestJSTransformerReportsDependencies(t *testing.T) {
	tr := transform.JSTransformer{}
	out, err := tr.Transform(context.Background(), preset.Input{
		Path:   "/index.js",
		Source: []byte(`import "./a.js";`),
	})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(out.Dependencies) != 1 || out.Dependencies[0] != "./a.js" {
		t.Errorf("got %v", out.Dependencies)
	}
	if string(out.Code) != `import "./a.js";` {
		t.Errorf("expected passthrough code, got %q", out.Code)
	}
}

func TestJSONTransformerWrapsAsCommonJS(t *testing.T) {
	tr := transform.JSONTransformer{}
	out, err := tr.Transform(context.Background(), preset.Input{
		Path:   "/data.json",
		Source: []byte(`{"a":1}`),
	})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !tr.Test("/data.json") {
		t.Error("expected JSONTransformer to claim .json")
	}
	want := "module.exports = {\"a\":1};\n"
	if string(out.Code) != want {
		t.Errorf("got %q, want %q", out.Code, want)
	}
}

func TestJSONTransformerInvalidJSON(t *testing.T) {
	tr := transform.JSONTransformer{}
	if _, err := tr.Transform(context.Background(), preset.Input{Path: "/bad.json", Source: []byte("{")}); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestCSSTransformerInjectsStyle(t *testing.T) {
	tr := transform.CSSTransformer{}
	out, err := tr.Transform(context.Background(), preset.Input{
		Path:   "/a.css",
		Source: []byte("body { color: red; }"),
	})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !tr.Test("/a.css") {
		t.Error("expected CSSTransformer to claim .css")
	}
	code := string(out.Code)
	if !strings.Contains(code, `createElement("style")`) || !strings.Contains(code, "body { color: red; }") {
		t.Errorf("got %q", code)
	}
}

func TestDefaultPresetMapsExtensions(t *testing.T) {
	p := transform.Default()
	if p.Name != "default" {
		t.Errorf("got name %q", p.Name)
	}
	for _, path := range []string{"/index.ts", "/data.json", "/a.css"} {
		if tr := p.MapTransformers(path); tr == nil {
			t.Errorf("no transformer matched %s", path)
		}
	}
	if p.DefaultHTML == "" {
		t.Error("expected a non-empty default HTML shell")
	}
}
