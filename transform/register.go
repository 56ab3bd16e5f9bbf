package transform

import "bundlr.dev/bundlr/preset"

// defaultHTML is the built-in preset's default HTML shell, exposed as
// Preset.DefaultHTML; the compile pipeline does not read it.
const defaultHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"></head>
<body></body>
</html>
`

// Default returns the built-in preset: JS/TS passthrough with import
// extraction, JSON-as-module, and CSS-as-injected-style.
func Default() *preset.Preset {
	return &preset.Preset{
		Name: "default",
		Transformers: []preset.Transformer{
			JSTransformer{},
			JSONTransformer{},
			CSSTransformer{},
		},
		DefaultHTML: defaultHTML,
	}
}

// Register installs the built-in preset into r under both its own name and
// "vanilla", the framework-neutral template name the spec's worked examples
// request.
func Register(r *preset.Registry) {
	r.Register(Default())
	r.Alias("vanilla", "default")
}
