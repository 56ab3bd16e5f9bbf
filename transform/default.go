package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bundlr.dev/bundlr/preset"
)

// JSTransformer passes JavaScript/TypeScript source through unmodified
// (the evaluation linker executes it directly via goja) and reports its
// import specifiers as dependencies.
type JSTransformer struct{}

// Test implements preset.Transformer.
func (JSTransformer) Test(path string) bool {
	return hasAnySuffix(path, ".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx")
}

// Transform implements preset.Transformer.
func (JSTransformer) Transform(_ context.Context, in preset.Input) (preset.Output, error) {
	imports, err := ExtractImports(in.Source)
	if err != nil {
		return preset.Output{}, fmt.Errorf("transform %s: %w", in.Path, err)
	}
	deps := make([]string, 0, len(imports))
	for _, imp := range imports {
		deps = append(deps, imp.Specifier)
	}
	return preset.Output{Code: in.Source, Dependencies: deps}, nil
}

// JSONTransformer wraps a .json file's parsed content as a CommonJS module
// exporting it as default data, matching how bundlers make JSON importable.
type JSONTransformer struct{}

// Test implements preset.Transformer.
func (JSONTransformer) Test(path string) bool { return hasAnySuffix(path, ".json") }

// Transform implements preset.Transformer.
func (JSONTransformer) Transform(_ context.Context, in preset.Input) (preset.Output, error) {
	var v any
	if err := json.Unmarshal(in.Source, &v); err != nil {
		return preset.Output{}, fmt.Errorf("transform %s: invalid json: %w", in.Path, err)
	}
	code := "module.exports = " + string(in.Source) + ";\n"
	return preset.Output{Code: []byte(code)}, nil
}

// CSSTransformer wraps a .css file as a CommonJS module that injects its
// content into a <style> tag on first evaluation, the same "CSS-in-JS"
// technique bundlers use to make `import "./x.css"` work without a
// dedicated stylesheet output.
type CSSTransformer struct{}

// Test implements preset.Transformer.
func (CSSTransformer) Test(path string) bool { return hasAnySuffix(path, ".css") }

// Transform implements preset.Transformer.
func (CSSTransformer) Transform(_ context.Context, in preset.Input) (preset.Output, error) {
	encoded, err := json.Marshal(string(in.Source))
	if err != nil {
		return preset.Output{}, fmt.Errorf("transform %s: %w", in.Path, err)
	}
	code := fmt.Sprintf(`(function(){
  var css = %s;
  var style = document.createElement("style");
  style.textContent = css;
  document.head.appendChild(style);
  module.exports = css;
})();
`, encoded)
	return preset.Output{Code: []byte(code)}, nil
}

func hasAnySuffix(path string, suffixes ...string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}
