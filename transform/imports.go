// Package transform provides the built-in default transformers: JS/TS
// import extraction via tree-sitter, and a trivial CSS-to-module wrapper.
package transform

import (
	"fmt"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// Import is one import/export/dynamic-import specifier found in a module's
// source, in source order.
type Import struct {
	Specifier string
	IsDynamic bool
	Line      int
}

// ExtractImports parses JavaScript/TypeScript content and returns every
// import specifier it references: static imports, re-exports, and dynamic
// import() calls.
func ExtractImports(content []byte) ([]Import, error) {
	qm := getQueryManager()
	query, err := qm.query("imports")
	if err != nil {
		return nil, err
	}

	parser := getTSParser()
	defer putTSParser(parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("transform: failed to parse module")
	}
	defer tree.Close()

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	captureNames := query.CaptureNames()
	var imports []Import

	matches := cursor.Matches(query, tree.RootNode(), content)
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			name := captureNames[capture.Index]
			text := capture.Node.Utf8Text(content)
			line := int(capture.Node.StartPosition().Row) + 1

			switch name {
			case "import.spec", "reexport.spec":
				imports = append(imports, Import{Specifier: text, Line: line})
			case "dynamicImport.spec":
				imports = append(imports, Import{Specifier: text, IsDynamic: true, Line: line})
			}
		}
	}
	return imports, nil
}
