// Package htmlout writes a compiled bundle into an HTML document as a
// <script type="module"> tag, replacing one the bundler previously wrote
// (marked by a fixed id) or inserting a fresh one into <head>.
package htmlout

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ScriptID marks the tag this package owns; an existing tag with this id
// is replaced in place rather than duplicated on every write.
const ScriptID = "bundlr-entry"

// insertPoint is where a fresh script tag should be spliced into content.
type insertPoint struct {
	found  bool
	offset int
	indent string
}

// tagLocation is the byte range of an existing owned script tag, including
// its opening and closing tags.
type tagLocation struct {
	found bool
	start int
	end   int
}

// Inject splices the given module source into content's entry script tag,
// replacing a previous bundler-owned tag if one exists, or inserting one
// as the last child of <head> otherwise. src, if non-empty, is used as
// the tag's src attribute (inline code is omitted); otherwise code is
// embedded inline.
func Inject(content []byte, code []byte, src string) ([]byte, error) {
	loc := findOwnedTag(content)
	tag := buildTag(code, src, indentAt(content, loc))

	if loc.found {
		var out []byte
		out = append(out, content[:loc.start]...)
		out = append(out, tag...)
		out = append(out, content[loc.end:]...)
		return out, nil
	}

	ip := findHeadInsertPoint(content)
	if !ip.found {
		return nil, fmt.Errorf("htmlout: no <head> tag found to insert the entry script into")
	}

	var out []byte
	out = append(out, content[:ip.offset]...)
	out = append(out, ip.indent...)
	out = append(out, tag...)
	out = append(out, '\n')
	out = append(out, content[ip.offset:]...)
	return out, nil
}

func buildTag(code []byte, src, indent string) []byte {
	var b strings.Builder
	b.WriteString(`<script type="module" id="`)
	b.WriteString(ScriptID)
	b.WriteString(`"`)
	if src != "" {
		b.WriteString(` src="`)
		b.WriteString(html.EscapeString(src))
		b.WriteString(`"></script>`)
		return []byte(b.String())
	}
	b.WriteString(">\n")
	b.Write(code)
	b.WriteString("\n")
	b.WriteString(indent)
	b.WriteString("</script>")
	return []byte(b.String())
}

// indentAt guesses the line indentation at an existing tag's location, or
// falls back to two spaces for a freshly inserted tag.
func indentAt(content []byte, loc tagLocation) string {
	if !loc.found {
		return "  "
	}
	lineStart := bytes.LastIndexByte(content[:loc.start], '\n') + 1
	return string(content[lineStart:loc.start])
}

// findOwnedTag locates a previously-injected <script id="bundlr-entry">
// tag's full byte range, from '<' to the closing '>'.
func findOwnedTag(content []byte) tagLocation {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return tagLocation{}
	}

	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			for _, attr := range n.Attr {
				if attr.Key == "id" && attr.Val == ScriptID {
					found = n
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
			if found != nil {
				return
			}
		}
	}
	walk(doc)
	if found == nil {
		return tagLocation{}
	}

	// x/net/html does not expose source byte offsets, so re-locate the tag
	// in the original bytes by its id attribute marker.
	marker := []byte(`id="` + ScriptID + `"`)
	idx := bytes.Index(content, marker)
	if idx < 0 {
		return tagLocation{}
	}
	start := bytes.LastIndexByte(content[:idx], '<')
	if start < 0 {
		return tagLocation{}
	}
	rest := content[idx:]
	closeIdx := bytes.Index(rest, []byte("</script>"))
	if closeIdx < 0 {
		return tagLocation{}
	}
	end := idx + closeIdx + len("</script>")
	return tagLocation{found: true, start: start, end: end}
}

// findHeadInsertPoint locates the offset just before </head>, taking as
// indentation the text between the start of that line and </head>.
func findHeadInsertPoint(content []byte) insertPoint {
	idx := bytes.Index(bytes.ToLower(content), []byte("</head>"))
	if idx < 0 {
		return insertPoint{}
	}
	lineStart := bytes.LastIndexByte(content[:idx], '\n') + 1
	indent := string(content[lineStart:idx])
	return insertPoint{found: true, offset: idx, indent: indent}
}
