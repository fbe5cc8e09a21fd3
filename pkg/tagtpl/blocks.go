package tagtpl

import (
	"html"
	"regexp"
	"strings"
)

var (
	blockOpenRe = regexp.MustCompile(`\[tag::([A-Za-z0-9_]+)--Block\]`)
	loopOpenRe  = regexp.MustCompile(`\[tag::([A-Za-z0-9_]+)--Loop\]`)
)

// expandBlocks is the second pass: named block sections are expanded from
// list data, or passed through raw when no data is bound.
//
// Open and close tags are paired by an explicit scan for the close tag
// carrying the same captured name, so a close tag with a different name
// never terminates a block. Blocks do not nest: one level of block and one
// level of loop inside it is processed, and deeper block syntax inside a
// loop body is left as-is.
func (r *Renderer) expandBlocks(template string) string {
	var out strings.Builder
	rest := template
	for {
		loc := blockOpenRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			out.WriteString(rest)
			break
		}
		name := rest[loc[2]:loc[3]]
		openEnd := loc[1]
		closeTag := "[/tag::" + name + "--Block]"
		closeIdx := strings.Index(rest[openEnd:], closeTag)
		if closeIdx < 0 {
			// No matching close anywhere ahead: the open tag is not a block.
			out.WriteString(rest[:openEnd])
			rest = rest[openEnd:]
			continue
		}
		content := rest[openEnd : openEnd+closeIdx]
		out.WriteString(rest[:loc[0]])
		if recs, ok := r.blockData(name); ok {
			out.WriteString(r.expandBlockContent(name, content, recs))
		} else {
			// Raw passthrough keeps an unbound nested template inspectable.
			out.WriteString(rest[loc[0]:openEnd])
			out.WriteString(content)
			out.WriteString(closeTag)
		}
		rest = rest[openEnd+closeIdx+len(closeTag):]
	}
	return out.String()
}

// blockData reports whether a block has usable data: the store holds the
// block's name, the value is a list, and the list is non-empty.
func (r *Renderer) blockData(name string) ([]Record, bool) {
	val, ok := r.vars[name]
	if !ok {
		return nil, false
	}
	recs, ok := val.([]Record)
	if !ok || len(recs) == 0 {
		return nil, false
	}
	return recs, true
}

// expandBlockContent rewrites the inside of a data-bound block. Every loop
// span is cut out of the surrounding content; the one whose name equals the
// block's name is instantiated once per record, and the concatenated
// iterations are appended after the remaining non-loop content. A loop with
// any other name contributes nothing.
func (r *Renderer) expandBlockContent(name, content string, recs []Record) string {
	var kept strings.Builder
	var expanded strings.Builder
	rest := content
	for {
		loc := loopOpenRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			kept.WriteString(rest)
			break
		}
		loopName := rest[loc[2]:loc[3]]
		openEnd := loc[1]
		closeTag := "[/tag::" + loopName + "--Loop]"
		closeIdx := strings.Index(rest[openEnd:], closeTag)
		if closeIdx < 0 {
			kept.WriteString(rest[:openEnd])
			rest = rest[openEnd:]
			continue
		}
		kept.WriteString(rest[:loc[0]])
		if loopName == name {
			body := rest[openEnd : openEnd+closeIdx]
			for _, rec := range recs {
				expanded.WriteString(instantiateLoopBody(body, rec))
			}
		}
		rest = rest[openEnd+closeIdx+len(closeTag):]
	}
	return kept.String() + expanded.String()
}

// instantiateLoopBody clones the loop body for one record, replacing each
// field's placeholder with its HTML-escaped value. Escaping here is
// unconditional; the markup passthrough heuristic of the variable pass does
// not apply to item fields. Fields the record lacks leave their
// placeholders unreplaced.
func instantiateLoopBody(body string, rec Record) string {
	for field, val := range rec {
		body = strings.ReplaceAll(body, "[tag::"+field+"]", html.EscapeString(scalarText(val)))
	}
	return body
}
