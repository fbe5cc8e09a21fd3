package tagtpl

import (
	"bytes"
	"regexp"
	"strings"
)

var snippetRe = regexp.MustCompile(`(?s)\[tag::php\](.*?)\[/tag::php\]`)

// execSnippets is the third pass: each trusted-code block is executed
// through the Evaluator with the data store's keys bound as same-named
// variables, and the tag is replaced by exactly the output the snippet
// produced. The delimiter text [tag::php] is part of the compatibility
// surface and is kept as-is even though snippets here are not PHP.
//
// A failing snippet substitutes an HTML-escaped error message in place and
// the rest of the render continues.
func (r *Renderer) execSnippets(template string) string {
	return snippetRe.ReplaceAllStringFunc(template, func(match string) string {
		code := strings.TrimSpace(match[len("[tag::php]") : len(match)-len("[/tag::php]")])
		var buf bytes.Buffer
		if err := r.eval.Exec(code, r.env(), &buf); err != nil {
			r.logger.Debug("snippet execution failed", "error", err)
			return escapeError("snippet error", err.Error())
		}
		return buf.String()
	})
}
