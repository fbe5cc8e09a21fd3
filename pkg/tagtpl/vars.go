package tagtpl

import (
	"encoding/json"
	"html"
	"regexp"
)

// substituteVars is the first pass: every literal occurrence of a data
// store key's placeholder form is replaced by a rendering of its value.
//
// List values are serialized to compact JSON here rather than left for the
// block expander, so a list key that is also referenced as a plain
// placeholder still produces output. String values that look like markup
// (per the naive <...> heuristic) pass through raw; all other strings are
// HTML-escaped. Unknown keys have no placeholder to match and stay in the
// output verbatim.
func (r *Renderer) substituteVars(template string) string {
	for key, val := range r.vars {
		// The key is spliced into the pattern unquoted on purpose: a key
		// containing regex metacharacters matches whatever its pattern form
		// happens to mean. Compatible templates rely on plain word keys.
		re, err := regexp.Compile(`\[tag::` + key + `\]`)
		if err != nil {
			r.logger.Debug("skipping unmatchable data key", "key", key, "error", err)
			continue
		}
		template = re.ReplaceAllLiteralString(template, r.renderValue(key, val))
	}
	return template
}

// renderValue produces the substitution text for a data store value.
func (r *Renderer) renderValue(key string, val any) string {
	if recs, ok := val.([]Record); ok {
		data, err := json.Marshal(recs)
		if err != nil {
			r.logger.Debug("failed to serialize list value", "key", key, "error", err)
			return ""
		}
		return string(data)
	}
	if s, ok := val.(string); ok {
		if looksLikeMarkup(s) {
			return s
		}
		return html.EscapeString(s)
	}
	return scalarText(val)
}
