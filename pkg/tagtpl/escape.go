package tagtpl

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
)

// markupRe is the deliberately naive "looks like HTML" check: anything of
// the shape <...> counts, including false positives like "a <b> c" in plain
// prose and false negatives like a bare "<". Real HTML parsing is out of
// scope; string values that trip this check are passed through unescaped.
var markupRe = regexp.MustCompile(`<[^>]+>`)

func looksLikeMarkup(s string) bool {
	return markupRe.MatchString(s)
}

// scalarText stringifies a scalar value without escaping. Booleans follow
// the truthy/falsy convention of the template language this engine is
// compatible with: true becomes "1" and false becomes the empty string.
// This is a documented quirk of the public contract, not an accident.
func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

// escapeError formats a recovered failure as the visible inline diagnostic
// that replaces the failing tag in the output.
func escapeError(context, detail string) string {
	return html.EscapeString("[" + context + ": " + detail + "]")
}
