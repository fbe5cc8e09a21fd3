package tagtpl

import (
	"strings"
)

const (
	ifOpen     = "[tag::if("
	elseifOpen = "[tag::elseif("
	elseTag    = "[tag::else]"
	endifTag   = "[tag::endif]"
	condClose  = ")]"
)

// branch is one arm of a conditional construct.
type branch struct {
	cond    string // empty for the else arm
	content string
}

// evalConditionals is the fifth and final pass: each conditional construct
// collapses to the content of its first true branch, or the else branch
// when none match. It runs last so branch content already carries the
// results of the earlier passes.
//
// A construct requires a trailing else arm; an if/elseif chain without one
// does not match the pattern and passes through literally. Condition
// failures (syntax errors, undefined references) count as false, never as
// an aborting error.
func (r *Renderer) evalConditionals(template string) string {
	var out strings.Builder
	rest := template
	for {
		start := strings.Index(rest, ifOpen)
		if start < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])
		span := rest[start:]

		construct, consumed, ok := parseConditional(span)
		if !ok {
			// Not a complete construct: emit the marker and move on.
			out.WriteString(ifOpen)
			rest = span[len(ifOpen):]
			continue
		}
		out.WriteString(r.selectBranch(construct))
		rest = span[consumed:]
	}
	return out.String()
}

// parseConditional matches one full if/elseif*/else/endif construct at the
// start of span. It reports the matched construct, how many bytes it spans,
// and whether the pattern matched at all. A missing else arm or missing
// endif is a non-match.
func parseConditional(span string) ([]branch, int, bool) {
	cond, pos, ok := parseCondExpr(span, len(ifOpen))
	if !ok {
		return nil, 0, false
	}

	end := strings.Index(span[pos:], endifTag)
	if end < 0 {
		return nil, 0, false
	}
	body := span[pos : pos+end]
	consumed := pos + end + len(endifTag)

	elseIdx := strings.Index(body, elseTag)
	if elseIdx < 0 {
		return nil, 0, false
	}
	chain := body[:elseIdx]
	elseContent := body[elseIdx+len(elseTag):]

	branches := []branch{{cond: cond}}
	for {
		next := strings.Index(chain, elseifOpen)
		if next < 0 {
			branches[len(branches)-1].content = chain
			break
		}
		branches[len(branches)-1].content = chain[:next]
		nextCond, after, ok := parseCondExpr(chain[next:], len(elseifOpen))
		if !ok {
			return nil, 0, false
		}
		branches = append(branches, branch{cond: nextCond})
		chain = chain[next+after:]
	}
	branches = append(branches, branch{content: elseContent})
	return branches, consumed, true
}

// parseCondExpr extracts the condition text between an opening marker and
// the first ")]" after it. Expressions therefore cannot contain the ")]"
// sequence, matching the non-greedy behavior compatible templates expect.
func parseCondExpr(s string, openLen int) (cond string, after int, ok bool) {
	end := strings.Index(s[openLen:], condClose)
	if end < 0 {
		return "", 0, false
	}
	return s[openLen : openLen+end], openLen + end + len(condClose), true
}

// selectBranch evaluates branch conditions in order against the data store
// environment and returns the first true branch's content, trimmed of
// surrounding whitespace. The last branch is the else arm and always wins
// if reached.
func (r *Renderer) selectBranch(branches []branch) string {
	env := r.env()
	for i, b := range branches {
		if i == len(branches)-1 {
			return strings.TrimSpace(b.content)
		}
		result, err := r.eval.EvalBool(b.cond, env)
		if err != nil {
			r.logger.Debug("condition evaluation failed, treating as false", "condition", b.cond, "error", err)
			continue
		}
		if result {
			return strings.TrimSpace(b.content)
		}
	}
	return ""
}
