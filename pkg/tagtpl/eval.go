package tagtpl

import (
	"fmt"
	"io"
	"strings"

	"github.com/expr-lang/expr"
)

// Evaluator runs trusted code and expressions sourced from template text.
// Implementations get the full data store as an environment and are
// expected to offer full host expressiveness; this is an explicitly unsafe
// capability, injected so that safety-conscious deployments can substitute
// a restricted expression language.
type Evaluator interface {
	// Exec runs a snippet body. Everything the snippet emits must be
	// written to out; a returned error replaces the snippet's output with
	// an inline diagnostic. Environments built by the renderer flatten
	// list values to nil, same as condition evaluation, so snippets only
	// ever see scalars.
	Exec(code string, env map[string]any, out io.Writer) error

	// EvalBool evaluates a condition expression to a boolean, coercing
	// non-boolean results by truthiness.
	EvalBool(cond string, env map[string]any) (bool, error)
}

// ExprEvaluator is the default Evaluator, built on expr-lang. Snippets and
// conditions may reference data store entries as $name variables; the $ is
// template-syntax sugar and is stripped before compilation. Snippets
// additionally see echo, print, and printf functions whose output is
// captured, and a snippet's final value, if any, is appended to that
// output.
type ExprEvaluator struct{}

// NewExprEvaluator returns the default expr-backed Evaluator.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{}
}

func (e *ExprEvaluator) Exec(code string, env map[string]any, out io.Writer) error {
	execEnv := make(map[string]any, len(env)+3)
	for k, v := range env {
		execEnv[k] = v
	}
	emit := func(args ...any) any {
		for _, a := range args {
			_, _ = fmt.Fprint(out, scalarText(a))
		}
		return nil
	}
	execEnv["echo"] = emit
	execEnv["print"] = emit
	execEnv["printf"] = func(format string, args ...any) any {
		_, _ = fmt.Fprintf(out, format, args...)
		return nil
	}

	program, err := expr.Compile(stripVarSigils(code), expr.Env(execEnv))
	if err != nil {
		return err
	}
	result, err := expr.Run(program, execEnv)
	if err != nil {
		return err
	}
	if result != nil {
		_, _ = fmt.Fprint(out, scalarText(result))
	}
	return nil
}

func (e *ExprEvaluator) EvalBool(cond string, env map[string]any) (bool, error) {
	program, err := expr.Compile(stripVarSigils(cond), expr.Env(env))
	if err != nil {
		return false, err
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	return truthy(result), nil
}

// stripVarSigils rewrites $name tokens to bare identifiers, leaving quoted
// string literals untouched. Unknown names are deliberately not checked
// here: an undefined reference surfaces as a compile error, which callers
// treat as a failed (false) condition.
func stripVarSigils(src string) string {
	if !strings.Contains(src, "$") {
		return src
	}
	var out strings.Builder
	var inQuote byte
	for i := 0; i < len(src); i++ {
		ch := src[i]
		if inQuote != 0 {
			out.WriteByte(ch)
			if ch == inQuote {
				inQuote = 0
			}
			continue
		}
		switch {
		case ch == '\'' || ch == '"':
			inQuote = ch
			out.WriteByte(ch)
		case ch == '$' && i+1 < len(src) && isIdentStart(src[i+1]):
			// drop the sigil, keep the identifier
		default:
			out.WriteByte(ch)
		}
	}
	return out.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// truthy applies scripting-language truthiness to an evaluator result.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case float32:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
