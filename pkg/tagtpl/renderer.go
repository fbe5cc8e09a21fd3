package tagtpl

import (
	"io"
	"log/slog"
)

// Record is one element of a list value: a flat mapping from field name to
// scalar (string, number, or boolean).
type Record map[string]any

// Renderer is the central controller for the template engine. It owns the
// data store populated through Assign and rewrites template strings through
// Render. A Renderer is not safe for concurrent use; callers that share one
// across goroutines must serialize access externally. Independent Renderer
// instances share nothing.
type Renderer struct {
	logger *slog.Logger
	config *Config
	eval   Evaluator
	vars   map[string]any
}

// New creates a Renderer with the given logger, evaluator, and config.
// A nil logger discards all log output, a nil evaluator falls back to the
// default expr-based ExprEvaluator, and a nil config uses DefaultConfig.
func New(logger *slog.Logger, eval Evaluator, config *Config) *Renderer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if eval == nil {
		eval = NewExprEvaluator()
	}
	if config == nil {
		config = DefaultConfig()
	}
	return &Renderer{
		logger: logger,
		config: config,
		eval:   eval,
		vars:   make(map[string]any),
	}
}

// Assign binds a value to a name in the data store. Accepted values are
// strings, booleans, integers, floats, and lists of records ([]Record or
// []map[string]any). Entries persist for the Renderer's lifetime and a
// later Assign with the same name replaces the earlier value.
func (r *Renderer) Assign(key string, value any) {
	if recs, ok := asRecordList(value); ok {
		r.vars[key] = recs
		return
	}
	r.vars[key] = value
}

// asRecordList normalizes the supported list shapes to []Record.
func asRecordList(value any) ([]Record, bool) {
	switch v := value.(type) {
	case []Record:
		return v, true
	case []map[string]any:
		recs := make([]Record, len(v))
		for i, m := range v {
			recs[i] = Record(m)
		}
		return recs, true
	}
	return nil, false
}

// Render rewrites the template through the five passes, in order: variable
// substitution, block/loop expansion, snippet execution, file inclusion,
// and conditional evaluation. The input string is never modified and the
// data store is read-only for the duration of the call. Render does not
// return an error; every failure mode is folded into the output string.
func (r *Renderer) Render(template string) string {
	out := r.substituteVars(template)
	out = r.expandBlocks(out)
	out = r.execSnippets(out)
	out = r.resolveIncludes(out)
	out = r.evalConditionals(out)
	return out
}

// env builds the evaluation environment handed to the Evaluator: every data
// store key becomes a same-named variable. Lists are flattened to nil so a
// condition or snippet referencing one sees a null-equivalent value rather
// than a structure the expression language would choke on.
func (r *Renderer) env() map[string]any {
	env := make(map[string]any, len(r.vars))
	for key, val := range r.vars {
		if _, ok := val.([]Record); ok {
			env[key] = nil
			continue
		}
		env[key] = val
	}
	return env
}
