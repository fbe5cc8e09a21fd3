package tagtpl

import (
	"os"
	"path/filepath"
	"regexp"
)

var includeRe = regexp.MustCompile(`\[tag::include\(\s*(?:"([^"]*)"|'([^']*)')\s*\)\]`)

// resolveIncludes is the fourth pass: each include tag is replaced by the
// referenced file's own output. The file is read and executed in the same
// trusted manner as a snippet body (any [tag::php] spans inside it run
// through the Evaluator); it is not re-run through the earlier passes.
//
// A path that does not exist, is not a regular file, exceeds the configured
// size limit, or cannot be read substitutes an HTML-escaped diagnostic
// naming the requested path.
func (r *Renderer) resolveIncludes(template string) string {
	return includeRe.ReplaceAllStringFunc(template, func(match string) string {
		groups := includeRe.FindStringSubmatch(match)
		path := groups[1]
		if path == "" {
			path = groups[2]
		}
		out, err := r.includeFile(path)
		if err != nil {
			r.logger.Debug("include failed", "path", path, "error", err)
			return escapeError("include error", err.Error())
		}
		return out
	})
}

func (r *Renderer) includeFile(path string) (string, error) {
	resolved := path
	if r.config.IncludeRoot != "" {
		resolved = filepath.Join(r.config.IncludeRoot, path)
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", &includeError{path: path, reason: "not found or not readable"}
	}
	if r.config.MaxIncludeBytes > 0 && info.Size() > r.config.MaxIncludeBytes {
		return "", &includeError{path: path, reason: "not found or not readable"}
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return "", &includeError{path: path, reason: "not found or not readable"}
	}

	// The executed file's own output: snippet spans run, everything else
	// splices through verbatim. Snippet failures inside the file fold into
	// the spliced text the same way they do in the main template.
	return r.execSnippets(string(content)), nil
}

type includeError struct {
	path   string
	reason string
}

func (e *includeError) Error() string {
	return e.path + " " + e.reason
}
