package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tagwright/tagwright/pkg/dataset"
	"github.com/tagwright/tagwright/pkg/tagtpl"
)

// TemplateAPI holds the dependencies for the template API handlers.
type TemplateAPI struct {
	cm          *ConfigManager
	datasets    *dataset.Store
	templateDir string
	logger      *slog.Logger
}

// NewTemplateAPI creates a new instance of the TemplateAPI.
func NewTemplateAPI(cm *ConfigManager, datasets *dataset.Store, templateDir string, logger *slog.Logger) *TemplateAPI {
	return &TemplateAPI{
		cm:          cm,
		datasets:    datasets,
		templateDir: templateDir,
		logger:      logger,
	}
}

// RegisterRoutes sets up the routing for all /api/templates endpoints.
func (t *TemplateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/templates/test", t.handleTest)
	mux.HandleFunc("/api/templates/preview", t.handlePreview)
	mux.HandleFunc("/api/templates", t.handleList)
	mux.HandleFunc("/api/templates/", t.handleFile)
}

// render builds a fresh renderer, binds the named variable set (when one
// is given), and renders the template source.
func (t *TemplateAPI) render(r *http.Request, source, setName string) string {
	config := t.cm.Get()
	renderer := tagtpl.New(t.logger, nil, config.Renderer)
	if setName != "" {
		vars, err := t.datasets.Get(r.Context(), setName)
		if err != nil {
			t.logger.Warn("Failed to load dataset for render, continuing without data", "dataset", setName, "error", err)
		} else {
			dataset.Bind(renderer, vars)
		}
	}
	return renderer.Render(source)
}

// handleList returns a list of all available template names.
func (t *TemplateAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, scopeTemplatesRead) {
		respondForbidden(w, scopeTemplatesRead)
		return
	}

	entries, err := os.ReadDir(t.templateDir)
	if err != nil {
		t.logger.Error("Failed to read template directory", "dir", t.templateDir, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to read template directory")
		return
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), templateExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	respondWithJSON(w, http.StatusOK, names)
}

// handleTest renders the request body as a template without saving it,
// so clients can try out tag syntax against a stored variable set.
func (t *TemplateAPI) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, scopeTemplatesRead) {
		respondForbidden(w, scopeTemplatesRead)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}

	out := t.render(r, string(body), r.URL.Query().Get("data"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// handlePreview renders a stored template with an arbitrary variable set.
func (t *TemplateAPI) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, scopeTemplatesRead) {
		respondForbidden(w, scopeTemplatesRead)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'name' is required")
		return
	}

	path, ok := t.resolve(name)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid template name format")
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template '%s' not found", name))
		return
	}

	out := t.render(r, string(content), r.URL.Query().Get("data"))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// resolve maps a template name to an absolute on-disk path, rejecting
// anything that would escape the template directory.
func (t *TemplateAPI) resolve(name string) (string, bool) {
	if strings.Contains(name, "..") || !strings.HasSuffix(name, templateExt) {
		return "", false
	}

	templateDir, err := filepath.Abs(t.templateDir)
	if err != nil {
		return "", false
	}

	absPath, err := filepath.Abs(filepath.Join(templateDir, name))
	if err != nil {
		return "", false
	}
	if !strings.HasPrefix(absPath, templateDir) {
		return "", false
	}
	return absPath, true
}

// handleFile manages CRUD operations for a single template file.
func (t *TemplateAPI) handleFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/templates/")
	if name == "" || strings.HasSuffix(name, "/") {
		respondWithError(w, http.StatusNotFound, "Not Found")
		return
	}

	path, ok := t.resolve(name)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid template name format")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !hasScope(r, scopeTemplatesRead) {
			respondForbidden(w, scopeTemplatesRead)
			return
		}
		content, err := os.ReadFile(path)
		if err != nil {
			respondWithError(w, http.StatusNotFound, "Template not found")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(content)

	case http.MethodPut:
		if !hasScope(r, scopeTemplatesWrite) {
			respondForbidden(w, scopeTemplatesWrite)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read request body: %v", err))
			return
		}
		if err = atomic.WriteFile(path, strings.NewReader(string(body))); err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to write template file: %v", err))
			return
		}
		t.logger.Info("Template saved via API", "template", name, "bytes", len(body))
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if !hasScope(r, scopeTemplatesWrite) {
			respondForbidden(w, scopeTemplatesWrite)
			return
		}
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				respondWithError(w, http.StatusNotFound, "Template not found")
				return
			}
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete template file: %v", err))
			return
		}
		t.logger.Info("Template deleted via API", "template", name)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
