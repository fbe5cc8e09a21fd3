package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tagwright/tagwright/pkg/dataset"
)

// DataAPI holds the dependencies for the dataset API handlers.
type DataAPI struct {
	datasets *dataset.Store
	logger   *slog.Logger
}

// NewDataAPI creates a new instance of the DataAPI.
func NewDataAPI(datasets *dataset.Store, logger *slog.Logger) *DataAPI {
	return &DataAPI{
		datasets: datasets,
		logger:   logger,
	}
}

// RegisterRoutes sets up the routing for all /api/data endpoints.
func (d *DataAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/data", d.handleList)
	mux.HandleFunc("/api/data/", d.handleSet)
}

// handleList returns every stored variable set with its last-modified time.
func (d *DataAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, scopeDataRead) {
		respondForbidden(w, scopeDataRead)
		return
	}

	infos, err := d.datasets.List(r.Context())
	if err != nil {
		d.logger.Error("Failed to list datasets", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	respondWithJSON(w, http.StatusOK, infos)
}

// handleSet manages CRUD operations for a single named variable set.
func (d *DataAPI) handleSet(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/data/"), "/")
	if name == "" || strings.Contains(name, "/") {
		respondWithError(w, http.StatusNotFound, "Not Found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !hasScope(r, scopeDataRead) {
			respondForbidden(w, scopeDataRead)
			return
		}
		vars, err := d.datasets.Get(r.Context(), name)
		if err != nil {
			if errors.Is(err, dataset.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, fmt.Sprintf("Dataset '%s' not found", name))
				return
			}
			d.logger.Error("Failed to load dataset", "dataset", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Database query failed")
			return
		}
		respondWithJSON(w, http.StatusOK, vars)

	case http.MethodPut:
		if !hasScope(r, scopeDataWrite) {
			respondForbidden(w, scopeDataWrite)
			return
		}
		var vars map[string]any
		if err := json.NewDecoder(r.Body).Decode(&vars); err != nil {
			respondWithError(w, http.StatusBadRequest, "Request body must be a JSON object")
			return
		}
		if err := d.datasets.Put(r.Context(), name, vars); err != nil {
			d.logger.Error("Failed to save dataset", "dataset", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to save dataset")
			return
		}
		d.logger.Info("Dataset saved via API", "dataset", name, "keys", len(vars))
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if !hasScope(r, scopeDataWrite) {
			respondForbidden(w, scopeDataWrite)
			return
		}
		if err := d.datasets.Delete(r.Context(), name); err != nil {
			if errors.Is(err, dataset.ErrNotFound) {
				respondWithError(w, http.StatusNotFound, fmt.Sprintf("Dataset '%s' not found", name))
				return
			}
			d.logger.Error("Failed to delete dataset", "dataset", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to delete dataset")
			return
		}
		d.logger.Info("Dataset deleted via API", "dataset", name)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
