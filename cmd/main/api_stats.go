package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const statsSchema = `
CREATE TABLE IF NOT EXISTS stats_render (
    template_name   TEXT PRIMARY KEY,
    total_renders   INTEGER NOT NULL DEFAULT 1,
    last_dataset    TEXT NOT NULL DEFAULT '',
    first_rendered  DATETIME NOT NULL,
    last_rendered   DATETIME NOT NULL
);
`

// GlobalStatsSummary provides a high-level overview of all render activity.
type GlobalStatsSummary struct {
	TotalRenders    int64 `json:"total_renders"`
	UniqueTemplates int64 `json:"unique_templates"`
}

// StatsAPI holds the dependencies for the statistics handlers.
type StatsAPI struct {
	db     *sql.DB
	logger *slog.Logger
}

func setupStatsSchema(db *sql.DB) error {
	_, err := db.Exec(statsSchema)
	return err
}

func NewStatsAPI(db *sql.DB, logger *slog.Logger) *StatsAPI {
	return &StatsAPI{
		db:     db,
		logger: logger,
	}
}

func (s *StatsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stats/summary", s.handleSummary)
	mux.HandleFunc("/api/stats/top_templates", s.handleTopTemplates)
}

// LogRender is the core function called by the page handler. It records a
// single render of a template, tracking which variable set was bound.
func (s *StatsAPI) LogRender(ctx context.Context, templateName, datasetName string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO stats_render (template_name, last_dataset, first_rendered, last_rendered) VALUES (?, ?, ?, ?)
        ON CONFLICT(template_name) DO UPDATE SET total_renders = total_renders + 1, last_dataset = ?, last_rendered = ?
    `, templateName, datasetName, now, now, datasetName, now)
	if err != nil {
		return fmt.Errorf("failed to upsert stats_render: %w", err)
	}
	return nil
}

func (s *StatsAPI) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeStatsRead) {
		respondForbidden(w, scopeStatsRead)
		return
	}
	var summary GlobalStatsSummary
	if err := s.db.QueryRowContext(r.Context(), "SELECT COALESCE(SUM(total_renders), 0) FROM stats_render").Scan(&summary.TotalRenders); err != nil {
		s.logger.Error("Failed to query render totals", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	if err := s.db.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM stats_render").Scan(&summary.UniqueTemplates); err != nil {
		s.logger.Error("Failed to query template count", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (s *StatsAPI) handleTopTemplates(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeStatsRead) {
		respondForbidden(w, scopeStatsRead)
		return
	}
	rows, err := s.db.QueryContext(r.Context(), "SELECT template_name, total_renders, last_dataset, first_rendered, last_rendered FROM stats_render ORDER BY total_renders DESC LIMIT 100")
	if err != nil {
		s.logger.Error("Failed to query top templates", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var results []map[string]any
	for rows.Next() {
		var name, lastDataset string
		var renders int
		var first, last time.Time
		err = rows.Scan(&name, &renders, &lastDataset, &first, &last)
		if err != nil {
			s.logger.Error("Failed to scan top templates", "error", err)
		}
		results = append(results, map[string]any{
			"template_name":  name,
			"total_renders":  renders,
			"last_dataset":   lastDataset,
			"first_rendered": first,
			"last_rendered":  last,
		})
	}
	respondWithJSON(w, http.StatusOK, results)
}
