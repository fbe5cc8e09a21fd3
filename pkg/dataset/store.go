package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tagwright/tagwright/pkg/tagtpl"
)

// ErrNotFound is returned when no variable set exists under the requested
// name.
var ErrNotFound = errors.New("dataset: not found")

// SetupSchema initializes the dataset table in the provided database. It is
// idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS template_datasets (
    name        TEXT      PRIMARY KEY,
    vars        TEXT      NOT NULL,
    updated_at  DATETIME  NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("could not create dataset schema: %w", err)
	}
	return nil
}

// Info describes a stored variable set without its contents.
type Info struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store reads and writes named variable sets. It holds the database
// connection and prepared SQL statements; create one with NewStore and
// release it with Close.
type Store struct {
	db         *sql.DB
	stmtList   *sql.Stmt
	stmtGet    *sql.Stmt
	stmtUpsert *sql.Stmt
	stmtDelete *sql.Stmt
	logger     *slog.Logger
}

// NewStore creates and returns a new Store, pre-compiling all necessary SQL
// statements. It returns an error if any preparation fails.
func NewStore(db *sql.DB) (*Store, error) {
	stmtList, err := db.Prepare(`SELECT name, updated_at FROM template_datasets ORDER BY name;`)
	if err != nil {
		return nil, err
	}

	stmtGet, err := db.Prepare(`SELECT vars FROM template_datasets WHERE name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtUpsert, err := db.Prepare(`INSERT INTO template_datasets (name, vars, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET vars = excluded.vars, updated_at = excluded.updated_at;`)
	if err != nil {
		return nil, err
	}

	stmtDelete, err := db.Prepare(`DELETE FROM template_datasets WHERE name = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:         db,
		stmtList:   stmtList,
		stmtGet:    stmtGet,
		stmtUpsert: stmtUpsert,
		stmtDelete: stmtDelete,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store.
func (s *Store) Close() {
	_ = s.stmtList.Close()
	_ = s.stmtGet.Close()
	_ = s.stmtUpsert.Close()
	_ = s.stmtDelete.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are
// discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// List returns the name and last-modified time of every stored set.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list datasets: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var infos []Info
	for rows.Next() {
		var info Info
		if err = rows.Scan(&info.Name, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("could not scan dataset row: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Get returns the variable set stored under name. List values come back as
// []any of map[string]any and numbers as float64, per encoding/json; Bind
// normalizes them for the renderer.
func (s *Store) Get(ctx context.Context, name string) (map[string]any, error) {
	var raw string
	err := s.stmtGet.QueryRowContext(ctx, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not read dataset %q: %w", name, err)
	}

	var vars map[string]any
	if err = json.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, fmt.Errorf("could not decode dataset %q: %w", name, err)
	}
	return vars, nil
}

// Put stores a variable set under name, replacing any existing set.
func (s *Store) Put(ctx context.Context, name string, vars map[string]any) error {
	data, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("could not encode dataset %q: %w", name, err)
	}
	if _, err = s.stmtUpsert.ExecContext(ctx, name, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("could not store dataset %q: %w", name, err)
	}
	s.logger.Debug("stored dataset", "name", name, "bytes", len(data))
	return nil
}

// Delete removes the set stored under name. Deleting a name that does not
// exist returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.stmtDelete.ExecContext(ctx, name)
	if err != nil {
		return fmt.Errorf("could not delete dataset %q: %w", name, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Bind assigns every entry of a variable set into the renderer. JSON list
// shapes are normalized to record lists; list elements that are not flat
// objects are skipped.
func Bind(r *tagtpl.Renderer, vars map[string]any) {
	for key, val := range vars {
		if items, ok := val.([]any); ok {
			recs := make([]tagtpl.Record, 0, len(items))
			for _, item := range items {
				if m, ok := item.(map[string]any); ok {
					recs = append(recs, tagtpl.Record(m))
				}
			}
			r.Assign(key, recs)
			continue
		}
		r.Assign(key, val)
	}
}
