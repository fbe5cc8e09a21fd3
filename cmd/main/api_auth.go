package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Scopes mirror the API surfaces this server exposes: template files,
// variable sets, render stats, and the server itself. A resource's write
// scope implies its read scope, and "*" grants everything.
const (
	scopeAuthManage     = "auth:manage"
	scopeTemplatesRead  = "templates:read"
	scopeTemplatesWrite = "templates:write"
	scopeDataRead       = "data:read"
	scopeDataWrite      = "data:write"
	scopeStatsRead      = "stats:read"
	scopeServerConfig   = "server:config"
	scopeServerControl  = "server:control"
)

var knownScopes = []string{
	scopeAuthManage,
	scopeTemplatesRead,
	scopeTemplatesWrite,
	scopeDataRead,
	scopeDataWrite,
	scopeStatsRead,
	scopeServerConfig,
	scopeServerControl,
}

const authSchema = `
CREATE TABLE IF NOT EXISTS api_keys (
    id          INTEGER  PRIMARY KEY,
    key_hash    TEXT     NOT NULL UNIQUE,
    scopes      TEXT     NOT NULL,
    description TEXT     NOT NULL,
    created_at  DATETIME NOT NULL,
    last_used   DATETIME
);
`

type contextKey string

const contextKeyPermissions = contextKey("permissions")

// Permissions is the authentication result attached to a request.
type Permissions struct {
	KeyID  int // 0 while the API runs open, before the first key exists
	scopes map[string]struct{}
}

func newPermissions(keyID int, scopesStr string) *Permissions {
	set := make(map[string]struct{})
	for _, s := range strings.Fields(scopesStr) {
		set[s] = struct{}{}
	}
	return &Permissions{KeyID: keyID, scopes: set}
}

// Allows reports whether the permission set covers a scope. The master
// scope covers everything, and a write scope covers the matching read
// scope, so a key that can edit templates can also list them.
func (p *Permissions) Allows(scope string) bool {
	if _, ok := p.scopes["*"]; ok {
		return true
	}
	if _, ok := p.scopes[scope]; ok {
		return true
	}
	if resource, found := strings.CutSuffix(scope, ":read"); found {
		if _, ok := p.scopes[resource+":write"]; ok {
			return true
		}
	}
	return false
}

func (p *Permissions) scopeList() []string {
	out := make([]string, 0, len(p.scopes))
	for s := range p.scopes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// AuthAPI holds the dependencies for the authentication API handlers.
type AuthAPI struct {
	db     *sql.DB
	logger *slog.Logger
}

func setupAuthSchema(db *sql.DB) error {
	if _, err := db.Exec(authSchema); err != nil {
		return err
	}
	return nil
}

func NewAuthAPI(db *sql.DB, logger *slog.Logger) *AuthAPI {
	return &AuthAPI{
		db:     db,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/auth endpoints on a
// standard http.ServeMux.
func (a *AuthAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/me", a.handleCheckMe)
	mux.HandleFunc("/api/auth/scopes", a.handleScopes)
	mux.HandleFunc("/api/auth/keys", a.handleKeys)
	mux.HandleFunc("/api/auth/keys/", a.handleKeyByID)
}

// APIKeyInfo is the structure returned when listing keys.
type APIKeyInfo struct {
	ID          int        `json:"id"`
	Scopes      []string   `json:"scopes"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
}

// CreateKeyRequest is the expected JSON body for creating a new key.
type CreateKeyRequest struct {
	Scopes      []string `json:"scopes"`
	Description string   `json:"description"`
}

// CreateKeyResponse is the JSON response after creating a key.
type CreateKeyResponse struct {
	ID     int      `json:"id"`
	RawKey string   `json:"raw_key"`
	Scopes []string `json:"scopes"`
}

// Authenticate checks for a valid key in the "tw-auth" header and attaches
// the key's permissions to the request. While no keys exist the API runs
// open with master permissions, so the first key can be created at all;
// every authenticated request updates the key's last_used timestamp.
func (a *AuthAPI) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		var keyCount int
		err := a.db.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM api_keys").Scan(&keyCount)
		if err != nil {
			a.logger.Error("Authenticate failed to count keys", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if keyCount == 0 {
			ctx := context.WithValue(r.Context(), contextKeyPermissions, newPermissions(0, "*"))
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		apiKey := r.Header.Get("tw-auth")
		if apiKey == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		var keyID int
		var scopesStr string
		err = a.db.QueryRowContext(r.Context(),
			"SELECT id, scopes FROM api_keys WHERE key_hash = ?", hashAPIKey(apiKey)).Scan(&keyID, &scopesStr)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			a.logger.Error("Authenticate failed to query API key", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Usage tracking is best-effort; a failed update never blocks the
		// request.
		if _, err = a.db.ExecContext(r.Context(), "UPDATE api_keys SET last_used = ? WHERE id = ?", time.Now(), keyID); err != nil {
			a.logger.Debug("Failed to record key usage", "id", keyID, "error", err)
		}

		ctx := context.WithValue(r.Context(), contextKeyPermissions, newPermissions(keyID, scopesStr))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthAPI) handleKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listKeys(w, r)
	case http.MethodPost:
		a.createKey(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (a *AuthAPI) handleKeyByID(w http.ResponseWriter, r *http.Request) {
	trimmedPath := strings.TrimPrefix(r.URL.Path, "/api/auth/keys/")
	idStr := strings.TrimSuffix(trimmedPath, "/") // Handle optional trailing slash

	id, err := strconv.Atoi(idStr)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid key ID format in URL")
		return
	}

	if r.Method == http.MethodDelete {
		a.deleteKey(w, r, id)
	} else {
		w.Header().Set("Allow", "DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed for this key resource")
	}
}

// handleCheckMe reports the calling key's identity and effective scopes.
func (a *AuthAPI) handleCheckMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	perms, ok := r.Context().Value(contextKeyPermissions).(*Permissions)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"key_id": perms.KeyID,
		"scopes": perms.scopeList(),
	})
}

// handleScopes lists every scope a key can be granted, so admin UIs don't
// hard-code the scope vocabulary.
func (a *AuthAPI) handleScopes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, knownScopes)
}

func (a *AuthAPI) listKeys(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeAuthManage) {
		respondForbidden(w, scopeAuthManage)
		return
	}

	rows, err := a.db.QueryContext(r.Context(), `SELECT id, description, scopes, created_at, last_used FROM api_keys ORDER BY id`)
	if err != nil {
		a.logger.Error("Failed to query API keys", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var keys []APIKeyInfo
	for rows.Next() {
		var key APIKeyInfo
		var scopesStr string
		var lastUsed sql.NullTime
		if err = rows.Scan(&key.ID, &key.Description, &scopesStr, &key.CreatedAt, &lastUsed); err != nil {
			a.logger.Error("Failed to scan API key row", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to process database results")
			return
		}
		key.Scopes = strings.Fields(scopesStr)
		if lastUsed.Valid {
			key.LastUsed = &lastUsed.Time
		}
		keys = append(keys, key)
	}
	respondWithJSON(w, http.StatusOK, keys)
}

// parseScopes validates and deduplicates a requested scope list against the
// known vocabulary, returning the space-joined storage form.
func parseScopes(requested []string) (string, error) {
	if len(requested) == 0 {
		return "", errors.New("at least one scope is required")
	}
	seen := make(map[string]struct{}, len(requested))
	out := make([]string, 0, len(requested))
	for _, s := range requested {
		if _, dup := seen[s]; dup {
			continue
		}
		if s != "*" && !slices.Contains(knownScopes, s) {
			return "", fmt.Errorf("unknown scope %q", s)
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return strings.Join(out, " "), nil
}

func (a *AuthAPI) createKey(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, scopeAuthManage) {
		respondForbidden(w, scopeAuthManage)
		return
	}

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	var keyCount int
	_ = a.db.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM api_keys").Scan(&keyCount)

	var scopesStr string
	if keyCount == 0 {
		// The first key created is always given the master scope, no matter
		// what was requested, so the user cannot softlock themselves out.
		scopesStr = "*"
	} else {
		var err error
		scopesStr, err = parseScopes(req.Scopes)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rawKey, err := generateAPIKey()
	if err != nil {
		a.logger.Error("Failed to generate new API key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Key generation failed")
		return
	}

	var newID int
	err = a.db.QueryRowContext(r.Context(),
		`INSERT INTO api_keys (key_hash, description, scopes, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		hashAPIKey(rawKey), req.Description, scopesStr, time.Now()).Scan(&newID)
	if err != nil {
		a.logger.Error("Failed to insert new API key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save new key")
		return
	}

	response := CreateKeyResponse{
		ID:     newID,
		RawKey: rawKey,
		Scopes: strings.Fields(scopesStr),
	}
	respondWithJSON(w, http.StatusCreated, response)
}

func (a *AuthAPI) deleteKey(w http.ResponseWriter, r *http.Request, id int) {
	if !hasScope(r, scopeAuthManage) {
		respondForbidden(w, scopeAuthManage)
		return
	}

	var targetScopes string
	err := a.db.QueryRowContext(r.Context(), "SELECT scopes FROM api_keys WHERE id = ?", id).Scan(&targetScopes)
	if errors.Is(err, sql.ErrNoRows) {
		respondWithError(w, http.StatusNotFound, "Key not found")
		return
	}
	if err != nil {
		a.logger.Error("Failed to look up API key", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}

	// Deleting the last master key would lock auth management permanently,
	// since key creation itself needs a scope once keys exist.
	if slices.Contains(strings.Fields(targetScopes), "*") {
		masters, err := a.countMasterKeys(r.Context())
		if err != nil {
			a.logger.Error("Failed to count master keys", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Database query failed")
			return
		}
		if masters <= 1 {
			respondWithError(w, http.StatusBadRequest, "Cannot delete the only master key")
			return
		}
	}

	if _, err = a.db.ExecContext(r.Context(), "DELETE FROM api_keys WHERE id = ?", id); err != nil {
		a.logger.Error("Failed to delete API key", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *AuthAPI) countMasterKeys(ctx context.Context) (int, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT scopes FROM api_keys")
	if err != nil {
		return 0, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	count := 0
	for rows.Next() {
		var scopesStr string
		if err = rows.Scan(&scopesStr); err != nil {
			return 0, err
		}
		if slices.Contains(strings.Fields(scopesStr), "*") {
			count++
		}
	}
	return count, rows.Err()
}

// hasScope checks if the permission set in the request context covers a
// required scope.
func hasScope(r *http.Request, requiredScope string) bool {
	perms, ok := r.Context().Value(contextKeyPermissions).(*Permissions)
	if !ok {
		return false
	}
	return perms.Allows(requiredScope)
}

func generateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return "tw_" + hex.EncodeToString(bytes), nil
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func respondForbidden(w http.ResponseWriter, scope string) {
	respondWithError(w, http.StatusForbidden, fmt.Sprintf("Forbidden: requires '%s' scope", scope))
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
