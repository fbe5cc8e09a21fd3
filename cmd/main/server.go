package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tagwright/tagwright/pkg/dataset"
	"github.com/tagwright/tagwright/pkg/tagtpl"
)

// templateExt is the filename suffix every servable template carries.
const templateExt = ".tpl.html"

type Server struct {
	cm          *ConfigManager
	db          *sql.DB
	logger      *slog.Logger
	datasets    *dataset.Store
	templateDir string
	authAPI     *AuthAPI
	templateAPI *TemplateAPI
	dataAPI     *DataAPI
	statsAPI    *StatsAPI
	serverAPI   *ServerAPI
	pagesMux    *http.ServeMux
	apiMux      *http.ServeMux
}

func NewServer(cm *ConfigManager, logger *slog.Logger, db *sql.DB, actionChan chan string) (*Server, error) {

	config := cm.Get()
	templateDir := filepath.Join(config.Server.DataDir, "templates")
	if err := os.MkdirAll(templateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create template directory: %w", err)
	}

	datasets, err := dataset.NewStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset store: %w", err)
	}
	datasets.SetLogger(logger)

	// api initialization
	authAPI := NewAuthAPI(db, logger)
	templateAPI := NewTemplateAPI(cm, datasets, templateDir, logger)
	dataAPI := NewDataAPI(datasets, logger)
	statsAPI := NewStatsAPI(db, logger)
	serverAPI := NewServerAPI(cm, actionChan, logger)

	// create object, register routes to the mux, and return it
	server := &Server{
		cm:          cm,
		db:          db,
		logger:      logger,
		datasets:    datasets,
		templateDir: templateDir,
		authAPI:     authAPI,
		templateAPI: templateAPI,
		dataAPI:     dataAPI,
		statsAPI:    statsAPI,
		serverAPI:   serverAPI,
		pagesMux:    http.NewServeMux(),
		apiMux:      http.NewServeMux(),
	}

	apiMux := http.NewServeMux()

	server.authAPI.RegisterRoutes(apiMux)
	server.templateAPI.RegisterRoutes(apiMux)
	server.dataAPI.RegisterRoutes(apiMux)
	server.statsAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)

	// Make sure api functions must pass through authentication first
	authedAPI := server.authAPI.Authenticate(apiMux)
	// ... except for the health check, which is unauthed so something like
	// docker can use it
	server.apiMux.HandleFunc("/api/health", server.serverAPI.handleHealthCheck)

	server.apiMux.Handle("/api/", authedAPI)

	server.pagesMux.HandleFunc("/favicon.ico", handleFavicon)
	server.pagesMux.HandleFunc("/", server.handlePage)

	return server, nil
}

// Close releases resources owned by the server but not by main.
func (s *Server) Close() {
	s.datasets.Close()
}

// newRenderer builds a fresh renderer for one request: per-render isolation
// is what keeps concurrent page loads from sharing a data store.
func (s *Server) newRenderer() *tagtpl.Renderer {
	config := s.cm.Get()
	return tagtpl.New(s.logger, nil, config.Renderer)
}

// handlePage renders the template named by the request path, with the
// variable set named by the data query parameter (or the configured
// default) bound into the renderer.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(r.URL.Path, "/")
	if name == "" {
		http.NotFound(w, r)
		return
	}
	if strings.Contains(name, "..") || strings.ContainsRune(name, filepath.Separator) {
		http.NotFound(w, r)
		return
	}
	if !strings.HasSuffix(name, templateExt) {
		name += templateExt
	}

	content, err := os.ReadFile(filepath.Join(s.templateDir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	renderer := s.newRenderer()

	setName := r.URL.Query().Get("data")
	if setName == "" {
		setName = s.cm.Get().Server.DefaultDataset
	}
	if setName != "" {
		vars, err := s.datasets.Get(r.Context(), setName)
		if err != nil {
			s.logger.Warn("Failed to load dataset for page, rendering without data", "dataset", setName, "error", err)
		} else {
			dataset.Bind(renderer, vars)
		}
	}

	out := renderer.Render(string(content))

	if err = s.statsAPI.LogRender(r.Context(), name, setName); err != nil {
		s.logger.Warn("Failed to record render stats", "template", name, "error", err)
	}

	s.logger.Info(
		"Serving rendered page",
		"template", name,
		"dataset", setName,
		"remote_addr", s.clientIP(r))

	setPageHeaders(w)
	_, _ = w.Write([]byte(out))
}

func setPageHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}

// clientIP resolves the originating client address, honoring forwarding
// headers only when the request came through a trusted proxy.
func (s *Server) clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If splitting fails (e.g., no port), use the address as is.
		ip = r.RemoteAddr
	}

	if !s.cm.IsTrusted(ip) {
		return ip
	}

	// The X-Real-Ip header contains the forwarded IP in some cases (like
	// from nginx)
	realIP := r.Header.Get("X-Real-Ip")
	if realIP != "" {
		return realIP
	}

	// The X-Forwarded-For header can contain a comma-separated list of IPs.
	// The first IP in the list is the original client IP.
	forwardedFor := r.Header.Get("X-Forwarded-For")
	if forwardedFor != "" {
		ips := strings.Split(forwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	return ip
}

// handleFavicon keeps favicon requests out of the render log by answering
// them with no content.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
