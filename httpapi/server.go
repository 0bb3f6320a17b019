// Package httpapi exposes the status/run/log/config HTTP surface, serves
// the static dashboard with Home Assistant ingress-prefix rewriting, and
// pushes live status over a WebSocket.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/hartman-ems/battery-ems/store"
	"github.com/hartman-ems/battery-ems/supervisor"
)

// Server wires the Supervisor and Store to an http.Handler.
type Server struct {
	sup    *supervisor.Supervisor
	cfg    *store.Store
	logDir string
	logger *log.Logger

	mux *http.ServeMux
	hub *hub

	staticDir string
}

// Options configures optional Server behavior.
type Options struct {
	StaticDir string // empty disables static-asset serving
	LogDir    string
}

// NewServer builds the HTTP handler. Call Handler() to get the
// http.Handler to pass to an http.Server.
func NewServer(sup *supervisor.Supervisor, cfg *store.Store, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		sup:       sup,
		cfg:       cfg,
		logDir:    opts.LogDir,
		logger:    logger,
		mux:       http.NewServeMux(),
		hub:       newHub(),
		staticDir: opts.StaticDir,
	}
	s.routes()
	go s.hub.broadcastLoop(5*time.Second, s.statusJSON)
	return s
}

// Handler returns the root http.Handler, wrapped with ingress-prefix
// filtering of static asset responses.
func (s *Server) Handler() http.Handler {
	return filterIngressPrefix(s.mux, s.staticDir, s.logger)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/", s.handleStatusRoot)
	s.mux.HandleFunc("/api/run", s.handleRun)
	s.mux.HandleFunc("/api/log", s.handleLog)
	s.mux.HandleFunc("/api/ws", s.handleWS)

	s.mux.HandleFunc("/config", s.handleConfigAll)
	s.mux.HandleFunc("/config/general", s.handleGeneral)
	s.mux.HandleFunc("/config/inverters", s.handleInverters)
	s.mux.HandleFunc("/config/data_manager", s.handleDataManager)
	s.mux.HandleFunc("/config/mode/manual", s.handleModeManual)
	s.mux.HandleFunc("/config/mode/static", s.handleModeStatic)
	s.mux.HandleFunc("/config/mode/dynamic", s.handleModeDynamic)

	if s.staticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "msg": err.Error()})
}
