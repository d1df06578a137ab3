package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"task-manager/internal/config"
	"task-manager/pkg/task"
)

// Server is the HTTP API server.
type Server struct {
	tasks   *task.Service
	cfg     config.Config
	mux     *http.ServeMux
	handler http.Handler
	static  http.Handler // nil when no WASM bundle is present
}

// New creates a new Server.
func New(tasks *task.Service, cfg config.Config) *Server {
	s := &Server{
		tasks: tasks,
		cfg:   cfg,
		mux:   http.NewServeMux(),
	}
	if fi, err := os.Stat(cfg.WasmDir); err == nil && fi.IsDir() {
		s.static = http.FileServer(http.Dir(cfg.WasmDir))
	}
	s.routes()

	var h http.Handler = s.mux
	if cfg.Development() {
		h = logRequests(h)
	}
	h = s.cors(h)
	s.handler = recoverPanics(h)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("GET /api/tasks/stats", s.handleTaskStats)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("PUT /api/tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("/api/", s.handleNotFound)

	// Static files (Gio WASM UI) or 404
	s.mux.HandleFunc("/", s.handleRoot)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.FrontendURL)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.RequestURI(), rec.status, time.Since(start).Round(time.Microsecond))
	})
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Printf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				respond(w, failure{
					status:  http.StatusInternalServerError,
					message: "Internal server error",
					err:     errInternal,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
