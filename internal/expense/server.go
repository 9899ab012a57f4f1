package expense

import (
	"log/slog"
	"net/http"
)

// DefaultMaxFileSize is the upload size cap when none is configured (6 MiB)
const DefaultMaxFileSize = 6291456

// Config holds server-level settings read once at startup
type Config struct {
	// MaxFileSize caps the upload body in bytes; DefaultMaxFileSize when zero
	MaxFileSize int64
	// CORSOrigin is the allowed origin; any origin when empty
	CORSOrigin string
	// Environment gates serving of the embedded frontend ("production")
	Environment string
}

// Server handles HTTP requests for the extraction pipeline and expenses
type Server struct {
	service *Service
	config  Config
	mux     *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, config Config) *Server {
	return NewServerWithMux(service, config, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, config Config, mux *http.ServeMux) *Server {
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	s := &Server{
		service: service,
		config:  config,
		mux:     mux,
	}
	s.registerRoutes()
	return s
}

// corsMiddleware adds CORS headers to responses and answers preflight requests
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	origin := s.config.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux
// Routes must be registered from most specific to least specific to avoid conflicts
func (s *Server) registerRoutes() {
	// Extraction pipeline and health
	s.mux.HandleFunc("POST /api/extract", s.handleExtract)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Expense collection
	s.mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	s.mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	s.mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	s.mux.HandleFunc("DELETE /api/expenses", s.handleClearExpenses)

	// Static frontend (catch-all registered last)
	s.mux.HandleFunc("GET /static/app.css", s.handleStaticCSS)
	s.mux.HandleFunc("GET /static/app.js", s.handleStaticJS)
	s.mux.HandleFunc("GET /index.html", s.handleIndex)
	s.mux.HandleFunc("GET /", s.handleIndex)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
