package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"fixmantra-backend/internal/config"
	"fixmantra-backend/internal/dialog"
	fmlog "fixmantra-backend/internal/log"
	"fixmantra-backend/internal/types"
)

type Server struct {
	router   *chi.Mux
	cfg      config.Config
	resolver *dialog.Resolver
	engine   *dialog.Engine
	log      zerolog.Logger
}

func New(cfg config.Config, resolver *dialog.Resolver, engine *dialog.Engine) *Server {
	r := chi.NewRouter()
	r.Use(requestLogger(fmlog.WithComponent("http")))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}))

	s := &Server{
		router:   r,
		cfg:      cfg,
		resolver: resolver,
		engine:   engine,
		log:      fmlog.WithComponent("server"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))
		}
		r.Post("/predict", s.handlePredict)
	})
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePredict runs one dialogue turn. Both fields are required; a bad
// request never touches session state. The whole turn executes atomically
// per session id inside Engine.Turn, so overlapping requests on the same
// session serialize instead of resolving against a stale context.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req types.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.SessionID) == "" {
		s.writeError(w, http.StatusBadRequest, "message and sessionId are required")
		return
	}

	reply := s.engine.Turn(r.Context(), s.resolver, req.SessionID, req.Message)
	writeJSON(w, http.StatusOK, types.PredictResponse{Reply: reply})
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
