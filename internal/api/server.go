package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baxromumarov/job-aggregator/internal/core"
	"github.com/baxromumarov/job-aggregator/internal/scraper"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

// Store is the slice of *store.Store the HTTP layer reads and writes.
type Store interface {
	Ping(ctx context.Context) error

	ListPostings(ctx context.Context, f store.PostingFilter) ([]store.Posting, error)
	GetPosting(ctx context.Context, id int64) (store.Posting, error)

	GetProfile(ctx context.Context, userID string) (store.Profile, error)
	SaveProfile(ctx context.Context, p store.Profile) (store.Profile, error)
	MarkApplied(ctx context.Context, userID string, postingID int64) (store.Application, error)
	ListApplications(ctx context.Context, userID string, limit, offset int) ([]store.Application, error)

	ListSources(ctx context.Context) ([]store.Source, error)
	SetSourceActive(ctx context.Context, id string, active bool) (store.Source, error)
}

type Ingester interface {
	Run(ctx context.Context) (core.Summary, error)
}

type CareerTools interface {
	CoverLetter(ctx context.Context, p scraper.Posting, skills []string) (string, error)
	InterviewQuestions(ctx context.Context, p scraper.Posting, skills []string) ([]string, error)
}

type Config struct {
	DefaultCountry string
	// IngestSecret guards POST /internal/ingest. Empty disables the trigger.
	IngestSecret string
}

type Server struct {
	router   *chi.Mux
	store    Store
	search   core.Searcher
	ingester Ingester
	career   CareerTools
	matcher  *core.Matcher
	cfg      Config
	logger   *slog.Logger
}

func NewServer(st Store, search core.Searcher, ingester Ingester, career CareerTools, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultCountry == "" {
		cfg.DefaultCountry = "in"
	}
	s := &Server{
		router:   chi.NewRouter(),
		store:    st,
		search:   search,
		ingester: ingester,
		career:   career,
		matcher:  core.NewMatcher(),
		cfg:      cfg,
		logger:   logger.With("component", "api"),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", headerUserID, headerUserRole},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Post("/internal/ingest", s.handleIngest)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(requireUser)

		r.Get("/search", s.handleSearch)
		r.Get("/postings", s.handleListPostings)
		r.Get("/postings/{id}", s.handleGetPosting)
		r.Post("/postings/{id}/apply", s.handleApply)
		r.Post("/postings/{id}/cover-letter", s.handleCoverLetter)
		r.Post("/postings/{id}/interview-questions", s.handleInterviewQuestions)
		r.Get("/applications", s.handleListApplications)
		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handlePutProfile)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/sources", s.handleListSources)
			r.Patch("/sources/{id}", s.handleUpdateSource)
		})
	})
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
