package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baxromumarov/job-aggregator/internal/core"
	"github.com/baxromumarov/job-aggregator/internal/scraper"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type searchItem struct {
	scraper.Posting
	Match *core.Match `json:"match,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	mode, ok := scraper.ParseWorkMode(q.Get("work_mode"))
	if !ok {
		respondError(w, http.StatusBadRequest, "work_mode must be one of remote, onsite, hybrid")
		return
	}
	kind := strings.ToLower(strings.TrimSpace(q.Get("kind")))
	switch kind {
	case "", "all", string(scraper.KindJob), string(scraper.KindInternship):
	default:
		respondError(w, http.StatusBadRequest, "kind must be one of job, internship, all")
		return
	}
	sortBy := strings.ToLower(strings.TrimSpace(q.Get("sort")))
	switch sortBy {
	case "", "none", "score", "date":
	default:
		respondError(w, http.StatusBadRequest, "sort must be one of score, date, none")
		return
	}
	maxAge := 1
	if v := q.Get("max_age_days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "max_age_days must be a positive integer")
			return
		}
		maxAge = parsed
	}
	country := strings.ToLower(strings.TrimSpace(q.Get("country")))
	if country == "" {
		country = s.cfg.DefaultCountry
	}
	limit, offset := parsePagination(r, defaultPageSize)

	result := s.search.Search(r.Context(), core.SearchParams{
		Query:      query,
		Location:   strings.TrimSpace(q.Get("location")),
		Country:    country,
		WorkMode:   mode,
		MaxAgeDays: maxAge,
	})

	skills := s.callerSkills(r)
	items := make([]searchItem, 0, len(result.Postings))
	for _, p := range result.Postings {
		if kind != "" && kind != "all" && string(p.Kind) != kind {
			continue
		}
		item := searchItem{Posting: p}
		if len(skills) > 0 {
			m := s.matcher.Score(skills, p.Title, p.Description)
			item.Match = &m
		}
		items = append(items, item)
	}

	switch sortBy {
	case "score":
		sort.SliceStable(items, func(i, j int) bool {
			return matchScore(items[i]) > matchScore(items[j])
		})
	case "date":
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i].PostedAt, items[j].PostedAt
			if a == nil || b == nil {
				return a != nil
			}
			return a.After(*b)
		})
	}

	failures := result.Failures
	if failures == nil {
		failures = []core.ProviderFailure{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":            page(items, limit, offset),
		"total":            len(items),
		"limit":            limit,
		"offset":           offset,
		"failed_providers": failures,
	})
}

func matchScore(it searchItem) int {
	if it.Match == nil {
		return 0
	}
	return it.Match.Score
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// callerSkills returns the caller's profile skills; a missing or unreadable
// profile means no skills.
func (s *Server) callerSkills(r *http.Request) []string {
	userID := principalFrom(r.Context()).UserID
	profile, err := s.store.GetProfile(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("load profile failed", "user_id", userID, "error", err)
		}
		return nil
	}
	return profile.Skills
}

func (s *Server) handleListPostings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := parsePagination(r, defaultPageSize)

	mode, ok := scraper.ParseWorkMode(q.Get("work_mode"))
	if !ok {
		respondError(w, http.StatusBadRequest, "work_mode must be one of remote, onsite, hybrid")
		return
	}
	f := store.PostingFilter{
		Source:   scraper.Source(strings.ToLower(strings.TrimSpace(q.Get("source")))),
		Kind:     scraper.Kind(strings.ToLower(strings.TrimSpace(q.Get("kind")))),
		WorkMode: mode,
		Limit:    limit,
		Offset:   offset,
	}
	if f.Kind == "all" {
		f.Kind = ""
	}

	postings, err := s.store.ListPostings(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch postings: "+err.Error())
		return
	}
	if postings == nil {
		postings = []store.Posting{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  postings,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleGetPosting(w http.ResponseWriter, r *http.Request) {
	posting, ok := s.loadPosting(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, posting)
}

// loadPosting resolves the {id} URL parameter, writing the error response
// itself when it fails.
func (s *Server) loadPosting(w http.ResponseWriter, r *http.Request) (store.Posting, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid posting ID")
		return store.Posting{}, false
	}
	posting, err := s.store.GetPosting(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "posting not found")
		return store.Posting{}, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch posting: "+err.Error())
		return store.Posting{}, false
	}
	return posting, true
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid posting ID")
		return
	}

	app, err := s.store.MarkApplied(r.Context(), principalFrom(r.Context()).UserID, id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "posting not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to record application: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, app)
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, defaultPageSize)

	apps, err := s.store.ListApplications(r.Context(), principalFrom(r.Context()).UserID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch applications: "+err.Error())
		return
	}
	if apps == nil {
		apps = []store.Application{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  apps,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleCoverLetter(w http.ResponseWriter, r *http.Request) {
	posting, ok := s.loadPosting(w, r)
	if !ok {
		return
	}
	letter, err := s.career.CoverLetter(r.Context(), posting.Posting, s.callerSkills(r))
	if err != nil {
		s.logger.Warn("cover letter failed", "posting_id", posting.ID, "error", err)
		respondError(w, http.StatusBadGateway, "Cover letter generation failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"cover_letter": letter})
}

func (s *Server) handleInterviewQuestions(w http.ResponseWriter, r *http.Request) {
	posting, ok := s.loadPosting(w, r)
	if !ok {
		return
	}
	questions, err := s.career.InterviewQuestions(r.Context(), posting.Posting, s.callerSkills(r))
	if err != nil {
		s.logger.Warn("interview questions failed", "posting_id", posting.ID, "error", err)
		respondError(w, http.StatusBadGateway, "Interview question generation failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"questions": questions})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := principalFrom(r.Context()).UserID
	profile, err := s.store.GetProfile(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		profile = store.Profile{UserID: userID, Skills: []string{}}
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch profile: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

type ProfileRequest struct {
	FullName string   `json:"full_name"`
	Headline string   `json:"headline"`
	Skills   []string `json:"skills"`
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := s.store.SaveProfile(r.Context(), store.Profile{
		UserID:   principalFrom(r.Context()).UserID,
		FullName: strings.TrimSpace(req.FullName),
		Headline: strings.TrimSpace(req.Headline),
		Skills:   cleanSkills(req.Skills),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save profile: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// cleanSkills lowercases, trims and de-duplicates skills, keeping first-seen
// order.
func cleanSkills(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.ListSources(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch sources: "+err.Error())
		return
	}
	if sources == nil {
		sources = []store.Source{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": sources,
		"total": len(sources),
	})
}

type UpdateSourceRequest struct {
	Active *bool `json:"active"`
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	var req UpdateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Active == nil {
		respondError(w, http.StatusBadRequest, "active is required")
		return
	}

	id := chi.URLParam(r, "id")
	src, err := s.store.SetSourceActive(r.Context(), id, *req.Active)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "source not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update source: "+err.Error())
		return
	}
	s.logger.Info("source updated", "source", src.ID, "active", src.Active, "by", principalFrom(r.Context()).UserID)
	respondJSON(w, http.StatusOK, src)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.ingestAuthorized(r) {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := s.ingester.Run(r.Context())
	if errors.Is(err, core.ErrRunInProgress) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Ingestion failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) ingestAuthorized(r *http.Request) bool {
	if s.cfg.IngestSecret == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.IngestSecret)) == 1
}

func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0

	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
