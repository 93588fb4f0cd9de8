// Package server exposes the aggregation, browsing and collection
// operations as a JSON API for a UI layer.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/paging"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Backend is what the handlers need from the application.
type Backend interface {
	SearchPage(ctx context.Context, keyword string, mediaType domain.MediaType, page, limit int) ([]domain.Record, int, error)
	QuickSearch(ctx context.Context, keyword string) map[domain.SourceType]domain.Record
	Browse(ctx context.Context, category domain.Category, page int) (paging.Page, error)
	SwitchCategory(category domain.Category) (paging.View, error)
	Schedule(ctx context.Context) (domain.WeeklySchedule, error)
	Collection(ctx context.Context) ([]domain.CollectedItem, error)
	IsCollected(ctx context.Context, sourceID string) (bool, error)
	Collect(ctx context.Context, record domain.Record, watchStatus, notes string) (domain.CollectedItem, error)
	Uncollect(ctx context.Context, sourceID string) error
}

type Server struct {
	log     zerolog.Logger
	backend Backend
	router  *mux.Router
}

func New(log zerolog.Logger, backend Backend) *Server {
	s := &Server{
		log:     log.With().Str("module", "server").Logger(),
		backend: backend,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", s.search).Methods(http.MethodGet)
	api.HandleFunc("/quick", s.quick).Methods(http.MethodGet)
	api.HandleFunc("/browse/{category}/switch", s.switchCategory).Methods(http.MethodPost)
	api.HandleFunc("/browse/{category}/{page}", s.browse).Methods(http.MethodGet)
	api.HandleFunc("/schedule", s.schedule).Methods(http.MethodGet)
	api.HandleFunc("/collection", s.listCollection).Methods(http.MethodGet)
	api.HandleFunc("/collection", s.addCollection).Methods(http.MethodPost)
	api.HandleFunc("/collection/{sourceId}", s.checkCollection).Methods(http.MethodGet)
	api.HandleFunc("/collection/{sourceId}", s.removeCollection).Methods(http.MethodDelete)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

type searchResponse struct {
	Items []domain.Record `json:"items"`
	Total int             `json:"total"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mediaType := domain.MediaMovie
	if t := q.Get("type"); t != "" {
		mt, err := domain.ParseMediaType(t)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		mediaType = mt
	}

	page, err := intParam(q.Get("page"), "page", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(q.Get("limit"), "limit", defaultLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit = min(limit, maxLimit)

	items, total, err := s.backend.SearchPage(r.Context(), q.Get("q"), mediaType, page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: total})
}

func (s *Server) quick(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.writeError(w, r, domain.NewUserInputError("keyword", "required"))
		return
	}
	writeJSON(w, http.StatusOK, s.backend.QuickSearch(r.Context(), q))
}

func (s *Server) browse(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	category, err := domain.ParseCategory(vars["category"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := intParam(vars["page"], "page", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.backend.Browse(r.Context(), category, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) switchCategory(w http.ResponseWriter, r *http.Request) {
	category, err := domain.ParseCategory(mux.Vars(r)["category"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.backend.SwitchCategory(category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) schedule(w http.ResponseWriter, r *http.Request) {
	sched, err := s.backend.Schedule(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) listCollection(w http.ResponseWriter, r *http.Request) {
	items, err := s.backend.Collection(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) checkCollection(w http.ResponseWriter, r *http.Request) {
	sourceID := mux.Vars(r)["sourceId"]

	ok, err := s.backend.IsCollected(r.Context(), sourceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source_id": sourceID, "collected": ok})
}

type collectRequest struct {
	Record      domain.Record `json:"record"`
	WatchStatus string        `json:"watch_status"`
	Notes       string        `json:"notes"`
}

func (s *Server) addCollection(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, domain.NewUserInputError("body", err.Error()))
		return
	}

	item, err := s.backend.Collect(r.Context(), req.Record, req.WatchStatus, req.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) removeCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Uncollect(r.Context(), mux.Vars(r)["sourceId"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(raw, field string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewUserInputError(field, "not a number: "+raw)
	}
	return n, nil
}

func statusOf(err error) int {
	switch {
	case domain.IsUserInput(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotCollected):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyCollected):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": domain.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
