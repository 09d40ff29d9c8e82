// Package server exposes the diary over a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chronicle/internal/database"
	"github.com/TobiSchelling/chronicle/internal/export"
	"github.com/TobiSchelling/chronicle/internal/llm"
	"github.com/TobiSchelling/chronicle/internal/logging"
	"github.com/TobiSchelling/chronicle/internal/pipeline"
	"github.com/TobiSchelling/chronicle/internal/segment"
)

const defaultListLimit = 20

// Server handles HTTP requests for entries and seasons.
type Server struct {
	db       *database.DB
	pipeline *pipeline.Pipeline
	provider llm.Provider
	logger   *zap.Logger
	version  string
	mux      *http.ServeMux
}

// New creates a server. A nil provider disables AI processing; entries are
// then stored as raw text.
func New(db *database.DB, p *pipeline.Pipeline, provider llm.Provider, logger *zap.Logger, version string) *Server {
	s := &Server{
		db:       db,
		pipeline: p,
		provider: provider,
		logger:   logging.OrNop(logger).Named("server"),
		version:  version,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.health)

	s.mux.HandleFunc("GET /entries", s.listEntries)
	s.mux.HandleFunc("POST /entries", s.addEntry)
	s.mux.HandleFunc("POST /entries/guided", s.addGuided)
	s.mux.HandleFunc("GET /entries/{id}", s.getEntry)
	s.mux.HandleFunc("DELETE /entries/{id}", s.deleteEntry)
	s.mux.HandleFunc("POST /entries/{id}/regenerate", s.regenerate)
	s.mux.HandleFunc("GET /entries/{id}/export", s.exportEntry)

	s.mux.HandleFunc("GET /seasons", s.listSeasons)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", "http://"+addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withCORS adds CORS headers for browser clients.
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"provider": s.providerName(),
		"ai":       s.available(r.Context()),
	})
}

// AddEntryRequest is the request body for adding an entry.
type AddEntryRequest struct {
	Text   string `json:"text"`
	Date   string `json:"date,omitempty"`
	SkipAI bool   `json:"skip_ai,omitempty"`
}

// GuidedEntryRequest is the request body for a guided entry.
type GuidedEntryRequest struct {
	segment.Guided
	Date   string `json:"date,omitempty"`
	SkipAI bool   `json:"skip_ai,omitempty"`
}

// EntryResponse is the JSON form of an entry.
type EntryResponse struct {
	ID           int64                     `json:"id"`
	Date         string                    `json:"date"`
	RawText      string                    `json:"raw_text"`
	Title        string                    `json:"title"`
	Narrative    *string                   `json:"narrative,omitempty"`
	TitleOptions []database.TitleOption    `json:"title_options,omitempty"`
	Conflict     *database.ConflictProfile `json:"conflict,omitempty"`
	Metadata     *database.EpisodeMetadata `json:"metadata,omitempty"`
	SeasonID     *int64                    `json:"season_id,omitempty"`
	CreatedAt    *string                   `json:"created_at,omitempty"`
	UpdatedAt    *string                   `json:"updated_at,omitempty"`
	Processed    bool                      `json:"processed"`
}

func toResponse(e *database.Entry) EntryResponse {
	return EntryResponse{
		ID:           e.ID,
		Date:         e.Date,
		RawText:      e.RawText,
		Title:        e.DisplayTitle(),
		Narrative:    e.NarrativeText,
		TitleOptions: e.TitleOptions,
		Conflict:     e.Conflict,
		Metadata:     e.Metadata,
		SeasonID:     e.SeasonID,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		Processed:    e.IsComplete(),
	}
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	var req AddEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.create(w, r, req.Text, req.Date, req.SkipAI)
}

func (s *Server) addGuided(w http.ResponseWriter, r *http.Request) {
	var req GuidedEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.create(w, r, req.Compose(), req.Date, req.SkipAI)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, text, date string, skipAI bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if date == "" {
		date = database.GetToday()
	} else if err := database.ValidateDate(date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e := &database.Entry{Date: date, RawText: text}
	var err error
	if !skipAI && s.available(r.Context()) {
		err = s.pipeline.Process(r.Context(), e, false)
	} else {
		err = s.db.CreateEntry(e)
	}
	if err != nil {
		s.logger.Error("failed to save entry", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("entry created", zap.Int64("entry", e.ID), zap.Bool("processed", e.IsComplete()))
	writeJSON(w, http.StatusCreated, toResponse(e))
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.db.ListEntries(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]EntryResponse, len(entries))
	for i := range entries {
		out[i] = toResponse(&entries[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": out,
		"count":   len(out),
	})
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(e))
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	deleted, err := s.db.DeleteEntry(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !s.available(r.Context()) {
		writeError(w, http.StatusServiceUnavailable, "generative backend unavailable")
		return
	}
	if err := s.pipeline.Process(r.Context(), e, true); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResponse(e))
}

func (s *Server) exportEntry(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	doc := export.Markdown(e)

	switch r.URL.Query().Get("format") {
	case "", "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(doc))
	case "html":
		page, err := export.HTML(e.DisplayTitle(), doc)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	default:
		writeError(w, http.StatusBadRequest, "format must be markdown or html")
	}
}

// SeasonResponse is the JSON form of a season.
type SeasonResponse struct {
	ID             int64               `json:"id"`
	Title          string              `json:"title"`
	StartDate      string              `json:"start_date"`
	EndDate        string              `json:"end_date"`
	EpisodeCount   int                 `json:"episode_count"`
	Description    string              `json:"description"`
	Mode           string              `json:"mode"`
	DominantThemes []string            `json:"dominant_themes"`
	Arc            *database.SeasonArc `json:"arc,omitempty"`
}

func (s *Server) listSeasons(w http.ResponseWriter, r *http.Request) {
	seasons, err := s.db.ListSeasons()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]SeasonResponse, len(seasons))
	for i, season := range seasons {
		out[i] = SeasonResponse{
			ID:             season.ID,
			Title:          season.Title,
			StartDate:      season.StartDate,
			EndDate:        season.EndDate,
			EpisodeCount:   season.EpisodeCount,
			Description:    season.Description,
			Mode:           season.Mode,
			DominantThemes: season.DominantThemes,
			Arc:            season.Arc,
		}
		if out[i].DominantThemes == nil {
			out[i].DominantThemes = []string{}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"seasons": out,
		"count":   len(out),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*database.Entry, bool) {
	id, ok := parseID(w, r)
	if !ok {
		return nil, false
	}
	e, err := s.db.GetEntry(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "entry not found")
		return nil, false
	}
	return e, true
}

func (s *Server) available(ctx context.Context) bool {
	return s.provider != nil && s.pipeline != nil && s.provider.IsAvailable(ctx)
}

func (s *Server) providerName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
