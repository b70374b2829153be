package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kusuri/internal/metrics"
	"github.com/hyperjump/kusuri/internal/models"
	"github.com/hyperjump/kusuri/internal/recommend"
	"github.com/hyperjump/kusuri/internal/storage"
	"github.com/hyperjump/kusuri/internal/validation"
	"github.com/hyperjump/kusuri/pkg/utils"
)

const maxListLimit = 100

type errorResponse struct {
	Error       string                  `json:"error"`
	Fields      []validation.FieldError `json:"fields,omitempty"`
	Suggestions []string                `json:"suggestions,omitempty"`
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Medicine Recommendation API!"})
}

// handleRecommendLegacy serves POST /recommend: a bare array of results keyed by
// dataset column names.
func (s *Server) handleRecommendLegacy(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.recommend(w, r)
	if !ok {
		return
	}
	out := make([]models.LegacyRecommendation, len(resp.Results))
	for i, rec := range resp.Results {
		out[i] = rec.Legacy()
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.recommend(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// recommend decodes, validates and runs a request. When ok is false the error response
// has already been written.
func (s *Server) recommend(w http.ResponseWriter, r *http.Request) (resp *models.RecommendationResponse, ok bool) {
	var input models.RecommendationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		metrics.RecordRecommendation(metrics.OutcomeInvalid, 0, 0)
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	req := input.Resolve(s.defaults)
	verr := validation.ValidateStruct(req)
	if verr == nil {
		verr = validation.ValidateVar("top_n", req.ResultSize, fmt.Sprintf("max=%d", s.config.Recommend.MaxResultSize))
	}
	if verr != nil {
		metrics.RecordRecommendation(metrics.OutcomeInvalid, 0, 0)
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Fields: verr.Fields})
		return nil, false
	}

	s.logger.Debug("recommend request",
		zap.String("query", req.Query),
		zap.Int("top_n", req.ResultSize),
		zap.Float64("alpha", req.Alpha),
	)
	resp, err := s.engine.Recommend(req)
	if err != nil {
		s.respondRecommendError(w, req.Query, err)
		return nil, false
	}
	return resp, true
}

func (s *Server) respondRecommendError(w http.ResponseWriter, query string, err error) {
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		s.respondJSON(w, http.StatusNotFound, errorResponse{
			Error:       err.Error(),
			Suggestions: s.suggest(query),
		})
	case errors.Is(err, recommend.ErrInvalidRequest):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, recommend.ErrNoSnapshot):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("recommendation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// suggest returns "did you mean" names for an unknown query, or nil when disabled.
func (s *Server) suggest(query string) []string {
	snap := s.holder.Current()
	if snap == nil || snap.Suggester == nil {
		return nil
	}
	names, err := snap.Suggester.Suggest(query, s.config.Suggest.Limit)
	if err != nil {
		s.logger.Warn("suggest failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return names
}

type medicineList struct {
	Query string   `json:"query,omitempty"`
	Names []string `json:"names"`
	Count int      `json:"count"`
}

func (s *Server) handleListMedicines(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Current()
	if snap == nil {
		s.respondError(w, http.StatusServiceUnavailable, recommend.ErrNoSnapshot.Error())
		return
	}
	limit := s.config.Suggest.Limit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	limit = min(limit, maxListLimit)

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	var names []string
	switch {
	case q == "":
		names = snap.Records.Names()
		if len(names) > limit {
			names = names[:limit]
		}
	case snap.Suggester != nil:
		var err error
		names, err = snap.Suggester.Suggest(q, limit)
		if err != nil {
			s.logger.Error("suggest failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	default:
		names = prefixMatches(snap.Records.Names(), q, limit)
	}
	if names == nil {
		names = []string{}
	}
	s.respondJSON(w, http.StatusOK, medicineList{Query: q, Names: names, Count: len(names)})
}

// prefixMatches is the lookup used when the name index is disabled.
func prefixMatches(names []string, q string, limit int) []string {
	prefix := utils.FoldName(q)
	var out []string
	for _, n := range names {
		if strings.HasPrefix(utils.FoldName(n), prefix) {
			out = append(out, n)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func (s *Server) handleGetMedicine(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Current()
	if snap == nil {
		s.respondError(w, http.StatusServiceUnavailable, recommend.ErrNoSnapshot.Error())
		return
	}
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	i, ok := snap.Records.FindIndex(name)
	if !ok {
		err := &recommend.NotFoundError{Query: name}
		s.respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Suggestions: s.suggest(name)})
		return
	}
	s.respondJSON(w, http.StatusOK, snap.Records.Get(i))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.Status())
}

// Status reports the served snapshot, dataset files and scoring configuration.
func (s *Server) Status() models.Status {
	snap := s.holder.Current()
	cfg := s.config
	st := models.Status{
		SuggestionsEnabled: cfg.Suggest.EnabledOrDefault(),
		WatchEnabled:       cfg.Data.WatchOrDefault(),
		Config: models.StatusConfig{
			RecordsPath:            cfg.Data.RecordsPath,
			SimilarityPath:         cfg.Data.SimilarityPath,
			DatabasePath:           cfg.Data.DatabasePath,
			DefaultResultSize:      cfg.Recommend.DefaultResultSize,
			MaxResultSize:          cfg.Recommend.MaxResultSize,
			OverFetch:              cfg.Recommend.OverFetch,
			Alpha:                  cfg.Recommend.Alpha,
			SatisfactionWeight:     cfg.Recommend.SatisfactionWeight,
			SideEffectWeight:       cfg.Recommend.SideEffectWeight,
			ManufacturerWeight:     cfg.Recommend.ManufacturerWeight,
			SatisfactionProjection: cfg.Recommend.SatisfactionProjection,
		},
	}
	if snap != nil {
		st.Records = snap.Records.Len()
		st.SnapshotVersion = snap.Version
		st.LoadedAt = snap.LoadedAt
	}
	files, total, err := storage.DataUsage(cfg.Data.RecordsPath, cfg.Data.SimilarityPath, cfg.Data.DatabasePath)
	if err != nil {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	} else {
		st.Files = files
		st.DiskUsageBytes = total
	}
	return st
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.holder.Reload()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("reload failed, keeping current dataset: %v", err))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "reloaded",
		"version": snap.Version,
		"records": snap.Records.Len(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Current()
	if snap == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "records": snap.Records.Len()})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}
