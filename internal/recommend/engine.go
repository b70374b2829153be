package recommend

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kusuri/internal/metrics"
	"github.com/hyperjump/kusuri/internal/models"
	"github.com/hyperjump/kusuri/internal/snapshot"
	"github.com/hyperjump/kusuri/pkg/utils"
)

// SnapshotSource yields the snapshot to serve from. *snapshot.Holder implements it.
type SnapshotSource interface {
	Current() *snapshot.Snapshot
}

// Engine runs recommendation requests against the current snapshot.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	source    SnapshotSource
	overFetch int
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithOverFetch sets K, the candidate margin beyond the requested size.
func WithOverFetch(k int) Option {
	return func(e *Engine) {
		if k >= 0 {
			e.overFetch = k
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine reading from source.
func NewEngine(source SnapshotSource, opts ...Option) *Engine {
	e := &Engine{source: source, overFetch: DefaultOverFetch}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// Recommend runs Lookup → Select → Normalize → Score → Rank → Project for req.
// The snapshot is pinned once at the start so a concurrent reload never mixes datasets.
// A failed lookup returns *NotFoundError and no results.
func (e *Engine) Recommend(req *models.RecommendationRequest) (*models.RecommendationResponse, error) {
	start := time.Now()
	resp, err := e.recommend(req, start)
	switch {
	case err == nil:
		metrics.RecordRecommendation(metrics.OutcomeOK, time.Since(start), resp.Count)
	case errors.Is(err, ErrNotFound):
		metrics.RecordRecommendation(metrics.OutcomeNotFound, 0, 0)
	case errors.Is(err, ErrInvalidRequest):
		metrics.RecordRecommendation(metrics.OutcomeInvalid, 0, 0)
	}
	return resp, err
}

func (e *Engine) recommend(req *models.RecommendationRequest, start time.Time) (*models.RecommendationResponse, error) {
	if req.ResultSize < 1 {
		return nil, fmt.Errorf("%w: result size must be at least 1, got %d", ErrInvalidRequest, req.ResultSize)
	}
	projection, err := models.ParseProjection(string(req.Projection))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	snap := e.source.Current()
	if snap == nil {
		return nil, ErrNoSnapshot
	}

	query, ok := snap.Records.FindIndex(req.Query)
	if !ok {
		return nil, &NotFoundError{Query: req.Query}
	}

	cands := SelectCandidates(query, snap.Similarity.Row(query), req.ResultSize, e.overFetch)
	NormalizeSatisfaction(cands, snap.Records)
	Score(cands, Weights{
		Alpha:              req.Alpha,
		SatisfactionWeight: req.SatisfactionWeight,
		SideEffectWeight:   req.SideEffectWeight,
		ManufacturerWeight: req.ManufacturerWeight,
	})
	ranked := Rank(cands, req.ResultSize)
	results := Project(ranked, snap.Records, projection)

	e.logger.Debug("recommendation",
		zap.String("query", req.Query),
		zap.Int("query_index", query),
		zap.Int("candidates", len(cands)),
		zap.Int("results", len(results)),
		zap.String("snapshot", snap.Version),
	)

	return &models.RecommendationResponse{
		Query:           req.Query,
		Results:         results,
		Count:           len(results),
		Projection:      string(projection),
		SnapshotVersion: snap.Version,
		QueryTime:       time.Since(start).Milliseconds(),
	}, nil
}
