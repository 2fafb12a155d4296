// Package prioritization runs the ranking engine over stored sessions.
package prioritization

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/onnwee/aria/internal/ranking"
	"github.com/onnwee/aria/internal/requirement"
	"github.com/onnwee/aria/internal/session"
	"github.com/onnwee/aria/internal/tracing"
)

// ModelVersion identifies the scoring heuristic in responses.
const ModelVersion = "1.0.0"

// ErrNoRequirements is returned when the session holds nothing to rank.
var ErrNoRequirements = errors.New("no requirements found for session")

// Metadata describes a prioritization run.
type Metadata struct {
	TotalRequirements int                  `json:"totalRequirements"`
	AverageScore      float64              `json:"averageScore"`
	ModelVersion      string               `json:"modelVersion"`
	WeightsUsed       ranking.WeightVector `json:"weightsUsed"`
}

// Response is returned by Analyze.
type Response struct {
	SessionID        string                               `json:"sessionId"`
	Results          []requirement.PrioritizedRequirement `json:"prioritizedRequirements"`
	ProcessingTimeMs int64                                `json:"processingTimeMs"`
	Metadata         Metadata                             `json:"metadata"`
}

// Service ranks session requirements and stores the results.
type Service struct {
	store    session.Store
	engine   *ranking.Engine
	defaults ranking.WeightVector
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultWeights replaces the built-in default weights, e.g. with a
// loaded calibration.
func WithDefaultWeights(w ranking.WeightVector) Option {
	return func(s *Service) { s.defaults = w }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service.
func NewService(store session.Store, engine *ranking.Engine, opts ...Option) *Service {
	s := &Service{
		store:    store,
		engine:   engine,
		defaults: ranking.DefaultWeightVector(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultWeights returns the weights used when a request supplies none.
func (s *Service) DefaultWeights() ranking.WeightVector {
	return s.defaults
}

// ResolveWeights applies per-field defaults to partial input and validates.
func (s *Service) ResolveWeights(in *ranking.WeightInput) (ranking.WeightVector, error) {
	if in == nil {
		return s.defaults, nil
	}
	merged := s.defaults.Input()
	if in.BusinessValue != nil {
		merged.BusinessValue = in.BusinessValue
	}
	if in.Cost != nil {
		merged.Cost = in.Cost
	}
	if in.Risk != nil {
		merged.Risk = in.Risk
	}
	if in.Urgency != nil {
		merged.Urgency = in.Urgency
	}
	if in.StakeholderValue != nil {
		merged.StakeholderValue = in.StakeholderValue
	}
	return merged.Resolve()
}

// Analyze ranks the session's requirements and replaces its stored results.
// An empty sessionID selects the user's latest session.
func (s *Service) Analyze(ctx context.Context, userID, sessionID string, weights *ranking.WeightInput) (resp *Response, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "prioritization.Analyze")
	defer func() { endSpan(err) }()

	start := s.now()

	w, err := s.ResolveWeights(weights)
	if err != nil {
		s.metrics.observeRun(OutcomeInvalid)
		return nil, err
	}

	sess, err := s.resolveSession(ctx, userID, sessionID)
	if err != nil {
		s.observeError(err)
		return nil, err
	}

	tracing.SetAttributes(ctx, tracing.SessionIDKey.String(sess.ID), tracing.WeightsKey.String(w.String()))

	reqs, err := s.store.Requirements(ctx, userID, sess.ID)
	if err != nil {
		s.observeError(err)
		return nil, err
	}
	tracing.SetAttributes(ctx, tracing.RequirementCountKey.Int(len(reqs)))
	if len(reqs) == 0 {
		s.metrics.observeRun(OutcomeInvalid)
		return nil, ErrNoRequirements
	}

	results := s.engine.Rank(reqs, w)
	if err := s.store.ReplacePrioritized(ctx, userID, sess.ID, session.Run{Weights: w, Results: results}); err != nil {
		s.observeError(err)
		return nil, err
	}

	avg := AverageScore(results)
	tracing.SetAttributes(ctx, tracing.AverageScoreKey.Float64(avg))
	elapsed := s.now().Sub(start)
	s.metrics.observeSuccess(elapsed.Seconds(), len(results), avg)

	s.logger.InfoContext(ctx, "session prioritized",
		slog.String("session_id", sess.ID),
		slog.Int("requirements", len(results)),
		slog.Float64("average_score", avg),
		slog.String("weights", w.String()))

	resp = NewResponse(sess.ID, session.Run{Weights: w, Results: results})
	resp.ProcessingTimeMs = elapsed.Milliseconds()
	return resp, nil
}

// Results returns the stored batch for a session.
func (s *Service) Results(ctx context.Context, userID, sessionID string) (*session.Run, error) {
	return s.store.Prioritized(ctx, userID, sessionID)
}

// Stored returns the last run for a session in the Analyze response shape,
// with a zero processing time.
func (s *Service) Stored(ctx context.Context, userID, sessionID string) (*Response, error) {
	run, err := s.store.Prioritized(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return NewResponse(sessionID, *run), nil
}

// NewResponse builds a Response for a stored or fresh run.
func NewResponse(sessionID string, run session.Run) *Response {
	return &Response{
		SessionID: sessionID,
		Results:   run.Results,
		Metadata: Metadata{
			TotalRequirements: len(run.Results),
			AverageScore:      AverageScore(run.Results),
			ModelVersion:      ModelVersion,
			WeightsUsed:       run.Weights,
		},
	}
}

func (s *Service) resolveSession(ctx context.Context, userID, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return s.store.Latest(ctx, userID)
	}
	return s.store.Get(ctx, userID, sessionID)
}

func (s *Service) observeError(err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		s.metrics.observeRun(OutcomeNotFound)
		return
	}
	s.metrics.observeRun(OutcomeError)
}

// AverageScore is the mean priority score, 0 for no results.
func AverageScore(results []requirement.PrioritizedRequirement) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.PriorityScore
	}
	return sum / float64(len(results))
}
