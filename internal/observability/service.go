package observability

import (
	"context"
	"fmt"
)

// Service answers read-only observability queries over a History.
type Service struct {
	history History
}

// NewService creates a Service.
func NewService(h History) *Service {
	return &Service{history: h}
}

// LatencyMetrics summarises run durations inside w.
func (s *Service) LatencyMetrics(ctx context.Context, w Window) (LatencyMetrics, error) {
	runs, err := s.history.Runs(ctx, w)
	if err != nil {
		return LatencyMetrics{}, fmt.Errorf("latency metrics: %w", err)
	}
	durations := make([]float64, 0, len(runs))
	for _, r := range runs {
		durations = append(durations, r.DurationMs)
	}
	return ComputeLatencyMetrics(durations), nil
}

// SuccessRate is the share of runs inside w whose outcome is SUCCESS.
func (s *Service) SuccessRate(ctx context.Context, w Window) (float64, error) {
	runs, err := s.history.Runs(ctx, w)
	if err != nil {
		return 0, fmt.Errorf("success rate: %w", err)
	}
	success := 0
	for _, r := range runs {
		actions, err := s.history.ActionRunsByRun(ctx, r.ID)
		if err != nil {
			return 0, fmt.Errorf("success rate: %w", err)
		}
		if ResolveRunOutcome(r, actions) == OutcomeSuccess {
			success++
		}
	}
	return ComputeSuccessRate(success, len(runs)), nil
}

// FailureBreakdown classifies failed action runs inside w.
func (s *Service) FailureBreakdown(ctx context.Context, w Window) (Breakdown, error) {
	actions, err := s.history.ActionRuns(ctx, w)
	if err != nil {
		return Breakdown{}, fmt.Errorf("failure breakdown: %w", err)
	}
	return FailureBreakdown(actions), nil
}
