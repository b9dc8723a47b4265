package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

type EvaluateOptions struct {
	Writers  []ports.ReportWriter
	Metrics  []domain.MetricName
	Logger   *slog.Logger
	Now      func() time.Time
	NewRunID func() string
}

type EvaluateUseCase struct {
	answers  ports.AnswerService
	scorer   ports.AnswerScorer
	writers  []ports.ReportWriter
	metrics  []domain.MetricName
	logger   *slog.Logger
	now      func() time.Time
	newRunID func() string
}

func NewEvaluateUseCase(answers ports.AnswerService, scorer ports.AnswerScorer, opts EvaluateOptions) *EvaluateUseCase {
	metrics := opts.Metrics
	if len(metrics) == 0 {
		metrics = domain.DefaultMetrics
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newRunID := opts.NewRunID
	if newRunID == nil {
		newRunID = func() string {
			return now().Format("20060102_150405") + "_" + uuid.NewString()[:8]
		}
	}
	return &EvaluateUseCase{
		answers:  answers,
		scorer:   scorer,
		writers:  opts.Writers,
		metrics:  metrics,
		logger:   logger,
		now:      now,
		newRunID: newRunID,
	}
}

// Run evaluates cases one after another. A failing case is recorded and the
// run moves on; only reported cases count towards the aggregates. Writer
// errors are returned together with the finished report.
func (uc *EvaluateUseCase) Run(
	ctx context.Context,
	sess domain.SessionContext,
	cases []domain.EvaluationCase,
) (*domain.EvaluationReport, error) {
	if len(cases) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate", fmt.Errorf("at least one case is required"))
	}

	report := &domain.EvaluationReport{
		RunID:     uc.newRunID(),
		SessionID: sess.SessionID,
		StartedAt: uc.now(),
		Metrics:   append([]domain.MetricName(nil), uc.metrics...),
		Cases:     make([]domain.CaseResult, 0, len(cases)),
	}
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}

	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := uc.evaluateCase(ctx, sess, c)
		report.Cases = append(report.Cases, result)
	}

	aggregate(report, uc.metrics)
	report.FinishedAt = uc.now()

	uc.logger.Info("evaluation_finished",
		"run_id", report.RunID,
		"cases", len(report.Cases),
		"reported", len(report.Reported()),
		"failed", len(report.Failed()),
		"overall_average", report.OverallAverage,
	)

	var writeErrs []error
	for _, w := range uc.writers {
		if err := w.Write(ctx, report); err != nil {
			uc.logger.Error("evaluation_report_write_failed", "run_id", report.RunID, "error", err)
			writeErrs = append(writeErrs, err)
		}
	}
	if len(writeErrs) > 0 {
		return report, fmt.Errorf("write evaluation report: %w", errors.Join(writeErrs...))
	}
	return report, nil
}

func (uc *EvaluateUseCase) evaluateCase(ctx context.Context, sess domain.SessionContext, c domain.EvaluationCase) domain.CaseResult {
	result := domain.CaseResult{Case: c, Status: domain.CasePending}
	fail := func(reason string, err error) domain.CaseResult {
		result.Status = domain.CaseFailed
		result.Error = reason
		if err != nil {
			result.Error = fmt.Sprintf("%s: %v", reason, err)
		}
		result.EvaluatedAt = uc.now()
		uc.logger.Warn("evaluation_case_failed", "case", c.Number, "error", result.Error)
		return result
	}

	answer, err := uc.answers.Answer(ctx, sess, c.Question)
	if err != nil {
		return fail("answer", err)
	}
	if !answer.KnowledgeBaseReady {
		return fail("knowledge base not ready", nil)
	}
	result.Status = domain.CaseAnswered
	result.Answer = answer.Answer
	result.Contexts = answer.Contexts()
	result.Sources = answer.Sources

	sample := domain.ScoringSample{
		Question:    c.Question,
		Answer:      answer.Answer,
		Contexts:    result.Contexts,
		GroundTruth: c.ExpectedAnswer,
	}
	raw, err := uc.scorer.Score(ctx, []domain.ScoringSample{sample}, uc.metrics)
	if err != nil {
		return fail("score", domain.WrapError(domain.ErrScoringFailure, "score case", err))
	}

	scores := make([]domain.MetricScore, 0, len(uc.metrics))
	for _, metric := range uc.metrics {
		v, ok := raw[metric]
		if !ok || math.IsNaN(v) {
			continue
		}
		scores = append(scores, domain.NewMetricScore(metric, v))
	}
	if len(scores) == 0 {
		uc.logger.Warn("evaluation_case_without_metrics", "case", c.Number)
		return fail("no metric could be computed", nil)
	}
	result.Status = domain.CaseScored
	result.Scores = scores
	result.Average = meanScore(scores)
	result.Rating = domain.Rate(result.Average)
	result.Recommendations = recommend(scores)

	result.Status = domain.CaseReported
	result.EvaluatedAt = uc.now()
	return result
}

func aggregate(report *domain.EvaluationReport, metrics []domain.MetricName) {
	report.MetricAverages = make([]domain.MetricScore, 0, len(metrics))
	for _, metric := range metrics {
		sum, n := 0.0, 0
		for _, c := range report.Cases {
			if c.Status != domain.CaseReported {
				continue
			}
			if s, ok := c.Score(metric); ok {
				sum += s.Score
				n++
			}
		}
		if n == 0 {
			continue
		}
		report.MetricAverages = append(report.MetricAverages, domain.NewMetricScore(metric, sum/float64(n)))
	}
	if len(report.MetricAverages) > 0 {
		report.OverallAverage = meanScore(report.MetricAverages)
		report.OverallRating = domain.Rate(report.OverallAverage)
	}
	report.Recommendations = recommend(report.MetricAverages)
}

func meanScore(scores []domain.MetricScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s.Score
	}
	return sum / float64(len(scores))
}

func recommend(scores []domain.MetricScore) []domain.Recommendation {
	out := make([]domain.Recommendation, 0)
	for _, s := range scores {
		if s.Score >= domain.RecommendationThreshold {
			continue
		}
		out = append(out, domain.Recommendation{Metric: s.Metric, Score: s.Score, Text: s.Metric.Remediation()})
	}
	return out
}
