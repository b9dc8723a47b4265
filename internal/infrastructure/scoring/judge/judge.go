// Package judge scores answers with an LLM acting as grader.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

const (
	relevancyQuestions = 3
	correctnessWeight  = 0.75
)

var (
	errNoVerdicts = errors.New("judge returned no verdicts")
	// errBackend marks completer and embedder failures. They abort scoring,
	// unlike unusable verdicts which only drop the metric.
	errBackend = errors.New("judge backend unavailable")
)

type Options struct {
	// RatePerSecond limits completer and embedder calls. Zero disables limiting.
	RatePerSecond float64
	Burst         int
	Logger        *slog.Logger
}

type Judge struct {
	completer ports.Completer
	embedder  ports.Embedder
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func New(completer ports.Completer, embedder ports.Embedder, opts Options) *Judge {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{
		completer: completer,
		embedder:  embedder,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
	}
}

// Score returns the mean of every metric over samples. A metric whose verdicts
// were unusable for every sample is left out. A completer or embedder failure
// fails the whole call.
func (j *Judge) Score(
	ctx context.Context,
	samples []domain.ScoringSample,
	metrics []domain.MetricName,
) (map[domain.MetricName]float64, error) {
	if len(samples) == 0 || len(metrics) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "judge score", fmt.Errorf("samples and metrics are required"))
	}

	out := make(map[domain.MetricName]float64, len(metrics))
	var errs []error
	for _, metric := range metrics {
		sum, n := 0.0, 0
		for _, sample := range samples {
			v, err := j.scoreOne(ctx, metric, sample)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				if errors.Is(err, errBackend) {
					return nil, fmt.Errorf("%s: %w", metric, err)
				}
				j.logger.Warn("metric_scoring_failed", "metric", metric, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", metric, err))
				continue
			}
			if math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
		if n > 0 {
			out[metric] = sum / float64(n)
		}
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (j *Judge) scoreOne(ctx context.Context, metric domain.MetricName, s domain.ScoringSample) (float64, error) {
	switch metric {
	case domain.MetricFaithfulness:
		return j.faithfulness(ctx, s)
	case domain.MetricAnswerRelevancy:
		return j.answerRelevancy(ctx, s)
	case domain.MetricContextPrecision:
		return j.contextPrecision(ctx, s)
	case domain.MetricContextRecall:
		return j.contextRecall(ctx, s)
	case domain.MetricAnswerSimilarity:
		return j.answerSimilarity(ctx, s)
	case domain.MetricAnswerCorrectness:
		return j.answerCorrectness(ctx, s)
	default:
		return 0, fmt.Errorf("unsupported metric %q", metric)
	}
}

func (j *Judge) faithfulness(ctx context.Context, s domain.ScoringSample) (float64, error) {
	var resp struct {
		Statements []struct {
			Verdict int `json:"verdict"`
		} `json:"statements"`
	}
	if err := j.ask(ctx, fmt.Sprintf(faithfulnessPrompt, joinContexts(s.Contexts), s.Answer), &resp); err != nil {
		return 0, err
	}
	if len(resp.Statements) == 0 {
		return math.NaN(), nil
	}
	supported := 0
	for _, st := range resp.Statements {
		if st.Verdict == 1 {
			supported++
		}
	}
	return float64(supported) / float64(len(resp.Statements)), nil
}

func (j *Judge) answerRelevancy(ctx context.Context, s domain.ScoringSample) (float64, error) {
	var resp struct {
		Questions    []string `json:"questions"`
		Noncommittal int      `json:"noncommittal"`
	}
	if err := j.ask(ctx, fmt.Sprintf(relevancyPrompt, relevancyQuestions, s.Answer), &resp); err != nil {
		return 0, err
	}
	if resp.Noncommittal == 1 {
		return 0, nil
	}
	questions := nonBlank(resp.Questions)
	if len(questions) == 0 {
		return 0, errNoVerdicts
	}

	vectors, err := j.embed(ctx, append([]string{s.Question}, questions...))
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range vectors[1:] {
		sum += cosine(vectors[0], v)
	}
	return sum / float64(len(questions)), nil
}

// contextPrecision is the average precision of the per-context usefulness
// verdicts, in retrieval order.
func (j *Judge) contextPrecision(ctx context.Context, s domain.ScoringSample) (float64, error) {
	if len(s.Contexts) == 0 {
		return math.NaN(), nil
	}
	verdicts := make([]bool, 0, len(s.Contexts))
	for _, c := range s.Contexts {
		var resp struct {
			Verdict int `json:"verdict"`
		}
		if err := j.ask(ctx, fmt.Sprintf(precisionPrompt, s.Question, s.GroundTruth, c), &resp); err != nil {
			return 0, err
		}
		verdicts = append(verdicts, resp.Verdict == 1)
	}
	return averagePrecision(verdicts), nil
}

func (j *Judge) contextRecall(ctx context.Context, s domain.ScoringSample) (float64, error) {
	var resp struct {
		Sentences []struct {
			Attributed int `json:"attributed"`
		} `json:"sentences"`
	}
	if err := j.ask(ctx, fmt.Sprintf(recallPrompt, s.Question, joinContexts(s.Contexts), s.GroundTruth), &resp); err != nil {
		return 0, err
	}
	if len(resp.Sentences) == 0 {
		return math.NaN(), nil
	}
	attributed := 0
	for _, st := range resp.Sentences {
		if st.Attributed == 1 {
			attributed++
		}
	}
	return float64(attributed) / float64(len(resp.Sentences)), nil
}

func (j *Judge) answerSimilarity(ctx context.Context, s domain.ScoringSample) (float64, error) {
	if strings.TrimSpace(s.Answer) == "" || strings.TrimSpace(s.GroundTruth) == "" {
		return math.NaN(), nil
	}
	vectors, err := j.embed(ctx, []string{s.Answer, s.GroundTruth})
	if err != nil {
		return 0, err
	}
	return cosine(vectors[0], vectors[1]), nil
}

func (j *Judge) answerCorrectness(ctx context.Context, s domain.ScoringSample) (float64, error) {
	var resp struct {
		TP []string `json:"TP"`
		FP []string `json:"FP"`
		FN []string `json:"FN"`
	}
	if err := j.ask(ctx, fmt.Sprintf(correctnessPrompt, s.Question, s.Answer, s.GroundTruth), &resp); err != nil {
		return 0, err
	}
	tp, fp, fn := float64(len(resp.TP)), float64(len(resp.FP)), float64(len(resp.FN))
	f1 := 0.0
	if tp+fp+fn > 0 {
		f1 = tp / (tp + 0.5*(fp+fn))
	}

	similarity, err := j.answerSimilarity(ctx, s)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(similarity) {
		return f1, nil
	}
	return correctnessWeight*f1 + (1-correctnessWeight)*similarity, nil
}

func (j *Judge) ask(ctx context.Context, prompt string, out any) error {
	if err := j.limiter.Wait(ctx); err != nil {
		return err
	}
	raw, err := j.completer.Complete(ctx, prompt, 0)
	if err != nil {
		return fmt.Errorf("judge completion: %w: %w", errBackend, err)
	}
	return decodeJSON(raw, out)
}

func (j *Judge) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if j.embedder == nil {
		return nil, fmt.Errorf("judge embeddings: %w: no embedder configured", errBackend)
	}
	if err := j.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vectors, err := j.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("judge embeddings: %w: %w", errBackend, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("judge embeddings: %w: expected %d vectors, got %d", errBackend, len(texts), len(vectors))
	}
	return vectors, nil
}

// decodeJSON reads the first JSON object in raw; models like to wrap it in
// prose or code fences.
func decodeJSON(raw string, out any) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return fmt.Errorf("judge output has no JSON object: %q", truncate(raw, 120))
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), out); err != nil {
		return fmt.Errorf("decode judge output: %w", err)
	}
	return nil
}

func averagePrecision(verdicts []bool) float64 {
	relevant, sum := 0, 0.0
	for i, useful := range verdicts {
		if !useful {
			continue
		}
		relevant++
		sum += float64(relevant) / float64(i+1)
	}
	if relevant == 0 {
		return 0
	}
	return sum / float64(relevant)
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	v := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, v))
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
