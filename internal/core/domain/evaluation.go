package domain

import "time"

type MetricName string

const (
	MetricFaithfulness      MetricName = "faithfulness"
	MetricAnswerRelevancy   MetricName = "answer_relevancy"
	MetricContextPrecision  MetricName = "context_precision"
	MetricContextRecall     MetricName = "context_recall"
	MetricAnswerSimilarity  MetricName = "answer_similarity"
	MetricAnswerCorrectness MetricName = "answer_correctness"
)

// DefaultMetrics are scored on every run; similarity and correctness are opt-in.
var DefaultMetrics = []MetricName{
	MetricFaithfulness,
	MetricAnswerRelevancy,
	MetricContextPrecision,
	MetricContextRecall,
}

// AllMetrics lists every supported metric in report column order.
var AllMetrics = []MetricName{
	MetricFaithfulness,
	MetricAnswerRelevancy,
	MetricContextPrecision,
	MetricContextRecall,
	MetricAnswerSimilarity,
	MetricAnswerCorrectness,
}

func (m MetricName) Valid() bool {
	for _, known := range AllMetrics {
		if m == known {
			return true
		}
	}
	return false
}

// Column is the report column header, e.g. Answer_Relevancy.
func (m MetricName) Column() string {
	b := []byte(m)
	upper := true
	for i, c := range b {
		if upper && c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		upper = c == '_'
	}
	return string(b)
}

// Explanation is the German one-line description used in narrative reports.
func (m MetricName) Explanation() string {
	switch m {
	case MetricFaithfulness:
		return "Treue zu Quellen - Ist die Antwort durch den Kontext gestützt?"
	case MetricAnswerRelevancy:
		return "Antwortrelevanz - Ist die Antwort relevant zur Frage?"
	case MetricContextPrecision:
		return "Kontextpräzision - Ist der abgerufene Kontext relevant?"
	case MetricContextRecall:
		return "Kontext-Vollständigkeit - Wurden alle relevanten Infos gefunden?"
	case MetricAnswerSimilarity:
		return "Antwortähnlichkeit - Wie nah ist die Antwort semantisch an der erwarteten Antwort?"
	case MetricAnswerCorrectness:
		return "Antwortkorrektheit - Stimmen die Fakten mit der erwarteten Antwort überein?"
	default:
		return ""
	}
}

// Remediation is the German advice attached when the metric scores below
// RecommendationThreshold.
func (m MetricName) Remediation() string {
	switch m {
	case MetricFaithfulness:
		return "Faithfulness verbessern: Die Antwort enthält Informationen, die nicht ausreichend durch den Kontext gestützt werden. Überprüfen Sie die Prompt-Templates und Quelldokumente."
	case MetricAnswerRelevancy:
		return "Answer Relevancy erhöhen: Die Antwort geht nicht vollständig auf die Frage ein. Überarbeiten Sie die Prompts für direktere Antworten."
	case MetricContextPrecision:
		return "Context Precision optimieren: Zu viele irrelevante Informationen werden abgerufen. Justieren Sie die Retrieval-Parameter (k-Wert, Chunk-Größe, Similarity-Threshold)."
	case MetricContextRecall:
		return "Context Recall verbessern: Nicht alle relevanten Informationen werden gefunden. Erhöhen Sie möglicherweise die Anzahl der abgerufenen Dokumente oder optimieren Sie das Chunking."
	case MetricAnswerSimilarity:
		return "Answer Similarity steigern: Die Antwort weicht inhaltlich von der erwarteten Antwort ab. Prüfen Sie, ob die relevanten Quellen indexiert sind."
	case MetricAnswerCorrectness:
		return "Answer Correctness verbessern: Fakten in der Antwort stimmen nicht mit der erwarteten Antwort überein. Prüfen Sie Aktualität und Vollständigkeit der Quelldokumente."
	default:
		return ""
	}
}

// AllMetricsFine is reported instead of recommendations when every metric
// reaches RecommendationThreshold.
const AllMetricsFine = "Alle Metriken zeigen gute Performance! Das RAG-System funktioniert gut für diesen Testfall."

type RatingBand string

const (
	RatingExcellent        RatingBand = "excellent"
	RatingGood             RatingBand = "good"
	RatingFair             RatingBand = "fair"
	RatingNeedsImprovement RatingBand = "needs_improvement"
)

const (
	ExcellentThreshold = 0.85
	GoodThreshold      = 0.70
	FairThreshold      = 0.55

	// RecommendationThreshold is the score under which a metric gets remediation advice.
	RecommendationThreshold = 0.70
)

func Rate(score float64) RatingBand {
	switch {
	case score >= ExcellentThreshold:
		return RatingExcellent
	case score >= GoodThreshold:
		return RatingGood
	case score >= FairThreshold:
		return RatingFair
	default:
		return RatingNeedsImprovement
	}
}

// Label is the German band name printed in reports.
func (b RatingBand) Label() string {
	switch b {
	case RatingExcellent:
		return "Exzellent"
	case RatingGood:
		return "Gut"
	case RatingFair:
		return "Befriedigend"
	default:
		return "Verbesserungsbedürftig"
	}
}

type MetricScore struct {
	Metric MetricName `json:"metric"`
	Score  float64    `json:"score"`
	Rating RatingBand `json:"rating"`
}

func NewMetricScore(metric MetricName, score float64) MetricScore {
	switch {
	case score < 0:
		score = 0
	case score > 1:
		score = 1
	}
	return MetricScore{Metric: metric, Score: score, Rating: Rate(score)}
}

type EvaluationCase struct {
	Number           int      `json:"number" yaml:"number"`
	Question         string   `json:"question" yaml:"question"`
	ExpectedAnswer   string   `json:"expected_answer" yaml:"expected_answer"`
	ReferenceSources []string `json:"reference_sources" yaml:"reference_sources"`
}

type CaseStatus string

const (
	CasePending  CaseStatus = "pending"
	CaseAnswered CaseStatus = "answered"
	CaseScored   CaseStatus = "scored"
	CaseReported CaseStatus = "reported"
	CaseFailed   CaseStatus = "failed"
)

// ScoringSample is one input tuple for the scoring capability.
type ScoringSample struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Contexts    []string `json:"contexts"`
	GroundTruth string   `json:"ground_truth"`
}

type CaseResult struct {
	Case            EvaluationCase   `json:"case"`
	Status          CaseStatus       `json:"status"`
	Answer          string           `json:"answer,omitempty"`
	Contexts        []string         `json:"contexts,omitempty"`
	Sources         []string         `json:"sources,omitempty"`
	Scores          []MetricScore    `json:"scores,omitempty"`
	Average         float64          `json:"average"`
	Rating          RatingBand       `json:"rating,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Error           string           `json:"error,omitempty"`
	EvaluatedAt     time.Time        `json:"evaluated_at"`
}

// Score returns the case's score for metric, if it was computed.
func (r CaseResult) Score(metric MetricName) (MetricScore, bool) {
	for _, s := range r.Scores {
		if s.Metric == metric {
			return s, true
		}
	}
	return MetricScore{}, false
}

type Recommendation struct {
	Metric MetricName `json:"metric"`
	Score  float64    `json:"score"`
	Text   string     `json:"text"`
}

type EvaluationReport struct {
	RunID           string           `json:"run_id"`
	SessionID       string           `json:"session_id,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	Metrics         []MetricName     `json:"metrics"`
	Cases           []CaseResult     `json:"cases"`
	MetricAverages  []MetricScore    `json:"metric_averages"`
	OverallAverage  float64          `json:"overall_average"`
	OverallRating   RatingBand       `json:"overall_rating,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Reported returns the cases that made it into the aggregates.
func (r *EvaluationReport) Reported() []CaseResult {
	out := make([]CaseResult, 0, len(r.Cases))
	for _, c := range r.Cases {
		if c.Status == CaseReported {
			out = append(out, c)
		}
	}
	return out
}

func (r *EvaluationReport) Failed() []CaseResult {
	out := make([]CaseResult, 0)
	for _, c := range r.Cases {
		if c.Status == CaseFailed {
			out = append(out, c)
		}
	}
	return out
}
