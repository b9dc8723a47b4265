// Package csvreport appends evaluation runs to semicolon separated files
// that open directly in a German Excel locale.
package csvreport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const (
	ResultsFile = "evaluation_results.csv"
	MetricsFile = "evaluation_metrics.csv"
	CasesFile   = "evaluation_cases.csv"

	timestampLayout = "2006-01-02 15:04:05"
	noSources       = "Keine"
)

type Writer struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Write(_ context.Context, report *domain.EvaluationReport) error {
	if report == nil {
		return fmt.Errorf("csv report: nil report")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	return errors.Join(
		w.appendRows(ResultsFile, resultsHeader(), resultRows(report)),
		w.appendRows(MetricsFile, metricsHeader, metricRows(report)),
		w.appendRows(CasesFile, casesHeader, caseRows(report)),
	)
}

// appendRows writes header only when the file is created.
func (w *Writer) appendRows(name string, header []string, rows [][]string) error {
	path := filepath.Join(w.dir, name)
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cw.Comma = ';'
	if fresh {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write %s header: %w", name, err)
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// resultsHeader has a column for every known metric so rows of runs with
// different EVAL_METRICS stay aligned in the shared file.
func resultsHeader() []string {
	header := []string{"Timestamp", "Testfall_Nr", "Frage", "Generierte_Antwort", "Erwartete_Antwort"}
	for _, m := range domain.AllMetrics {
		header = append(header, m.Column())
	}
	return append(header, "Durchschnitt", "Quellen")
}

// resultRows covers reported cases only; failed cases never reach this file.
func resultRows(report *domain.EvaluationReport) [][]string {
	rows := make([][]string, 0, len(report.Cases))
	for _, c := range report.Reported() {
		row := []string{
			c.EvaluatedAt.Format(timestampLayout),
			strconv.Itoa(c.Case.Number),
			c.Case.Question,
			c.Answer,
			c.Case.ExpectedAnswer,
		}
		for _, m := range domain.AllMetrics {
			if s, ok := c.Score(m); ok {
				row = append(row, formatScore(s.Score))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, formatScore(c.Average), joinSources(c.Sources))
		rows = append(rows, row)
	}
	return rows
}

var metricsHeader = []string{"Timestamp", "Lauf", "Metrik", "Durchschnitt", "Bewertung", "Faelle"}

func metricRows(report *domain.EvaluationReport) [][]string {
	ts := report.FinishedAt.Format(timestampLayout)
	reported := strconv.Itoa(len(report.Reported()))
	rows := make([][]string, 0, len(report.MetricAverages)+1)
	for _, avg := range report.MetricAverages {
		rows = append(rows, []string{ts, report.RunID, avg.Metric.Column(), formatScore(avg.Score), avg.Rating.Label(), reported})
	}
	if len(report.MetricAverages) > 0 {
		rows = append(rows, []string{ts, report.RunID, "Gesamt", formatScore(report.OverallAverage), report.OverallRating.Label(), reported})
	}
	return rows
}

var casesHeader = []string{
	"Timestamp", "Lauf", "Testfall_Nr", "Laenge_Frage", "Laenge_Antwort",
	"Laenge_Erwartet", "Anzahl_Kontexte", "Durchschnitt",
}

// caseRows lists reported cases only; failures are in the run log and the
// narrative report.
func caseRows(report *domain.EvaluationReport) [][]string {
	rows := make([][]string, 0, len(report.Cases))
	for _, c := range report.Reported() {
		rows = append(rows, []string{
			c.EvaluatedAt.Format(timestampLayout),
			report.RunID,
			strconv.Itoa(c.Case.Number),
			strconv.Itoa(len([]rune(c.Case.Question))),
			strconv.Itoa(len([]rune(c.Answer))),
			strconv.Itoa(len([]rune(c.Case.ExpectedAnswer))),
			strconv.Itoa(len(c.Contexts)),
			formatScore(c.Average),
		})
	}
	return rows
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func joinSources(sources []string) string {
	if len(sources) == 0 {
		return noSources
	}
	return strings.Join(sources, ", ")
}
