// Package xlsxreport writes one workbook per evaluation run.
package xlsxreport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const (
	ResultsSheet = "Ergebnisse"
	MetricsSheet = "Metriken"
)

type Writer struct {
	dir string
}

func New(dir string) *Writer {
	return &Writer{dir: dir}
}

func FileName(runID string) string {
	return fmt.Sprintf("evaluation_%s.xlsx", runID)
}

func (w *Writer) Write(_ context.Context, report *domain.EvaluationReport) error {
	if report == nil {
		return fmt.Errorf("xlsx report: nil report")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return fmt.Errorf("rename results sheet: %w", err)
	}
	if err := writeRows(f, ResultsSheet, resultRows(report)); err != nil {
		return err
	}
	if _, err := f.NewSheet(MetricsSheet); err != nil {
		return fmt.Errorf("create metrics sheet: %w", err)
	}
	if err := writeRows(f, MetricsSheet, metricRows(report)); err != nil {
		return err
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := f.SaveAs(filepath.Join(w.dir, FileName(report.RunID))); err != nil {
		return fmt.Errorf("save xlsx report: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func resultRows(report *domain.EvaluationReport) [][]any {
	header := []any{"Testfall_Nr", "Status", "Frage", "Generierte_Antwort", "Erwartete_Antwort"}
	for _, m := range report.Metrics {
		header = append(header, m.Column())
	}
	header = append(header, "Durchschnitt", "Bewertung", "Quellen", "Fehler")

	rows := [][]any{header}
	for _, c := range report.Cases {
		row := []any{c.Case.Number, string(c.Status), c.Case.Question, c.Answer, c.Case.ExpectedAnswer}
		for _, m := range report.Metrics {
			if s, ok := c.Score(m); ok {
				row = append(row, s.Score)
			} else {
				row = append(row, nil)
			}
		}
		if c.Status == domain.CaseReported {
			row = append(row, c.Average, c.Rating.Label())
		} else {
			row = append(row, nil, nil)
		}
		row = append(row, strings.Join(c.Sources, ", "), c.Error)
		rows = append(rows, row)
	}
	return rows
}

func metricRows(report *domain.EvaluationReport) [][]any {
	rows := [][]any{{"Metrik", "Durchschnitt", "Bewertung", "Erklaerung"}}
	for _, avg := range report.MetricAverages {
		rows = append(rows, []any{avg.Metric.Column(), avg.Score, avg.Rating.Label(), avg.Metric.Explanation()})
	}
	if len(report.MetricAverages) > 0 {
		rows = append(rows, []any{"Gesamt", report.OverallAverage, report.OverallRating.Label(), ""})
	}
	for _, rec := range report.Recommendations {
		rows = append(rows, []any{rec.Metric.Column(), rec.Score, "Empfehlung", rec.Text})
	}
	return rows
}
