// Package narrative renders an evaluation run as a human readable text file.
package narrative

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

//go:embed report.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"ts":      func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	"title":   metricTitle,
	"allFine": func() string { return domain.AllMetricsFine },
}).Parse(reportTemplate))

type Writer struct {
	dir string
}

func New(dir string) *Writer {
	return &Writer{dir: dir}
}

// FileName is the report file for a run.
func FileName(runID string) string {
	return fmt.Sprintf("evaluation_report_%s.txt", runID)
}

func (w *Writer) Write(_ context.Context, report *domain.EvaluationReport) error {
	if report == nil {
		return fmt.Errorf("narrative report: nil report")
	}
	var buf bytes.Buffer
	if err := Render(&buf, report); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(w.dir, FileName(report.RunID))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write narrative report: %w", err)
	}
	return nil
}

func Render(buf *bytes.Buffer, report *domain.EvaluationReport) error {
	if err := tmpl.Execute(buf, report); err != nil {
		return fmt.Errorf("render narrative report: %w", err)
	}
	return nil
}

// metricTitle turns answer_relevancy into Answer Relevancy.
func metricTitle(m domain.MetricName) string {
	return strings.ReplaceAll(m.Column(), "_", " ")
}
