package httpadapter

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

type ingestResponse struct {
	Status string               `json:"status"`
	JobID  string               `json:"job_id,omitempty"`
	Path   string               `json:"path,omitempty"`
	Result *domain.IngestResult `json:"result,omitempty"`
}

func (rt *Router) ingestSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		domain.SourceRequest
		SessionID string `json:"session_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rt.schedule(w, r, domain.SessionContext{SessionID: req.SessionID}, req.SourceRequest, "")
}

func (rt *Router) uploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, r, http.StatusBadRequest, "only .pdf uploads are accepted")
		return
	}

	path, err := rt.deps.Uploads.UploadPDF(r.Context(), header.Filename, file)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	sess := domain.SessionContext{SessionID: r.FormValue("session_id")}
	rt.schedule(w, r, sess, domain.SourceRequest{Kind: domain.SourcePDF, Paths: []string{path}}, path)
}

func (rt *Router) schedule(w http.ResponseWriter, r *http.Request, sess domain.SessionContext, req domain.SourceRequest, path string) {
	result, jobID, err := rt.deps.Scheduler.Schedule(r.Context(), sess, req)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	if jobID != "" {
		writeJSON(w, http.StatusAccepted, ingestResponse{Status: "queued", JobID: jobID, Path: path})
		return
	}
	if rt.deps.Metrics != nil && result != nil {
		rt.deps.Metrics.RecordIngest(serviceName, *result)
	}
	writeJSON(w, http.StatusOK, ingestResponse{Status: "indexed", Path: path, Result: result})
}

func (rt *Router) runEvaluation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Cases     []int  `json:"cases"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	cases, err := selectCases(rt.deps.Cases, req.Cases)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	report, err := rt.deps.Evaluator.Run(r.Context(), domain.SessionContext{SessionID: req.SessionID}, cases)
	if report == nil {
		rt.writeDomainError(w, r, err)
		return
	}
	if err != nil {
		rt.deps.Logger.Error("evaluation_report_incomplete",
			"request_id", requestIDFromContext(r.Context()),
			"run_id", report.RunID,
			"error", err,
		)
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.RecordEvaluation(serviceName, report)
	}
	writeJSON(w, http.StatusOK, report)
}

// selectCases keeps the configured order; an empty selection means all cases.
func selectCases(all []domain.EvaluationCase, numbers []int) ([]domain.EvaluationCase, error) {
	if len(all) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "select cases", errors.New("no evaluation cases configured"))
	}
	if len(numbers) == 0 {
		return all, nil
	}
	wanted := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		wanted[n] = true
	}
	out := make([]domain.EvaluationCase, 0, len(numbers))
	for _, c := range all {
		if wanted[c.Number] {
			out = append(out, c)
			delete(wanted, c.Number)
		}
	}
	if len(wanted) > 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "select cases", errors.New("unknown case number"))
	}
	return out, nil
}
