// Package handlers implements the HTTP endpoints: synchronous and
// asynchronous parsing, job polling, run inspection and canonical CSV
// export.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amoreno/finparse/internal/api/middleware"
	"github.com/amoreno/finparse/internal/csvparse"
	"github.com/amoreno/finparse/internal/domain"
	"github.com/amoreno/finparse/internal/jobs"
	"github.com/amoreno/finparse/internal/pipeline"
)

// ParseHandler serves the upload/parse endpoints.
type ParseHandler struct {
	pipe           *pipeline.Pipeline
	publisher      jobs.Publisher
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewParseHandler creates the parse handler. publisher may be nil, which
// disables async parsing.
func NewParseHandler(pipe *pipeline.Pipeline, publisher jobs.Publisher, maxUploadBytes int64, log zerolog.Logger) *ParseHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20
	}
	return &ParseHandler{pipe: pipe, publisher: publisher, maxUploadBytes: maxUploadBytes, log: log}
}

// Parse handles POST /api/parse. The multipart form carries the file
// plus optional "categories" (JSON array) and "preferences" (JSON
// object) fields; ?async=true enqueues a job instead of blocking.
func (h *ParseHandler) Parse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	req := pipeline.ParseRequest{
		Data:     data,
		MimeType: uploadMimeType(header.Header.Get("Content-Type"), header.Filename),
		Filename: header.Filename,
	}
	if raw := r.FormValue("categories"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Categories); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "categories must be a JSON array of strings")
			return
		}
	}
	if raw := r.FormValue("preferences"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Preferences); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "preferences must be a JSON object")
			return
		}
	}

	if r.URL.Query().Get("async") == "true" {
		h.enqueue(w, r, req)
		return
	}

	result, err := h.pipe.Parse(r.Context(), req)
	if err != nil {
		h.log.Warn().Err(err).Str("file", req.Filename).Msg("parse failed")
		middleware.WriteError(w, statusForParseError(err), err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

func (h *ParseHandler) enqueue(w http.ResponseWriter, r *http.Request, req pipeline.ParseRequest) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "async parsing is not enabled")
		return
	}

	job := &jobs.ParseFileJob{
		Filename:    req.Filename,
		MimeType:    req.MimeType,
		Data:        req.Data,
		Categories:  req.Categories,
		Preferences: req.Preferences,
	}
	if err := h.publisher.PublishParseFile(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("enqueue parse job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "could not enqueue job")
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// Export handles POST /api/export: a JSON array of rows comes back as
// canonical CSV with the fixed five-column header.
func (h *ParseHandler) Export(w http.ResponseWriter, r *http.Request) {
	var rows []domain.TransactionRow
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxUploadBytes)).Decode(&rows); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "request body must be a JSON array of rows")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	_, _ = io.WriteString(w, csvparse.ToCanonicalCSV(rows))
}

// extensionTypes covers the extensions the pipeline cares about. The
// system mime database is consulted only after this table; it has no
// entry for .csv on a bare container.
var extensionTypes = map[string]string{
	".csv": "text/csv",
	".tsv": "text/tab-separated-values",
	".txt": "text/plain",
	".pdf": "application/pdf",
	".jpg": "image/jpeg",
	".png": "image/png",
}

// uploadMimeType resolves the effective MIME type: the part's declared
// type unless it is generic, then the filename extension.
func uploadMimeType(declared, filename string) string {
	declared = strings.TrimSpace(strings.Split(declared, ";")[0])
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return strings.Split(byExt, ";")[0]
	}
	return declared
}

func statusForParseError(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrEmptyInput), errors.Is(err, pipeline.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrAIUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrStructuralParse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// JobsHandler serves job status polling.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates the jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// ListJobs handles GET /api/jobs with optional status and limit params.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "could not list jobs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// RunsHandler exposes parse run records.
type RunsHandler struct {
	runs *pipeline.RunStore
}

// NewRunsHandler creates the runs handler.
func NewRunsHandler(runs *pipeline.RunStore) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// GetRun handles GET /api/runs/{id}.
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, ok := h.runs.Get(runID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, run)
}
