package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/amoreno/finparse/internal/jobs"
	"github.com/amoreno/finparse/internal/jobs/inmemory"
	"github.com/amoreno/finparse/internal/pipeline"
)

func multipartUpload(t *testing.T, filename, contentType, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	hdr["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte(content))

	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func newHandler(publisher jobs.Publisher) *ParseHandler {
	pipe := pipeline.New(pipeline.Options{Logger: zerolog.Nop()})
	return NewParseHandler(pipe, publisher, 1<<20, zerolog.Nop())
}

const sampleCSV = "Date,Desc,Amount\n2024-01-05,MERCADONA MADRID,-23.50\n2024-01-06,NOMINA EMPRESA,1500.00\n"

func TestParse_Sync(t *testing.T) {
	body, contentType := multipartUpload(t, "movements.csv", "text/csv", sampleCSV, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/parse", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newHandler(nil).Parse(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var result pipeline.ParseResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Rows) != 2 || result.Rows[0].Category != "Groceries" {
		t.Errorf("rows = %+v", result.Rows)
	}
	if result.RunID == "" {
		t.Error("result must carry a run ID")
	}
}

func TestParse_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("categories", `["Other"]`)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/parse", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	newHandler(nil).Parse(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestParse_UnsupportedType(t *testing.T) {
	body, contentType := multipartUpload(t, "a.zip", "application/zip", "PK", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/parse", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newHandler(nil).Parse(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestParse_Async(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(4, 1, store)
	defer queue.Close()

	body, contentType := multipartUpload(t, "movements.csv", "text/csv", sampleCSV, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/parse?async=true", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newHandler(queue).Parse(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["job_id"] == "" {
		t.Error("response must carry the job ID")
	}

	job, err := store.GetJob(context.Background(), resp["job_id"])
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	if job.Filename != "movements.csv" {
		t.Errorf("job = %+v", job)
	}
}

func TestParse_AsyncDisabled(t *testing.T) {
	body, contentType := multipartUpload(t, "movements.csv", "text/csv", sampleCSV, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/parse?async=true", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	newHandler(nil).Parse(rec, req)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestExport(t *testing.T) {
	payload := `[{"date":"2024-01-05","description":"MERCADONA","amount":-23.5,"balance":null,"category":"Groceries"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	newHandler(nil).Export(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	csv := rec.Body.String()
	if !strings.HasPrefix(csv, "date,description,amount,balance,category") {
		t.Errorf("csv header = %q", strings.SplitN(csv, "\n", 2)[0])
	}
	if !strings.Contains(csv, "MERCADONA") {
		t.Errorf("csv = %q", csv)
	}
}

func TestJobsHandler(t *testing.T) {
	store := inmemory.NewStore()
	_ = store.SaveJob(context.Background(), &jobs.ParseFileJob{
		JobID:  "job-1",
		Status: jobs.JobStatusCompleted,
	})
	h := NewJobsHandler(store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil), "job-1")
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil), "nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=completed", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "job-1") {
		t.Errorf("list = %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadMimeType(t *testing.T) {
	tests := []struct {
		declared, filename, want string
	}{
		{"text/csv", "a.csv", "text/csv"},
		{"application/octet-stream", "a.csv", "text/csv"},
		{"", "ticket.jpg", "image/jpeg"},
		{"application/pdf; charset=binary", "x.pdf", "application/pdf"},
	}
	for _, tt := range tests {
		if got := uploadMimeType(tt.declared, tt.filename); got != tt.want {
			t.Errorf("uploadMimeType(%q, %q) = %q, want %q", tt.declared, tt.filename, got, tt.want)
		}
	}
}
