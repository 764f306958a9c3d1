package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amoreno/finparse/internal/jobs"
	"github.com/amoreno/finparse/internal/pipeline"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ParseFileJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 1, store)
	defer q.Close()

	handled := make(chan string, 1)
	err := q.Start(context.Background(), func(_ context.Context, job *jobs.ParseFileJob) (*pipeline.ParseResult, error) {
		handled <- job.Filename
		return &pipeline.ParseResult{RunID: "run-1"}, nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.ParseFileJob{Filename: "movements.csv", MimeType: "text/csv", Data: []byte("x")}
	if err := q.PublishParseFile(context.Background(), job); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("publish must assign a job ID")
	}

	select {
	case name := <-handled:
		if name != "movements.csv" {
			t.Errorf("handled %q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Result == nil || done.Result.RunID != "run-1" {
		t.Errorf("result = %+v", done.Result)
	}
	if done.Data != nil {
		t.Error("upload bytes must be dropped after completion")
	}
}

func TestQueue_FailedJobIsTerminal(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 1, store)
	defer q.Close()

	calls := 0
	_ = q.Start(context.Background(), func(_ context.Context, _ *jobs.ParseFileJob) (*pipeline.ParseResult, error) {
		calls++
		return nil, errors.New("provider down")
	})

	job := &jobs.ParseFileJob{Filename: "f.csv", MimeType: "text/csv", Data: []byte("x")}
	_ = q.PublishParseFile(context.Background(), job)

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.Error != "provider down" {
		t.Errorf("error = %q", failed.Error)
	}

	// No retry path: the handler must have run exactly once.
	time.Sleep(50 * time.Millisecond)
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, 1, nil)
	_ = q.Close()

	err := q.PublishParseFile(context.Background(), &jobs.ParseFileJob{Filename: "f"})
	if err == nil {
		t.Error("publish on a closed queue must fail")
	}
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, status := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCompleted} {
		_ = store.SaveJob(ctx, &jobs.ParseFileJob{
			JobID:     string(rune('a' + i)),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	completed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("completed = %d, want 2", len(completed))
	}
	if completed[0].JobID != "c" {
		t.Errorf("order = %s first, want newest first", completed[0].JobID)
	}

	limited, _ := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limited = %d", len(limited))
	}
}
