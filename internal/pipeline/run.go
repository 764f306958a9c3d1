package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusDone    = "DONE"
	RunStatusFailed  = "FAILED"
)

// ParseRun records one pipeline invocation: which parser won, how long
// it took, and the raw model output when the AI tier ran. Runs live in
// memory only.
type ParseRun struct {
	RunID      string    `json:"run_id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// ParserType names the winning tier, e.g. "csv", "statement_tier2",
	// "receipt_mercadona", "ai_fallback".
	ParserType string `json:"parser_type"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`

	// ModelOutput holds the truncated raw AI reply for diagnosis.
	ModelOutput string `json:"model_output,omitempty"`
}

// RunStore keeps recent parse runs for inspection. Access is
// goroutine-safe; old runs are evicted FIFO past the cap.
type RunStore struct {
	mu    sync.Mutex
	runs  map[string]*ParseRun
	order []string
	cap   int
}

// NewRunStore builds a store holding at most capacity runs.
func NewRunStore(capacity int) *RunStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &RunStore{runs: make(map[string]*ParseRun), cap: capacity}
}

// Start registers a new running parse and returns it.
func (s *RunStore) Start(filename, mimeType string) *ParseRun {
	run := &ParseRun{
		RunID:     uuid.NewString(),
		Filename:  filename,
		MimeType:  mimeType,
		StartedAt: time.Now().UTC(),
		Status:    RunStatusRunning,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = run
	s.order = append(s.order, run.RunID)
	for len(s.order) > s.cap {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	return run
}

// Finish marks the run done or failed.
func (s *RunStore) Finish(runID, parserType string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return
	}
	run.FinishedAt = time.Now().UTC()
	run.ParserType = parserType
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = RunStatusDone
	}
}

// AttachModelOutput stores the truncated raw model reply on the run.
func (s *RunStore) AttachModelOutput(runID, raw string) {
	const max = 2000
	if len(raw) > max {
		raw = raw[:max] + "..."
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		run.ModelOutput = raw
	}
}

// Get returns a copy of the run, if known.
func (s *RunStore) Get(runID string) (ParseRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return ParseRun{}, false
	}
	return *run, true
}
