package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around object", "Here you go:\n{\"a\":1}\nHope that helps!", `{"a":1}`},
		{"prose around array", "Result: [1,2] done", `[1,2]`},
		{"no json at all", "sorry, cannot help", "sorry, cannot help"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanModelJSON(tt.in); got != tt.want {
				t.Errorf("CleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var captured chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"map":[]}`}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "gpt-4o-mini", srv.URL, time.Second)
	out, err := p.Complete(context.Background(), ChatRequest{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "you classify"},
			{Role: RoleUser, Content: "classify this"},
		},
		ForceJSON: true,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"map":[]}` {
		t.Errorf("out = %q", out)
	}
	if captured.Model != "gpt-4o-mini" || len(captured.Messages) != 2 {
		t.Errorf("request = %+v", captured)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v", captured.ResponseFormat)
	}
}

func TestOpenAIProvider_Errors(t *testing.T) {
	t.Run("no api key", func(t *testing.T) {
		p := NewOpenAIProvider("", "m", "", time.Second)
		_, err := p.Complete(context.Background(), ChatRequest{})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
	})

	t.Run("http 500", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		p := NewOpenAIProvider("k", "m", srv.URL, time.Second)
		_, err := p.Complete(context.Background(), ChatRequest{})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		p := NewOpenAIProvider("k", "m", srv.URL, time.Second)
		_, err := p.Complete(context.Background(), ChatRequest{})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		p := NewOpenAIProvider("k", "m", srv.URL, time.Second)
		_, err := p.Complete(context.Background(), ChatRequest{})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
	})
}

func TestGeminiProvider_ConcurrentClientInit(t *testing.T) {
	// One provider serves concurrent completions; the lazy client must be
	// created exactly once without racing. The canceled context keeps the
	// calls off the network.
	t.Setenv("GEMINI_API_KEY", "test-key")
	p := NewGeminiProvider("gemini-2.0-flash")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Complete(ctx, ChatRequest{
				Messages: []ChatMessage{{Role: RoleUser, Content: "ping"}},
			})
			if err == nil {
				t.Error("expected an error with a canceled context")
			}
		}()
	}
	wg.Wait()
}
