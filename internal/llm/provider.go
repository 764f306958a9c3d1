// Package llm abstracts the completion providers used by the AI parsing
// and categorization tiers. Callers send chat-style messages and receive
// the raw text of the model's reply; JSON interpretation stays with the
// caller, which knows what schema it asked for.
package llm

import (
	"context"
	"errors"
	"strings"
)

// Roles accepted in a ChatMessage.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatMessage is one turn of the conversation sent to the provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-neutral completion request. Providers that
// support a JSON response mode honor ForceJSON; others rely on prompt
// instructions alone.
type ChatRequest struct {
	Messages    []ChatMessage
	Temperature float64
	ForceJSON   bool
}

// ErrUnavailable wraps transport failures, missing credentials and
// provider-side errors. Callers treat it as "the AI tier is down" and
// degrade instead of failing the whole parse.
var ErrUnavailable = errors.New("llm provider unavailable")

// Provider is a completion backend.
type Provider interface {
	// Complete sends the request and returns the model's reply text.
	Complete(ctx context.Context, req ChatRequest) (string, error)
	// Name identifies the backend for logs and diagnostics.
	Name() string
}

// CleanModelJSON strips Markdown code fences and surrounding prose from a
// model reply, keeping the outermost JSON value. Models wrap output in
// ```json fences often enough that every caller needs this.
func CleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost object or array when prose surrounds it.
	start, end := -1, -1
	for i, r := range s {
		if r == '{' || r == '[' {
			start = i
			break
		}
	}
	closer := byte('}')
	if start >= 0 && s[start] == '[' {
		closer = ']'
	}
	if start >= 0 {
		if idx := strings.LastIndexByte(s, closer); idx > start {
			end = idx
		}
	}
	if start >= 0 && end > start {
		s = strings.TrimSpace(s[start : end+1])
	}
	return s
}
