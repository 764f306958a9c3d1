package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider over the Google GenAI SDK. The SDK
// reads its API key from the environment (GOOGLE_API_KEY / GEMINI_API_KEY),
// so the client is created lazily on first use; one provider may serve
// concurrent completions.
type GeminiProvider struct {
	model     string
	once      sync.Once
	client    *genai.Client
	clientErr error
}

// NewGeminiProvider builds a Gemini-backed provider for the given model,
// e.g. "gemini-2.0-flash".
func NewGeminiProvider(model string) *GeminiProvider {
	return &GeminiProvider{model: model}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Complete(ctx context.Context, req ChatRequest) (string, error) {
	// Client creation only reads the environment; it must not be bound to
	// the first caller's request context.
	p.once.Do(func() {
		p.client, p.clientErr = genai.NewClient(context.Background(), &genai.ClientConfig{
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		})
	})
	if p.clientErr != nil {
		return "", fmt.Errorf("gemini.Complete: create client: %v: %w", p.clientErr, ErrUnavailable)
	}

	// Gemini has no separate system role on the v1 content API; system
	// messages are folded in front of the user text.
	var b strings.Builder
	for _, m := range req.Messages {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Content)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: b.String()}},
		},
	}

	var cfg *genai.GenerateContentConfig
	if req.ForceJSON {
		cfg = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini.Complete: generate content: %v: %w", err, ErrUnavailable)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini.Complete: empty completion: %w", ErrUnavailable)
	}
	return text, nil
}
