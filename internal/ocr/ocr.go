// Package ocr talks to the external text extractor used for receipt
// images. Only the request/response contract is modeled here; the engine
// behind the endpoint is opaque.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TextExtractor lifts text from image bytes.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ErrUnavailable wraps transport and server-side extractor failures.
var ErrUnavailable = errors.New("ocr extractor unavailable")

// HTTPExtractor posts {data, mimeType} to an extraction endpoint and
// reads back {text}.
type HTTPExtractor struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPExtractor builds an extractor client. A zero timeout defaults
// to 30s.
func NewHTTPExtractor(endpoint string, timeout time.Duration) *HTTPExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPExtractor{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type extractRequest struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType"`
}

type extractResponse struct {
	Text string `json:"text"`
}

func (e *HTTPExtractor) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	if e.endpoint == "" {
		return "", fmt.Errorf("ocr.ExtractText: no endpoint configured: %w", ErrUnavailable)
	}

	payload, err := json.Marshal(extractRequest{Data: data, MimeType: mimeType})
	if err != nil {
		return "", fmt.Errorf("ocr.ExtractText: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ocr.ExtractText: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr.ExtractText: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr.ExtractText: status %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var parsed extractResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ocr.ExtractText: decode response: %w", ErrUnavailable)
	}
	if parsed.Text == "" {
		return "", fmt.Errorf("ocr.ExtractText: extractor returned no text: %w", ErrUnavailable)
	}
	return parsed.Text, nil
}
