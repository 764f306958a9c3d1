package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.MimeType != "image/jpeg" || string(req.Data) != "fake image" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(extractResponse{Text: "MERCADONA, S.A."})
	}))
	defer srv.Close()

	text, err := NewHTTPExtractor(srv.URL, time.Second).
		ExtractText(context.Background(), []byte("fake image"), "image/jpeg")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "MERCADONA, S.A." {
		t.Errorf("text = %q", text)
	}
}

func TestHTTPExtractor_Failures(t *testing.T) {
	t.Run("no endpoint", func(t *testing.T) {
		_, err := NewHTTPExtractor("", time.Second).ExtractText(context.Background(), nil, "image/png")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewHTTPExtractor(srv.URL, time.Second).ExtractText(context.Background(), nil, "image/png")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"text":""}`))
		}))
		defer srv.Close()

		_, err := NewHTTPExtractor(srv.URL, time.Second).ExtractText(context.Background(), nil, "image/png")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v", err)
		}
	})
}
