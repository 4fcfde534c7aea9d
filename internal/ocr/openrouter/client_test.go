package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecognizePageSendsImageAndParsesText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req visionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Content) != 2 {
			t.Errorf("unexpected message shape: %+v", req.Messages)
		}
		img := req.Messages[0].Content[1].ImageURL
		if img == nil || !strings.HasPrefix(img.URL, "data:image/jpeg;base64,") {
			t.Errorf("image not sent as data url")
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"Patient: Jane Roe\nTotal: $92.50"}}]}`))
	}))
	defer srv.Close()

	c := New("key", "qwen/qwen2.5-vl-72b-instruct", 5*time.Second)
	c.BaseURL = srv.URL

	res, err := c.RecognizePage(context.Background(), []byte{0xFF, 0xD8, 0xFF}, "image/jpeg")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if !strings.Contains(res.Text, "Jane Roe") {
		t.Fatalf("unexpected text: %q", res.Text)
	}
	if res.Confidence <= 0.5 {
		t.Fatalf("confidence too low for clean text: %f", res.Confidence)
	}
}

func TestRecognizePageProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer srv.Close()

	c := New("key", "m", 5*time.Second)
	c.BaseURL = srv.URL
	if _, err := c.RecognizePage(context.Background(), []byte{1}, "image/jpeg"); err == nil {
		t.Fatal("expected provider error")
	}
}

func TestRecognizePageHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New("key", "m", 5*time.Second)
	c.BaseURL = srv.URL
	if _, err := c.RecognizePage(context.Background(), []byte{1}, "image/jpeg"); err == nil {
		t.Fatal("expected http error")
	}
}
