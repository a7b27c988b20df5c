package tts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxdesk/voxdesk/internal/domain"
)

func TestSynthesizeRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "key123" {
			t.Errorf("subscription key = %q", got)
		}
		if got := r.Header.Get("X-Microsoft-OutputFormat"); got != DefaultAudioFormat {
			t.Errorf("output format = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/ssml+xml" {
			t.Errorf("content type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), ">hello<") {
			t.Errorf("ssml = %s", body)
		}
		if !strings.Contains(string(body), DefaultVoice) {
			t.Errorf("ssml missing voice: %s", body)
		}
		w.Write([]byte("RIFFaudio"))
	}))
	defer srv.Close()

	c := NewAzureClient("key123", "westus", testLogger(), WithBaseURL(srv.URL))
	audio, err := c.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "RIFFaudio" {
		t.Fatalf("audio = %q", audio)
	}
}

func TestSynthesizeEscapesMarkup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "<script>") {
			t.Errorf("unescaped markup in ssml: %s", body)
		}
		if !strings.Contains(string(body), "&lt;script&gt;") {
			t.Errorf("expected escaped markup, got: %s", body)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewAzureClient("key123", "westus", testLogger(), WithBaseURL(srv.URL))
	if _, err := c.Synthesize(context.Background(), "<script>"); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
}

func TestSynthesizeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewAzureClient("bad", "westus", testLogger(), WithBaseURL(srv.URL))
	_, err := c.Synthesize(context.Background(), "hello")

	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want UpstreamError", err)
	}
	if upstream.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", upstream.Status)
	}
}
