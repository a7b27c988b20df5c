// Package stt transcribes recorded audio through the OpenAI
// transcription endpoint.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/voxdesk/voxdesk/internal/domain"
	"github.com/voxdesk/voxdesk/internal/logger"
)

// DefaultEndpoint is the OpenAI transcription API.
const DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"

// DefaultModel is the transcription model requested.
const DefaultModel = "whisper-1"

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithEndpoint overrides the API endpoint.
func WithEndpoint(url string) ClientOption {
	return func(c *Client) { c.endpoint = url }
}

// WithModel overrides the transcription model.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// Client calls the transcription API. It implements domain.Transcriber.
type Client struct {
	http     *http.Client
	endpoint string
	model    string
	apiKey   string
	log      *logger.Logger
}

// NewClient creates a transcription client authenticating with apiKey.
func NewClient(apiKey string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 60 * time.Second},
		endpoint: DefaultEndpoint,
		model:    DefaultModel,
		apiKey:   apiKey,
		log:      log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Transcribe uploads the WAV audio and returns the recognized text.
// An empty language lets the API auto-detect. Empty audio (a bare WAV
// header or less) is a no-op returning empty text, so a capture that
// stopped before the first frame never hits the network.
func (c *Client) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	if len(wav) <= 44 {
		c.log.Debug("stt: empty capture, skipping upload")
		return "", nil
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="audio.wav"`)
	hdr.Set("Content-Type", "audio/x-wav")
	part, err := form.CreatePart(hdr)
	if err != nil {
		return "", fmt.Errorf("stt: build form: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("stt: build form: %w", err)
	}
	if err := form.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("stt: build form: %w", err)
	}
	if language != "" {
		if err := form.WriteField("language", language); err != nil {
			return "", fmt.Errorf("stt: build form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("stt: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("stt: create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug("stt: uploading %d bytes of audio", len(wav))
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("stt: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("stt: decode response: %w", err)
	}

	c.log.Debug("stt: transcribed %d chars in %s", len(parsed.Text), time.Since(start).Round(time.Millisecond))
	return parsed.Text, nil
}
