// Package tts synthesizes speech through Azure Cognitive Services and
// caches the resulting audio so repeated phrases skip the network.
package tts

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxdesk/voxdesk/internal/domain"
	"github.com/voxdesk/voxdesk/internal/logger"
)

// DefaultVoice is the synthesis voice used unless overridden.
const DefaultVoice = "en-US-JennyNeural"

// DefaultAudioFormat matches the playback device configuration.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// AzureOption configures the Azure TTS client.
type AzureOption func(*AzureClient)

// WithVoice sets the synthesis voice.
func WithVoice(voice string) AzureOption {
	return func(c *AzureClient) { c.voice = voice }
}

// WithAudioFormat sets the requested output format.
func WithAudioFormat(format string) AzureOption {
	return func(c *AzureClient) { c.format = format }
}

// WithHTTPTimeout sets the HTTP timeout for synthesis requests.
func WithHTTPTimeout(d time.Duration) AzureOption {
	return func(c *AzureClient) { c.httpClient.Timeout = d }
}

// WithBaseURL overrides the service URL, mainly for tests.
func WithBaseURL(url string) AzureOption {
	return func(c *AzureClient) { c.baseURL = url }
}

// AzureClient synthesizes speech via the Azure TTS REST API. It
// implements domain.Synthesizer.
type AzureClient struct {
	subscriptionKey string
	voice           string
	format          string
	baseURL         string
	httpClient      *http.Client
	log             *logger.Logger
}

// Voice returns the configured voice name, used in cache keys.
func (c *AzureClient) Voice() string { return c.voice }

// NewAzureClient creates a synthesis client for the given region.
func NewAzureClient(key, region string, log *logger.Logger, opts ...AzureOption) *AzureClient {
	c := &AzureClient{
		subscriptionKey: key,
		voice:           DefaultVoice,
		format:          DefaultAudioFormat,
		baseURL:         fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize converts text to speech and returns the audio bytes in
// the configured format.
func (c *AzureClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ssml := c.buildSSML(text)
	c.log.Debug("tts: synthesizing %d chars with voice %s", len(text), c.voice)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}

	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", c.format)
	req.Header.Set("User-Agent", "VoxDesk/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}

	c.log.Debug("tts: got %d bytes of audio", len(audio))
	return audio, nil
}

// buildSSML wraps the text in synthesis markup. User text is escaped
// so angle brackets and ampersands can't break the document.
func (c *AzureClient) buildSSML(text string) string {
	var escaped strings.Builder
	xml.EscapeText(&escaped, []byte(text))
	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='en-US'><voice xml:lang='en-US' name='%s'>%s</voice></speak>`,
		c.voice, escaped.String(),
	)
}
