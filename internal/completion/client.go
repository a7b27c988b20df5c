package completion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxdesk/voxdesk/internal/domain"
	"github.com/voxdesk/voxdesk/internal/logger"
	"github.com/voxdesk/voxdesk/internal/sse"
)

// Request describes one streaming chat-completion call. The id is
// caller-supplied; the UI polls the buffer with the same id.
type Request struct {
	ID       uint64
	Endpoint string
	Secret   string
	Body     string

	// APIKeyAuth selects the "api-key" header (Azure) instead of
	// "Authorization: Bearer" (OpenAI).
	APIKeyAuth bool
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithReadChunkSize sets the network read buffer size.
func WithReadChunkSize(n int) ClientOption {
	return func(c *Client) { c.chunkSize = n }
}

// Client ingests streaming chat-completion responses into a Buffer.
// One Stream call per request; run each on its own goroutine.
type Client struct {
	http      *http.Client
	events    *Buffer
	log       *logger.Logger
	chunkSize int
}

// NewClient creates a streaming ingestion client writing into events.
func NewClient(events *Buffer, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		// No overall timeout: streams legitimately stay open for the
		// whole generation. Cancellation is cooperative via the buffer.
		http:      &http.Client{Timeout: 0},
		events:    events,
		log:       log,
		chunkSize: 4096,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stream POSTs the request and feeds the response through the SSE
// splitter until the terminal sentinel, end of stream, or an observed
// cancellation. Cancellation is checked only at frame boundaries and
// is not an error; already-buffered events stay drainable.
func (c *Client) Stream(ctx context.Context, req Request) error {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, strings.NewReader(req.Body))
	if err != nil {
		return fmt.Errorf("completion: create request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	if req.APIKeyAuth {
		hreq.Header.Set("api-key", req.Secret)
	} else {
		hreq.Header.Set("Authorization", "Bearer "+req.Secret)
	}

	c.events.Track(req.ID)
	c.log.Debug("completion %d: POST %s (%d bytes)", req.ID, req.Endpoint, len(req.Body))
	start := time.Now()

	resp, err := c.http.Do(hreq)
	if err != nil {
		c.events.Finish(req.ID)
		return fmt.Errorf("completion: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.events.Finish(req.ID)
		return &domain.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	splitter := &sse.Splitter{}
	chunk := make([]byte, c.chunkSize)
	frames := 0

	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			for _, frame := range splitter.Feed(chunk[:n]) {
				frames++
				if c.handleFrame(req.ID, frame) {
					c.events.Finish(req.ID)
					c.log.Debug("completion %d: done after %d frames (%s)", req.ID, frames, time.Since(start).Round(time.Millisecond))
					return nil
				}
				if c.events.Canceled(req.ID) {
					c.events.Finish(req.ID)
					c.log.Debug("completion %d: canceled after %d frames", req.ID, frames)
					return nil
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			c.events.Finish(req.ID)
			return fmt.Errorf("%w: %v", domain.ErrStreamTerminated, readErr)
		}
	}

	// Natural end of stream: deliver any record lacking its blank line.
	if frame, ok := splitter.Flush(); ok {
		c.handleFrame(req.ID, frame)
	}
	c.events.Finish(req.ID)
	c.log.Debug("completion %d: stream ended after %d frames (%s)", req.ID, frames, time.Since(start).Round(time.Millisecond))
	return nil
}

// handleFrame decodes one frame into the buffer. Returns true for the
// terminal sentinel. Frames without the data prefix (comments,
// keep-alives) are ignored.
func (c *Client) handleFrame(id uint64, frame []byte) (done bool) {
	if !bytes.HasPrefix(frame, []byte(sse.DataPrefix)) {
		return false
	}
	payload := frame[len(sse.DataPrefix):]
	if string(bytes.TrimSpace(payload)) == sse.DoneSentinel {
		return true
	}
	c.events.Append(id, sse.DecodeText(payload))
	return false
}
