// Package app is the command façade the frontend talks to. Each method
// maps to one user-visible action and orchestrates the supervised
// workers underneath: supervision decisions live in the generation
// package, audio in playback/record, and vendor calls in tts/stt and
// completion.
package app

import (
	"context"
	"time"

	"github.com/voxdesk/voxdesk/internal/completion"
	"github.com/voxdesk/voxdesk/internal/domain"
	"github.com/voxdesk/voxdesk/internal/generation"
	"github.com/voxdesk/voxdesk/internal/logger"
	"github.com/voxdesk/voxdesk/internal/playback"
	"github.com/voxdesk/voxdesk/internal/telemetry"
)

// Capturer records one supervised session and returns it as WAV bytes.
// *record.Recorder is the production implementation.
type Capturer interface {
	Capture(ctx context.Context, tok generation.Token) ([]byte, error)
}

// Streamer ingests one streaming completion request into the event
// buffer. *completion.Client is the production implementation.
type Streamer interface {
	Stream(ctx context.Context, req completion.Request) error
}

// ChatConfig is the upstream chat endpoint the app streams from.
type ChatConfig struct {
	Endpoint string
	Secret   string

	// APIKeyAuth selects the "api-key" header over "Authorization:
	// Bearer" for Azure-hosted deployments.
	APIKeyAuth bool
}

// Deps collects the collaborators App orchestrates. All fields are
// required unless noted.
type Deps struct {
	Registry    *generation.Registry
	Marker      *generation.Marker
	Loudness    *telemetry.Cell
	Events      *completion.Buffer
	Completions Streamer
	Recorder    Capturer
	Player      domain.AudioOutput
	Beeper      *playback.Beeper
	Synth       domain.Synthesizer
	Transcriber domain.Transcriber
	Cache       domain.ByteCache // may be nil to disable caching
	Chat        ChatConfig
	Log         *logger.Logger
}

// App exposes the command surface.
type App struct {
	d Deps
}

// New creates the façade.
func New(d Deps) *App { return &App{d: d} }

// SpeakRequest describes one utterance.
type SpeakRequest struct {
	Text string

	// BeepVolume scales the progress beeps played while synthesis is
	// in flight. Zero silences them.
	BeepVolume float64

	// Prefetch synthesizes and caches without playing. Prefetched
	// audio never claims a playback generation.
	Prefetch bool

	// NoCache skips both cache lookup and store.
	NoCache bool
}

// Speak synthesizes text and plays it, superseding whatever was
// playing. While the synthesis request is in flight a pulsed beep tells
// the user the app is working; the beep stops the moment the fetch
// settles, success or not.
func (a *App) Speak(ctx context.Context, req SpeakRequest) error {
	if req.Text == "" {
		return nil
	}
	// Prefetching exists to warm the cache; combined with NoCache
	// there is nothing to do.
	if req.Prefetch && req.NoCache {
		return nil
	}

	var tok generation.Token
	if req.Prefetch {
		tok = generation.Ungated()
	} else {
		tok = a.d.Registry.Begin(generation.Playback)
	}

	if !req.NoCache && a.d.Cache != nil {
		if audio, ok := a.d.Cache.Get(req.Text); ok {
			if req.Prefetch {
				return nil
			}
			return a.d.Player.PlayWAV(audio, tok)
		}
	}

	stop := make(chan struct{})
	beeping := false
	if req.BeepVolume > 0 {
		tone, err := a.d.Player.StartTone(playback.BeepFreq, 0)
		if err != nil {
			a.d.Log.Warn("speak: progress beep unavailable: %v", err)
		} else {
			beeping = true
			go func() {
				a.d.Beeper.Run(tone, req.BeepVolume, stop)
				tone.Close()
			}()
		}
	}

	audio, err := a.d.Synth.Synthesize(ctx, req.Text)
	if beeping {
		close(stop)
	}
	if err != nil {
		return err
	}

	if !req.NoCache && a.d.Cache != nil {
		a.d.Cache.Put(req.Text, audio)
	}
	if req.Prefetch {
		return nil
	}
	return a.d.Player.PlayWAV(audio, tok)
}

// StopAudio supersedes the current playback generation. Any playing
// worker notices within one poll interval. No-op when nothing plays.
func (a *App) StopAudio() {
	a.d.Registry.ForceStop(generation.Playback)
}

// StartListening runs one capture session to completion and returns
// the transcript. It blocks until StopListening or CancelListening
// supersedes the session; a canceled session returns empty text and no
// error. The loudness cell tracks the session: live RMS while
// capturing, the processing sentinel from capture end until this call
// returns.
func (a *App) StartListening(ctx context.Context, language string) (string, error) {
	a.d.Loudness.Reset()
	tok := a.d.Registry.Begin(generation.Recording)
	a.d.Log.Info("listening started (gen=%d)", tok.Value())

	wav, err := a.d.Recorder.Capture(ctx, tok)
	if err != nil {
		return "", err
	}

	if a.d.Marker.Canceled(tok) {
		a.d.Log.Info("listening canceled (gen=%d), transcript discarded", tok.Value())
		return "", nil
	}

	a.d.Loudness.MarkProcessing()
	return a.d.Transcriber.Transcribe(ctx, wav, language)
}

// StopListening ends the capture session; the recorded audio proceeds
// to transcription.
func (a *App) StopListening() {
	a.d.Registry.ForceStop(generation.Recording)
}

// CancelListening ends the capture session and discards its audio:
// the vacated generation is recorded as canceled before the capture
// worker can reach the transcription step.
func (a *App) CancelListening() {
	a.d.Marker.Raise(a.d.Registry.ForceStop(generation.Recording))
}

// InputLoudness returns the current loudness reading: an RMS amplitude
// while capturing, or telemetry.Processing once transcription is
// pending.
func (a *App) InputLoudness() float64 {
	return a.d.Loudness.Load()
}

// StartChatCompletion streams one completion request into the event
// buffer. It blocks for the life of the stream; run it on its own
// goroutine. Events become visible to ChatCompletion as they decode.
func (a *App) StartChatCompletion(ctx context.Context, id uint64, body string) error {
	return a.d.Completions.Stream(ctx, completion.Request{
		ID:         id,
		Endpoint:   a.d.Chat.Endpoint,
		Secret:     a.d.Chat.Secret,
		Body:       body,
		APIKeyAuth: a.d.Chat.APIKeyAuth,
	})
}

// ChatCompletion drains the events buffered for id since the last
// call. Empty slice when nothing new arrived.
func (a *App) ChatCompletion(id uint64) []string {
	return a.d.Events.Drain(id)
}

// StopAllChatCompletions halts every outstanding stream at its next
// frame boundary. Buffered events stay drainable.
func (a *App) StopAllChatCompletions() {
	a.d.Events.CancelAll()
}

// TestSound plays the reference tone so the user can verify output.
func (a *App) TestSound() error {
	return a.d.Player.Cue(playback.TestToneFreq, time.Second, 1)
}

// FocusInputCue plays the short blip acknowledging input focus.
func (a *App) FocusInputCue() error {
	return a.d.Player.Cue(playback.FocusCueFreq, 100*time.Millisecond, 1)
}

// WaitingCue plays the tone acknowledging a submitted request.
func (a *App) WaitingCue() error {
	return a.d.Player.Cue(playback.WaitingCueFreq, 200*time.Millisecond, 1)
}
