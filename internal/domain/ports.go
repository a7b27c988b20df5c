// Package domain holds the error taxonomy and the collaborator ports
// the command layer is wired against. Implementations live in their
// own packages (tts, stt, playback); tests substitute fakes.
package domain

import (
	"context"
	"time"

	"github.com/voxdesk/voxdesk/internal/generation"
)

// Transcriber turns recorded WAV audio into text. Implementations are
// network-backed (OpenAI whisper) in production.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, language string) (string, error)
}

// Synthesizer turns text into playable audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ByteCache is a persistent key -> bytes cache. Used to avoid
// re-synthesizing identical speech; the storage schema is the
// implementation's business.
type ByteCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte)
}

// ToneControl is a handle on a running tone: the beep coordinator
// toggles its gain, and the owner closes it when the cue ends.
type ToneControl interface {
	SetVolume(v float64)
	Close() error
}

// AudioOutput is the playback sink. PlayWAV blocks until the audio
// finishes or the token is superseded; an ungated token plays to
// completion.
type AudioOutput interface {
	PlayWAV(data []byte, tok generation.Token) error
	Cue(freq float64, d time.Duration, volume float64) error
	StartTone(freq, volume float64) (ToneControl, error)
}
