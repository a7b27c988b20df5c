// Package playback plays synthesized speech and tone cues through the
// system audio device via oto.
//
// Playback workers are supervised by the generation registry: a worker
// polls its token between sleeps and abandons the device the moment a
// newer generation exists. The device itself cannot be preempted, so
// two sounds may overlap for up to one poll interval after a stop.
package playback

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/voxdesk/voxdesk/internal/domain"
	"github.com/voxdesk/voxdesk/internal/generation"
	"github.com/voxdesk/voxdesk/internal/logger"
)

// Audio parameters matching the synthesizer's output format
// (riff-24khz-16bit-mono-pcm).
const (
	SampleRate   = 24000
	ChannelCount = 1
)

// pollInterval bounds supersession latency for playback loops.
const pollInterval = 50 * time.Millisecond

// Player owns the audio output context.
type Player struct {
	ctx *oto.Context
	reg *generation.Registry
	log *logger.Logger
}

// NewPlayer initializes the system audio context. Returns
// ErrDeviceUnavailable if the device cannot be opened.
func NewPlayer(reg *generation.Registry, log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}
	<-ready

	log.Debug("playback: context ready (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, reg: reg, log: log}, nil
}

// PlayWAV strips the RIFF container and plays the PCM payload gated by
// tok. Empty data is a silent no-op.
func (p *Player) PlayWAV(data []byte, tok generation.Token) error {
	if len(data) == 0 {
		return nil
	}
	pcm, err := extractPCM(data)
	if err != nil {
		return err
	}
	return p.playPCM(pcm, tok)
}

// Cue plays a one-shot sine tone. Cues are fire-and-forget: they are
// not gated, so a stop command never cuts them short.
func (p *Player) Cue(freq float64, d time.Duration, volume float64) error {
	player := p.ctx.NewPlayer(bytes.NewReader(tonePCM(freq, d, SampleRate)))
	player.SetVolume(volume)
	player.Play()
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	return player.Close()
}

// StartTone begins an endless sine tone at the given volume and hands
// back its control. The caller owns the tone and must Close it.
func (p *Player) StartTone(freq, volume float64) (domain.ToneControl, error) {
	player := p.ctx.NewPlayer(&toneReader{freq: freq, sampleRate: SampleRate})
	player.SetVolume(volume)
	player.Play()
	return player, nil
}

// playPCM blocks until the audio finishes or tok is superseded.
// Losing authority is not an error; the worker just lets go.
func (p *Player) playPCM(pcm []byte, tok generation.Token) error {
	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()
	p.log.Debug("playback: playing %d bytes of PCM (gen=%d gated=%v)", len(pcm), tok.Value(), tok.Gated())

	for player.IsPlaying() && p.reg.IsCurrent(tok) {
		time.Sleep(pollInterval)
	}

	if player.IsPlaying() {
		// Superseded mid-playback: silence the device before release.
		player.Pause()
		p.log.Debug("playback: superseded (gen=%d)", tok.Value())
	}
	return player.Close()
}

// extractPCM walks the RIFF chunks and returns the raw PCM payload.
func extractPCM(wav []byte) ([]byte, error) {
	if len(wav) < 44 {
		return nil, errors.New("wav data too short")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a valid WAV file")
	}

	pos := 12
	for pos < len(wav)-8 {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))

		if chunkID == "data" {
			start := pos + 8
			end := start + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			return wav[start:end], nil
		}

		pos += 8 + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, errors.New("data chunk not found in WAV")
}
