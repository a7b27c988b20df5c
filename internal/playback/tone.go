package playback

import (
	"encoding/binary"
	"math"
	"time"
)

// tone frequencies for the audible UI cues.
const (
	// TestToneFreq is the low reference tone for the sound check.
	TestToneFreq = 256.0
	// FocusCueFreq is the short blip played when input gains focus.
	FocusCueFreq = 880.0
	// WaitingCueFreq is the tone played while a completion is pending.
	WaitingCueFreq = 440.0
	// BeepFreq is the carrier tone the duty-cycle beeper pulses.
	BeepFreq = 659.25 // E5
)

const toneAmplitude = 0.9 * math.MaxInt16

// toneReader streams an endless sine wave as 16-bit little-endian
// mono PCM. It never returns an error; the consumer stops reading when
// the tone is closed.
type toneReader struct {
	freq       float64
	sampleRate int
	phase      float64
}

func (t *toneReader) Read(p []byte) (int, error) {
	step := 2 * math.Pi * t.freq / float64(t.sampleRate)
	n := len(p) / 2
	for i := 0; i < n; i++ {
		s := int16(math.Sin(t.phase) * toneAmplitude)
		binary.LittleEndian.PutUint16(p[2*i:], uint16(s))
		t.phase += step
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return n * 2, nil
}

// tonePCM renders a finite sine tone as raw PCM for one-shot cues.
func tonePCM(freq float64, d time.Duration, sampleRate int) []byte {
	samples := int(float64(sampleRate) * d.Seconds())
	buf := make([]byte, samples*2)
	r := &toneReader{freq: freq, sampleRate: sampleRate}
	r.Read(buf)
	return buf
}
