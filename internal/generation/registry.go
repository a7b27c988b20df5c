// Package generation implements the supersession model that supervises
// long-running audio and network workers.
//
// Each resource class (playback, recording) has a monotonic counter.
// Starting an operation mints a token carrying the new counter value;
// the worker polls the registry between I/O bursts and self-terminates
// once a newer generation exists. Stopping advances the counter without
// minting a replacement token, so the current worker simply loses
// authority. Workers are never aborted directly — staleness is always
// discovered cooperatively, bounded by the poll interval.
package generation

import "sync/atomic"

// Class identifies one independently supervised resource class.
type Class int

const (
	// Playback supervises speech/audio output workers.
	Playback Class = iota
	// Recording supervises microphone capture workers.
	Recording

	numClasses
)

// PollInterval is the reference interval at which workers re-check
// their authority. Two workers may overlap for up to one interval
// after a supersession; that latency bound is accepted.
const PollInterval = 50 // milliseconds; see playback and record loops

// Token is the authority a worker captured at launch.
//
// The zero Token is ungated: IsCurrent always reports true for it, and
// no stop or cancel ever targets it. Fire-and-forget paths (prefetch,
// one-shot cues) use it so they never enter a gated playback loop.
type Token struct {
	class Class
	value int64
	gated bool
}

// Ungated returns a token that is never superseded.
func Ungated() Token { return Token{} }

// Gated reports whether the token participates in supersession.
func (t Token) Gated() bool { return t.gated }

// Value returns the generation number the token carries. Meaningless
// for ungated tokens.
func (t Token) Value() int64 { return t.value }

// Registry holds one monotonic generation counter per class.
// The zero value is ready to use.
type Registry struct {
	counters [numClasses]atomic.Int64
}

// NewRegistry creates a registry with all counters at zero.
func NewRegistry() *Registry { return &Registry{} }

// Begin advances the class counter and mints the token for the new
// generation. The previous generation, if any, becomes stale.
func (r *Registry) Begin(c Class) Token {
	return Token{class: c, value: r.counters[c].Add(1), gated: true}
}

// ForceStop advances the class counter without minting a token,
// vacating the current generation with no replacement. It returns the
// generation that was vacated so callers can record it (see Marker).
func (r *Registry) ForceStop(c Class) int64 {
	return r.counters[c].Add(1) - 1
}

// IsCurrent reports whether the token still holds authority for its
// class. Ungated tokens are always current.
func (r *Registry) IsCurrent(t Token) bool {
	if !t.gated {
		return true
	}
	return r.counters[t.class].Load() == t.value
}
