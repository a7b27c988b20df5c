package generation

import "sync/atomic"

// noneCanceled sits below every valid generation.
const noneCanceled = -1

// Marker records the highest recording generation that was explicitly
// canceled, as opposed to merely superseded. After its capture worker
// exits, the recording orchestrator consults the marker to decide
// whether the downstream transcription call must be skipped.
//
// The marker only ever rises.
type Marker struct {
	v atomic.Int64
}

// NewMarker creates a marker with no generation canceled.
func NewMarker() *Marker {
	m := &Marker{}
	m.v.Store(noneCanceled)
	return m
}

// Raise records gen as canceled. Lower values than the current mark
// are ignored, keeping the marker non-decreasing under races.
func (m *Marker) Raise(gen int64) {
	for {
		cur := m.v.Load()
		if gen <= cur {
			return
		}
		if m.v.CompareAndSwap(cur, gen) {
			return
		}
	}
}

// Canceled reports whether the token's generation was explicitly
// canceled. Ungated tokens are never canceled.
func (m *Marker) Canceled(t Token) bool {
	return t.gated && t.value <= m.v.Load()
}
