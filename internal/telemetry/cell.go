// Package telemetry exposes near-real-time instrument state to polling
// observers without a separate status channel.
package telemetry

import "go.uber.org/atomic"

// Processing is the loudness sentinel meaning "capture has ended and
// the transcription result is pending". Any value >= 0 is a normalized
// RMS amplitude of the most recent frame.
const Processing = -1.0

// Cell is the shared input-loudness value. The worker holding the
// current recording generation writes it; the UI polls it. A worker
// must stop writing the instant it loses authority so a superseded
// session can never corrupt its successor's readings.
type Cell struct {
	v atomic.Float64
}

// NewCell creates a cell reading 0.
func NewCell() *Cell { return &Cell{} }

// Reset returns the cell to 0 at the start of a session.
func (c *Cell) Reset() { c.v.Store(0) }

// SetRMS publishes the amplitude of the latest captured frame.
func (c *Cell) SetRMS(v float64) { c.v.Store(v) }

// MarkProcessing switches the cell to the processing sentinel. It
// stays there until the next session resets it.
func (c *Cell) MarkProcessing() { c.v.Store(Processing) }

// Load returns the current reading.
func (c *Cell) Load() float64 { return c.v.Load() }

// IsProcessing reports whether the cell holds the sentinel.
func (c *Cell) IsProcessing() bool { return c.v.Load() == Processing }
