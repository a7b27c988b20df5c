package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across layers. Cancellation is deliberately
// absent: a canceled operation is a normal terminal outcome and
// surfaces as an empty result, never as an error.
var (
	// ErrDeviceUnavailable means the audio device is missing or busy.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrStreamTerminated means the connection dropped before the
	// terminal marker or a natural end of stream.
	ErrStreamTerminated = errors.New("stream terminated early")
)

// UpstreamError is a non-success status from a vendor call. It aborts
// only the request that issued it.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Body)
}
