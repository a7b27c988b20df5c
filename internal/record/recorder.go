// Package record captures microphone input under supersession
// supervision and prepares it for transcription.
//
// A capture session holds the current recording generation. The worker
// buffers frames and publishes their RMS amplitude to the loudness
// cell for as long as it is authoritative; once a stop or cancel
// advances the generation, the next poll sees the staleness, the
// device is released, and the buffered samples are finalized.
package record

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/voxdesk/voxdesk/internal/domain"
	"github.com/voxdesk/voxdesk/internal/generation"
	"github.com/voxdesk/voxdesk/internal/logger"
	"github.com/voxdesk/voxdesk/internal/telemetry"
)

// DefaultSampleRate is the capture rate requested from the device.
const DefaultSampleRate = 16000

// pollInterval bounds supersession latency for the capture loop.
const pollInterval = 50 * time.Millisecond

// Source delivers captured frames already normalized to mono float32.
// The production implementation is malgo; tests feed frames directly.
type Source interface {
	Start(onFrame func(samples []float32)) error
	Stop() error
}

// RecorderOption configures the Recorder.
type RecorderOption func(*Recorder)

// WithSampleRate overrides the capture sample rate.
func WithSampleRate(rate uint32) RecorderOption {
	return func(r *Recorder) { r.sampleRate = rate }
}

// WithSourceFactory substitutes the capture source, mainly for tests.
func WithSourceFactory(f func() Source) RecorderOption {
	return func(r *Recorder) { r.newSource = f }
}

// Recorder runs supervised capture sessions.
type Recorder struct {
	reg        *generation.Registry
	loudness   *telemetry.Cell
	log        *logger.Logger
	sampleRate uint32
	newSource  func() Source
}

// NewRecorder creates a recorder capturing from the default input
// device.
func NewRecorder(reg *generation.Registry, loudness *telemetry.Cell, log *logger.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		reg:        reg,
		loudness:   loudness,
		log:        log,
		sampleRate: DefaultSampleRate,
	}
	for _, o := range opts {
		o(r)
	}
	if r.newSource == nil {
		r.newSource = func() Source {
			return newMiniaudioSource(r.sampleRate, r.log)
		}
	}
	return r
}

// Capture records until tok loses authority, then returns the buffered
// samples as WAV bytes. Supersession is the normal way a session ends;
// it is never an error. The ctx covers process shutdown only.
func (r *Recorder) Capture(ctx context.Context, tok generation.Token) ([]byte, error) {
	var mu sync.Mutex
	var samples []float32

	src := r.newSource()
	err := src.Start(func(frame []float32) {
		// A superseded worker must not buffer further samples or
		// touch the telemetry of the session that replaced it.
		if !r.reg.IsCurrent(tok) {
			return
		}
		mu.Lock()
		samples = append(samples, frame...)
		mu.Unlock()
		r.loudness.SetRMS(rms(frame))
	})
	if err != nil {
		return nil, err
	}

	r.log.Debug("record: capture started (gen=%d, rate=%d)", tok.Value(), r.sampleRate)

	for r.reg.IsCurrent(tok) {
		select {
		case <-ctx.Done():
			src.Stop()
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	if err := src.Stop(); err != nil {
		r.log.Warn("record: device release: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	r.log.Debug("record: capture ended (gen=%d, samples=%d)", tok.Value(), len(samples))
	return encodeWAV(samples, r.sampleRate), nil
}

// miniaudioSource captures from the default input device via malgo.
type miniaudioSource struct {
	sampleRate uint32
	log        *logger.Logger

	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func newMiniaudioSource(sampleRate uint32, log *logger.Logger) *miniaudioSource {
	return &miniaudioSource{sampleRate: sampleRate, log: log}
}

func (s *miniaudioSource) Start(onFrame func([]float32)) error {
	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(_ string) {})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = s.sampleRate
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = 1
	devCfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, raw []byte, _ uint32) {
			if len(raw) == 0 {
				return
			}
			onFrame(decodeSamples(FormatS16, raw, 1))
		},
	}

	device, err := malgo.InitDevice(mCtx.Context, devCfg, callbacks)
	if err != nil {
		_ = mCtx.Uninit()
		mCtx.Free()
		return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mCtx.Uninit()
		mCtx.Free()
		return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}

	s.ctx = mCtx
	s.device = device
	return nil
}

func (s *miniaudioSource) Stop() error {
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		err := s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
		return err
	}
	return nil
}
