package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxdesk/voxdesk/internal/completion"
	"github.com/voxdesk/voxdesk/internal/domain"
	"github.com/voxdesk/voxdesk/internal/generation"
	"github.com/voxdesk/voxdesk/internal/logger"
	"github.com/voxdesk/voxdesk/internal/playback"
	"github.com/voxdesk/voxdesk/internal/telemetry"
)

// ── fakes ────────────────────────────────────────────────────────

type fakeTone struct {
	mu      sync.Mutex
	volumes []float64
	closed  bool
}

func (f *fakeTone) SetVolume(v float64) {
	f.mu.Lock()
	f.volumes = append(f.volumes, v)
	f.mu.Unlock()
}

func (f *fakeTone) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTone) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type played struct {
	data []byte
	tok  generation.Token
}

type fakePlayer struct {
	mu    sync.Mutex
	plays []played
	cues  []float64
	tone  *fakeTone
}

func (f *fakePlayer) PlayWAV(data []byte, tok generation.Token) error {
	f.mu.Lock()
	f.plays = append(f.plays, played{data, tok})
	f.mu.Unlock()
	return nil
}

func (f *fakePlayer) Cue(freq float64, d time.Duration, volume float64) error {
	f.mu.Lock()
	f.cues = append(f.cues, freq)
	f.mu.Unlock()
	return nil
}

func (f *fakePlayer) StartTone(freq, volume float64) (domain.ToneControl, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tone == nil {
		f.tone = &fakeTone{}
	}
	return f.tone, nil
}

func (f *fakePlayer) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plays)
}

type fakeSynth struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	audio []byte
	err   error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.audio, f.err
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{entries: make(map[string][]byte)} }

func (f *fakeCache) Get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.entries[key]
	return data, ok
}

func (f *fakeCache) Put(key string, data []byte) {
	f.mu.Lock()
	f.entries[key] = data
	f.mu.Unlock()
}

// fakeCapturer behaves like the real recorder: it blocks until the
// token loses authority, then hands back its audio. Each Capture call
// announces itself on started so tests can order their stops.
type fakeCapturer struct {
	reg     *generation.Registry
	wav     []byte
	started chan struct{}
}

func (f *fakeCapturer) Capture(ctx context.Context, tok generation.Token) ([]byte, error) {
	f.started <- struct{}{}
	for f.reg.IsCurrent(tok) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
	return f.wav, nil
}

type fakeTranscriber struct {
	mu       sync.Mutex
	calls    int
	loudness float64 // cell reading observed at call time
	cell     *telemetry.Cell
	text     string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	f.mu.Lock()
	f.calls++
	if f.cell != nil {
		f.loudness = f.cell.Load()
	}
	f.mu.Unlock()
	return f.text, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStreamer struct {
	mu   sync.Mutex
	reqs []completion.Request
	run  func(req completion.Request) error
}

func (f *fakeStreamer) Stream(ctx context.Context, req completion.Request) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.run != nil {
		return f.run(req)
	}
	return nil
}

// ── harness ──────────────────────────────────────────────────────

type harness struct {
	app         *App
	reg         *generation.Registry
	cell        *telemetry.Cell
	events      *completion.Buffer
	player      *fakePlayer
	synth       *fakeSynth
	cache       *fakeCache
	transcriber *fakeTranscriber
	streamer    *fakeStreamer
	captures    chan struct{}
}

func newHarness() *harness {
	h := &harness{
		reg:      generation.NewRegistry(),
		cell:     telemetry.NewCell(),
		events:   completion.NewBuffer(),
		player:   &fakePlayer{},
		synth:    &fakeSynth{audio: []byte("synth-audio")},
		cache:    newFakeCache(),
		streamer: &fakeStreamer{},
	}
	h.transcriber = &fakeTranscriber{cell: h.cell, text: "transcript"}
	h.captures = make(chan struct{}, 8)
	log := logger.New(logger.LevelOff, nil)

	h.app = New(Deps{
		Registry:    h.reg,
		Marker:      generation.NewMarker(),
		Loudness:    h.cell,
		Events:      h.events,
		Completions: h.streamer,
		Recorder:    &fakeCapturer{reg: h.reg, wav: []byte("wav"), started: h.captures},
		Player:      h.player,
		Beeper:      playback.NewBeeper(log, playback.WithTick(time.Millisecond)),
		Synth:       h.synth,
		Transcriber: h.transcriber,
		Cache:       h.cache,
		Chat:        ChatConfig{Endpoint: "http://chat.test", Secret: "s3cret"},
		Log:         log,
	})
	return h
}

func (h *harness) waitCaptureStart(t *testing.T) {
	t.Helper()
	select {
	case <-h.captures:
	case <-time.After(2 * time.Second):
		t.Fatal("capture never started")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(time.Millisecond):
		}
	}
}

// ── speak ────────────────────────────────────────────────────────

func TestSpeakCacheHitSkipsSynthesis(t *testing.T) {
	h := newHarness()
	h.cache.Put("hello", []byte("cached-audio"))

	if err := h.app.Speak(context.Background(), SpeakRequest{Text: "hello"}); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if h.synth.callCount() != 0 {
		t.Fatal("cache hit should not synthesize")
	}
	if h.player.playCount() != 1 || string(h.player.plays[0].data) != "cached-audio" {
		t.Fatalf("plays = %v", h.player.plays)
	}
}

func TestSpeakMissSynthesizesCachesAndPlays(t *testing.T) {
	h := newHarness()

	if err := h.app.Speak(context.Background(), SpeakRequest{Text: "hello"}); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if h.synth.callCount() != 1 {
		t.Fatalf("synth calls = %d", h.synth.callCount())
	}
	if data, ok := h.cache.Get("hello"); !ok || string(data) != "synth-audio" {
		t.Fatal("result was not cached")
	}
	if h.player.playCount() != 1 {
		t.Fatalf("plays = %d", h.player.playCount())
	}
}

func TestSpeakPrefetchWarmsCacheWithoutPlaying(t *testing.T) {
	h := newHarness()

	if err := h.app.Speak(context.Background(), SpeakRequest{Text: "hello", Prefetch: true}); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if _, ok := h.cache.Get("hello"); !ok {
		t.Fatal("prefetch did not cache")
	}
	if h.player.playCount() != 0 {
		t.Fatal("prefetch must not play")
	}
}

func TestSpeakPrefetchNoCacheIsNoop(t *testing.T) {
	h := newHarness()

	if err := h.app.Speak(context.Background(), SpeakRequest{Text: "hello", Prefetch: true, NoCache: true}); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if h.synth.callCount() != 0 || h.player.playCount() != 0 {
		t.Fatal("prefetch+nocache should do nothing")
	}
}

func TestSpeakBeepStopsWhenFetchSettles(t *testing.T) {
	h := newHarness()
	h.synth.delay = 20 * time.Millisecond

	err := h.app.Speak(context.Background(), SpeakRequest{Text: "hello", BeepVolume: 0.8})
	if err != nil {
		t.Fatalf("speak: %v", err)
	}

	waitFor(t, "tone close", func() bool { return h.player.tone.isClosed() })

	h.player.tone.mu.Lock()
	defer h.player.tone.mu.Unlock()
	var sawOn, sawOff bool
	for _, v := range h.player.tone.volumes {
		if v == 0.8 {
			sawOn = true
		}
		if v == 0 {
			sawOff = true
		}
	}
	if !sawOn || !sawOff {
		t.Fatalf("duty cycle volumes = %v", h.player.tone.volumes)
	}
}

func TestSpeakSynthErrorStillStopsBeep(t *testing.T) {
	h := newHarness()
	h.synth.err = errors.New("boom")
	h.synth.delay = 10 * time.Millisecond

	if err := h.app.Speak(context.Background(), SpeakRequest{Text: "hello", BeepVolume: 0.5}); err == nil {
		t.Fatal("expected synthesis error")
	}
	waitFor(t, "tone close after error", func() bool { return h.player.tone.isClosed() })
	if h.player.playCount() != 0 {
		t.Fatal("failed synthesis must not play")
	}
}

func TestStopAudioSupersedesPlayback(t *testing.T) {
	h := newHarness()
	h.cache.Put("hello", []byte("cached"))

	if err := h.app.Speak(context.Background(), SpeakRequest{Text: "hello"}); err != nil {
		t.Fatalf("speak: %v", err)
	}
	tok := h.player.plays[0].tok
	if !h.reg.IsCurrent(tok) {
		t.Fatal("playback token should be current before stop")
	}
	h.app.StopAudio()
	if h.reg.IsCurrent(tok) {
		t.Fatal("stop did not supersede playback")
	}
}

// ── listening ────────────────────────────────────────────────────

func TestListenStopTranscribes(t *testing.T) {
	h := newHarness()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := h.app.StartListening(context.Background(), "en")
		done <- result{text, err}
	}()

	h.waitCaptureStart(t)
	h.app.StopListening()

	select {
	case res := <-done:
		if res.err != nil || res.text != "transcript" {
			t.Fatalf("listen = %q, %v", res.text, res.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listening never returned")
	}

	// The loudness cell must read the processing sentinel while the
	// transcription call is in flight.
	h.transcriber.mu.Lock()
	defer h.transcriber.mu.Unlock()
	if h.transcriber.loudness != telemetry.Processing {
		t.Fatalf("loudness during transcription = %v", h.transcriber.loudness)
	}
}

func TestListenCancelDiscardsAudio(t *testing.T) {
	h := newHarness()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := h.app.StartListening(context.Background(), "")
		done <- result{text, err}
	}()

	h.waitCaptureStart(t)
	h.app.CancelListening()

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("cancel surfaced an error: %v", res.err)
		}
		if res.text != "" {
			t.Fatalf("canceled session returned %q", res.text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listening never returned")
	}

	if h.transcriber.callCount() != 0 {
		t.Fatal("canceled audio must not reach transcription")
	}
}

func TestListenCancelDoesNotAffectNextSession(t *testing.T) {
	h := newHarness()

	go h.app.StartListening(context.Background(), "")
	h.waitCaptureStart(t)
	h.app.CancelListening()

	done := make(chan string, 1)
	go func() {
		text, _ := h.app.StartListening(context.Background(), "")
		done <- text
	}()
	h.waitCaptureStart(t)
	h.app.StopListening()

	select {
	case text := <-done:
		if text != "transcript" {
			t.Fatalf("second session = %q, earlier cancel leaked", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second session never returned")
	}
}

// ── chat completions ─────────────────────────────────────────────

func TestStartChatCompletionUsesConfig(t *testing.T) {
	h := newHarness()

	if err := h.app.StartChatCompletion(context.Background(), 7, `{"messages":[]}`); err != nil {
		t.Fatalf("start: %v", err)
	}

	h.streamer.mu.Lock()
	defer h.streamer.mu.Unlock()
	if len(h.streamer.reqs) != 1 {
		t.Fatalf("requests = %d", len(h.streamer.reqs))
	}
	req := h.streamer.reqs[0]
	if req.ID != 7 || req.Endpoint != "http://chat.test" || req.Secret != "s3cret" {
		t.Fatalf("request = %+v", req)
	}
}

func TestChatCompletionDrainsBufferedEvents(t *testing.T) {
	h := newHarness()
	h.streamer.run = func(req completion.Request) error {
		h.events.Track(req.ID)
		h.events.Append(req.ID, "hel")
		h.events.Append(req.ID, "lo")
		return nil
	}

	if err := h.app.StartChatCompletion(context.Background(), 3, "{}"); err != nil {
		t.Fatalf("start: %v", err)
	}
	got := h.app.ChatCompletion(3)
	if len(got) != 2 || got[0] != "hel" || got[1] != "lo" {
		t.Fatalf("drained %v", got)
	}
	if again := h.app.ChatCompletion(3); len(again) != 0 {
		t.Fatalf("second drain = %v", again)
	}
}

func TestStopAllChatCompletionsMarksOutstanding(t *testing.T) {
	h := newHarness()
	h.events.Track(1)
	h.events.Track(2)

	h.app.StopAllChatCompletions()

	if !h.events.Canceled(1) || !h.events.Canceled(2) {
		t.Fatal("outstanding streams were not canceled")
	}
}

// ── cues ─────────────────────────────────────────────────────────

func TestCueFrequencies(t *testing.T) {
	h := newHarness()

	h.app.TestSound()
	h.app.FocusInputCue()
	h.app.WaitingCue()

	h.player.mu.Lock()
	defer h.player.mu.Unlock()
	want := []float64{playback.TestToneFreq, playback.FocusCueFreq, playback.WaitingCueFreq}
	if len(h.player.cues) != len(want) {
		t.Fatalf("cues = %v", h.player.cues)
	}
	for i, freq := range want {
		if h.player.cues[i] != freq {
			t.Fatalf("cue %d = %v, want %v", i, h.player.cues[i], freq)
		}
	}
}
