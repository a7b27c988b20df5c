// VoxDesk — a voice-enabled desktop chat client backend.
//
// Usage:
//
//	voxdesk [-verbose] [-quiet]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/voxdesk/voxdesk/internal/app"
	"github.com/voxdesk/voxdesk/internal/completion"
	"github.com/voxdesk/voxdesk/internal/generation"
	"github.com/voxdesk/voxdesk/internal/logger"
	"github.com/voxdesk/voxdesk/internal/playback"
	"github.com/voxdesk/voxdesk/internal/record"
	"github.com/voxdesk/voxdesk/internal/stt"
	"github.com/voxdesk/voxdesk/internal/telemetry"
	"github.com/voxdesk/voxdesk/internal/tts"
)

// Environment variables read at startup.
const (
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvChatEndpoint      = "CHAT_ENDPOINT"
	EnvChatKey           = "CHAT_KEY"
)

var (
	promptStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	transcriptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	chatStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	urgentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".voxdesk/voxdesk.log", "file to write logs to (use \"stderr\" to log to console)")
	diskCache := flag.Bool("disk-cache", true, "persist TTS audio cache to disk (reads from disk even when false)")
	cacheDir := flag.String("cache-dir", ".voxdesk/cache", "directory for persistent TTS audio cache")
	voice := flag.String("voice", tts.DefaultVoice, "TTS synthesis voice")
	beepVolume := flag.Float64("beep-volume", 0.5, "volume of progress beeps while synthesis is in flight (0 disables)")
	apiKeyAuth := flag.Bool("api-key-auth", false, "authenticate chat requests with the api-key header instead of a Bearer token")
	language := flag.String("language", "", "transcription language hint (empty = auto-detect)")
	flag.Parse()

	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a file by default so the REPL stays clean.
	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Redirect Go's default log package (used by audio libraries) to the
	// same output so it doesn't spam the terminal.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared coordination state.
	registry := generation.NewRegistry()
	marker := generation.NewMarker()
	loudness := telemetry.NewCell()
	events := completion.NewBuffer()

	player, err := playback.NewPlayer(registry, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: audio output unavailable: %v\n", err)
		os.Exit(1)
	}

	azureKey := os.Getenv(EnvAzureSpeechKey)
	azureRegion := os.Getenv(EnvAzureSpeechRegion)
	if azureKey == "" || azureRegion == "" {
		fmt.Fprintf(os.Stderr, "error: set %s and %s to enable speech synthesis\n", EnvAzureSpeechKey, EnvAzureSpeechRegion)
		os.Exit(1)
	}
	synth := tts.NewAzureClient(azureKey, azureRegion, log, tts.WithVoice(*voice))
	cache := tts.NewAudioCache(*voice, *cacheDir, *diskCache, log)

	openaiKey := os.Getenv(EnvOpenAIKey)
	if openaiKey == "" {
		fmt.Fprintf(os.Stderr, "error: set %s to enable transcription\n", EnvOpenAIKey)
		os.Exit(1)
	}
	transcriber := stt.NewClient(openaiKey, log)

	chatEndpoint := os.Getenv(EnvChatEndpoint)
	chatKey := os.Getenv(EnvChatKey)
	if chatEndpoint == "" {
		// Fall back to OpenAI with the transcription credentials.
		chatEndpoint = "https://api.openai.com/v1/chat/completions"
		chatKey = openaiKey
	}

	a := app.New(app.Deps{
		Registry:    registry,
		Marker:      marker,
		Loudness:    loudness,
		Events:      events,
		Completions: completion.NewClient(events, log),
		Recorder:    record.NewRecorder(registry, loudness, log),
		Player:      player,
		Beeper:      playback.NewBeeper(log),
		Synth:       synth,
		Transcriber: transcriber,
		Cache:       cache,
		Chat: app.ChatConfig{
			Endpoint:   chatEndpoint,
			Secret:     chatKey,
			APIKeyAuth: *apiKeyAuth,
		},
		Log: log,
	})

	log.Info("voxdesk ready (voice=%s, chat=%s)", *voice, chatEndpoint)

	repl := &repl{
		app:        a,
		log:        log,
		beepVolume: *beepVolume,
		language:   *language,
	}
	repl.run(ctx, cancel)
}

type repl struct {
	app        *app.App
	log        *logger.Logger
	beepVolume float64
	language   string
	nextChatID atomic.Uint64
	listening  atomic.Bool
}

func (r *repl) run(ctx context.Context, cancel context.CancelFunc) {
	fmt.Println(promptStyle.Render("voxdesk"))
	fmt.Println(hintStyle.Render("  type 'help' for commands, 'quit' to exit"))
	fmt.Println()

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("> "))
		if !sc.Scan() {
			cancel()
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		cmd, arg := line, ""
		if i := strings.IndexByte(line, ' '); i >= 0 {
			cmd, arg = line[:i], strings.TrimSpace(line[i+1:])
		}

		switch cmd {
		case "speak":
			r.speak(ctx, arg, false)
		case "prefetch":
			r.speak(ctx, arg, true)
		case "stop":
			r.app.StopAudio()
		case "listen":
			r.listen(ctx)
		case "done":
			r.app.StopListening()
		case "cancel":
			r.app.CancelListening()
		case "level":
			r.level()
		case "chat":
			r.chat(ctx, arg)
		case "stopchat":
			r.app.StopAllChatCompletions()
		case "test":
			r.cue(r.app.TestSound)
		case "focus":
			r.cue(r.app.FocusInputCue)
		case "waiting":
			r.cue(r.app.WaitingCue)
		case "help":
			r.showHelp()
		case "quit", "exit":
			r.app.StopAudio()
			r.app.StopListening()
			r.app.StopAllChatCompletions()
			cancel()
			return
		default:
			fmt.Println(hintStyle.Render("unknown command, type 'help'"))
		}
	}
}

func (r *repl) speak(ctx context.Context, text string, prefetch bool) {
	if text == "" {
		fmt.Println(hintStyle.Render("usage: speak <text>"))
		return
	}
	go func() {
		err := r.app.Speak(ctx, app.SpeakRequest{
			Text:       text,
			BeepVolume: r.beepVolume,
			Prefetch:   prefetch,
		})
		if err != nil {
			fmt.Println(urgentStyle.Render(fmt.Sprintf("speak: %v", err)))
		}
	}()
}

func (r *repl) listen(ctx context.Context) {
	if !r.listening.CompareAndSwap(false, true) {
		fmt.Println(hintStyle.Render("already listening — 'done' to transcribe, 'cancel' to discard"))
		return
	}
	fmt.Println(hintStyle.Render("listening... 'done' to transcribe, 'cancel' to discard"))
	go func() {
		defer r.listening.Store(false)
		text, err := r.app.StartListening(ctx, r.language)
		if err != nil {
			fmt.Println(urgentStyle.Render(fmt.Sprintf("listen: %v", err)))
			return
		}
		if text == "" {
			fmt.Println(hintStyle.Render("(nothing transcribed)"))
			return
		}
		fmt.Println(transcriptStyle.Render("heard: " + text))
	}()
}

func (r *repl) level() {
	v := r.app.InputLoudness()
	if v == telemetry.Processing {
		fmt.Println(hintStyle.Render("level: processing"))
		return
	}
	fmt.Println(hintStyle.Render("level: " + strconv.FormatFloat(v, 'f', 4, 64)))
}

func (r *repl) chat(ctx context.Context, message string) {
	if message == "" {
		fmt.Println(hintStyle.Render("usage: chat <message>"))
		return
	}

	body, err := json.Marshal(map[string]any{
		"model":  "gpt-4o-mini",
		"stream": true,
		"messages": []map[string]string{
			{"role": "user", "content": message},
		},
	})
	if err != nil {
		fmt.Println(urgentStyle.Render(fmt.Sprintf("chat: %v", err)))
		return
	}

	id := r.nextChatID.Add(1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := r.app.StartChatCompletion(ctx, id, string(body)); err != nil {
			fmt.Println(urgentStyle.Render(fmt.Sprintf("chat: %v", err)))
		}
	}()

	// Relay events as they arrive, with a final drain once the stream
	// settles so nothing buffered is lost.
	go func() {
		ticker := time.NewTicker(150 * time.Millisecond)
		defer ticker.Stop()
		for {
			for _, ev := range r.app.ChatCompletion(id) {
				fmt.Println(chatStyle.Render(ev))
			}
			select {
			case <-done:
				for _, ev := range r.app.ChatCompletion(id) {
					fmt.Println(chatStyle.Render(ev))
				}
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (r *repl) cue(play func() error) {
	go func() {
		if err := play(); err != nil {
			fmt.Println(urgentStyle.Render(fmt.Sprintf("cue: %v", err)))
		}
	}()
}

func (r *repl) showHelp() {
	fmt.Println(promptStyle.Render("Commands:"))
	fmt.Println("  speak <text>     Synthesize and play text")
	fmt.Println("  prefetch <text>  Warm the TTS cache without playing")
	fmt.Println("  stop             Stop current playback")
	fmt.Println("  listen           Start recording from the microphone")
	fmt.Println("  done             Stop recording and transcribe")
	fmt.Println("  cancel           Stop recording and discard the audio")
	fmt.Println("  level            Show the current input loudness")
	fmt.Println("  chat <message>   Stream a chat completion")
	fmt.Println("  stopchat         Halt all outstanding chat streams")
	fmt.Println("  test             Play the reference tone")
	fmt.Println("  focus            Play the input-focus blip")
	fmt.Println("  waiting          Play the request-submitted tone")
	fmt.Println("  quit             Exit")
}
