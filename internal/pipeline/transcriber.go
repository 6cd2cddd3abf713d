// Package pipeline joins microphone capture and streaming recognition into
// one recording.Transcriber.
package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rbright/vetchat/internal/audio"
	"github.com/rbright/vetchat/internal/config"
	"github.com/rbright/vetchat/internal/recording"
	"github.com/rbright/vetchat/internal/speech"
	"github.com/rbright/vetchat/internal/transcript"
)

// ErrNotStarted is returned by StopAndTranscribe before a successful Start.
var ErrNotStarted = errors.New("transcriber not started")

type captureClient interface {
	Chunks() <-chan []byte
	Stop() error
	BytesCaptured() int64
	RawPCM() []byte
}

type streamClient interface {
	SendAudio([]byte) error
	CloseAndCollect(context.Context) ([]string, time.Duration, error)
	Cancel() error
}

// Transcriber owns one capture -> recognition -> transcript session.
type Transcriber struct {
	cfg    config.Config
	logger *slog.Logger

	selectDevice func(context.Context, string, string) (audio.Selection, error)
	dialStream   func(context.Context, speech.StreamConfig) (streamClient, error)
	startCapture func(context.Context, audio.Device, audio.CaptureOptions) (captureClient, error)

	mu      sync.Mutex
	started bool

	selection audio.Selection
	capture   captureClient
	stream    streamClient
	sendErrCh chan error

	debugFile *os.File
}

// NewTranscriber constructs a transcriber from runtime config.
func NewTranscriber(cfg config.Config, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		cfg:          cfg,
		logger:       logger,
		selectDevice: audio.SelectDevice,
		dialStream: func(ctx context.Context, sc speech.StreamConfig) (streamClient, error) {
			return speech.Dial(ctx, sc)
		},
		startCapture: func(ctx context.Context, device audio.Device, opts audio.CaptureOptions) (captureClient, error) {
			return audio.StartCapture(ctx, device, opts)
		},
	}
}

// Factory adapts NewTranscriber to recording.Factory.
func Factory(cfg config.Config, logger *slog.Logger) recording.Factory {
	return func() recording.Transcriber { return NewTranscriber(cfg, logger) }
}

// Start resolves the input device, opens the recognition stream, and starts capture.
func (t *Transcriber) Start(ctx context.Context, opts recording.StartOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return fmt.Errorf("transcriber already started")
	}

	selection, err := t.selectDevice(ctx, t.cfg.Audio.Input, t.cfg.Audio.Fallback)
	if err != nil {
		return speech.NewError(deviceReason(err), err)
	}
	t.selection = selection
	if selection.Warning != "" {
		t.logWarn(selection.Warning)
	}

	phrases, _, err := config.BuildSpeechPhrases(t.cfg)
	if err != nil {
		return speech.NewError(speech.ReasonBadGrammar, fmt.Errorf("build speech contexts: %w", err))
	}

	var sink io.Writer
	if t.cfg.Debug.EnableGRPCDump {
		file, ferr := createDebugFile("speech", "jsonl")
		if ferr != nil {
			return ferr
		}
		t.debugFile = file
		sink = file
	}

	streamCfg := speech.StreamConfig{
		LanguageCode:         opts.LanguageTag,
		Model:                t.cfg.Speech.Model,
		AutomaticPunctuation: t.cfg.Speech.AutomaticPunctuation,
		InterimResults:       t.cfg.Speech.InterimResults,
		CredentialsFile:      t.cfg.Speech.CredentialsFile,
		OnInterim:            opts.OnInterim,
		OnError:              opts.OnError,
		DebugSink:            sink,
	}
	for _, phrase := range phrases {
		streamCfg.Phrases = append(streamCfg.Phrases, speech.Phrase{Text: phrase.Phrase, Boost: phrase.Boost})
	}

	stream, err := t.dialStream(ctx, streamCfg)
	if err != nil {
		t.closeDebugArtifactsLocked()
		return err
	}

	capture, err := t.startCapture(ctx, selection.Device, audio.CaptureOptions{KeepRaw: t.cfg.Debug.EnableAudioDump})
	if err != nil {
		_ = stream.Cancel()
		t.closeDebugArtifactsLocked()
		return speech.NewError(speech.ReasonAudioCapture, err)
	}

	t.stream = stream
	t.capture = capture
	t.sendErrCh = make(chan error, 1)
	t.started = true
	go t.sendLoop(capture, stream, t.sendErrCh, opts.OnError)
	return nil
}

// StopAndTranscribe stops capture, drains the stream, and assembles the transcript.
func (t *Transcriber) StopAndTranscribe(ctx context.Context) (recording.StopResult, error) {
	t.mu.Lock()
	started := t.started
	capture := t.capture
	stream := t.stream
	sendErrCh := t.sendErrCh
	device := describeDevice(t.selection.Device)
	t.started = false
	t.capture = nil
	t.stream = nil
	t.mu.Unlock()

	if !started || capture == nil || stream == nil {
		return recording.StopResult{}, ErrNotStarted
	}
	defer t.closeDebugArtifacts()

	_ = capture.Stop()
	result := recording.StopResult{AudioDevice: device, BytesCaptured: capture.BytesCaptured()}
	defer t.writeDebugAudio(capture.RawPCM())

	if sendErr := <-sendErrCh; sendErr != nil {
		_ = stream.Cancel()
		return result, fmt.Errorf("send audio stream: %w", sendErr)
	}

	closeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	segments, latency, err := stream.CloseAndCollect(closeCtx)
	result.Latency = latency
	if err != nil {
		return result, fmt.Errorf("collect final transcript: %w", err)
	}

	result.Transcript = transcript.Join(segments)
	return result, nil
}

// Cancel stops capture and the stream without collecting a transcript.
func (t *Transcriber) Cancel(_ context.Context) error {
	t.mu.Lock()
	capture := t.capture
	stream := t.stream
	t.started = false
	t.capture = nil
	t.stream = nil
	t.mu.Unlock()

	if capture != nil {
		_ = capture.Stop()
		t.writeDebugAudio(capture.RawPCM())
	}
	if stream != nil {
		_ = stream.Cancel()
	}
	t.closeDebugArtifacts()
	return nil
}

// sendLoop forwards capture chunks and reports the first send failure.
func (t *Transcriber) sendLoop(capture captureClient, stream streamClient, errCh chan<- error, onError func(error)) {
	for chunk := range capture.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		if err := stream.SendAudio(chunk); err != nil {
			_ = capture.Stop()
			// Drain so the capture goroutine never blocks on a full channel.
			for range capture.Chunks() {
			}
			errCh <- err
			if onError != nil {
				onError(fmt.Errorf("send audio stream: %w", err))
			}
			return
		}
	}
	errCh <- nil
}

func deviceReason(err error) speech.Reason {
	if strings.Contains(strings.ToLower(err.Error()), "muted") {
		return speech.ReasonNotAllowed
	}
	return speech.ReasonAudioCapture
}

func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	switch {
	case description == "":
		return id
	case id == "":
		return description
	default:
		return fmt.Sprintf("%s (%s)", description, id)
	}
}

func (t *Transcriber) logWarn(message string, args ...any) {
	if t.logger != nil {
		t.logger.Warn(message, args...)
	}
}

// createDebugFile creates a timestamped artifact under state/vetchat/debug.
func createDebugFile(prefix string, extension string) (*os.File, error) {
	stateDir, err := resolveStateDir()
	if err != nil {
		return nil, err
	}
	debugDir := filepath.Join(stateDir, "vetchat", "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}

func resolveStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}

func (t *Transcriber) closeDebugArtifacts() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeDebugArtifactsLocked()
}

func (t *Transcriber) closeDebugArtifactsLocked() {
	if t.debugFile != nil {
		_ = t.debugFile.Close()
		t.debugFile = nil
	}
}

// writeDebugAudio dumps captured PCM as WAV when debug.audio_dump is enabled.
func (t *Transcriber) writeDebugAudio(raw []byte) {
	if !t.cfg.Debug.EnableAudioDump || len(raw) < 2 {
		return
	}

	file, err := createDebugFile("audio", "wav")
	if err != nil {
		t.logWarn("unable to create debug audio dump", "error", err.Error())
		return
	}
	defer file.Close()

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	pcm := audio.PCM{Samples: samples, SampleRate: audio.CaptureSampleRate, Channels: 1}
	if err := audio.EncodeWAV(file, pcm); err != nil {
		t.logWarn("unable to write debug audio dump", "error", err.Error())
	}
}
