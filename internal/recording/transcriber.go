package recording

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrVoiceInputDisabled is returned when the voice input preference is off.
	ErrVoiceInputDisabled = errors.New("voice input is disabled in settings")
	// ErrEmptyTranscript indicates stop completed but no usable speech was recognized.
	ErrEmptyTranscript = errors.New("no speech recognized; check microphone input or mute state")
	// ErrNotListening is returned by Stop and Cancel outside an active session.
	ErrNotListening = errors.New("no active recording")
)

// StartOptions configures one recognition session.
type StartOptions struct {
	LanguageTag string
	OnInterim   func(string)
	// OnError reports a failure while listening. It may run on any goroutine.
	OnError func(error)
}

// StopResult is the transcriber output consumed by the controller.
type StopResult struct {
	Transcript    string
	AudioDevice   string
	BytesCaptured int64
	Latency       time.Duration
}

// Transcriber abstracts one capture and recognition session.
type Transcriber interface {
	Start(context.Context, StartOptions) error
	StopAndTranscribe(context.Context) (StopResult, error)
	Cancel(context.Context) error
}

// Factory creates a fresh transcriber for every session.
type Factory func() Transcriber
