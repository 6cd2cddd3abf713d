// Package recording owns the voice input lifecycle: one session at a time,
// driven from the chat loop or from another process over IPC.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/vetchat/internal/fsm"
	"github.com/rbright/vetchat/internal/ipc"
	"github.com/rbright/vetchat/internal/speech"
)

const voiceDisabledMessage = "❌ Voice input is disabled in settings"

// Result is the outcome of one completed session.
type Result struct {
	Transcript    string
	LanguageTag   string
	AudioDevice   string
	BytesCaptured int64
	Latency       time.Duration
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Indicator is the recording-facing subset of indicator behavior.
type Indicator interface {
	ShowListening(context.Context)
	ShowTranscribing(context.Context)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueComplete(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowListening(context.Context)     {}
func (noopIndicator) ShowTranscribing(context.Context)  {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) CueStop(context.Context)           {}
func (noopIndicator) CueComplete(context.Context)       {}
func (noopIndicator) CueCancel(context.Context)         {}
func (noopIndicator) Hide(context.Context)              {}

// Options wires a Controller.
type Options struct {
	Logger    *slog.Logger
	Factory   Factory
	Indicator Indicator
	// Enabled reports the voice input preference.
	Enabled func() bool
	// Language supplies the tag for sessions started over IPC.
	Language func() string
	// OnInterim receives running transcripts while listening.
	OnInterim func(string)
	// OnTranscript receives every successful result.
	OnTranscript func(Result)
	// OnSettled runs whenever a session ends, after OnTranscript.
	OnSettled func()
}

type session struct {
	transcriber Transcriber
	languageTag string
	startedAt   time.Time
	cancel      context.CancelFunc
}

// Controller serializes recording operations and tracks FSM state.
type Controller struct {
	opts Options

	opMu sync.Mutex

	mu      sync.RWMutex
	state   fsm.State
	current *session
}

// NewController constructs a controller with safe defaults for unset options.
func NewController(opts Options) *Controller {
	if opts.Indicator == nil {
		opts.Indicator = noopIndicator{}
	}
	if opts.Enabled == nil {
		opts.Enabled = func() bool { return true }
	}
	if opts.Language == nil {
		opts.Language = func() string { return "en-US" }
	}
	return &Controller{opts: opts, state: fsm.StateIdle}
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Start begins listening. An active session is cancelled first.
func (c *Controller) Start(ctx context.Context, languageTag string) error {
	if !c.opts.Enabled() {
		c.opts.Indicator.ShowError(ctx, voiceDisabledMessage)
		return ErrVoiceInputDisabled
	}
	if c.opts.Factory == nil {
		return errors.New("recording: no transcriber configured")
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State() == fsm.StateListening {
		c.cancelLocked(ctx)
	}
	if err := c.transition(fsm.EventStart); err != nil {
		return err
	}

	transcriber := c.opts.Factory()
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	current := &session{
		transcriber: transcriber,
		languageTag: languageTag,
		startedAt:   time.Now(),
		cancel:      cancel,
	}
	err := transcriber.Start(sessionCtx, StartOptions{
		LanguageTag: languageTag,
		OnInterim:   c.opts.OnInterim,
		OnError: func(err error) {
			go c.abort(current, err)
		},
	})
	if err != nil {
		cancel()
		return c.fail(ctx, err)
	}

	c.mu.Lock()
	c.current = current
	c.mu.Unlock()

	c.opts.Indicator.ShowListening(ctx)
	c.logInfo("recording started", "language", languageTag)
	return nil
}

// Stop ends listening and waits for the final transcript.
func (c *Controller) Stop(ctx context.Context) (Result, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()
	if current == nil || c.State() != fsm.StateListening {
		return Result{}, ErrNotListening
	}
	if err := c.transition(fsm.EventStop); err != nil {
		return Result{}, err
	}
	c.opts.Indicator.ShowTranscribing(ctx)

	stopped, err := current.transcriber.StopAndTranscribe(ctx)
	c.clearSession()
	c.opts.Indicator.CueStop(context.Background())

	result := Result{
		Transcript:    strings.TrimSpace(stopped.Transcript),
		LanguageTag:   current.languageTag,
		AudioDevice:   stopped.AudioDevice,
		BytesCaptured: stopped.BytesCaptured,
		Latency:       stopped.Latency,
		StartedAt:     current.startedAt,
		FinishedAt:    time.Now(),
	}
	if err != nil {
		return result, c.fail(ctx, err)
	}
	if result.Transcript == "" {
		return result, c.fail(ctx, speech.NewError(speech.ReasonNoSpeech, ErrEmptyTranscript))
	}

	if err := c.transition(fsm.EventTranscribed); err != nil {
		return result, err
	}
	c.opts.Indicator.CueComplete(context.Background())
	c.opts.Indicator.Hide(context.Background())
	c.logInfo("recording transcribed",
		"language", result.LanguageTag,
		"chars", len(result.Transcript),
		"latency_ms", result.Latency.Milliseconds(),
	)

	if c.opts.OnTranscript != nil {
		c.opts.OnTranscript(result)
	}
	c.settled()
	return result, nil
}

// Cancel aborts listening without producing a transcript.
func (c *Controller) Cancel(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State() != fsm.StateListening {
		return ErrNotListening
	}
	c.cancelLocked(ctx)
	return nil
}

// Toggle starts listening when idle and stops otherwise. started reports
// which of the two happened.
func (c *Controller) Toggle(ctx context.Context, languageTag string) (Result, bool, error) {
	if c.State() == fsm.StateListening {
		result, err := c.Stop(ctx)
		return result, false, err
	}
	return Result{}, true, c.Start(ctx, languageTag)
}

// Handle serves IPC commands from hotkey invocations.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	state := c.State()
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: string(state), Message: "status"}
	case ipc.CommandToggle:
		if state != fsm.StateListening {
			if state == fsm.StateTranscribing {
				return ipc.Response{OK: false, State: string(state), Error: "already transcribing"}
			}
			tag := strings.TrimSpace(req.Language)
			if tag == "" {
				tag = c.opts.Language()
			}
			if err := c.Start(ctx, tag); err != nil {
				return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
			}
			return ipc.Response{OK: true, State: string(c.State()), Message: "listening"}
		}
		return c.requestStop(state)
	case ipc.CommandStop:
		return c.requestStop(state)
	case ipc.CommandCancel:
		if state == fsm.StateTranscribing {
			return ipc.Response{OK: false, State: string(state), Error: "cannot cancel while transcribing"}
		}
		if err := c.Cancel(ctx); err != nil {
			return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("cannot cancel from state %s", state)}
		}
		return ipc.Response{OK: true, State: string(c.State()), Message: "cancelled"}
	default:
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// requestStop finishes the session in the background; the transcript is
// delivered through OnTranscript.
func (c *Controller) requestStop(state fsm.State) ipc.Response {
	if state == fsm.StateTranscribing {
		return ipc.Response{OK: false, State: string(state), Error: "already transcribing"}
	}
	if state != fsm.StateListening {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot stop from state %s", state)}
	}
	go func() {
		if _, err := c.Stop(context.Background()); err != nil {
			c.logWarn("recording stop failed", err)
		}
	}()
	return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
}

func (c *Controller) cancelLocked(ctx context.Context) {
	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()
	if current != nil {
		_ = current.transcriber.Cancel(ctx)
	}
	c.clearSession()
	c.opts.Indicator.CueCancel(context.Background())
	c.opts.Indicator.Hide(context.Background())
	_ = c.transition(fsm.EventCancel)
	c.logInfo("recording cancelled")
	c.settled()
}

// abort fails the session s when the recognizer breaks mid-listen. Reports
// for a session that already stopped or was replaced are ignored.
func (c *Controller) abort(s *session, err error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()
	if current != s || c.State() != fsm.StateListening {
		return
	}
	_ = s.transcriber.Cancel(context.Background())
	c.clearSession()
	_ = c.fail(context.Background(), err)
}

// fail surfaces a classified error and returns the FSM to idle.
func (c *Controller) fail(ctx context.Context, err error) error {
	err = speech.Wrap(err)
	var speechErr *speech.Error
	message := err.Error()
	if errors.As(err, &speechErr) {
		message = "❌ " + speechErr.Message()
	}
	c.opts.Indicator.ShowError(ctx, message)
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
	c.logWarn("recording failed", err)
	c.settled()
	return err
}

func (c *Controller) settled() {
	if c.opts.OnSettled != nil {
		c.opts.OnSettled()
	}
}

func (c *Controller) clearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.cancel != nil {
		c.current.cancel()
	}
	c.current = nil
}

func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

func (c *Controller) logInfo(message string, args ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Info(message, args...)
	}
}

func (c *Controller) logWarn(message string, err error) {
	if c.opts.Logger != nil {
		c.opts.Logger.Warn(message, "error", err.Error())
	}
}
