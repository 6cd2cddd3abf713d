// Package narration reads assistant replies aloud, one utterance at a time.
package narration

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/rbright/vetchat/internal/fsm"
	"github.com/rbright/vetchat/internal/tts"
	"github.com/rbright/vetchat/internal/voice"
)

// Speaker synthesizes one utterance, blocking until it finishes.
type Speaker interface {
	Speak(context.Context, tts.Utterance) error
}

// VoiceSelector picks the voice for a language tag.
type VoiceSelector interface {
	Select(tag string) (voice.Voice, bool)
}

// Options wires a Narrator.
type Options struct {
	Speaker  Speaker
	Selector VoiceSelector
	Logger   *slog.Logger
	// Enabled reports the speech output preference.
	Enabled func() bool
	// Language reports the current voice language tag.
	Language func() string
	Rate     float64
	Pitch    float64
	Volume   float64
}

// Narrator serializes utterances; a new Speak interrupts the previous one.
type Narrator struct {
	opts Options

	mu     sync.Mutex
	state  fsm.State
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a narrator. Unset rate, pitch and volume use 0.9, 1.0 and 0.8.
func New(opts Options) *Narrator {
	if opts.Enabled == nil {
		opts.Enabled = func() bool { return true }
	}
	if opts.Language == nil {
		opts.Language = func() string { return "en-US" }
	}
	if opts.Rate <= 0 {
		opts.Rate = 0.9
	}
	if opts.Pitch <= 0 {
		opts.Pitch = 1.0
	}
	if opts.Volume <= 0 {
		opts.Volume = 0.8
	}
	return &Narrator{opts: opts, state: fsm.StateIdle}
}

// State returns the narration FSM state.
func (n *Narrator) State() fsm.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Speak starts narrating text asynchronously. It reports whether an
// utterance was submitted.
func (n *Narrator) Speak(ctx context.Context, text string) bool {
	if n.opts.Speaker == nil || !n.opts.Enabled() {
		return false
	}
	clean := CleanText(text)
	if clean == "" {
		return false
	}

	ticket := n.interrupt()

	tag := n.opts.Language()
	utterance := tts.Utterance{
		Text:     clean,
		Language: tag,
		Rate:     n.opts.Rate,
		Pitch:    n.opts.Pitch,
		Volume:   n.opts.Volume,
	}
	if n.opts.Selector != nil {
		if v, ok := n.opts.Selector.Select(tag); ok {
			utterance.Voice = v
		} else {
			n.logDebug("no voice for language; using platform default", "language", tag)
		}
	}

	n.mu.Lock()
	if ticket != n.gen {
		n.mu.Unlock()
		n.logDebug("narration superseded", "language", tag)
		return false
	}
	if n.state == fsm.StateSpeaking {
		n.interruptLocked()
	}
	next, err := fsm.TransitionNarration(n.state, fsm.EventSpeak)
	if err != nil {
		state := n.state
		n.mu.Unlock()
		n.logDebug("narration skipped", "state", string(state), "error", err.Error())
		return false
	}
	n.state = next
	gen := n.gen
	speakCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	n.cancel = cancel
	n.done = done
	n.mu.Unlock()

	go n.run(speakCtx, gen, utterance, done)
	return true
}

func (n *Narrator) run(ctx context.Context, gen uint64, u tts.Utterance, done chan struct{}) {
	defer close(done)
	err := n.opts.Speaker.Speak(ctx, u)

	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen || n.state != fsm.StateSpeaking {
		return
	}
	n.cancel = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		n.state, _ = fsm.TransitionNarration(n.state, fsm.EventFail)
		n.state, _ = fsm.TransitionNarration(n.state, fsm.EventReset)
		if n.opts.Logger != nil {
			n.opts.Logger.Warn("narration failed", "language", u.Language, "error", err.Error())
		}
		return
	}
	n.state, _ = fsm.TransitionNarration(n.state, fsm.EventFinish)
}

// Cancel interrupts the in-flight utterance and waits for it to stop.
// A Speak still resolving its voice is dropped.
func (n *Narrator) Cancel() {
	n.interrupt()
}

// interrupt stops playback, invalidates every earlier Speak, and returns
// the generation a new Speak must still hold to start.
func (n *Narrator) interrupt() uint64 {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	done := n.done
	n.interruptLocked()
	n.mu.Unlock()

	if done != nil {
		<-done
	}
	return gen
}

// interruptLocked cancels the active utterance. Callers hold n.mu.
func (n *Narrator) interruptLocked() {
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	if n.state == fsm.StateSpeaking {
		n.state, _ = fsm.TransitionNarration(n.state, fsm.EventInterrupt)
	}
}

// Wait blocks until the current utterance finishes.
func (n *Narrator) Wait() {
	n.mu.Lock()
	done := n.done
	n.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (n *Narrator) logDebug(message string, args ...any) {
	if n.opts.Logger != nil {
		n.opts.Logger.Debug(message, args...)
	}
}

var (
	boldPattern   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.*?)\*`)
	codePattern   = regexp.MustCompile("`(.*?)`")
	headerPattern = regexp.MustCompile(`(?m)^#{1,6}\s*`)
)

// CleanText strips emoji and markdown emphasis so the synthesizer reads prose.
func CleanText(text string) string {
	text = boldPattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = codePattern.ReplaceAllString(text, "$1")
	text = headerPattern.ReplaceAllString(text, "")

	text = strings.Map(func(r rune) rune {
		switch {
		case unicode.Is(unicode.So, r), unicode.Is(unicode.Sk, r) && r > 0x7f:
			return -1
		case r == 0xFE0F, r == 0x200D, unicode.Is(unicode.Variation_Selector, r):
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
