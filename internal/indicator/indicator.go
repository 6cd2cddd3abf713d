// Package indicator surfaces toasts, recording state, and audio cues.
package indicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rbright/vetchat/internal/audio"
	"github.com/rbright/vetchat/internal/config"
	"github.com/rbright/vetchat/internal/hypr"
)

// Kind classifies a toast.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Controller is the recording-facing indicator contract.
type Controller interface {
	ShowListening(context.Context)
	ShowTranscribing(context.Context)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueComplete(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

const (
	backendTerminal = "terminal"
	backendDesktop  = "desktop"
	backendHypr     = "hypr"

	// persistentTimeoutMS keeps the recording indicator up until Hide.
	persistentTimeoutMS = 300000
)

type kindStyle struct {
	icon  hypr.Icon
	color string
	label lipgloss.Style
	glyph string
}

// Notifier routes toasts and recording state to the configured backend.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	player   *audio.Player

	outMu  sync.Mutex
	out    io.Writer
	styles map[Kind]kindStyle
	muted  lipgloss.Style

	mu          sync.Mutex
	recordingID uint32
	cueMu       sync.Mutex
}

// New creates a notifier. Terminal output goes to out.
func New(cfg config.IndicatorConfig, out io.Writer, logger *slog.Logger) *Notifier {
	if out == nil {
		out = io.Discard
	}
	renderer := lipgloss.NewRenderer(out)
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
		player:   audio.NewPlayer("vetchat cue"),
		out:      out,
		styles: map[Kind]kindStyle{
			KindInfo: {
				icon:  hypr.IconInfo,
				color: "rgb(89b4fa)",
				label: renderer.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true),
				glyph: "ℹ",
			},
			KindSuccess: {
				icon:  hypr.IconOK,
				color: "rgb(a6e3a1)",
				label: renderer.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true),
				glyph: "✔",
			},
			KindError: {
				icon:  hypr.IconError,
				color: "rgb(f38ba8)",
				label: renderer.NewStyle().Foreground(lipgloss.Color("#f38ba8")).Bold(true),
				glyph: "✖",
			},
		},
		muted: renderer.NewStyle().Foreground(lipgloss.Color("#9399b2")).Italic(true),
	}
}

// Notify shows a transient toast. Failures are logged, never returned.
func (n *Notifier) Notify(ctx context.Context, kind Kind, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	style, ok := n.styles[kind]
	if !ok {
		kind, style = KindInfo, n.styles[KindInfo]
	}
	if n.logger != nil {
		n.logger.Debug("notification", "kind", string(kind), "message", message)
	}
	if !n.cfg.Enable {
		return
	}

	timeout := n.timeoutFor(kind)
	switch n.backend() {
	case backendDesktop:
		n.run(ctx, func(ctx context.Context) error {
			_, err := desktopNotify(ctx, n.appName(), 0, n.summaryFor(kind), message, timeout)
			return err
		})
	case backendHypr:
		n.run(ctx, func(ctx context.Context) error {
			return hypr.Notify(ctx, style.icon, timeout, style.color, message)
		})
	default:
		n.println(style.label.Render(style.glyph) + " " + message)
	}
}

// ShowListening signals recording start and emits the start cue.
func (n *Notifier) ShowListening(ctx context.Context) {
	n.playCue(cueStart)
	n.showState(ctx, KindInfo, n.messages.listening)
}

// ShowTranscribing signals the post-capture transcription state.
func (n *Notifier) ShowTranscribing(ctx context.Context) {
	n.showState(ctx, KindInfo, n.messages.transcribing)
}

// ShowError replaces the recording indicator with an error message.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	n.Hide(ctx)
	n.Notify(ctx, KindError, text)
}

// CueStop emits the stop cue.
func (n *Notifier) CueStop(context.Context) {
	n.playCue(cueStop)
}

// CueComplete emits the successful-transcript cue.
func (n *Notifier) CueComplete(context.Context) {
	n.playCue(cueComplete)
}

// CueCancel emits the cancel cue.
func (n *Notifier) CueCancel(context.Context) {
	n.playCue(cueCancel)
}

// Hide dismisses the recording indicator.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	switch n.backend() {
	case backendDesktop:
		n.mu.Lock()
		id := n.recordingID
		n.recordingID = 0
		n.mu.Unlock()
		if id == 0 {
			return
		}
		n.run(ctx, func(ctx context.Context) error { return desktopDismiss(ctx, id) })
	case backendHypr:
		n.run(ctx, hypr.DismissNotify)
	}
}

func (n *Notifier) showState(ctx context.Context, kind Kind, text string) {
	if !n.cfg.Enable {
		return
	}
	switch n.backend() {
	case backendDesktop:
		n.run(ctx, func(ctx context.Context) error {
			n.mu.Lock()
			replaceID := n.recordingID
			n.mu.Unlock()

			id, err := desktopNotify(ctx, n.appName(), replaceID, n.appName(), text, persistentTimeoutMS)
			if err != nil {
				return err
			}
			n.mu.Lock()
			n.recordingID = id
			n.mu.Unlock()
			return nil
		})
	case backendHypr:
		style := n.styles[kind]
		n.run(ctx, func(ctx context.Context) error {
			return hypr.Notify(ctx, style.icon, persistentTimeoutMS, style.color, text)
		})
	default:
		n.println(n.muted.Render(text))
	}
}

func (n *Notifier) backend() string {
	switch b := strings.ToLower(strings.TrimSpace(n.cfg.Backend)); b {
	case backendDesktop, backendHypr:
		return b
	default:
		return backendTerminal
	}
}

func (n *Notifier) appName() string {
	if name := strings.TrimSpace(n.cfg.DesktopAppName); name != "" {
		return name
	}
	return "vetchat"
}

func (n *Notifier) summaryFor(kind Kind) string {
	switch kind {
	case KindError:
		return n.appName() + ": error"
	case KindSuccess:
		return n.appName() + ": done"
	default:
		return n.appName()
	}
}

func (n *Notifier) timeoutFor(kind Kind) int {
	var ms int
	switch kind {
	case KindError:
		ms = n.cfg.ErrorTimeoutMS
	case KindSuccess:
		ms = n.cfg.SuccessTimeoutMS
	default:
		ms = n.cfg.InfoTimeoutMS
	}
	if ms <= 0 {
		ms = 5000
	}
	return ms
}

func (n *Notifier) println(line string) {
	n.outMu.Lock()
	defer n.outMu.Unlock()
	_, _ = fmt.Fprintln(n.out, line)
}

// run executes a backend dispatch with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	go func() {
		n.cueMu.Lock()
		defer n.cueMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := emitCue(ctx, n.player, kind, n.cfg); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
