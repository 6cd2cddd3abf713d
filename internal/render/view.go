// Package render draws the conversation into a terminal.
package render

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rbright/vetchat/internal/settings"
	"github.com/rbright/vetchat/internal/transcript"
)

const typingText = "Assistant is typing…"

var (
	boldPattern   = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicPattern = regexp.MustCompile(`\*([^*\n]+)\*`)
	codePattern   = regexp.MustCompile("`([^`\n]+)`")
	headerPattern = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
)

type palette struct {
	user      lipgloss.Style
	assistant lipgloss.Style
	body      lipgloss.Style
	muted     lipgloss.Style
	bold      lipgloss.Style
	italic    lipgloss.Style
	code      lipgloss.Style
	panel     lipgloss.Style
	title     lipgloss.Style
}

func newPalette(r *lipgloss.Renderer, dark bool) palette {
	text := lipgloss.Color("#1e1e2e")
	muted := lipgloss.Color("#6c6f85")
	blue := lipgloss.Color("#1e66f5")
	green := lipgloss.Color("#40a02b")
	accent := lipgloss.Color("#8839ef")
	if dark {
		text = lipgloss.Color("#cdd6f4")
		muted = lipgloss.Color("#9399b2")
		blue = lipgloss.Color("#89b4fa")
		green = lipgloss.Color("#a6e3a1")
		accent = lipgloss.Color("#cba6f7")
	}

	return palette{
		user:      r.NewStyle().Foreground(blue).Bold(true),
		assistant: r.NewStyle().Foreground(green).Bold(true),
		body:      r.NewStyle().Foreground(text),
		muted:     r.NewStyle().Foreground(muted).Italic(true),
		bold:      r.NewStyle().Foreground(text).Bold(true),
		italic:    r.NewStyle().Foreground(text).Italic(true),
		code:      r.NewStyle().Foreground(accent),
		panel: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		title: r.NewStyle().Foreground(accent).Bold(true),
	}
}

// Options configures a View.
type Options struct {
	// Interactive enables in-place erasure of the typing line.
	Interactive bool
}

// View renders transcript events to a writer.
//
// With auto-scroll enabled messages print as they arrive. Otherwise they are
// held until Flush, so a reader scrolled back in the terminal is not pushed.
type View struct {
	renderer    *lipgloss.Renderer
	interactive bool

	mu         sync.Mutex
	out        io.Writer
	palette    palette
	dark       bool
	autoScroll bool
	typing     bool
	pending    []transcript.Message
}

// New creates a view using the display preferences in prefs.
func New(out io.Writer, prefs settings.Settings, opts Options) *View {
	if out == nil {
		out = io.Discard
	}
	renderer := lipgloss.NewRenderer(out)
	return &View{
		renderer:    renderer,
		interactive: opts.Interactive,
		out:         out,
		palette:     newPalette(renderer, prefs.DarkModeEnabled),
		dark:        prefs.DarkModeEnabled,
		autoScroll:  prefs.AutoScrollEnabled,
	}
}

// Apply follows display preference changes. It is a settings observer.
func (v *View) Apply(prefs settings.Settings) {
	v.mu.Lock()
	if prefs.DarkModeEnabled != v.dark {
		v.dark = prefs.DarkModeEnabled
		v.palette = newPalette(v.renderer, v.dark)
	}
	wasBuffered := !v.autoScroll
	v.autoScroll = prefs.AutoScrollEnabled
	v.mu.Unlock()

	if wasBuffered && prefs.AutoScrollEnabled {
		v.Flush()
	}
}

// AppendMessage renders msg, or buffers it while auto-scroll is off.
func (v *View) AppendMessage(msg transcript.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.autoScroll {
		v.pending = append(v.pending, msg)
		return
	}
	v.clearTypingLocked()
	v.writeLocked(v.formatLocked(msg))
}

// RemoveMessage drops a buffered placeholder. Printed lines stay put.
func (v *View) RemoveMessage(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	kept := v.pending[:0]
	for _, msg := range v.pending {
		if msg.ID != id {
			kept = append(kept, msg)
		}
	}
	v.pending = kept
}

// Flush prints buffered messages.
func (v *View) Flush() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.pending) == 0 {
		return
	}
	v.clearTypingLocked()
	for _, msg := range v.pending {
		v.writeLocked(v.formatLocked(msg))
	}
	v.pending = nil
}

// ClearInput is a no-op: the line editor consumes the input line.
func (v *View) ClearInput() {}

// ShowTyping shows the typing indicator.
func (v *View) ShowTyping() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.typing {
		return
	}
	v.typing = true
	line := v.palette.muted.Render(typingText)
	if v.interactive {
		_, _ = fmt.Fprint(v.out, line)
		return
	}
	v.writeLocked(line)
}

// HideTyping removes the typing indicator.
func (v *View) HideTyping() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clearTypingLocked()
}

// ShowDetail renders a bordered side panel.
func (v *View) ShowDetail(title string, body string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.clearTypingLocked()
	content := v.palette.title.Render(title) + "\n\n" + v.emphasizeLocked(strings.TrimSpace(body))
	v.writeLocked(v.palette.panel.Render(content))
}

// Reset discards buffered output and marks the cleared history.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.clearTypingLocked()
	v.pending = nil
	v.writeLocked(v.palette.muted.Render("── history cleared ──"))
}

// Notice prints a muted informational line outside the transcript.
func (v *View) Notice(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.clearTypingLocked()
	v.writeLocked(v.palette.muted.Render(text))
}

// Interim shows a recognizer partial result on the current line.
func (v *View) Interim(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.interactive {
		return
	}
	v.typing = true
	_, _ = fmt.Fprint(v.out, "\r\x1b[2K"+v.palette.muted.Render("🎤 "+text))
}

func (v *View) formatLocked(msg transcript.Message) string {
	label := v.palette.assistant.Render("Assistant")
	if msg.Role == transcript.RoleUser {
		label = v.palette.user.Render("You")
	}
	stamp := v.palette.muted.Render(msg.Timestamp.Format("15:04"))

	body := v.emphasizeLocked(msg.Text)
	if msg.Placeholder {
		body = v.palette.muted.Render(msg.Text)
	}
	return label + " " + stamp + "\n" + body + "\n"
}

// emphasizeLocked renders the markdown subset replies use.
func (v *View) emphasizeLocked(text string) string {
	p := v.palette
	text = headerPattern.ReplaceAllStringFunc(text, func(m string) string {
		return p.bold.Render(headerPattern.FindStringSubmatch(m)[1])
	})
	text = boldPattern.ReplaceAllStringFunc(text, func(m string) string {
		return p.bold.Render(boldPattern.FindStringSubmatch(m)[1])
	})
	text = italicPattern.ReplaceAllStringFunc(text, func(m string) string {
		return p.italic.Render(italicPattern.FindStringSubmatch(m)[1])
	})
	text = codePattern.ReplaceAllStringFunc(text, func(m string) string {
		return p.code.Render(codePattern.FindStringSubmatch(m)[1])
	})
	return text
}

func (v *View) clearTypingLocked() {
	if !v.typing {
		return
	}
	v.typing = false
	if v.interactive {
		_, _ = fmt.Fprint(v.out, "\r\x1b[2K")
	}
}

func (v *View) writeLocked(text string) {
	_, _ = fmt.Fprintln(v.out, text)
}
