// Package conversation is the chat application state: it owns the transcript
// and coordinates the backend, narration, view and notifications.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/rbright/vetchat/internal/backend"
	"github.com/rbright/vetchat/internal/indicator"
	"github.com/rbright/vetchat/internal/language"
	"github.com/rbright/vetchat/internal/settings"
	"github.com/rbright/vetchat/internal/transcript"
	"github.com/rbright/vetchat/internal/voice"
)

const (
	connectivityMessage  = "Unable to connect to the server. Please check your internet connection and try again."
	genericChatError     = "Sorry, I encountered an error. Please try again."
	serviceUnavailable   = "Service temporarily unavailable"
	clearedMessage       = "Chat cleared successfully"
	degradedPrefix       = "⚠️ Some chatbot features may be limited: "
	healthUnknownMessage = "⚠️ Unable to verify chatbot status. Some features may be limited."
	emptyMessagePrompt   = "Please enter a message"
)

// ErrEmptyMessage is returned for blank input; nothing is sent.
var ErrEmptyMessage = errors.New("message is empty")

// Backend is the assistant service.
type Backend interface {
	Chat(ctx context.Context, message string, language string) (backend.Reply, error)
	Upload(ctx context.Context, upload backend.Upload) (backend.Reply, error)
	Languages(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
	Health(ctx context.Context) (backend.Health, error)
}

// View renders conversation state.
type View interface {
	AppendMessage(transcript.Message)
	RemoveMessage(id string)
	ClearInput()
	ShowTyping()
	HideTyping()
	ShowDetail(title string, body string)
	Reset()
}

// Notifier surfaces transient toasts.
type Notifier interface {
	Notify(ctx context.Context, kind indicator.Kind, message string)
}

// Narrator reads replies aloud.
type Narrator interface {
	Speak(ctx context.Context, text string) bool
	Cancel()
}

// Preferences is the settings surface the controller reads and writes.
type Preferences interface {
	Snapshot() settings.Settings
	Set(key settings.Key, value string) error
}

// VoiceSelector re-resolves the narration voice after a language change.
type VoiceSelector interface {
	Select(tag string) (voice.Voice, bool)
}

// Options wires a Controller. Backend and Preferences are required.
type Options struct {
	Backend     Backend
	Preferences Preferences
	View        View
	Notifier    Notifier
	Narrator    Narrator
	Voices      VoiceSelector
	Logger      *slog.Logger
	Upload      UploadPolicy
	// VoiceTags overrides the chat-code to speech-tag table.
	VoiceTags map[string]string
	// Language is the initial chat language code.
	Language string
}

// Controller is one independent chat session.
type Controller struct {
	backend  Backend
	prefs    Preferences
	view     View
	notifier Notifier
	narrator Narrator
	voices   VoiceSelector
	logger   *slog.Logger
	policy   UploadPolicy
	tags     map[string]string

	transcript *transcript.Transcript

	// sendMu serializes backend exchanges so replies land in request order.
	sendMu sync.Mutex

	langMu   sync.RWMutex
	language string
}

// New builds a controller. Nil collaborators other than Backend and
// Preferences are replaced with no-ops.
func New(opts Options) *Controller {
	if opts.View == nil {
		opts.View = nopView{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Narrator == nil {
		opts.Narrator = nopNarrator{}
	}
	code := strings.ToLower(strings.TrimSpace(opts.Language))
	if code == "" {
		code = language.DefaultCode
	}
	return &Controller{
		backend:    opts.Backend,
		prefs:      opts.Preferences,
		view:       opts.View,
		notifier:   opts.Notifier,
		narrator:   opts.Narrator,
		voices:     opts.Voices,
		logger:     opts.Logger,
		policy:     opts.Upload.withDefaults(),
		tags:       opts.VoiceTags,
		transcript: transcript.New(),
		language:   code,
	}
}

// Language returns the current chat language code.
func (c *Controller) Language() string {
	c.langMu.RLock()
	defer c.langMu.RUnlock()
	return c.language
}

// Transcript returns a snapshot of the visible history.
func (c *Controller) Transcript() []transcript.Message {
	return c.transcript.Messages()
}

// LastReply returns the most recent assistant message.
func (c *Controller) LastReply() (transcript.Message, bool) {
	return c.transcript.LastAssistant()
}

// SendMessage posts text to the assistant and renders the outcome. An empty
// languageCode uses the current chat language.
func (c *Controller) SendMessage(ctx context.Context, text string, languageCode string) error {
	message := strings.TrimSpace(text)
	if message == "" {
		c.notifier.Notify(ctx, indicator.KindInfo, emptyMessagePrompt)
		return ErrEmptyMessage
	}
	if languageCode = strings.TrimSpace(languageCode); languageCode == "" {
		languageCode = c.Language()
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.appendMessage(transcript.RoleUser, message)
	c.view.ClearInput()
	c.view.ShowTyping()

	reply, err := c.backend.Chat(ctx, message, languageCode)
	c.view.HideTyping()

	if err != nil {
		c.handleRequestError(ctx, "chat", err, connectivityMessage)
		return err
	}
	if reply.Success {
		c.appendMessage(transcript.RoleAssistant, reply.Response)
		c.speak(ctx, reply.Response)
		return nil
	}

	c.handleReplyFailure(ctx, reply, genericChatError, serviceUnavailable)
	return &backend.ServiceError{Message: firstNonEmpty(reply.Error, serviceUnavailable)}
}

// ClearHistory clears the server context and, on success, the local transcript.
func (c *Controller) ClearHistory(ctx context.Context) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := c.backend.Clear(ctx); err != nil {
		c.notifier.Notify(ctx, indicator.KindError, "Failed to clear chat: "+causeText(err))
		c.logWarn("clear chat failed", err)
		return err
	}

	c.narrator.Cancel()
	c.transcript.Reset()
	c.view.Reset()
	c.notifier.Notify(ctx, indicator.KindSuccess, clearedMessage)
	return nil
}

// Languages returns the service language list, falling back to the built-in
// table when the service cannot be reached.
func (c *Controller) Languages(ctx context.Context) (map[string]string, error) {
	languages, err := c.backend.Languages(ctx)
	if err == nil && len(languages) > 0 {
		return languages, nil
	}
	if err == nil {
		err = errors.New("service returned no languages")
	}
	c.logWarn("load languages failed; using built-in list", err)
	return language.Builtin(), err
}

// CheckHealth probes the service and surfaces degraded or unknown status.
func (c *Controller) CheckHealth(ctx context.Context) (backend.Health, error) {
	health, err := c.backend.Health(ctx)
	if err != nil {
		c.notifier.Notify(ctx, indicator.KindError, healthUnknownMessage)
		c.logWarn("health check failed", err)
		return health, err
	}
	if health.Success && health.Healthy {
		c.logInfo("assistant service healthy")
		return health, nil
	}

	message := strings.TrimSpace(health.Message)
	if message == "" {
		message = "service reported degraded status"
	}
	c.notifier.Notify(ctx, indicator.KindInfo, degradedPrefix+message)
	if c.logger != nil {
		c.logger.Warn("assistant service degraded", "message", message, "degraded", health.Degraded())
	}
	return health, nil
}

// SetLanguage switches the chat language and moves the voice language to the
// matching speech tag.
func (c *Controller) SetLanguage(code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		code = language.DefaultCode
	}
	tag := language.VoiceTagWith(c.tags, code)
	if err := c.prefs.Set(settings.KeyVoiceLanguage, tag); err != nil {
		return err
	}

	c.langMu.Lock()
	c.language = code
	c.langMu.Unlock()

	if c.voices != nil {
		if v, ok := c.voices.Select(tag); ok {
			c.logInfo("voice selected", "language", tag, "voice", v.Name)
		}
	}
	return nil
}

// VoiceTag returns the speech tag for the current voice language.
func (c *Controller) VoiceTag() string {
	return c.prefs.Snapshot().VoiceLanguage
}

// Deliver records text produced elsewhere (voice input) and sends it.
func (c *Controller) Deliver(ctx context.Context, text string) error {
	return c.SendMessage(ctx, text, "")
}

func (c *Controller) handleReplyFailure(ctx context.Context, reply backend.Reply, generic string, toastFallback string) {
	if fallback := strings.TrimSpace(reply.FallbackResponse); fallback != "" {
		c.appendMessage(transcript.RoleAssistant, fallback)
		c.speak(ctx, fallback)
	} else {
		c.appendMessage(transcript.RoleAssistant, "❌ "+firstNonEmpty(reply.Error, generic))
	}
	c.notifier.Notify(ctx, indicator.KindError, firstNonEmpty(reply.Error, toastFallback))
	if c.logger != nil {
		c.logger.Warn("assistant reported failure", "error", reply.Error, "fallback", reply.FallbackResponse != "")
	}
}

func (c *Controller) handleRequestError(ctx context.Context, op string, err error, connectivity string) {
	if backend.IsTransport(err) {
		c.appendMessage(transcript.RoleAssistant, "❌ "+connectivity)
		c.notifier.Notify(ctx, indicator.KindError, "Connection failed: "+causeText(err))
	} else {
		c.appendMessage(transcript.RoleAssistant, "❌ An error occurred: "+causeText(err))
		c.notifier.Notify(ctx, indicator.KindError, "Connection failed: "+causeText(err))
	}
	c.logWarn(op+" request failed", err)
}

func (c *Controller) appendMessage(role transcript.Role, text string) transcript.Message {
	msg := c.transcript.Append(role, text)
	c.view.AppendMessage(msg)
	return msg
}

func (c *Controller) speak(ctx context.Context, text string) {
	if !c.prefs.Snapshot().TTSEnabled {
		return
	}
	c.narrator.Speak(ctx, text)
}

func (c *Controller) logInfo(message string, args ...any) {
	if c.logger != nil {
		c.logger.Info(message, args...)
	}
}

func (c *Controller) logWarn(message string, err error) {
	if c.logger != nil {
		c.logger.Warn(message, "error", err.Error())
	}
}

// causeText unwraps transport and service errors to their user-facing cause.
func causeText(err error) string {
	var transportErr *backend.TransportError
	if errors.As(err, &transportErr) && transportErr.Err != nil {
		return transportErr.Err.Error()
	}
	var serviceErr *backend.ServiceError
	if errors.As(err, &serviceErr) && strings.TrimSpace(serviceErr.Message) != "" {
		return serviceErr.Message
	}
	return err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

type nopView struct{}

func (nopView) AppendMessage(transcript.Message) {}
func (nopView) RemoveMessage(string)             {}
func (nopView) ClearInput()                      {}
func (nopView) ShowTyping()                      {}
func (nopView) HideTyping()                      {}
func (nopView) ShowDetail(string, string)        {}
func (nopView) Reset()                           {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, indicator.Kind, string) {}

type nopNarrator struct{}

func (nopNarrator) Speak(context.Context, string) bool { return false }
func (nopNarrator) Cancel()                            {}
