package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/vetchat/internal/backend"
	"github.com/rbright/vetchat/internal/config"
	"github.com/rbright/vetchat/internal/conversation"
	"github.com/rbright/vetchat/internal/doctor"
	"github.com/rbright/vetchat/internal/indicator"
	"github.com/rbright/vetchat/internal/language"
	"github.com/rbright/vetchat/internal/narration"
	"github.com/rbright/vetchat/internal/output"
	"github.com/rbright/vetchat/internal/pipeline"
	"github.com/rbright/vetchat/internal/recording"
	"github.com/rbright/vetchat/internal/render"
	"github.com/rbright/vetchat/internal/settings"
	"github.com/rbright/vetchat/internal/tts"
	"github.com/rbright/vetchat/internal/version"
	"github.com/rbright/vetchat/internal/voice"
)

// deps is the application state for one invocation. Nothing here is global.
type deps struct {
	cfg    config.Config
	logger *slog.Logger

	store     *settings.Store
	client    *backend.Client
	notifier  *indicator.Notifier
	view      *render.View
	speaker   *tts.Espeak
	catalog   *voice.Catalog
	selector  *voice.Selector
	narrator  *narration.Narrator
	chat      *conversation.Controller
	clipboard *output.Clipboard
}

func openSettings(cfg config.Config, logger *slog.Logger) (*settings.Store, error) {
	path, err := settings.ResolvePath(cfg.Settings.Path)
	if err != nil {
		return nil, err
	}
	store := settings.NewStore(path, logger)
	store.Load()
	return store, nil
}

func newBackendClient(cfg config.Config, logger *slog.Logger) *backend.Client {
	return backend.New(backend.Config{
		BaseURL:   cfg.Backend.URL,
		Timeout:   time.Duration(cfg.Backend.TimeoutMS) * time.Millisecond,
		UserAgent: version.UserAgent(),
		Logger:    logger,
	})
}

func (r Runner) build(cfg config.Config, languageCode string, logger *slog.Logger) (*deps, error) {
	store, err := openSettings(cfg, logger)
	if err != nil {
		return nil, err
	}

	d := &deps{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		client:    newBackendClient(cfg, logger),
		notifier:  indicator.New(cfg.Indicator, r.Stderr, logger),
		view:      render.New(r.Stdout, store.Snapshot(), render.Options{Interactive: isTerminal(r.Stdout)}),
		speaker:   tts.New(cfg.TTS.Command.Argv, nil),
		clipboard: output.NewClipboard(cfg.Clipboard, logger),
	}
	store.Observe(d.view.Apply)

	d.catalog = voice.NewCatalog(d.speaker, logger)
	d.selector = voice.NewSelector(d.catalog, store, language.DefaultVoiceTag, logger)
	d.narrator = narration.New(narration.Options{
		Speaker:  d.speaker,
		Selector: d.selector,
		Logger:   logger,
		Enabled:  func() bool { return store.Snapshot().TTSEnabled },
		Language: func() string { return store.Snapshot().VoiceLanguage },
		Rate:     cfg.TTS.Rate,
		Pitch:    cfg.TTS.Pitch,
		Volume:   cfg.TTS.Volume,
	})

	initial := strings.ToLower(strings.TrimSpace(languageCode))
	if initial == "" {
		initial = language.Primary(store.Snapshot().VoiceLanguage)
	}
	d.chat = conversation.New(conversation.Options{
		Backend:     d.client,
		Preferences: store,
		View:        d.view,
		Notifier:    d.notifier,
		Narrator:    d.narrator,
		Voices:      d.selector,
		Logger:      logger,
		Upload: conversation.UploadPolicy{
			MaxBytes:     cfg.Upload.MaxBytes,
			AllowedTypes: cfg.Upload.AllowedTypes,
			Question:     cfg.Upload.Question,
		},
		VoiceTags: cfg.VoiceTags,
		Language:  initial,
	})
	if languageCode != "" {
		if err := d.chat.SetLanguage(languageCode); err != nil {
			return nil, fmt.Errorf("set language: %w", err)
		}
	}
	return d, nil
}

// newRecorder wires voice input. Final transcripts are sent as chat messages;
// onSettled runs once the session and its reply are finished.
func (d *deps) newRecorder(ctx context.Context, onSettled func()) *recording.Controller {
	return recording.NewController(recording.Options{
		Logger:    d.logger,
		Factory:   pipeline.Factory(d.cfg, d.logger),
		Indicator: d.notifier,
		Enabled:   func() bool { return d.store.Snapshot().VoiceInputEnabled },
		Language:  func() string { return d.store.Snapshot().VoiceLanguage },
		OnInterim: d.view.Interim,
		OnTranscript: func(result recording.Result) {
			d.notifier.Notify(ctx, indicator.KindSuccess, "✅ Speech captured successfully!")
			_ = d.chat.Deliver(ctx, result.Transcript)
		},
		OnSettled: onSettled,
	})
}

func (d *deps) close() {
	d.narrator.Cancel()
	d.view.Flush()
}

func voiceTagFor(cfg config.Config, code string) string {
	return language.VoiceTagWith(cfg.VoiceTags, code)
}

func (r Runner) commandDoctor(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	settingsPath, err := settings.ResolvePath(loaded.Config.Settings.Path)
	if err != nil {
		logger.Warn("resolve settings path failed", "error", err.Error())
	}
	report := doctor.Run(ctx, doctor.Inputs{
		Config:       loaded,
		SettingsPath: settingsPath,
		Backend:      newBackendClient(loaded.Config, logger),
	})
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return 0
	}
	return 1
}

func (r Runner) commandSettings(cfg config.Config, args []string, logger *slog.Logger) int {
	store, err := openSettings(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if len(args) == 0 {
		r.printSettings(store.Snapshot())
		return 0
	}

	switch args[0] {
	case "get":
		value, err := store.Snapshot().Get(settings.Key(args[1]))
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, value)
	case "set":
		if err := store.Set(settings.Key(args[1]), args[2]); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	case "reset":
		store.Reset()
		fmt.Fprintln(r.Stdout, "settings reset to defaults")
	}
	return 0
}

func (r Runner) printSettings(s settings.Settings) {
	for _, key := range settings.Keys() {
		value, err := s.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(r.Stdout, "%s=%s\n", key, value)
	}
	if s.SelectedVoice != nil {
		fmt.Fprintf(r.Stdout, "selectedVoice=%s (%s)\n", s.SelectedVoice.Name, s.SelectedVoice.Language)
	}
}
