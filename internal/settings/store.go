package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/rbright/vetchat/internal/voice"
)

// blob is the persisted form. Pointer fields distinguish absent keys from zero values.
type blob struct {
	TTSEnabled        *bool        `json:"ttsEnabled,omitempty"`
	VoiceInputEnabled *bool        `json:"voiceInputEnabled,omitempty"`
	DarkModeEnabled   *bool        `json:"darkModeEnabled,omitempty"`
	AutoScrollEnabled *bool        `json:"autoScrollEnabled,omitempty"`
	VoiceLanguage     *string      `json:"voiceLanguage,omitempty"`
	SelectedVoice     *cachedVoice `json:"selectedVoice,omitempty"`
}

type cachedVoice struct {
	Name        string `json:"name"`
	Lang        string `json:"lang"`
	ForLanguage string `json:"forLanguage"`
}

// Store owns the live preference set and its persisted copy.
type Store struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	current   Settings
	observers []func(Settings)
}

// NewStore creates a store persisted at path, holding defaults until Load.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger, current: Defaults()}
}

// Path returns the persisted blob location.
func (s *Store) Path() string {
	return s.path
}

// Observe registers fn to receive the full preference set after Load, Set and Reset.
func (s *Store) Observe(fn func(Settings)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current preferences.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// Load reads persisted preferences and overlays them onto defaults.
// A missing or corrupt blob leaves defaults in place.
func (s *Store) Load() Settings {
	loaded := Defaults()

	content, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		var persisted blob
		if uerr := json.Unmarshal(content, &persisted); uerr != nil {
			s.warn("settings blob unreadable; using defaults", uerr)
		} else {
			persisted.applyTo(&loaded)
		}
	case errors.Is(err, os.ErrNotExist):
		s.debug("no saved settings found; using defaults")
	default:
		s.warn("read settings failed; using defaults", err)
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	s.notify()
	return loaded.clone()
}

// Save persists the current preferences. Failures are logged, never returned.
func (s *Store) Save() {
	if err := s.persist(); err != nil {
		s.warn("save settings failed", err)
	}
}

// Set mutates one preference and persists immediately.
func (s *Store) Set(key Key, value string) error {
	s.mu.Lock()
	changed, err := s.current.apply(key, value)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if key == KeyVoiceLanguage && changed {
		s.current.SelectedVoice = nil
	}
	s.mu.Unlock()

	s.Save()
	s.notify()
	return nil
}

// Reset restores defaults and persists them.
func (s *Store) Reset() {
	s.mu.Lock()
	s.current = Defaults()
	s.mu.Unlock()

	s.Save()
	s.notify()
}

// CachedVoice returns the cached voice when it belongs to tag.
func (s *Store) CachedVoice(tag string) (voice.Voice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.SelectedVoice == nil || !strings.EqualFold(s.current.VoiceLanguage, tag) {
		return voice.Voice{}, false
	}
	return *s.current.SelectedVoice, true
}

// CacheVoice records v for tag. Tags other than the current voice language are ignored.
func (s *Store) CacheVoice(tag string, v voice.Voice) {
	s.mu.Lock()
	if !strings.EqualFold(s.current.VoiceLanguage, tag) {
		s.mu.Unlock()
		return
	}
	selected := v
	s.current.SelectedVoice = &selected
	s.mu.Unlock()

	s.Save()
}

func (s *Store) persist() error {
	if strings.TrimSpace(s.path) == "" {
		return errors.New("settings path is empty")
	}

	s.mu.RLock()
	payload := newBlob(s.current)
	s.mu.RUnlock()

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace settings %q: %w", s.path, err)
	}
	return nil
}

func (s *Store) notify() {
	s.mu.RLock()
	snapshot := s.current.clone()
	observers := slices.Clone(s.observers)
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

func (s *Store) warn(message string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(message, "path", s.path, "error", err.Error())
}

func (s *Store) debug(message string) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(message, "path", s.path)
}

func (b blob) applyTo(s *Settings) {
	if b.TTSEnabled != nil {
		s.TTSEnabled = *b.TTSEnabled
	}
	if b.VoiceInputEnabled != nil {
		s.VoiceInputEnabled = *b.VoiceInputEnabled
	}
	if b.DarkModeEnabled != nil {
		s.DarkModeEnabled = *b.DarkModeEnabled
	}
	if b.AutoScrollEnabled != nil {
		s.AutoScrollEnabled = *b.AutoScrollEnabled
	}
	if b.VoiceLanguage != nil && strings.TrimSpace(*b.VoiceLanguage) != "" {
		s.VoiceLanguage = strings.TrimSpace(*b.VoiceLanguage)
	}
	if b.SelectedVoice != nil && strings.EqualFold(b.SelectedVoice.ForLanguage, s.VoiceLanguage) {
		s.SelectedVoice = &voice.Voice{Name: b.SelectedVoice.Name, Language: b.SelectedVoice.Lang}
	}
}

func newBlob(s Settings) blob {
	b := blob{
		TTSEnabled:        boolPtr(s.TTSEnabled),
		VoiceInputEnabled: boolPtr(s.VoiceInputEnabled),
		DarkModeEnabled:   boolPtr(s.DarkModeEnabled),
		AutoScrollEnabled: boolPtr(s.AutoScrollEnabled),
		VoiceLanguage:     &s.VoiceLanguage,
	}
	if s.SelectedVoice != nil {
		b.SelectedVoice = &cachedVoice{
			Name:        s.SelectedVoice.Name,
			Lang:        s.SelectedVoice.Language,
			ForLanguage: s.VoiceLanguage,
		}
	}
	return b
}

func (s Settings) clone() Settings {
	out := s
	if s.SelectedVoice != nil {
		v := *s.SelectedVoice
		out.SelectedVoice = &v
	}
	return out
}

func boolPtr(v bool) *bool {
	return &v
}

// ResolvePath applies explicit/XDG/home fallback rules for the settings blob.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "vetchat", "settings.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for settings fallback")
	}
	return filepath.Join(home, ".local", "state", "vetchat", "settings.json"), nil
}
