package voice

import (
	"log/slog"
	"sync"

	"github.com/rbright/vetchat/internal/language"
)

// Selector resolves voices through a cache, re-resolving when the catalog loads.
type Selector struct {
	catalog         *Catalog
	cache           Cache
	defaultLanguage string
	logger          *slog.Logger

	mu      sync.Mutex
	current string
}

// NewSelector wires a catalog and cache. It subscribes to catalog readiness so a
// tag requested while the list was empty is resolved once voices arrive.
func NewSelector(catalog *Catalog, cache Cache, defaultLanguage string, logger *slog.Logger) *Selector {
	if defaultLanguage == "" {
		defaultLanguage = language.DefaultVoiceTag
	}
	s := &Selector{
		catalog:         catalog,
		cache:           cache,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}
	if catalog != nil {
		catalog.OnReady(s.onVoicesReady)
	}
	return s
}

// Select returns the voice for tag, consulting the cache before resolving.
func (s *Selector) Select(tag string) (Voice, bool) {
	s.mu.Lock()
	s.current = tag
	s.mu.Unlock()

	if s.cache != nil {
		if v, ok := s.cache.CachedVoice(tag); ok {
			return v, true
		}
	}

	var voices []Voice
	if s.catalog != nil {
		voices = s.catalog.Voices()
	}
	return s.resolveAndCache(tag, voices)
}

func (s *Selector) resolveAndCache(tag string, voices []Voice) (Voice, bool) {
	v, ok := Resolve(tag, voices, s.defaultLanguage)
	if !ok {
		if s.logger != nil && len(voices) > 0 {
			s.logger.Warn("no voice available; using platform default", "language", tag)
		}
		return Voice{}, false
	}
	if s.cache != nil {
		s.cache.CacheVoice(tag, v)
	}
	if s.logger != nil {
		s.logger.Debug("voice selected", "language", tag, "voice", v.Name, "voice_language", v.Language)
	}
	return v, true
}

func (s *Selector) onVoicesReady(voices []Voice) {
	s.mu.Lock()
	tag := s.current
	s.mu.Unlock()
	if tag == "" {
		return
	}
	if s.cache != nil {
		if _, ok := s.cache.CachedVoice(tag); ok {
			return
		}
	}
	s.resolveAndCache(tag, voices)
}
