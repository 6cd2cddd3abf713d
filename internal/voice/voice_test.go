package voice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var platformVoices = []Voice{
	{Name: "Samantha", Language: "en-US", Default: true},
	{Name: "Daniel", Language: "en-GB"},
	{Name: "Lekha", Language: "hi-IN"},
	{Name: "Monica", Language: "es-ES"},
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		voices   []Voice
		want     string
		wantOK   bool
		fallback string
	}{
		{name: "exact match", target: "en-GB", voices: platformVoices, want: "Daniel", wantOK: true},
		{name: "exact match case insensitive", target: "HI-in", voices: platformVoices, want: "Lekha", wantOK: true},
		{name: "underscore separator", target: "es_ES", voices: platformVoices, want: "Monica", wantOK: true},
		{name: "primary subtag match", target: "hi-XX", voices: platformVoices, want: "Lekha", wantOK: true},
		{name: "bare primary subtag", target: "es", voices: platformVoices, want: "Monica", wantOK: true},
		{name: "default language fallback", target: "ta-IN", voices: platformVoices, want: "Samantha", wantOK: true},
		{name: "custom default language", target: "ta-IN", voices: platformVoices, fallback: "es-ES", want: "Monica", wantOK: true},
		{name: "no default voice", target: "ta-IN", voices: []Voice{{Name: "Lekha", Language: "hi-IN"}}, wantOK: false},
		{name: "platform default voice", target: "ta-IN", voices: []Voice{{Name: "Lekha", Language: "hi-IN"}, {Name: "Amelie", Language: "fr-CA", Default: true}}, want: "Amelie", wantOK: true},
		{name: "empty list", target: "en-US", voices: nil, wantOK: false},
		{name: "empty target uses default", target: "", voices: platformVoices, want: "Samantha", wantOK: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resolve(tc.target, tc.voices, tc.fallback)
			require.Equal(t, tc.wantOK, ok)
			if !tc.wantOK {
				require.True(t, got.IsZero())
				return
			}
			require.Equal(t, tc.want, got.Name)
		})
	}
}

func TestResolvePrefersExactOverEarlierPrimaryMatch(t *testing.T) {
	voices := []Voice{
		{Name: "British", Language: "en-GB"},
		{Name: "American", Language: "en-US"},
	}
	got, ok := Resolve("en-US", voices, "")
	require.True(t, ok)
	require.Equal(t, "American", got.Name)
}

type fakeLister struct {
	mu     sync.Mutex
	calls  atomic.Int32
	voices []Voice
	err    error
	gate   chan struct{}
}

func (f *fakeLister) Voices(context.Context) ([]Voice, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Voice(nil), f.voices...), f.err
}

func (f *fakeLister) set(voices []Voice) {
	f.mu.Lock()
	f.voices = voices
	f.mu.Unlock()
}

type mapCache struct {
	mu    sync.Mutex
	items map[string]Voice
}

func (m *mapCache) CachedVoice(tag string) (Voice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[tag]
	return v, ok
}

func (m *mapCache) CacheVoice(tag string, v Voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string]Voice{}
	}
	m.items[tag] = v
}

func TestCatalogRefreshFiresReadyOnlyWhenNonEmpty(t *testing.T) {
	lister := &fakeLister{}
	catalog := NewCatalog(lister, nil)

	var ready atomic.Int32
	catalog.OnReady(func(v []Voice) {
		require.NotEmpty(t, v)
		ready.Add(1)
	})

	voices, err := catalog.Refresh(context.Background())
	require.NoError(t, err)
	require.Empty(t, voices)
	require.Equal(t, int32(0), ready.Load())

	lister.set(platformVoices)
	voices, err = catalog.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 4)
	require.Equal(t, int32(1), ready.Load())
	require.Len(t, catalog.Voices(), 4)
}

func TestCatalogRefreshError(t *testing.T) {
	catalog := NewCatalog(&fakeLister{err: errors.New("espeak missing")}, nil)
	_, err := catalog.Refresh(context.Background())
	require.ErrorContains(t, err, "espeak missing")
	require.Empty(t, catalog.Voices())
}

func TestCatalogRefreshDedupesConcurrentCallers(t *testing.T) {
	lister := &fakeLister{voices: platformVoices, gate: make(chan struct{})}
	catalog := NewCatalog(lister, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = catalog.Refresh(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return lister.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(lister.gate)
	wg.Wait()
	require.LessOrEqual(t, lister.calls.Load(), int32(4))
	require.Len(t, catalog.Voices(), 4)
}

func TestCatalogWatchStopsWhenVoicesArrive(t *testing.T) {
	lister := &fakeLister{}
	catalog := NewCatalog(lister, nil)

	go func() {
		time.Sleep(30 * time.Millisecond)
		lister.set(platformVoices)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, catalog.Watch(ctx, 5*time.Millisecond))
	require.Len(t, catalog.Voices(), 4)
}

func TestCatalogWatchHonorsContext(t *testing.T) {
	catalog := NewCatalog(&fakeLister{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, catalog.Watch(ctx, 5*time.Millisecond), context.DeadlineExceeded)
}

func TestSelectorCachesResolvedVoice(t *testing.T) {
	lister := &fakeLister{voices: platformVoices}
	catalog := NewCatalog(lister, nil)
	_, err := catalog.Refresh(context.Background())
	require.NoError(t, err)

	cache := &mapCache{}
	selector := NewSelector(catalog, cache, "", nil)

	v, ok := selector.Select("hi-IN")
	require.True(t, ok)
	require.Equal(t, "Lekha", v.Name)

	cached, ok := cache.CachedVoice("hi-IN")
	require.True(t, ok)
	require.Equal(t, "Lekha", cached.Name)
}

func TestSelectorConsultsCacheFirst(t *testing.T) {
	catalog := NewCatalog(&fakeLister{voices: platformVoices}, nil)
	_, _ = catalog.Refresh(context.Background())

	cache := &mapCache{}
	cache.CacheVoice("hi-IN", Voice{Name: "Pinned", Language: "hi-IN"})
	selector := NewSelector(catalog, cache, "", nil)

	v, ok := selector.Select("hi-IN")
	require.True(t, ok)
	require.Equal(t, "Pinned", v.Name)
}

func TestSelectorResolvesWhenCatalogBecomesReady(t *testing.T) {
	lister := &fakeLister{}
	catalog := NewCatalog(lister, nil)
	cache := &mapCache{}
	selector := NewSelector(catalog, cache, "", nil)

	_, ok := selector.Select("es-MX")
	require.False(t, ok)

	lister.set(platformVoices)
	_, err := catalog.Refresh(context.Background())
	require.NoError(t, err)

	cached, ok := cache.CachedVoice("es-MX")
	require.True(t, ok)
	require.Equal(t, "Monica", cached.Name)
}
