package narration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rbright/vetchat/internal/fsm"
	"github.com/rbright/vetchat/internal/tts"
	"github.com/rbright/vetchat/internal/voice"
	"github.com/stretchr/testify/require"
)

type blockingSpeaker struct {
	mu       sync.Mutex
	spoken   []tts.Utterance
	active   int
	overlap  bool
	release  chan struct{}
	err      error
	canceled int
}

func newBlockingSpeaker() *blockingSpeaker {
	return &blockingSpeaker{release: make(chan struct{})}
}

func (s *blockingSpeaker) Speak(ctx context.Context, u tts.Utterance) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, u)
	s.active++
	if s.active > 1 {
		s.overlap = true
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		s.mu.Lock()
		s.canceled++
		s.mu.Unlock()
		return ctx.Err()
	case <-s.release:
		return s.err
	}
}

type fixedSelector struct {
	voices map[string]voice.Voice
}

func (f fixedSelector) Select(tag string) (voice.Voice, bool) {
	v, ok := f.voices[tag]
	return v, ok
}

func TestCleanText(t *testing.T) {
	tests := map[string]string{
		"**Vaccinate** your *calf* at 3 months 💉🐄": "Vaccinate your calf at 3 months",
		"Use `ivermectin` carefully 🌡️":              "Use ivermectin carefully",
		"## Symptoms\n- fever\n- cough":             "Symptoms - fever - cough",
		"🐮🔥":                                        "",
		"बछड़े को टीका लगवाएं":                       "बछड़े को टीका लगवाएं",
	}
	for in, want := range tests {
		require.Equal(t, want, CleanText(in), in)
	}
}

func TestSpeakBuildsUtteranceWithResolvedVoice(t *testing.T) {
	speaker := newBlockingSpeaker()
	close(speaker.release)
	narrator := New(Options{
		Speaker:  speaker,
		Selector: fixedSelector{voices: map[string]voice.Voice{"hi-IN": {Name: "Hindi", Language: "hi"}}},
		Language: func() string { return "hi-IN" },
	})

	require.True(t, narrator.Speak(context.Background(), "**नमस्ते** 🐄"))
	narrator.Wait()

	require.Len(t, speaker.spoken, 1)
	u := speaker.spoken[0]
	require.Equal(t, "नमस्ते", u.Text)
	require.Equal(t, "hi-IN", u.Language)
	require.Equal(t, voice.Voice{Name: "Hindi", Language: "hi"}, u.Voice)
	require.Equal(t, 0.9, u.Rate)
	require.Equal(t, 1.0, u.Pitch)
	require.Equal(t, 0.8, u.Volume)
	require.Equal(t, fsm.StateIdle, narrator.State())
}

func TestSpeakWithoutVoiceUsesTagOnly(t *testing.T) {
	speaker := newBlockingSpeaker()
	close(speaker.release)
	narrator := New(Options{Speaker: speaker, Selector: fixedSelector{}, Language: func() string { return "ta-IN" }})

	require.True(t, narrator.Speak(context.Background(), "hello"))
	narrator.Wait()
	require.True(t, speaker.spoken[0].Voice.IsZero())
	require.Equal(t, "ta-IN", speaker.spoken[0].Language)
}

func TestSpeakSkippedWhenDisabledOrBlank(t *testing.T) {
	speaker := newBlockingSpeaker()
	enabled := false
	narrator := New(Options{Speaker: speaker, Enabled: func() bool { return enabled }})

	require.False(t, narrator.Speak(context.Background(), "hello"))
	enabled = true
	require.False(t, narrator.Speak(context.Background(), "🐄 💉"))
	require.Empty(t, speaker.spoken)
	require.Equal(t, fsm.StateIdle, narrator.State())
}

func TestNewSpeakInterruptsPrevious(t *testing.T) {
	speaker := newBlockingSpeaker()
	narrator := New(Options{Speaker: speaker})

	require.True(t, narrator.Speak(context.Background(), "first reply"))
	require.Eventually(t, func() bool {
		speaker.mu.Lock()
		defer speaker.mu.Unlock()
		return speaker.active == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, fsm.StateSpeaking, narrator.State())

	require.True(t, narrator.Speak(context.Background(), "second reply"))
	close(speaker.release)
	narrator.Wait()

	speaker.mu.Lock()
	defer speaker.mu.Unlock()
	require.False(t, speaker.overlap)
	require.Equal(t, 1, speaker.canceled)
	require.Equal(t, "second reply", speaker.spoken[1].Text)
	require.Equal(t, fsm.StateIdle, narrator.State())
}

func TestCancelInterrupts(t *testing.T) {
	speaker := newBlockingSpeaker()
	narrator := New(Options{Speaker: speaker})

	require.True(t, narrator.Speak(context.Background(), "long answer"))
	narrator.Cancel()
	require.Equal(t, fsm.StateIdle, narrator.State())
	narrator.Cancel()
}

func TestSpeakFailureReturnsToIdle(t *testing.T) {
	speaker := newBlockingSpeaker()
	speaker.err = errors.New("no audio sink")
	close(speaker.release)
	narrator := New(Options{Speaker: speaker})

	require.True(t, narrator.Speak(context.Background(), "hello"))
	narrator.Wait()
	require.Equal(t, fsm.StateIdle, narrator.State())
}

type slowSelector struct {
	delay time.Duration
}

func (s slowSelector) Select(tag string) (voice.Voice, bool) {
	time.Sleep(s.delay)
	return voice.Voice{Name: "Slow " + tag, Language: tag}, true
}

func TestOverlappingSpeakNewestWins(t *testing.T) {
	speaker := newBlockingSpeaker()
	narrator := New(Options{Speaker: speaker, Selector: slowSelector{delay: 50 * time.Millisecond}})

	first := make(chan bool, 1)
	go func() {
		first <- narrator.Speak(context.Background(), "first reply")
	}()
	time.Sleep(10 * time.Millisecond)

	require.True(t, narrator.Speak(context.Background(), "second reply"))
	require.False(t, <-first)
	require.Equal(t, fsm.StateSpeaking, narrator.State())

	close(speaker.release)
	narrator.Wait()

	speaker.mu.Lock()
	defer speaker.mu.Unlock()
	require.False(t, speaker.overlap)
	require.Len(t, speaker.spoken, 1)
	require.Equal(t, "second reply", speaker.spoken[0].Text)
	require.Equal(t, fsm.StateIdle, narrator.State())
}

func TestCancelDropsSpeakResolvingVoice(t *testing.T) {
	speaker := newBlockingSpeaker()
	close(speaker.release)
	narrator := New(Options{Speaker: speaker, Selector: slowSelector{delay: 50 * time.Millisecond}})

	result := make(chan bool, 1)
	go func() {
		result <- narrator.Speak(context.Background(), "stale reply")
	}()
	time.Sleep(10 * time.Millisecond)
	narrator.Cancel()

	require.False(t, <-result)
	require.Equal(t, fsm.StateIdle, narrator.State())
	speaker.mu.Lock()
	defer speaker.mu.Unlock()
	require.Empty(t, speaker.spoken)
}
