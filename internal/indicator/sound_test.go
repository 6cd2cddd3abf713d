package indicator

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbright/vetchat/internal/audio"
	"github.com/rbright/vetchat/internal/config"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeCueLengthIncludesGaps(t *testing.T) {
	samples := synthesizeCue(cueTones[cueStart])
	want := samplesForDuration(70*time.Millisecond)*2 + samplesForDuration(22*time.Millisecond)
	require.Len(t, samples, want)
	require.Zero(t, samples[0])
	require.Nil(t, synthesizeCue(nil))
}

func TestSynthesizeToneRejectsInvalidSpecs(t *testing.T) {
	require.Nil(t, synthesizeTone(toneSpec{frequencyHz: 0, duration: time.Second, volume: 1}))
	require.Nil(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 0, volume: 1}))
	require.Nil(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: time.Second, volume: 0}))
}

func TestCuePCMPrefersConfiguredWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "start.wav")
	var buf bytes.Buffer
	want := audio.PCM{Samples: []int16{1, 2, 3}, SampleRate: 8000, Channels: 1}
	require.NoError(t, audio.EncodeWAV(&buf, want))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	cfg := config.IndicatorConfig{SoundStartFile: path}
	got, err := cuePCM(cueStart, cfg)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCuePCMFallsBackToSynthOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav"), 0o644))

	got, err := cuePCM(cueStop, config.IndicatorConfig{SoundStopFile: path})
	require.NoError(t, err)
	require.Equal(t, cueSampleRate, got.SampleRate)
	require.NotEmpty(t, got.Samples)
}

func TestExpandUserPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.Empty(t, expandUserPath("  "))
	require.Equal(t, home, expandUserPath("~"))
	require.Equal(t, filepath.Join(home, "cues/start.wav"), expandUserPath("~/cues/start.wav"))
	require.Equal(t, "/abs/cue.wav", expandUserPath("/abs/cue.wav"))
}
