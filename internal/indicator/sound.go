package indicator

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/vetchat/internal/audio"
	"github.com/rbright/vetchat/internal/config"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueCancel
)

const cueSampleRate = 16000

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var cueTones = map[cueKind][]toneSpec{
	cueStart: {
		{frequencyHz: 880, duration: 70 * time.Millisecond, volume: 0.18},
		{frequencyHz: 1175, duration: 70 * time.Millisecond, volume: 0.18},
	},
	cueStop: {
		{frequencyHz: 620, duration: 120 * time.Millisecond, volume: 0.18},
	},
	cueComplete: {
		{frequencyHz: 740, duration: 65 * time.Millisecond, volume: 0.18},
		{frequencyHz: 988, duration: 90 * time.Millisecond, volume: 0.18},
	},
	cueCancel: {
		{frequencyHz: 480, duration: 75 * time.Millisecond, volume: 0.18},
		{frequencyHz: 360, duration: 90 * time.Millisecond, volume: 0.18},
	},
}

// emitCue plays the configured cue file, falling back to a synthesized tone.
func emitCue(ctx context.Context, player *audio.Player, kind cueKind, cfg config.IndicatorConfig) error {
	pcm, err := cuePCM(kind, cfg)
	if err != nil {
		return err
	}
	if len(pcm.Samples) == 0 {
		return nil
	}
	return player.Play(ctx, pcm)
}

func cuePCM(kind cueKind, cfg config.IndicatorConfig) (audio.PCM, error) {
	if path := cuePath(kind, cfg); path != "" {
		pcm, err := loadCueFile(path)
		if err == nil {
			return pcm, nil
		}
		synth := audio.PCM{Samples: synthesizeCue(cueTones[kind]), SampleRate: cueSampleRate, Channels: 1}
		if len(synth.Samples) == 0 {
			return audio.PCM{}, err
		}
		return synth, nil
	}
	return audio.PCM{Samples: synthesizeCue(cueTones[kind]), SampleRate: cueSampleRate, Channels: 1}, nil
}

func cuePath(kind cueKind, cfg config.IndicatorConfig) string {
	var raw string
	switch kind {
	case cueStart:
		raw = cfg.SoundStartFile
	case cueStop:
		raw = cfg.SoundStopFile
	case cueComplete:
		raw = cfg.SoundCompleteFile
	case cueCancel:
		raw = cfg.SoundCancelFile
	default:
		return ""
	}
	return expandUserPath(raw)
}

func expandUserPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(raw, "~"), "/"))
}

func loadCueFile(path string) (audio.PCM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("read cue file %q: %w", path, err)
	}
	pcm, err := audio.DecodeWAV(data)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("decode cue file %q: %w", path, err)
	}
	return pcm, nil
}

func synthesizeCue(parts []toneSpec) []int16 {
	if len(parts) == 0 {
		return nil
	}
	gap := samplesForDuration(22 * time.Millisecond)

	var pcm []int16
	for i, part := range parts {
		pcm = append(pcm, synthesizeTone(part)...)
		if i < len(parts)-1 {
			pcm = append(pcm, make([]int16, gap)...)
		}
	}
	return pcm
}

func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	ramp := min(max(n/10, 1), cueSampleRate/200) // at most 5ms

	pcm := make([]int16, n)
	for i := range n {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = math.Min(envelope, float64(tail)/float64(ramp))
		}
		t := float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(2*math.Pi*spec.frequencyHz*t) * spec.volume * envelope * 32767))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
