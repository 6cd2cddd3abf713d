// Package tts synthesizes speech with espeak-ng and plays it through PulseAudio.
package tts

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rbright/vetchat/internal/audio"
	"github.com/rbright/vetchat/internal/voice"
)

const (
	defaultBinary = "espeak-ng"
	// espeak-ng speaks at 175 words per minute at rate 1.0.
	baseWPM = 175
	// espeak-ng pitch runs 0-99 with 50 as neutral.
	basePitch = 50
)

// Utterance is one request to speak text.
type Utterance struct {
	Text     string
	Voice    voice.Voice
	Language string
	Rate     float64
	Pitch    float64
	Volume   float64
}

// Player plays decoded PCM.
type Player interface {
	Play(context.Context, audio.PCM) error
}

// Espeak drives espeak-ng, or a wrapper accepting the same flags.
type Espeak struct {
	binary string
	prefix []string
	player Player
}

// New creates an adapter for argv. Its first element is the executable and the
// rest precede every invocation's flags. An empty argv means espeak-ng.
func New(argv []string, player Player) *Espeak {
	binary := defaultBinary
	var prefix []string
	if len(argv) > 0 && strings.TrimSpace(argv[0]) != "" {
		binary = strings.TrimSpace(argv[0])
		prefix = append([]string(nil), argv[1:]...)
	}
	if player == nil {
		player = audio.NewPlayer("vetchat narration")
	}
	return &Espeak{binary: binary, prefix: prefix, player: player}
}

// Binary returns the configured executable name.
func (e *Espeak) Binary() string { return e.binary }

func (e *Espeak) args(extra ...string) []string {
	return append(append([]string(nil), e.prefix...), extra...)
}

// Voices lists installed voices.
func (e *Espeak) Voices(ctx context.Context) ([]voice.Voice, error) {
	out, err := exec.CommandContext(ctx, e.binary, e.args("--voices")...).Output()
	if err != nil {
		return nil, fmt.Errorf("list %s voices: %w", e.binary, err)
	}
	return parseVoices(out), nil
}

// Speak synthesizes u and blocks until playback drains or ctx is cancelled.
func (e *Espeak) Speak(ctx context.Context, u Utterance) error {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		return nil
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, e.args(synthArgs(u)...)...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stderr = &stderr
	wav, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s synth failed: %w (%s)", e.binary, err, msg)
		}
		return fmt.Errorf("%s synth failed: %w", e.binary, err)
	}

	pcm, err := audio.DecodeWAV(wav)
	if err != nil {
		return fmt.Errorf("decode synthesized speech: %w", err)
	}
	if u.Volume > 0 && u.Volume != 1 {
		pcm = pcm.Scale(u.Volume)
	}
	return e.player.Play(ctx, pcm)
}

func synthArgs(u Utterance) []string {
	args := []string{"--stdout", "--stdin"}
	if v := voiceArg(u); v != "" {
		args = append(args, "-v", v)
	}
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	pitch := u.Pitch
	if pitch <= 0 {
		pitch = 1
	}
	args = append(args,
		"-s", strconv.Itoa(int(math.Round(baseWPM*rate))),
		"-p", strconv.Itoa(min(99, int(math.Round(basePitch*pitch)))),
	)
	return args
}

// voiceArg prefers the resolved voice's language identifier, which espeak-ng
// accepts directly, and falls back to the requested tag.
func voiceArg(u Utterance) string {
	if lang := strings.TrimSpace(u.Voice.Language); lang != "" {
		return strings.ToLower(lang)
	}
	return strings.ToLower(strings.TrimSpace(u.Language))
}

// parseVoices reads the `espeak-ng --voices` table:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US           (en 10)
func parseVoices(out []byte) []voice.Voice {
	var voices []voice.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, voice.Voice{
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
			Default:  fields[1] == "en",
		})
	}
	return voices
}
