package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/jfreymuth/pulse"
)

// PCM is signed 16-bit interleaved audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration reports the playback length in seconds.
func (p PCM) Duration() float64 {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate*p.Channels)
}

// Scale returns a copy with every sample multiplied by gain, clamped to the int16 range.
func (p PCM) Scale(gain float64) PCM {
	out := p
	out.Samples = make([]int16, len(p.Samples))
	for i, s := range p.Samples {
		v := math.Round(float64(s) * gain)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		out.Samples[i] = int16(v)
	}
	return out
}

// Player serializes playback so sounds never overlap.
type Player struct {
	mediaName string
	mu        sync.Mutex
}

// NewPlayer creates a player whose streams are labeled mediaName.
func NewPlayer(mediaName string) *Player {
	if mediaName == "" {
		mediaName = applicationName
	}
	return &Player{mediaName: mediaName}
}

// Play blocks until pcm has drained or ctx is cancelled. Cancellation stops
// feeding samples; whatever is already buffered in the server drains.
func (p *Player) Play(ctx context.Context, pcm PCM) error {
	if len(pcm.Samples) == 0 {
		return nil
	}
	if pcm.SampleRate <= 0 {
		return errors.New("pcm sample rate must be > 0")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := newClient("audio-speakers")
	if err != nil {
		return err
	}
	defer client.Close()

	layout := pulse.PlaybackMono
	if pcm.Channels == 2 {
		layout = pulse.PlaybackStereo
	}

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(pcm.Samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, pcm.Samples[cursor:])
		cursor += n
		if cursor >= len(pcm.Samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		layout,
		pulse.PlaybackSampleRate(pcm.SampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(p.mediaName),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play stream: %w", err)
	}
	return ctx.Err()
}
