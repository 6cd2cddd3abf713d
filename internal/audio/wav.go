package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DecodeWAV parses a RIFF/WAVE stream of 16-bit integer PCM.
//
// Synthesizers writing to a pipe cannot seek back to patch chunk sizes, so a
// data chunk that claims more bytes than remain is read to end of input.
func DecodeWAV(data []byte) (PCM, error) {
	r := bytes.NewReader(data)

	var header struct {
		RIFF [4]byte
		Size uint32
		WAVE [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return PCM{}, fmt.Errorf("read wav header: %w", err)
	}
	if string(header.RIFF[:]) != "RIFF" || string(header.WAVE[:]) != "WAVE" {
		return PCM{}, errors.New("not a RIFF/WAVE stream")
	}

	var (
		format struct {
			AudioFormat   uint16
			Channels      uint16
			SampleRate    uint32
			ByteRate      uint32
			BlockAlign    uint16
			BitsPerSample uint16
		}
		haveFormat bool
	)

	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return PCM{}, errors.New("wav stream has no data chunk")
			}
			return PCM{}, fmt.Errorf("read wav chunk: %w", err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			body := make([]byte, chunk.Size)
			if _, err := io.ReadFull(r, body); err != nil {
				return PCM{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			if err := binary.Read(bytes.NewReader(body), binary.LittleEndian, &format); err != nil {
				return PCM{}, fmt.Errorf("decode fmt chunk: %w", err)
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return PCM{}, errors.New("wav data chunk precedes fmt chunk")
			}
			if format.AudioFormat != 1 || format.BitsPerSample != 16 {
				return PCM{}, fmt.Errorf("unsupported wav encoding: format=%d bits=%d", format.AudioFormat, format.BitsPerSample)
			}
			size := int(chunk.Size)
			if size <= 0 || size > r.Len() {
				size = r.Len()
			}
			samples := make([]int16, size/2)
			if err := binary.Read(io.LimitReader(r, int64(len(samples)*2)), binary.LittleEndian, samples); err != nil {
				return PCM{}, fmt.Errorf("read wav samples: %w", err)
			}
			return PCM{
				Samples:    samples,
				SampleRate: int(format.SampleRate),
				Channels:   int(format.Channels),
			}, nil
		default:
			skip := int64(chunk.Size) + int64(chunk.Size%2)
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return PCM{}, fmt.Errorf("skip wav chunk %q: %w", chunk.ID, err)
			}
		}
	}
}

// EncodeWAV writes pcm as a canonical 44-byte-header WAVE stream.
func EncodeWAV(w io.Writer, pcm PCM) error {
	channels := pcm.Channels
	if channels <= 0 {
		channels = 1
	}
	dataSize := uint32(len(pcm.Samples) * 2)
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		36 + dataSize,
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1),
		uint16(channels),
		uint32(pcm.SampleRate),
		uint32(pcm.SampleRate * channels * 2),
		uint16(channels * 2),
		uint16(16),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("write wav header: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, pcm.Samples); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	return nil
}
