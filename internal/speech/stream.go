// Package speech streams microphone audio to Google Cloud Speech-to-Text.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	gspeech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

// SampleRate is the capture rate the recognizer is configured for.
const SampleRate = 16000

// Phrase is one vocabulary hint in request-ready form.
type Phrase struct {
	Text  string
	Boost float32
}

// StreamConfig controls stream initialization and recognition behavior.
type StreamConfig struct {
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	InterimResults       bool
	Phrases              []Phrase
	CredentialsFile      string

	// OnInterim receives the running transcript after every response.
	OnInterim func(string)
	// OnError receives a recognizer failure that arrives before CloseSend.
	OnError func(error)
	// DebugSink receives one protojson line per response.
	DebugSink io.Writer
}

type opener func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, io.Closer, error)

// Stream wraps one StreamingRecognize RPC lifecycle.
type Stream struct {
	rpc    speechpb.Speech_StreamingRecognizeClient
	closer io.Closer
	cancel context.CancelFunc
	cfg    StreamConfig

	recvDone chan struct{}

	mu          sync.Mutex
	segments    []string
	lastInterim string
	recvErr     error
	closedSend  bool
	closed      bool
}

// Dial opens a Google streaming recognizer and sends the initial config.
func Dial(ctx context.Context, cfg StreamConfig) (*Stream, error) {
	return open(ctx, cfg, func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, io.Closer, error) {
		var opts []option.ClientOption
		if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
			opts = append(opts, option.WithCredentialsFile(path))
		}
		client, err := gspeech.NewClient(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create speech client: %w", err)
		}
		rpc, err := client.StreamingRecognize(ctx)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("open streaming recognizer: %w", err)
		}
		return rpc, client, nil
	})
}

func open(ctx context.Context, cfg StreamConfig, dial opener) (*Stream, error) {
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}

	streamCtx, cancel := context.WithCancel(ctx)
	rpc, closer, err := dial(streamCtx)
	if err != nil {
		cancel()
		return nil, Wrap(err)
	}

	if err := rpc.Send(configRequest(cfg)); err != nil {
		cancel()
		closeQuietly(closer)
		return nil, Wrap(fmt.Errorf("send streaming config: %w", err))
	}

	s := &Stream{
		rpc:      rpc,
		closer:   closer,
		cancel:   cancel,
		cfg:      cfg,
		recvDone: make(chan struct{}),
	}
	go s.recvLoop()
	return s, nil
}

func configRequest(cfg StreamConfig) *speechpb.StreamingRecognizeRequest {
	recognition := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            SampleRate,
		AudioChannelCount:          1,
		LanguageCode:               cfg.LanguageCode,
		EnableAutomaticPunctuation: cfg.AutomaticPunctuation,
		Model:                      strings.TrimSpace(cfg.Model),
	}
	for _, phrase := range cfg.Phrases {
		text := strings.TrimSpace(phrase.Text)
		if text == "" {
			continue
		}
		recognition.SpeechContexts = append(recognition.SpeechContexts, &speechpb.SpeechContext{
			Phrases: []string{text},
			Boost:   phrase.Boost,
		})
	}

	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         recognition,
				InterimResults: cfg.InterimResults,
			},
		},
	}
}

func (s *Stream) recvLoop() {
	defer close(s.recvDone)

	for {
		resp, err := s.rpc.Recv()
		if err == nil {
			if rpcErr := resp.GetError(); rpcErr != nil && rpcErr.GetCode() != 0 {
				err = status.ErrorProto(rpcErr)
			} else {
				s.recordResponse(resp)
				continue
			}
		}
		if errors.Is(err, io.EOF) {
			return
		}

		s.mu.Lock()
		var report error
		if !s.closed {
			s.recvErr = Wrap(err)
			if !s.closedSend {
				report = s.recvErr
			}
		}
		s.mu.Unlock()
		if report != nil && s.cfg.OnError != nil {
			s.cfg.OnError(report)
		}
		return
	}
}

func (s *Stream) recordResponse(resp *speechpb.StreamingRecognizeResponse) {
	if s.cfg.DebugSink != nil {
		if b, err := protojson.Marshal(resp); err == nil {
			_, _ = s.cfg.DebugSink.Write(append(b, '\n'))
		}
	}

	s.mu.Lock()
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		text := cleanSegment(alternatives[0].GetTranscript())
		if text == "" {
			continue
		}
		if result.GetIsFinal() {
			s.segments = appendSegment(s.segments, text)
			s.lastInterim = ""
			continue
		}
		if s.lastInterim != "" && !isInterimContinuation(s.lastInterim, text) {
			s.segments = appendSegment(s.segments, s.lastInterim)
		}
		s.lastInterim = text
	}
	running := strings.Join(collectSegments(s.segments, s.lastInterim), " ")
	s.mu.Unlock()

	if s.cfg.OnInterim != nil && running != "" {
		s.cfg.OnInterim(running)
	}
}

// SendAudio sends one chunk of 16-bit little-endian PCM.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.mu.Lock()
	closed := s.closedSend
	recvErr := s.recvErr
	s.mu.Unlock()

	if closed {
		return errors.New("stream already closed for sending")
	}
	if recvErr != nil {
		return recvErr
	}

	err := s.rpc.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
	})
	return Wrap(err)
}

// CloseAndCollect half-closes the stream and returns transcript segments once
// the server finishes.
func (s *Stream) CloseAndCollect(ctx context.Context) ([]string, time.Duration, error) {
	closedAt := time.Now()

	s.mu.Lock()
	if !s.closedSend {
		s.closedSend = true
		_ = s.rpc.CloseSend()
	}
	s.mu.Unlock()

	select {
	case <-s.recvDone:
	case <-ctx.Done():
		_ = s.Cancel()
		return nil, 0, Wrap(ctx.Err())
	}
	latency := time.Since(closedAt)
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recvErr != nil {
		return nil, latency, s.recvErr
	}
	return collectSegments(s.segments, s.lastInterim), latency, nil
}

// Cancel aborts the stream without collecting results.
func (s *Stream) Cancel() error {
	s.mu.Lock()
	s.closed = true
	if !s.closedSend {
		s.closedSend = true
		_ = s.rpc.CloseSend()
	}
	s.mu.Unlock()
	s.release()
	return nil
}

func (s *Stream) release() {
	s.cancel()
	s.mu.Lock()
	closer := s.closer
	s.closer = nil
	s.mu.Unlock()
	closeQuietly(closer)
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
