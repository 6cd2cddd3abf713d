package recording

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rbright/vetchat/internal/fsm"
	"github.com/rbright/vetchat/internal/ipc"
	"github.com/rbright/vetchat/internal/speech"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeTranscriber struct {
	mu        sync.Mutex
	startErr  error
	stop      StopResult
	stopErr   error
	started   StartOptions
	cancelled bool
	stopped   bool
}

func (f *fakeTranscriber) Start(_ context.Context, opts StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = opts
	return f.startErr
}

func (f *fakeTranscriber) StopAndTranscribe(context.Context) (StopResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return f.stop, f.stopErr
}

func (f *fakeTranscriber) Cancel(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
	return nil
}

func (f *fakeTranscriber) reportError(err error) {
	f.mu.Lock()
	onError := f.started.OnError
	f.mu.Unlock()
	onError(err)
}

func (f *fakeTranscriber) wasCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

type recordingIndicator struct {
	mu     sync.Mutex
	events []string
	errors []string
}

func (r *recordingIndicator) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingIndicator) ShowListening(context.Context)    { r.add("listening") }
func (r *recordingIndicator) ShowTranscribing(context.Context) { r.add("transcribing") }
func (r *recordingIndicator) ShowError(_ context.Context, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "error")
	r.errors = append(r.errors, text)
}
func (r *recordingIndicator) CueStop(context.Context)     { r.add("cue-stop") }
func (r *recordingIndicator) CueComplete(context.Context) { r.add("cue-complete") }
func (r *recordingIndicator) CueCancel(context.Context)   { r.add("cue-cancel") }
func (r *recordingIndicator) Hide(context.Context)        { r.add("hide") }

func (r *recordingIndicator) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...), append([]string(nil), r.errors...)
}

type queueFactory struct {
	mu    sync.Mutex
	queue []*fakeTranscriber
	made  []*fakeTranscriber
}

func (q *queueFactory) next() Transcriber {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := &fakeTranscriber{}
	if len(q.queue) > 0 {
		t, q.queue = q.queue[0], q.queue[1:]
	}
	q.made = append(q.made, t)
	return t
}

func TestStartStopDeliversTranscript(t *testing.T) {
	factory := &queueFactory{queue: []*fakeTranscriber{{
		stop: StopResult{Transcript: "  my calf needs vaccines  ", AudioDevice: "USB Mic", BytesCaptured: 3200},
	}}}
	indicator := &recordingIndicator{}
	var delivered []Result

	controller := NewController(Options{
		Factory:      factory.next,
		Indicator:    indicator,
		OnTranscript: func(r Result) { delivered = append(delivered, r) },
	})

	require.NoError(t, controller.Start(context.Background(), "hi-IN"))
	require.Equal(t, fsm.StateListening, controller.State())
	require.Equal(t, "hi-IN", factory.made[0].started.LanguageTag)

	result, err := controller.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, "my calf needs vaccines", result.Transcript)
	require.Equal(t, "hi-IN", result.LanguageTag)
	require.Equal(t, fsm.StateIdle, controller.State())
	require.Len(t, delivered, 1)

	events, _ := indicator.snapshot()
	require.Equal(t, []string{"listening", "transcribing", "cue-stop", "cue-complete", "hide"}, events)
}

func TestStartWhenDisabled(t *testing.T) {
	indicator := &recordingIndicator{}
	factory := &queueFactory{}
	controller := NewController(Options{
		Factory:   factory.next,
		Indicator: indicator,
		Enabled:   func() bool { return false },
	})

	err := controller.Start(context.Background(), "en-US")
	require.ErrorIs(t, err, ErrVoiceInputDisabled)
	require.Equal(t, fsm.StateIdle, controller.State())
	require.Empty(t, factory.made)

	_, errs := indicator.snapshot()
	require.Equal(t, []string{"❌ Voice input is disabled in settings"}, errs)
}

func TestStartCancelsPriorSession(t *testing.T) {
	factory := &queueFactory{}
	controller := NewController(Options{Factory: factory.next})

	require.NoError(t, controller.Start(context.Background(), "en-US"))
	require.NoError(t, controller.Start(context.Background(), "es-ES"))

	require.Len(t, factory.made, 2)
	require.True(t, factory.made[0].wasCancelled())
	require.False(t, factory.made[1].wasCancelled())
	require.Equal(t, fsm.StateListening, controller.State())
}

func TestEmptyTranscriptIsNoSpeech(t *testing.T) {
	factory := &queueFactory{queue: []*fakeTranscriber{{stop: StopResult{Transcript: "   "}}}}
	indicator := &recordingIndicator{}
	controller := NewController(Options{Factory: factory.next, Indicator: indicator})

	require.NoError(t, controller.Start(context.Background(), "en-US"))
	_, err := controller.Stop(context.Background())
	require.ErrorIs(t, err, ErrEmptyTranscript)
	require.Equal(t, speech.ReasonNoSpeech, speech.Classify(err))
	require.Equal(t, fsm.StateIdle, controller.State())

	_, errs := indicator.snapshot()
	require.Equal(t, []string{"❌ No speech detected - please speak clearly and try again"}, errs)
}

func TestStartFailureClassified(t *testing.T) {
	factory := &queueFactory{queue: []*fakeTranscriber{{
		startErr: status.Error(codes.Unauthenticated, "missing credentials"),
	}}}
	indicator := &recordingIndicator{}
	controller := NewController(Options{Factory: factory.next, Indicator: indicator})

	err := controller.Start(context.Background(), "en-US")
	require.Equal(t, speech.ReasonServiceNotAllowed, speech.Classify(err))
	require.Equal(t, fsm.StateIdle, controller.State())

	_, errs := indicator.snapshot()
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "Speech service not allowed")
}

func TestStopFailureResetsToIdle(t *testing.T) {
	factory := &queueFactory{queue: []*fakeTranscriber{{stopErr: errors.New("stream broke")}}}
	controller := NewController(Options{Factory: factory.next})

	require.NoError(t, controller.Start(context.Background(), "en-US"))
	_, err := controller.Stop(context.Background())
	require.Error(t, err)
	require.Equal(t, speech.ReasonOther, speech.Classify(err))
	require.Equal(t, fsm.StateIdle, controller.State())
}

func TestStopAndCancelRequireListening(t *testing.T) {
	controller := NewController(Options{Factory: (&queueFactory{}).next})
	_, err := controller.Stop(context.Background())
	require.ErrorIs(t, err, ErrNotListening)
	require.ErrorIs(t, controller.Cancel(context.Background()), ErrNotListening)
}

func TestToggle(t *testing.T) {
	factory := &queueFactory{queue: []*fakeTranscriber{{stop: StopResult{Transcript: "hello"}}}}
	controller := NewController(Options{Factory: factory.next})

	_, started, err := controller.Toggle(context.Background(), "en-US")
	require.NoError(t, err)
	require.True(t, started)

	result, started, err := controller.Toggle(context.Background(), "en-US")
	require.NoError(t, err)
	require.False(t, started)
	require.Equal(t, "hello", result.Transcript)
}

func TestHandleIPCCommands(t *testing.T) {
	factory := &queueFactory{queue: []*fakeTranscriber{{stop: StopResult{Transcript: "from hotkey"}}}}
	delivered := make(chan Result, 1)
	controller := NewController(Options{
		Factory:      factory.next,
		Language:     func() string { return "es-ES" },
		OnTranscript: func(r Result) { delivered <- r },
	})
	ctx := context.Background()

	resp := controller.Handle(ctx, ipc.Request{Command: "status"})
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)

	resp = controller.Handle(ctx, ipc.Request{Command: "stop"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "cannot stop from state idle")

	resp = controller.Handle(ctx, ipc.Request{Command: "toggle"})
	require.True(t, resp.OK)
	require.Equal(t, "listening", resp.State)
	require.Equal(t, "es-ES", factory.made[0].started.LanguageTag)

	resp = controller.Handle(ctx, ipc.Request{Command: "toggle"})
	require.True(t, resp.OK)
	require.Equal(t, "stop requested", resp.Message)

	select {
	case r := <-delivered:
		require.Equal(t, "from hotkey", r.Transcript)
	case <-time.After(2 * time.Second):
		t.Fatal("transcript was not delivered")
	}

	resp = controller.Handle(ctx, ipc.Request{Command: ipc.CommandToggle, Language: "hi-IN"})
	require.True(t, resp.OK)
	require.Equal(t, "hi-IN", factory.made[1].started.LanguageTag)
	require.NoError(t, controller.Cancel(ctx))

	resp = controller.Handle(ctx, ipc.Request{Command: "bogus"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestHandleCancel(t *testing.T) {
	factory := &queueFactory{}
	indicator := &recordingIndicator{}
	controller := NewController(Options{Factory: factory.next, Indicator: indicator})

	require.NoError(t, controller.Start(context.Background(), "en-US"))
	resp := controller.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)
	require.True(t, factory.made[0].wasCancelled())

	events, _ := indicator.snapshot()
	require.Equal(t, []string{"listening", "cue-cancel", "hide"}, events)

	resp = controller.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.False(t, resp.OK)
}

func TestOnSettledRunsForEveryOutcome(t *testing.T) {
	factory := &queueFactory{queue: []*fakeTranscriber{
		{stop: StopResult{Transcript: "fever in goats"}},
		{stopErr: errors.New("stream closed")},
		{},
	}}
	var order []string
	controller := NewController(Options{
		Factory:      factory.next,
		OnTranscript: func(Result) { order = append(order, "transcript") },
		OnSettled:    func() { order = append(order, "settled") },
	})

	require.NoError(t, controller.Start(context.Background(), "en-US"))
	_, err := controller.Stop(context.Background())
	require.NoError(t, err)

	require.NoError(t, controller.Start(context.Background(), "en-US"))
	_, err = controller.Stop(context.Background())
	require.Error(t, err)

	require.NoError(t, controller.Start(context.Background(), "en-US"))
	require.NoError(t, controller.Cancel(context.Background()))

	require.Equal(t, []string{"transcript", "settled", "settled", "settled"}, order)
	require.Equal(t, fsm.StateIdle, controller.State())
}

func TestRecognizerErrorWhileListeningFailsSession(t *testing.T) {
	factory := &queueFactory{}
	indicator := &recordingIndicator{}
	settled := make(chan struct{}, 1)
	controller := NewController(Options{
		Factory:   factory.next,
		Indicator: indicator,
		OnSettled: func() { settled <- struct{}{} },
	})

	require.NoError(t, controller.Start(context.Background(), "en-US"))
	factory.made[0].reportError(status.Error(codes.Unauthenticated, "token expired"))

	select {
	case <-settled:
	case <-time.After(time.Second):
		t.Fatal("session did not settle after recognizer error")
	}
	require.Equal(t, fsm.StateIdle, controller.State())
	require.True(t, factory.made[0].wasCancelled())

	_, errs := indicator.snapshot()
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "Speech service not allowed")

	_, err := controller.Stop(context.Background())
	require.ErrorIs(t, err, ErrNotListening)
}

func TestRecognizerErrorAfterRestartIsIgnored(t *testing.T) {
	factory := &queueFactory{}
	controller := NewController(Options{Factory: factory.next})

	require.NoError(t, controller.Start(context.Background(), "en-US"))
	require.NoError(t, controller.Start(context.Background(), "hi-IN"))

	factory.made[0].reportError(errors.New("stale stream reset"))
	require.Never(t, func() bool {
		return controller.State() != fsm.StateListening
	}, 100*time.Millisecond, 10*time.Millisecond)
	require.False(t, factory.made[1].wasCancelled())
}
