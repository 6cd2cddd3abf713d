package ipc

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"
)

func TestSendRoundTrip(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), socketName)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan Request, 1)
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			seen <- req
			return Response{OK: true, State: "listening", Message: "listening"}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{Command: CommandToggle, Language: "hi-IN"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "listening", resp.State)
	require.Equal(t, Request{Command: CommandToggle, Language: "hi-IN"}, <-seen)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestSendReportsBadResponses(t *testing.T) {
	tests := []struct {
		name    string
		reply   []byte
		wantErr string
	}{
		{name: "not json", reply: []byte("not-json\n"), wantErr: "response decode"},
		{name: "closed", reply: nil, wantErr: "response read"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			socketPath := filepath.Join(t.TempDir(), socketName)
			listener, err := net.Listen("unix", socketPath)
			require.NoError(t, err)
			t.Cleanup(func() { _ = listener.Close() })

			go func() {
				conn, acceptErr := listener.Accept()
				if acceptErr != nil {
					return
				}
				defer conn.Close()
				_, _ = bufio.NewReader(conn).ReadBytes('\n')
				if tc.reply != nil {
					_, _ = conn.Write(tc.reply)
				}
			}()

			_, err = Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestServeRejectsMalformedRequest(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), socketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(context.Context, Request) Response {
			return Response{OK: true}
		}))
	}()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, sonic.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "request decode")

	cancel()
	require.NoError(t, <-serveDone)
}

func TestProbe(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), socketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			if req.Command == CommandStatus {
				return Response{OK: true, State: "idle"}
			}
			return Response{OK: false, Error: "bad"}
		}))
	}()

	alive, probeErr := Probe(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, probeErr)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-serveDone)

	alive, probeErr = Probe(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, probeErr)
	require.False(t, alive)

	alive, probeErr = Probe(context.Background(), filepath.Join(t.TempDir(), "missing.sock"), 100*time.Millisecond)
	require.NoError(t, probeErr)
	require.False(t, alive)
}
