package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	"github.com/rbright/vetchat/internal/conversation"
	"github.com/rbright/vetchat/internal/ipc"
	"github.com/rbright/vetchat/internal/recording"
)

func (r Runner) commandAsk(ctx context.Context, d *deps, question string) int {
	err := d.chat.SendMessage(ctx, question, "")
	d.view.Flush()
	d.narrator.Wait()
	if err != nil {
		d.logger.Warn("ask failed", "error", err.Error())
		return 1
	}
	return 0
}

func (r Runner) commandUpload(ctx context.Context, d *deps, path string) int {
	file, closer, err := conversation.OpenFile(path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer closer.Close()

	err = d.chat.UploadFile(ctx, file, "")
	d.view.Flush()
	d.narrator.Wait()
	if err != nil {
		d.logger.Warn("upload failed", "file", file.Name, "error", err.Error())
		return 1
	}
	return 0
}

func (r Runner) commandLanguages(ctx context.Context, d *deps) int {
	languages, err := d.chat.Languages(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: using built-in language list: %v\n", err)
	}
	r.printLanguages(languages, d.chat.Language())
	return 0
}

func (r Runner) printLanguages(languages map[string]string, current string) {
	codes := make([]string, 0, len(languages))
	for code := range languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		mark := " "
		if code == current {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %-4s %s\n", mark, code, languages[code])
	}
}

func (r Runner) commandClear(ctx context.Context, d *deps) int {
	if err := d.chat.ClearHistory(ctx); err != nil {
		return 1
	}
	return 0
}

func (r Runner) commandHealth(ctx context.Context, d *deps) int {
	health, err := d.chat.CheckHealth(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if health.Success && health.Healthy {
		fmt.Fprintln(r.Stdout, "healthy")
		return 0
	}
	fmt.Fprintln(r.Stdout, "degraded")
	degraded := health.Degraded()
	sort.Strings(degraded)
	for _, feature := range degraded {
		fmt.Fprintf(r.Stdout, "  %s\n", feature)
	}
	return 1
}

func (r Runner) commandVoices(ctx context.Context, d *deps) int {
	voices, err := d.catalog.Refresh(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: list voices: %v\n", err)
		return 1
	}
	if len(voices) == 0 {
		fmt.Fprintln(r.Stdout, "no voices found")
		return 1
	}

	selected, _ := d.selector.Select(d.chat.VoiceTag())
	for _, v := range voices {
		mark := " "
		if v.Name == selected.Name && v.Language == selected.Language {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %-12s %s\n", mark, v.Language, v.Name)
	}
	return 0
}

// commandListen dictates one message. Enter on stdin stops listening; the
// session also answers stop, cancel and status over IPC.
func (r Runner) commandListen(ctx context.Context, d *deps) int {
	settled := make(chan struct{}, 1)
	recorder := d.newRecorder(ctx, func() {
		select {
		case settled <- struct{}{}:
		default:
		}
	})

	listener, err := r.acquireSocket(ctx, d)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	serveCtx, stopServe := context.WithCancel(ctx)
	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		if err := ipc.Serve(serveCtx, listener, recorder); err != nil {
			d.logger.Error("ipc server failed", "error", err.Error())
		}
	}()
	defer func() {
		stopServe()
		<-serveDone
	}()

	if err := recorder.Start(ctx, d.chat.VoiceTag()); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	d.view.Notice("Press Enter to stop listening.")

	lines := readLines(r.Stdin)
	for {
		select {
		case <-ctx.Done():
			_ = recorder.Cancel(context.Background())
			return 130
		case <-settled:
			d.view.Flush()
			d.narrator.Wait()
			return 0
		case _, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if _, err := recorder.Stop(ctx); err != nil {
				d.logger.Warn("listen stop failed", "error", err.Error())
				d.view.Flush()
				if errors.Is(err, recording.ErrNotListening) {
					continue
				}
				return 1
			}
		}
	}
}

func (r Runner) acquireSocket(ctx context.Context, d *deps) (net.Listener, error) {
	path, err := ipc.RuntimeSocketPath()
	if err != nil {
		return nil, err
	}
	return ipc.Acquire(ctx, path, ipc.AcquireOptions{
		ProbeTimeout: 200 * time.Millisecond,
		Retries:      2,
		Rescue: func(context.Context) error {
			d.logger.Warn("removed stale session socket", "path", path)
			return nil
		},
	})
}

// readLines feeds stdin lines to a channel that closes at EOF.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
