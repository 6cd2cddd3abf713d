package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rbright/vetchat/internal/cli"
	"github.com/rbright/vetchat/internal/conversation"
	"github.com/rbright/vetchat/internal/fsm"
	"github.com/rbright/vetchat/internal/indicator"
	"github.com/rbright/vetchat/internal/ipc"
	"github.com/rbright/vetchat/internal/output"
	"github.com/rbright/vetchat/internal/recording"
	"github.com/rbright/vetchat/internal/settings"
	"golang.org/x/sync/errgroup"
)

const (
	voiceWatchTimeout = 10 * time.Second
	chatBanner        = "🐾 vetchat veterinary assistant. Type /help for commands."
)

// chatSession is the interactive loop state.
type chatSession struct {
	r        Runner
	d        *deps
	recorder *recording.Controller

	mu        sync.Mutex
	languages map[string]string
}

func (r Runner) commandChat(ctx context.Context, d *deps) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &chatSession{r: r, d: d, recorder: d.newRecorder(ctx, nil)}

	listener, err := r.acquireSocket(ctx, d)
	switch {
	case errors.Is(err, ipc.ErrAlreadyRunning):
		d.view.Notice("Another vetchat session owns the voice hotkeys.")
	case err != nil:
		d.logger.Warn("ipc socket unavailable", "error", err.Error())
	default:
		serveCtx, stopServe := context.WithCancel(ctx)
		serveDone := make(chan struct{})
		go func() {
			defer close(serveDone)
			if err := ipc.Serve(serveCtx, listener, s.recorder); err != nil {
				d.logger.Error("ipc server failed", "error", err.Error())
			}
		}()
		defer func() {
			stopServe()
			<-serveDone
		}()
	}

	d.view.Notice(chatBanner)
	s.startup(ctx)

	lines := readLines(r.Stdin)
	for {
		select {
		case <-ctx.Done():
			_ = s.recorder.Cancel(context.Background())
			return 0
		case line, ok := <-lines:
			if !ok {
				d.view.Flush()
				d.narrator.Wait()
				return 0
			}
			if quit := s.handle(ctx, line); quit {
				return 0
			}
		}
	}
}

// startup loads voices, languages, and service health without blocking input.
func (s *chatSession) startup(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		watchCtx, cancel := context.WithTimeout(ctx, voiceWatchTimeout)
		defer cancel()
		if err := s.d.catalog.Watch(watchCtx, 0); err != nil {
			s.d.logger.Warn("no synthesis voices available", "error", err.Error())
			return nil
		}
		s.d.selector.Select(s.d.chat.VoiceTag())
		return nil
	})
	g.Go(func() error {
		languages, _ := s.d.chat.Languages(ctx)
		s.mu.Lock()
		s.languages = languages
		s.mu.Unlock()
		return nil
	})
	g.Go(func() error {
		_, _ = s.d.chat.CheckHealth(ctx)
		return nil
	})
	go func() {
		_ = g.Wait()
		s.d.logger.Debug("chat startup finished")
	}()
}

func (s *chatSession) handle(ctx context.Context, input string) bool {
	line, err := cli.ParseLine(input)
	if err != nil {
		s.d.view.Notice(err.Error())
		return false
	}

	d := s.d
	switch line.Name {
	case "":
		if strings.TrimSpace(line.Text) == "" {
			return false
		}
		_ = d.chat.SendMessage(ctx, line.Text, "")
	case cli.SlashVoice:
		s.toggleVoice(ctx)
	case cli.SlashUpload:
		s.upload(ctx, line.Args[0])
	case cli.SlashClear:
		_ = d.chat.ClearHistory(ctx)
	case cli.SlashLang:
		s.switchLanguage(line.Args[0])
	case cli.SlashLanguages:
		s.r.printLanguages(s.knownLanguages(ctx), d.chat.Language())
	case cli.SlashSet:
		if err := d.store.Set(settings.Key(line.Args[0]), line.Args[1]); err != nil {
			d.view.Notice(err.Error())
			return false
		}
		d.view.Notice(fmt.Sprintf("%s = %s", line.Args[0], line.Args[1]))
	case cli.SlashSettings:
		s.r.printSettings(d.store.Snapshot())
	case cli.SlashQuick:
		question, ok := conversation.QuickAction(line.Args[0])
		if !ok {
			d.view.Notice("Quick actions: " + strings.Join(conversation.QuickActions(), ", "))
			return false
		}
		_ = d.chat.SendMessage(ctx, question, "")
	case cli.SlashCopy:
		s.copyLastReply(ctx)
	case cli.SlashHealth:
		if health, err := d.chat.CheckHealth(ctx); err == nil && health.Success && health.Healthy {
			d.view.Notice("✅ Chatbot service is healthy")
		}
	case cli.SlashHelp:
		d.view.Notice(strings.TrimRight(cli.ChatHelpText(), "\n"))
	case cli.SlashQuit:
		return true
	}
	return false
}

func (s *chatSession) toggleVoice(ctx context.Context) {
	switch s.recorder.State() {
	case fsm.StateListening:
		if _, err := s.recorder.Stop(ctx); err != nil {
			s.d.logger.Warn("voice stop failed", "error", err.Error())
		}
	case fsm.StateTranscribing:
		s.d.view.Notice("Still transcribing the last recording.")
	default:
		if err := s.recorder.Start(ctx, s.d.chat.VoiceTag()); err != nil {
			s.d.logger.Warn("voice start failed", "error", err.Error())
			return
		}
		s.d.view.Notice("Type /voice again to stop listening.")
	}
}

func (s *chatSession) upload(ctx context.Context, path string) {
	file, closer, err := conversation.OpenFile(path)
	if err != nil {
		s.d.notifier.Notify(ctx, indicator.KindError, err.Error())
		return
	}
	defer closer.Close()
	_ = s.d.chat.UploadFile(ctx, file, "")
}

func (s *chatSession) switchLanguage(code string) {
	code = strings.ToLower(strings.TrimSpace(code))
	s.mu.Lock()
	known := s.languages
	s.mu.Unlock()
	if len(known) > 0 {
		if _, ok := known[code]; !ok {
			s.d.view.Notice(fmt.Sprintf("Unsupported language %q; see /languages.", code))
			return
		}
	}
	if err := s.d.chat.SetLanguage(code); err != nil {
		s.d.view.Notice(err.Error())
		return
	}
	s.d.view.Notice(fmt.Sprintf("Language set to %s (voice %s).", code, s.d.chat.VoiceTag()))
}

func (s *chatSession) knownLanguages(ctx context.Context) map[string]string {
	s.mu.Lock()
	known := s.languages
	s.mu.Unlock()
	if len(known) > 0 {
		return known
	}
	languages, _ := s.d.chat.Languages(ctx)
	return languages
}

func (s *chatSession) copyLastReply(ctx context.Context) {
	reply, _ := s.d.chat.LastReply()
	err := s.d.clipboard.Copy(ctx, reply.Text)
	switch {
	case errors.Is(err, output.ErrNothingToCopy):
		s.d.view.Notice("No reply to copy yet.")
	case err != nil:
		s.d.notifier.Notify(ctx, indicator.KindError, "Copy failed: "+err.Error())
	default:
		s.d.notifier.Notify(ctx, indicator.KindSuccess, "Copied to clipboard")
	}
}
