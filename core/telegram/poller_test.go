package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/infohelper/euwork-bot/core/dedupe"
	"github.com/infohelper/euwork-bot/core/worker"

	tele "gopkg.in/telebot.v4"
)

func TestPollerFeedsIngress(t *testing.T) {
	api := &fakeAPI{batches: [][]tele.Update{
		{textUpdate(5, 1, "first")},
		{textUpdate(5, 1, "first"), textUpdate(6, 1, "second")},
	}}
	rec := newRecorder()
	obs := outcomes{}
	runner := worker.New(nil)
	bot := newTestBot(t, api)
	p := NewPoller(bot, NewIngress(bot, rec.handle, dedupe.New(10), runner, obs), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	got := map[string]bool{rec.wait(t): true, rec.wait(t): true}
	if !got["first"] || !got["second"] {
		t.Fatalf("handled %v", got)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("poller did not stop")
	}
	if err := runner.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if rec.count() != 2 {
		t.Fatalf("handled %d updates, want 2", rec.count())
	}
}

func TestNewPollerDefaultTimeout(t *testing.T) {
	p := NewPoller(nil, nil, 0)
	if p.lp.Timeout != defaultLongPollTimeout {
		t.Fatalf("timeout = %v", p.lp.Timeout)
	}
}
