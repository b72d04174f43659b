package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// Poller feeds getUpdates results into an Ingress, the same path webhook deliveries take.
type Poller struct {
	bot     *tele.Bot
	ingress *Ingress
	lp      *tele.LongPoller
}

// NewPoller builds a long poller; timeout <= 0 means 10s.
func NewPoller(bot *tele.Bot, ingress *Ingress, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = defaultLongPollTimeout
	}
	return &Poller{
		bot:     bot,
		ingress: ingress,
		lp:      &tele.LongPoller{Timeout: timeout, AllowedUpdates: []string{"message"}},
	}
}

// Run polls until ctx is done. Shutdown waits for the in-flight getUpdates call.
func (p *Poller) Run(ctx context.Context) error {
	updates := make(chan tele.Update, 64)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.lp.Poll(p.bot, updates, stop)
	}()

	logger.TG.Info("polling started",
		slog.String("event", "poll.start"),
		slog.Duration("timeout", p.lp.Timeout),
	)
	for {
		select {
		case u := <-updates:
			p.ingress.Accept(ctx, u)
		case <-ctx.Done():
			close(stop)
			for {
				select {
				case <-updates:
					// drained so Poll can observe stop
				case <-done:
					logger.TG.Info("polling stopped",
						slog.String("event", "poll.stop"),
						slog.Int("last_update_id", p.lp.LastUpdateID),
					)
					return nil
				}
			}
		}
	}
}

// removeWebhook deletes the webhook, keeping pending updates; getUpdates fails while one is set.
func removeWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "delete_webhook",
			slog.String("status", "fail"),
			slog.String("mode", "longpoll"),
			slog.String("err", netutil.Redact(err)),
		)
		return
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "delete_webhook",
		slog.String("status", "ok"),
		slog.String("mode", "longpoll"),
	)
}
