// Package sender delivers outbound text messages through the Bot API.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// ErrNoClient is returned by a Bot without an underlying telebot client.
var ErrNoClient = errors.New("telegram sender: no bot client")

// Observer counts delivery outcomes ("ok" or "fail").
type Observer interface {
	Sent(status string)
}

// Bot sends messages with a single sendMessage call each. Nothing is queued or retried.
type Bot struct {
	bot      *tele.Bot
	observer Observer
}

// New wraps bot. observer may be nil.
func New(bot *tele.Bot, observer Observer) *Bot {
	return &Bot{bot: bot, observer: observer}
}

// SendText sends text to chatID as plain text. The error is returned to the caller,
// which decides whether it matters.
func (s *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if s == nil || s.bot == nil {
		return ErrNoClient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.bot.Send(tele.ChatID(chatID), text)
	took := logger.Took(start)
	if s.observer != nil {
		s.observer.Sent(logger.Status(err))
	}
	if err != nil {
		attrs := []slog.Attr{
			slog.String("status", "fail"),
			slog.String("endpoint", "sendMessage"),
			slog.Int64("chat_id", chatID),
			slog.String("err", netutil.Redact(err)),
			slog.String("err_kind", netutil.Classify(err)),
			slog.Duration("duration", took),
		}
		if code := netutil.HTTPStatus(err); code != 0 {
			attrs = append(attrs, slog.Int("http_status", code))
		}
		logger.Debug(ctx, logger.CompTG, "send.fail", attrs...)
		return err
	}
	logger.Debug(ctx, logger.CompTG, "send.done",
		slog.String("status", "ok"),
		slog.String("endpoint", "sendMessage"),
		slog.Int64("chat_id", chatID),
		slog.Int("text_len", len([]rune(text))),
		slog.Duration("duration", took),
	)
	return nil
}
