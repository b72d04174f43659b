package helpers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// Sender delivers a text message to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Reply sends text to the chat of c. Delivery failures are logged and returned.
func Reply(c tele.Context, s Sender, text string) error {
	if s == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx := BuildContext(c)
	if err := s.SendText(ctx, chat.ID, text); err != nil {
		logger.Warn(ctx, logger.CompTG, "reply.fail",
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
			slog.String("err_kind", netutil.Classify(err)),
		)
		return err
	}
	return nil
}
