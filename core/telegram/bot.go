package telegram

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/infohelper/euwork-bot/core/config"
	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// NewBot builds a bot client in offline mode (no getMe call at startup).
// A nil client means BuildHTTPClient(30s).
func NewBot(cfg config.TelegramConfig, client *http.Client) (*tele.Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram: empty bot token")
	}
	if client == nil {
		client = BuildHTTPClient(defaultClientTimeout)
	}
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(cfg.APIURL, "/"),
		Token:   cfg.Token,
		Client:  client,
		Offline: true,
		OnError: func(err error, _ tele.Context) {
			logger.TG.Warn("bot error",
				slog.String("event", "tg.error"),
				slog.String("err", netutil.Redact(err)),
				slog.String("err_kind", netutil.Classify(err)),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logger.TWire.Info("bot ready",
		slog.String("event", "bot.init"),
		slog.String("status", "ok"),
		slog.Bool("custom_api", cfg.APIURL != ""),
		slog.Duration("duration", logger.Took(start)),
	)
	return bot, nil
}
