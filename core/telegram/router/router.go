// Package router picks the handler for an inbound update.
package router

import (
	"log/slog"
	"time"

	"github.com/infohelper/euwork-bot/core/logger"
	tg "github.com/infohelper/euwork-bot/core/telegram"
	"github.com/infohelper/euwork-bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Options configures TextRoute.
type Options struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// TextRoute returns the handler for message updates: a registered command when the
// first word names one, otherwise the registry's text fallback.
// Other update kinds are acknowledged and skipped.
func TextRoute(reg *tg.Registry, opts Options) tele.HandlerFunc {
	if reg == nil {
		reg = tg.NewRegistry()
	}
	adminOpts := middleware.AdminOptions{AdminID: opts.AdminID, OnReject: opts.OnAdminReject}

	handlers := make(map[string]tele.HandlerFunc, len(reg.Commands()))
	for name, def := range reg.Commands() {
		h := def.Handler
		if def.AdminOnly {
			h = middleware.AdminOnlyMiddleware(adminOpts)(h)
		}
		handlers[name] = h
	}
	logger.TWire.Info("tg.wire",
		slog.String("event", "routes"),
		slog.String("status", "ok"),
		slog.Int("commands", len(handlers)),
		slog.Bool("text_fallback", reg.TextFallback() != nil),
	)

	return func(c tele.Context) error {
		start := time.Now()
		if c.Update().Message == nil {
			middleware.SetHandlerName(c, "non_message")
			logHandlerSummary(c, "non_message", start, "skip", nil)
			return nil
		}

		if key, _, ok := reg.LookupCommand(c.Text()); ok {
			if h := handlers[key]; h != nil {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return h(c)
				})
			}
		}

		if fb := reg.TextFallback(); fb != nil {
			return handleWithSummary(c, "intake", start, func() error {
				return fb(c)
			})
		}

		middleware.SetHandlerName(c, "unhandled")
		logHandlerSummary(c, "unhandled", start, "skip", nil)
		return nil
	}
}
