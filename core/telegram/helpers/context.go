// Package helpers bridges tele.Context and the context.Context used by services.
package helpers

import (
	"context"

	"github.com/infohelper/euwork-bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	contextKey = "logger_ctx"
	ridKey     = "rid"
)

// StoreContext attaches ctx to c for downstream handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
	if rid := logger.RIDFrom(ctx); rid != "" {
		c.Set(ridKey, rid)
	}
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	if ctx, ok := c.Get(contextKey).(context.Context); ok && ctx != nil {
		return ctx, true
	}
	return nil, false
}

// IDs returns the update, chat and sender ids of c; missing parts are zero.
func IDs(c tele.Context) (updateID int, chatID, userID int64) {
	if c == nil {
		return 0, 0, 0
	}
	updateID = c.Update().ID
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	return updateID, chatID, userID
}

// UpdateContext derives a log-enriched context for u from parent.
func UpdateContext(parent context.Context, u tele.Update) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	var chatID, userID int64
	if m := u.Message; m != nil {
		if m.Chat != nil {
			chatID = m.Chat.ID
		}
		if m.Sender != nil {
			userID = m.Sender.ID
		}
	}
	ctx := logger.WithRID(parent, logger.BuildRID(u.ID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, u.ID, userID, chatID)
	return logger.WithLogger(ctx, logger.TG)
}

// BuildContext returns the stored context, creating one from the update when absent.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}
	if c == nil {
		return context.Background()
	}
	ctx := UpdateContext(context.Background(), c.Update())
	StoreContext(c, ctx)
	return ctx
}

// WithHandler records the handler name on the stored context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
