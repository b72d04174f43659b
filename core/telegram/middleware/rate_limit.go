package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/infohelper/euwork-bot/core/logger"
	tghelpers "github.com/infohelper/euwork-bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude holds lower-case commands (with the leading slash) that are never limited.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// pruneThreshold bounds the last-seen map; older entries are dropped once it grows past it.
const pruneThreshold = 4096

// RateLimitMiddleware drops messages arriving from a chat less than Interval after
// its previous accepted message.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	var (
		mu       sync.Mutex
		lastSeen = make(map[int64]time.Time)
	)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if opts.Interval <= 0 {
			return next
		}
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil || excluded(opts.Exclude, c.Text()) {
				return next(c)
			}

			now := time.Now()
			mu.Lock()
			if last, ok := lastSeen[chat.ID]; ok && now.Sub(last) < opts.Interval {
				mu.Unlock()
				logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
					slog.String("status", "rate_limited"),
					slog.Duration("since_last", now.Sub(last)),
				)
				SetHandlerName(c, "rate_limited")
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			lastSeen[chat.ID] = now
			if len(lastSeen) > pruneThreshold {
				for id, ts := range lastSeen {
					if now.Sub(ts) >= opts.Interval {
						delete(lastSeen, id)
					}
				}
			}
			mu.Unlock()
			return next(c)
		}
	}
}

func excluded(exclude map[string]struct{}, text string) bool {
	if len(exclude) == 0 {
		return false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	_, ok := exclude[cmd]
	return ok
}
