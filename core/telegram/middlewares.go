package telegram

import (
	"strings"
	"time"

	"github.com/infohelper/euwork-bot/core/config"
	"github.com/infohelper/euwork-bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named wrapper around the root handler.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// DefaultMiddlewares builds the shared chain, outermost first:
// metrics, recover, logger, then rate_limit when configured.
// The restart command is never rate limited.
func DefaultMiddlewares(cfg *config.Config, obs middleware.HandlerObserver, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "metrics", Use: middleware.MetricsMiddleware(obs)},
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeCommands)+1)
			for _, cmd := range cfg.RateLimit.ExcludeCommands {
				ex[cmd] = struct{}{}
			}
			if restart := strings.ToLower(cfg.Telegram.RestartCommand); strings.HasPrefix(restart, "/") {
				ex[restart] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: onLimited,
				}),
			})
		}
	}
	return mws
}

// Chain wraps h with mws so that mws[0] runs first.
func Chain(h tele.HandlerFunc, mws []Middleware) tele.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i].Use != nil {
			h = mws[i].Use(h)
		}
	}
	return h
}
