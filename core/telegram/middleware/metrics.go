package middleware

import (
	"errors"
	"time"

	"github.com/infohelper/euwork-bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// HandlerObserver receives handler latencies, e.g. a Prometheus histogram.
type HandlerObserver interface {
	ObserveHandler(handler, status string, took time.Duration)
}

// MetricsMiddleware measures the wrapped handler. The handler label is read from
// the context after the handler ran, so routers can name the branch they chose.
func MetricsMiddleware(obs HandlerObserver) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if obs == nil {
			return next
		}
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)
			status := logger.Status(err)
			if errors.Is(err, ErrHandlerPanic) {
				status = "panic"
			}
			obs.ObserveHandler(HandlerName(c), status, time.Since(start))
			return err
		}
	}
}

// SetHandlerName records the handler branch chosen for c.
func SetHandlerName(c tele.Context, name string) {
	c.Set(handlerKey, name)
}

// HandlerName returns the name set by SetHandlerName or "unknown".
func HandlerName(c tele.Context) string {
	if name, ok := c.Get(handlerKey).(string); ok && name != "" {
		return name
	}
	return "unknown"
}

const handlerKey = "handler_name"
