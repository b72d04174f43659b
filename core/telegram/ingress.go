package telegram

import (
	"context"
	"log/slog"

	"github.com/infohelper/euwork-bot/core/dedupe"
	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/metrics"
	tghelpers "github.com/infohelper/euwork-bot/core/telegram/helpers"
	"github.com/infohelper/euwork-bot/core/worker"

	tele "gopkg.in/telebot.v4"
)

// TaskAction names background tasks spawned for updates.
const TaskAction = "update"

// UpdateObserver counts ingress outcomes (see the metrics.Update* constants).
type UpdateObserver interface {
	Update(outcome string)
}

// Ingress is the shared entry for webhook and long-polling deliveries: it filters,
// deduplicates and hands each admitted update to a background task.
type Ingress struct {
	bot      *tele.Bot
	handler  tele.HandlerFunc
	seen     *dedupe.Set
	runner   *worker.Runner
	observer UpdateObserver
}

// NewIngress wires an ingress. observer may be nil.
func NewIngress(bot *tele.Bot, handler tele.HandlerFunc, seen *dedupe.Set, runner *worker.Runner, observer UpdateObserver) *Ingress {
	return &Ingress{bot: bot, handler: handler, seen: seen, runner: runner, observer: observer}
}

// Accept processes u without blocking on its handler. The returned task is nil when
// the update was not admitted.
func (in *Ingress) Accept(ctx context.Context, u tele.Update) (*worker.Task, string) {
	ctx = tghelpers.UpdateContext(ctx, u)

	if u.Message == nil {
		in.observe(metrics.UpdateIgnored)
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.ignored",
			slog.String("status", "skip"),
			slog.String("cause", "non_message"),
		)
		return nil, metrics.UpdateIgnored
	}
	if !in.seen.Admit(u.ID) {
		in.observe(metrics.UpdateDuplicate)
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "update.duplicate",
			slog.String("status", "duplicate"),
		)
		return nil, metrics.UpdateDuplicate
	}
	in.observe(metrics.UpdateAdmitted)

	task := in.runner.Go(ctx, TaskAction, func(taskCtx context.Context) error {
		c := in.bot.NewContext(u)
		tghelpers.StoreContext(c, taskCtx)
		return in.handler(c)
	})
	return task, metrics.UpdateAdmitted
}

// Reject counts an update dropped before decoding, e.g. malformed or unauthenticated.
func (in *Ingress) Reject(outcome string) {
	in.observe(outcome)
}

func (in *Ingress) observe(outcome string) {
	if in.observer != nil {
		in.observer.Update(outcome)
	}
}
