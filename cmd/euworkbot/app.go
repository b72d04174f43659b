package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/infohelper/euwork-bot/core/bootstrap"
	"github.com/infohelper/euwork-bot/core/buildinfo"
	"github.com/infohelper/euwork-bot/core/config"
	"github.com/infohelper/euwork-bot/core/dedupe"
	"github.com/infohelper/euwork-bot/core/intake"
	"github.com/infohelper/euwork-bot/core/llm"
	"github.com/infohelper/euwork-bot/core/metrics"
	"github.com/infohelper/euwork-bot/core/telegram"
	tghelpers "github.com/infohelper/euwork-bot/core/telegram/helpers"
	"github.com/infohelper/euwork-bot/core/telegram/router"
	"github.com/infohelper/euwork-bot/core/telegram/sender"
	"github.com/infohelper/euwork-bot/core/worker"

	tele "gopkg.in/telebot.v4"
)

type app struct {
	cfg     *config.Config
	boot    *bootstrap.Result
	metrics *metrics.Metrics
	bot     *tele.Bot
	sender  *sender.Bot
	intake  *intake.Service
	seen    *dedupe.Set
	runner  *worker.Runner
	reg     *telegram.Registry
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	boot, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	a, err := assemble(cfg, boot, nil)
	if err != nil {
		_ = boot.Close()
		return nil, err
	}
	return a, nil
}

// assemble wires the services on top of bootstrapped storage. bot may be
// provided by tests; nil builds one from cfg.
func assemble(cfg *config.Config, boot *bootstrap.Result, bot *tele.Bot) (*app, error) {
	if bot == nil {
		var err error
		bot, err = telegram.NewBot(cfg.Telegram, nil)
		if err != nil {
			return nil, err
		}
	}
	m := metrics.New()
	s := sender.New(bot, m)
	svc, err := intake.NewService(intake.Options{
		Store:     boot.Store,
		Generator: llm.New(cfg.OpenAI, telegram.BuildHTTPClient(0)),
		Sender:    s,
		Machine: intake.Machine{
			RestartCommand: cfg.Telegram.RestartCommand,
			Prompts: intake.Prompts{
				Welcome:        cfg.Messages.Welcome,
				AskAge:         cfg.Messages.AskAge,
				AskCountry:     cfg.Messages.AskCountry,
				AskCitizenship: cfg.Messages.AskCitizenship,
			},
		},
		Fallback:     cfg.Messages.Fallback,
		HistoryLimit: cfg.OpenAI.MemoryTurns(),
		Observer:     m,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		boot:    boot,
		metrics: m,
		bot:     bot,
		sender:  s,
		intake:  svc,
		seen:    dedupe.New(cfg.Dedupe.Capacity),
		runner:  worker.New(m),
		reg:     telegram.NewRegistry(),
	}
	a.registerCommands()
	return a, nil
}

func (a *app) registerCommands() {
	if restart := a.intake.RestartCommand(); strings.HasPrefix(restart, "/") {
		a.reg.RegisterCommand(restart, telegram.Command{
			Description: "Начать заново",
			Handler:     a.handleText,
		})
	}
	a.reg.RegisterCommand("/stats", telegram.Command{
		Description: "Статистика бота",
		AdminOnly:   true,
		Aliases:     []string{"/status"},
		Handler:     a.handleStats,
	})
	a.reg.SetTextFallback(a.handleText)
}

// handleText feeds the message to the intake conversation. The restart command
// is routed here as well: the intake machine recognizes it itself.
func (a *app) handleText(c tele.Context) error {
	_, chatID, _ := tghelpers.IDs(c)
	if chatID == 0 {
		return nil
	}
	return a.intake.Handle(tghelpers.BuildContext(c), chatID, c.Text())
}

func (a *app) handleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	profiles := -1
	if n, err := a.boot.Store.Count(ctx); err == nil {
		profiles = n
	}
	return tghelpers.Reply(c, a.sender, a.statsText(profiles))
}

func (a *app) statsText(profiles int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Версия: %s\n", buildinfo.Summary())
	fmt.Fprintf(&b, "Хранилище: %s\n", a.cfg.Storage.Driver)
	fmt.Fprintf(&b, "Обработано обновлений: %d (ошибок: %d)\n", a.runner.Completed()+a.runner.Failed(), a.runner.Failed())
	fmt.Fprintf(&b, "Дубликатов отброшено: %d\n", a.seen.Rejected())
	fmt.Fprintf(&b, "Набор дедупликации: %d (сбросов: %d)\n", a.seen.Len(), a.seen.Resets())
	if profiles >= 0 {
		fmt.Fprintf(&b, "Профилей: %d", profiles)
	} else {
		b.WriteString("Профилей: недоступно")
	}
	return b.String()
}

func (a *app) rejectNotAdmin(c tele.Context) error {
	return tghelpers.Reply(c, a.sender, a.cfg.Messages.NotAuthorized)
}

func (a *app) TelegramRunOptions() (telegram.RunOptions, error) {
	handler := router.TextRoute(a.reg, router.Options{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: a.rejectNotAdmin,
	})
	return telegram.RunOptions{
		Config:      a.cfg,
		Bot:         a.bot,
		Registry:    a.reg,
		Handler:     handler,
		Middlewares: telegram.DefaultMiddlewares(a.cfg, a.metrics, nil),
		Dedupe:      a.seen,
		Runner:      a.runner,
		Metrics:     a.metrics,
	}, nil
}

func (a *app) Close() error {
	return a.boot.Close()
}
