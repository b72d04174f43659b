package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/infohelper/euwork-bot/core/config"
	"github.com/infohelper/euwork-bot/core/dedupe"
	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/metrics"
	"github.com/infohelper/euwork-bot/core/telegram/netutil"
	"github.com/infohelper/euwork-bot/core/worker"

	tele "gopkg.in/telebot.v4"
)

const defaultShutdownTimeout = 10 * time.Second

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *config.Config
	Bot      *tele.Bot
	Registry *Registry

	// Handler receives every admitted update, wrapped by Middlewares.
	Handler     tele.HandlerFunc
	Middlewares []Middleware

	// Dedupe, Runner and Metrics are created from Config when nil.
	Dedupe  *dedupe.Set
	Runner  *worker.Runner
	Metrics *metrics.Metrics

	// ShutdownTimeout bounds the HTTP shutdown and the wait for in-flight tasks.
	ShutdownTimeout time.Duration

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
	Ingress  *Ingress
	Runner   *worker.Runner
	Dedupe   *dedupe.Set
	// Addr is the bound HTTP address, empty when nothing listens.
	Addr string
}

// RunTelegram serves updates until ctx is done, then drains in-flight tasks.
// Webhook mode always listens; long-polling mode listens only when webhook.port is set.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch {
	case opts.Config == nil:
		return errors.New("telegram: nil config provided")
	case opts.Bot == nil:
		return errors.New("telegram: nil bot provided")
	case opts.Handler == nil:
		return errors.New("telegram: nil handler provided")
	}
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	seen := opts.Dedupe
	if seen == nil {
		seen = dedupe.New(cfg.Dedupe.Capacity)
	}
	runner := opts.Runner
	if runner == nil {
		runner = worker.New(opts.Metrics)
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	ingress := NewIngress(opts.Bot, Chain(opts.Handler, opts.Middlewares), seen, runner, opts.Metrics)
	rt := Runtime{Bot: opts.Bot, Registry: reg, Ingress: ingress, Runner: runner, Dedupe: seen}

	_ = PublishCommands(ctx, opts.Bot, reg)

	longpoll := cfg.Telegram.RunMode == config.RunModeLongpoll
	var poller *Poller
	if longpoll {
		removeWebhook(ctx, opts.Bot)
		poller = NewPoller(opts.Bot, ingress, time.Duration(cfg.Telegram.LongPollTimeoutSeconds)*time.Second)
	} else {
		registerWebhook(ctx, opts.Bot, cfg.Webhook)
	}

	var (
		srv *http.Server
		ln  net.Listener
	)
	if !longpoll || cfg.Webhook.Port > 0 {
		httpOpts := HTTPOptions{
			Path:        cfg.Webhook.Path,
			SecretToken: cfg.Webhook.SecretToken,
			Metrics:     opts.Metrics.Handler(),
		}
		if !longpoll {
			httpOpts.Ingress = ingress
		}
		addr := net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port))
		var err error
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("telegram: listen %s: %w", addr, err)
		}
		srv = &http.Server{
			Handler:           NewHTTPHandler(httpOpts),
			ReadHeaderTimeout: 10 * time.Second,
		}
		rt.Addr = ln.Addr().String()
	}

	logger.TG.Info("runtime configured",
		slog.String("event", "mode"),
		slog.String("mode", cfg.Telegram.RunMode),
		slog.String("listen", rt.Addr),
		slog.String("path", cfg.Webhook.Path),
		slog.Bool("secret_token", cfg.Webhook.SecretToken != ""),
	)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			if ln != nil {
				_ = ln.Close()
			}
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if srv != nil {
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("telegram: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	if poller != nil {
		g.Go(func() error { return poller.Run(gctx) })
	}
	runErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	start := time.Now()
	drainErr := runner.Close(drainCtx)
	logger.TG.Info("tasks drained",
		slog.String("event", "shutdown.drain"),
		slog.String("status", logger.Status(drainErr)),
		slog.Uint64("completed", runner.Completed()),
		slog.Uint64("failed", runner.Failed()),
		slog.Duration("duration", logger.Took(start)),
	)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(drainCtx, rt)
	}
	return errors.Join(runErr, drainErr, stopErr)
}

// registerWebhook points Telegram at webhook.url when it is configured.
// Without a url the webhook is assumed to be managed outside the process.
func registerWebhook(ctx context.Context, bot *tele.Bot, cfg config.WebhookConfig) {
	if cfg.URL == "" {
		return
	}
	wh := &tele.Webhook{
		Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.URL},
		SecretToken:    cfg.SecretToken,
		AllowedUpdates: []string{"message"},
	}
	if err := bot.SetWebhook(wh); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "set_webhook",
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
			slog.String("err_kind", netutil.Classify(err)),
		)
		return
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "set_webhook",
		slog.String("status", "ok"),
		slog.String("public_url", cfg.URL),
	)
}
