package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/infohelper/euwork-bot/core/config"
	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

// SecretHeader carries webhook.secret_token on every delivery from Telegram.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// HTTPOptions configures NewHTTPHandler.
type HTTPOptions struct {
	// Path receives POSTed updates and answers GET liveness probes.
	Path        string
	SecretToken string
	// Ingress may be nil in long-polling mode: POSTs are then acknowledged and dropped.
	Ingress *Ingress
	Metrics http.Handler
}

// NewHTTPHandler serves the webhook endpoint, liveness and /metrics.
//
// Every POST is answered 200 "ok" whatever happens to the update.
func NewHTTPHandler(opts HTTPOptions) http.Handler {
	path := opts.Path
	if path == "" {
		path = "/"
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get(path, func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, "OK")
	})
	r.Post(path, func(w http.ResponseWriter, req *http.Request) {
		handleUpdate(opts, req)
		writeText(w, "ok")
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, config.MetricsPath, opts.Metrics)
	}
	return r
}

func handleUpdate(opts HTTPOptions, req *http.Request) {
	ctx := req.Context()
	start := time.Now()

	if opts.SecretToken != "" {
		got := req.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(opts.SecretToken)) != 1 {
			reject(opts.Ingress, metrics.UpdateForbidden)
			logger.LogEvent(ctx, logger.HTTP, slog.LevelWarn, "webhook.forbidden",
				slog.String("status", "skip"),
				slog.String("cause", "secret_mismatch"),
				slog.String("remote", req.RemoteAddr),
			)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(nil, req.Body, maxUpdateBytes))
	var u tele.Update
	if err == nil {
		err = json.Unmarshal(body, &u)
	}
	if err != nil {
		reject(opts.Ingress, metrics.UpdateMalformed)
		logger.LogEvent(ctx, logger.HTTP, slog.LevelWarn, "webhook.malformed",
			slog.String("status", "skip"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.Int("body_len", len(body)),
		)
		return
	}
	if opts.Ingress == nil {
		return
	}

	_, outcome := opts.Ingress.Accept(ctx, u)
	logger.LogEvent(ctx, logger.HTTP, slog.LevelDebug, "webhook.accepted",
		slog.String("status", "ok"),
		slog.Int("update_id", u.ID),
		slog.String("cause", outcome),
		slog.Duration("duration", logger.Took(start)),
	)
}

func reject(in *Ingress, outcome string) {
	if in != nil {
		in.Reject(outcome)
	}
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}
