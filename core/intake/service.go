// Package intake runs the per-chat profile conversation.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/telegram/netutil"
	"github.com/infohelper/euwork-bot/core/telegram/state"
)

// Generator produces a model reply for a complete profile.
type Generator interface {
	Generate(ctx context.Context, p state.Profile, message string) (string, error)
}

// Sender delivers a text message to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Observer is notified about conversation outcomes, e.g. for metrics.
type Observer interface {
	StepTaken(from, to state.Stage)
	Generated(status string)
}

// Generation statuses reported to Observer.
const (
	GenerationOK       = "ok"
	GenerationFallback = "fallback"
)

// Options configures a Service.
type Options struct {
	Store     state.Store
	Generator Generator
	Sender    Sender
	Machine   Machine
	// Fallback replaces the model reply whenever generation fails.
	Fallback     string
	HistoryLimit int
	Observer     Observer
}

// Service applies Machine steps to stored profiles and talks back to the chat.
//
// There is no per-chat locking: two messages from one chat processed at the
// same time both read the same profile and the later Put wins.
type Service struct {
	opts Options
}

// NewService validates opts and returns a service.
func NewService(opts Options) (*Service, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("intake: nil store")
	case opts.Generator == nil:
		return nil, errors.New("intake: nil generator")
	case opts.Sender == nil:
		return nil, errors.New("intake: nil sender")
	}
	if strings.TrimSpace(opts.Machine.RestartCommand) == "" {
		opts.Machine.RestartCommand = "/start"
	}
	return &Service{opts: opts}, nil
}

// RestartCommand returns the token that resets a conversation.
func (s *Service) RestartCommand() string { return s.opts.Machine.RestartCommand }

// Handle processes one text message from chatID.
// Only store failures are returned; delivery and generation failures are logged.
func (s *Service) Handle(ctx context.Context, chatID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		logger.Intake.LogAttrs(ctx, slog.LevelDebug, "",
			slog.String("event", "intake.step"),
			slog.String("status", "skip"),
			slog.String("cause", "empty_text"),
		)
		return nil
	}

	p, err := s.opts.Store.Get(ctx, chatID)
	switch {
	case errors.Is(err, state.ErrNotFound):
		p = state.NewProfile(chatID)
	case err != nil:
		return fmt.Errorf("load profile: %w", err)
	}

	st := s.opts.Machine.Step(p, text)
	if !st.Changed {
		return nil
	}
	if err := s.opts.Store.Put(ctx, st.Profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	if s.opts.Observer != nil {
		s.opts.Observer.StepTaken(p.Stage, st.Profile.Stage)
	}

	attrs := []slog.Attr{
		slog.String("event", "intake.step"),
		slog.String("status", "ok"),
		slog.String("stage", string(p.Stage)),
		slog.String("next_stage", string(st.Profile.Stage)),
		slog.Bool("generate", st.Generate),
		slog.Bool("restart", st.Restarted),
		slog.Bool("shortcut", st.Shortcut),
		slog.Int("text_len", len([]rune(text))),
	}
	if st.Profile.Complete() {
		if years, ok := st.Profile.AgeYears(); ok {
			attrs = append(attrs, slog.Int("age_years", years))
		}
	}
	logger.Intake.LogAttrs(ctx, slog.LevelInfo, "", attrs...)

	if st.Reply != "" {
		s.send(ctx, chatID, st.Reply)
	}
	if !st.Generate {
		return nil
	}

	reply, err := s.generate(ctx, st.Profile, strings.TrimSpace(text))
	s.send(ctx, chatID, reply)
	return err
}

// generate returns the model reply, or the fallback text when generation fails.
// A successful exchange is added to the chat memory; the reply is returned even
// when saving the memory fails.
func (s *Service) generate(ctx context.Context, p state.Profile, text string) (string, error) {
	start := time.Now()
	reply, genErr := s.opts.Generator.Generate(ctx, p, text)
	if genErr == nil {
		reply = strings.TrimSpace(reply)
	}
	if genErr != nil || reply == "" {
		if genErr == nil {
			genErr = errors.New("blank reply")
		}
		logger.Intake.LogAttrs(ctx, slog.LevelWarn, "",
			slog.String("event", "llm.fallback"),
			slog.String("status", "fallback"),
			slog.String("err", genErr.Error()),
			slog.String("err_kind", netutil.Classify(genErr)),
			slog.Duration("duration", logger.Took(start)),
		)
		if s.opts.Observer != nil {
			s.opts.Observer.Generated(GenerationFallback)
		}
		return s.opts.Fallback, nil
	}
	if s.opts.Observer != nil {
		s.opts.Observer.Generated(GenerationOK)
	}

	p.Remember(s.opts.HistoryLimit,
		state.Turn{Role: state.RoleUser, Text: text},
		state.Turn{Role: state.RoleAssistant, Text: reply},
	)
	if err := s.opts.Store.Put(ctx, p); err != nil {
		return reply, fmt.Errorf("save memory: %w", err)
	}
	return reply, nil
}

func (s *Service) send(ctx context.Context, chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := s.opts.Sender.SendText(ctx, chatID, text); err != nil {
		logger.Intake.LogAttrs(ctx, slog.LevelWarn, "",
			slog.String("event", "intake.send"),
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
			slog.String("err_kind", netutil.Classify(err)),
		)
	}
}
