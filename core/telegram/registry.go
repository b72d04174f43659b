package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run only for telegram.admin_id and never appear in the menu.
	AdminOnly bool
	// Aliases are extra names, with or without the slash, routed to the same handler.
	Aliases []string
}

// Registry holds bot commands and the handler for plain text.
type Registry struct {
	commands     map[string]Command
	textFallback tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// RegisterCommand adds cmd under name, which must start with a slash.
// Invalid and duplicate registrations are logged and ignored.
func (r *Registry) RegisterCommand(name string, cmd Command) {
	name = strings.ToLower(strings.TrimSpace(name))
	skip := func(reason string) {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "",
			slog.String("event", "register.command.skip"),
			slog.String("status", "skip"),
			slog.String("command", name),
			slog.String("cause", reason),
		)
	}
	switch {
	case r == nil:
		return
	case name == "" || cmd.Handler == nil || cmd.Description == "":
		skip("invalid")
		return
	case name[0] != '/':
		skip("no_slash_prefix")
		return
	}
	if _, exists := r.commands[name]; exists {
		skip("duplicate")
		return
	}
	r.commands[name] = cmd
}

// ListCommands returns the commands sorted by name, optionally without admin-only ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.commands))
	for name, meta := range r.commands {
		if visibleOnly && meta.AdminOnly {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand matches the first word of text against names and aliases.
// "/Stats@euwork_bot now" finds "/stats". It returns the canonical name.
func (r *Registry) LookupCommand(text string) (string, Command, bool) {
	name := commandToken(text)
	if name == "" {
		return "", Command{}, false
	}
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			alias = strings.ToLower(alias)
			if alias == name || "/"+alias == name {
				return key, cmd, true
			}
		}
	}
	return "", Command{}, false
}

func commandToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	if name == "/" {
		return ""
	}
	return name
}

// Commands returns all registered commands keyed by name.
func (r *Registry) Commands() map[string]Command {
	return r.commands
}

// SetTextFallback sets the handler for text that is not a registered command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the current text fallback handler.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// CommandSetter is the part of *tele.Bot used to publish the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// PublishCommands sets the command menu shown by Telegram clients. Failure is only logged.
func PublishCommands(ctx context.Context, bot CommandSetter, reg *Registry) error {
	cmds := reg.ListCommands(true)
	if len(cmds) == 0 {
		return nil
	}
	if err := bot.SetCommands(cmds); err != nil {
		logger.TWire.LogAttrs(ctx, slog.LevelWarn, "",
			slog.String("event", "register.commands"),
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
			slog.String("err_kind", netutil.Classify(err)),
		)
		return err
	}
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Text)
	}
	summary, truncated := logger.SummarizeStrings(names, 10)
	logger.TWire.LogAttrs(ctx, slog.LevelInfo, "",
		slog.String("event", "register.commands"),
		slog.String("status", "ok"),
		slog.String("commands", summary),
		slog.Bool("truncated", truncated),
	)
	return nil
}
