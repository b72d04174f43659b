package telegram

import (
	"context"
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", Command{Description: "restart", Handler: noop})
	reg.RegisterCommand("/Stats", Command{Description: "stats", Handler: noop, AdminOnly: true, Aliases: []string{"status"}})
	reg.RegisterCommand("/start", Command{Description: "dup", Handler: noop})
	reg.RegisterCommand("help", Command{Description: "no slash", Handler: noop})
	reg.RegisterCommand("/empty", Command{Handler: noop})

	if n := len(reg.Commands()); n != 2 {
		t.Fatalf("commands = %d", n)
	}
	if cmd := reg.Commands()["/start"]; cmd.Description != "restart" {
		t.Fatal("duplicate registration replaced the original")
	}

	visible := reg.ListCommands(true)
	if len(visible) != 1 || visible[0].Text != "start" {
		t.Fatalf("visible = %+v", visible)
	}
	if all := reg.ListCommands(false); len(all) != 2 || all[0].Text != "start" || all[1].Text != "stats" {
		t.Fatalf("all = %+v", all)
	}

	cases := map[string]string{
		"/start":              "/start",
		"/START@euwork_bot":   "/start",
		"/stats now":          "/stats",
		"/status":             "/stats",
		"  /start  payload  ": "/start",
	}
	for text, want := range cases {
		key, _, ok := reg.LookupCommand(text)
		if !ok || key != want {
			t.Fatalf("lookup(%q) = %q %v", text, key, ok)
		}
	}
	for _, text := range []string{"start", "/", "", "/unknown", "25 /start"} {
		if _, _, ok := reg.LookupCommand(text); ok {
			t.Fatalf("lookup(%q) matched", text)
		}
	}
}

type setter struct {
	got []tele.Command
	err error
}

func (s *setter) SetCommands(opts ...interface{}) error {
	if len(opts) > 0 {
		s.got, _ = opts[0].([]tele.Command)
	}
	return s.err
}

func TestPublishCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", Command{Description: "restart", Handler: noop})
	s := &setter{}
	if err := PublishCommands(context.Background(), s, reg); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(s.got) != 1 || s.got[0].Text != "start" {
		t.Fatalf("published %+v", s.got)
	}

	s = &setter{err: errors.New("403")}
	if err := PublishCommands(context.Background(), s, reg); err == nil {
		t.Fatal("expected error")
	}

	s = &setter{}
	if err := PublishCommands(context.Background(), s, NewRegistry()); err != nil || s.got != nil {
		t.Fatal("empty registry must not call the API")
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return Middleware{Name: name, Use: func(next tele.HandlerFunc) tele.HandlerFunc {
			return func(c tele.Context) error {
				order = append(order, name)
				return next(c)
			}
		}}
	}
	h := Chain(func(tele.Context) error { order = append(order, "handler"); return nil },
		[]Middleware{mk("a"), {Name: "nil"}, mk("b")})
	_ = h(nil)
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "handler" {
		t.Fatalf("order = %v", order)
	}
}

func TestDefaultMiddlewares(t *testing.T) {
	names := func(mws []Middleware) []string {
		out := make([]string, 0, len(mws))
		for _, m := range mws {
			out = append(out, m.Name)
		}
		return out
	}
	if got := names(DefaultMiddlewares(nil, nil, nil)); len(got) != 3 {
		t.Fatalf("default chain = %v", got)
	}
	cfg := testConfig("webhook")
	cfg.RateLimit.IntervalMS = 500
	got := names(DefaultMiddlewares(cfg, nil, nil))
	if len(got) != 4 || got[3] != "rate_limit" {
		t.Fatalf("chain = %v", got)
	}
}
