package intake

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/telegram/state"
)

type sentMessage struct {
	chatID int64
	text   string
}

type stubSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *stubSender) SendText(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{chatID: chatID, text: text})
	return s.err
}

func (s *stubSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.text)
	}
	return out
}

type stubGenerator struct {
	mu       sync.Mutex
	calls    int
	profiles []state.Profile
	reply    string
	err      error
}

func (g *stubGenerator) Generate(_ context.Context, p state.Profile, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.profiles = append(g.profiles, p)
	return g.reply, g.err
}

type countingObserver struct {
	steps       int
	generations map[string]int
}

func (o *countingObserver) StepTaken(_, _ state.Stage) { o.steps++ }
func (o *countingObserver) Generated(status string) {
	if o.generations == nil {
		o.generations = map[string]int{}
	}
	o.generations[status]++
}

type failingStore struct {
	state.Store
	getErr, putErr error
}

func (f failingStore) Get(ctx context.Context, id int64) (state.Profile, error) {
	if f.getErr != nil {
		return state.Profile{}, f.getErr
	}
	return f.Store.Get(ctx, id)
}

func (f failingStore) Put(ctx context.Context, p state.Profile) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, p)
}

const fallbackText = "please resend: 25, Poland, Uzbekistan"

type fixture struct {
	svc    *Service
	store  *state.MemoryStore
	sender *stubSender
	gen    *stubGenerator
	obs    *countingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  state.NewMemoryStore(),
		sender: &stubSender{},
		gen:    &stubGenerator{reply: "model answer"},
		obs:    &countingObserver{},
	}
	svc, err := NewService(Options{
		Store:        f.store,
		Generator:    f.gen,
		Sender:       f.sender,
		Machine:      testMachine(),
		Fallback:     fallbackText,
		HistoryLimit: 4,
		Observer:     f.obs,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) profile(t *testing.T, chatID int64) state.Profile {
	t.Helper()
	p, err := f.store.Get(context.Background(), chatID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	return p
}

func TestHandleFreshChatAsksAgeOnce(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Handle(context.Background(), 1, "hello"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.sender.texts(); len(got) != 1 || got[0] != "age?" {
		t.Fatalf("sent = %v", got)
	}
	if f.profile(t, 1).Stage != state.StageAskedAge {
		t.Fatalf("stage = %s", f.profile(t, 1).Stage)
	}
	if f.gen.calls != 0 {
		t.Fatalf("generator called %d times", f.gen.calls)
	}
}

func TestHandleShortcutGeneratesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.Handle(ctx, 2, "25 Poland Uzbekistan"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if f.gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", f.gen.calls)
	}
	seen := f.gen.profiles[0]
	if seen.Age != "25" || seen.Country != "Poland" || seen.Citizenship != "Uzbekistan" {
		t.Fatalf("generator saw %+v", seen)
	}
	if got := f.sender.texts(); len(got) != 1 || got[0] != "model answer" {
		t.Fatalf("sent = %v", got)
	}
	p := f.profile(t, 2)
	if p.Stage != state.StageComplete || len(p.History) != 2 {
		t.Fatalf("profile = %+v", p)
	}
	if p.History[0].Text != "25 Poland Uzbekistan" || p.History[1].Text != "model answer" {
		t.Fatalf("history = %+v", p.History)
	}
	if f.obs.generations[GenerationOK] != 1 {
		t.Fatalf("observer = %+v", f.obs.generations)
	}
}

func TestHandleFullConversationKeepsBoundedMemory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, text := range []string{"hi", "31", "Spain", "Peru", "q1", "q2", "q3"} {
		if err := f.svc.Handle(ctx, 3, text); err != nil {
			t.Fatalf("handle %q: %v", text, err)
		}
	}
	p := f.profile(t, 3)
	if p.Age != "31" || p.Country != "Spain" || p.Citizenship != "Peru" {
		t.Fatalf("profile = %+v", p)
	}
	// Four generations (Peru, q1, q2, q3) with a limit of four turns.
	if f.gen.calls != 4 {
		t.Fatalf("generator calls = %d", f.gen.calls)
	}
	if len(p.History) != 4 || p.History[0].Text != "q2" || p.History[2].Text != "q3" {
		t.Fatalf("history = %+v", p.History)
	}
	// The last call saw memory from earlier exchanges.
	if last := f.gen.profiles[3]; len(last.History) != 4 {
		t.Fatalf("generator memory = %+v", last.History)
	}
}

func TestHandleGenerationFailureSendsFallback(t *testing.T) {
	for name, gen := range map[string]*stubGenerator{
		"error": {err: errors.New("status 500")},
		"blank": {reply: "   "},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.gen = gen
			f.svc.opts.Generator = gen
			if err := f.svc.Handle(context.Background(), 4, "25, Poland, Uzbekistan"); err != nil {
				t.Fatalf("handle must not fail on generation error: %v", err)
			}
			if got := f.sender.texts(); len(got) != 1 || got[0] != fallbackText {
				t.Fatalf("sent = %v", got)
			}
			p := f.profile(t, 4)
			if p.Stage != state.StageComplete || len(p.History) != 0 {
				t.Fatalf("profile = %+v", p)
			}
			if f.obs.generations[GenerationFallback] != 1 {
				t.Fatalf("observer = %+v", f.obs.generations)
			}
		})
	}
}

func TestHandleRestartClearsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.svc.Handle(ctx, 5, "25 Poland Uzbekistan")
	_ = f.svc.Handle(ctx, 5, "question")
	if err := f.svc.Handle(ctx, 5, "/start"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	p := f.profile(t, 5)
	if p.Stage != state.StageNew || p.Age != "" || p.Country != "" || p.Citizenship != "" || len(p.History) != 0 {
		t.Fatalf("profile after restart = %+v", p)
	}
	texts := f.sender.texts()
	if texts[len(texts)-1] != "welcome" {
		t.Fatalf("last sent = %q", texts[len(texts)-1])
	}
}

func TestHandleEmptyTextIsIgnored(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Handle(context.Background(), 6, "  "); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.sender.texts()) != 0 {
		t.Fatal("reply sent for empty text")
	}
	if _, err := f.store.Get(context.Background(), 6); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("profile created for empty text: %v", err)
	}
}

func TestHandleSendFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("telegram: Forbidden: bot was blocked by the user (403)")
	if err := f.svc.Handle(context.Background(), 7, "hello"); err != nil {
		t.Fatalf("send failure propagated: %v", err)
	}
	if f.profile(t, 7).Stage != state.StageAskedAge {
		t.Fatal("state not advanced when delivery failed")
	}
}

func TestHandleStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	cases := map[string]failingStore{
		"get": {Store: state.NewMemoryStore(), getErr: boom},
		"put": {Store: state.NewMemoryStore(), putErr: boom},
	}
	for name, store := range cases {
		t.Run(name, func(t *testing.T) {
			sender := &stubSender{}
			svc, err := NewService(Options{Store: store, Generator: &stubGenerator{}, Sender: sender, Machine: testMachine()})
			if err != nil {
				t.Fatalf("new service: %v", err)
			}
			if err := svc.Handle(context.Background(), 8, "hello"); !errors.Is(err, boom) {
				t.Fatalf("err = %v, want db down", err)
			}
			if len(sender.texts()) != 0 {
				t.Fatal("prompt sent although state was not saved")
			}
		})
	}
}

func TestNewServiceValidates(t *testing.T) {
	if _, err := NewService(Options{}); err == nil {
		t.Fatal("expected error for empty options")
	}
	svc, err := NewService(Options{Store: state.NewMemoryStore(), Generator: &stubGenerator{}, Sender: &stubSender{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.RestartCommand() != "/start" {
		t.Fatalf("restart command = %q", svc.RestartCommand())
	}
}

func TestHandleWithMemoryDisabled(t *testing.T) {
	f := newFixture(t)
	f.svc.opts.HistoryLimit = 0
	ctx := context.Background()

	for _, text := range []string{"25 Poland Uzbekistan", "which visas?"} {
		if err := f.svc.Handle(ctx, 9, text); err != nil {
			t.Fatalf("handle %q: %v", text, err)
		}
	}
	if f.gen.calls != 2 {
		t.Fatalf("generator calls = %d, want 2", f.gen.calls)
	}
	if h := f.gen.profiles[1].History; len(h) != 0 {
		t.Fatalf("second call saw history %+v", h)
	}
	if h := f.profile(t, 9).History; len(h) != 0 {
		t.Fatalf("stored history = %+v", h)
	}
}

func TestHandleLogsAgeOnCompletion(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.Intake
	logger.Intake = slog.New(slog.NewJSONHandler(&buf, nil))
	t.Cleanup(func() { logger.Intake = prev })

	f := newFixture(t)
	if err := f.svc.Handle(context.Background(), 3, "hello"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if strings.Contains(buf.String(), "age_years") {
		t.Fatalf("incomplete profile logged age: %s", buf.String())
	}
	buf.Reset()
	if err := f.svc.Handle(context.Background(), 3, "31, Spain, Peru"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(buf.String(), `"age_years":31`) {
		t.Fatalf("step log = %s", buf.String())
	}
}
