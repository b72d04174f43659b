package telegram

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

const testToken = "123456:TESTTOKEN"

// fakeAPI answers Bot API methods: getUpdates serves queued batches, everything
// else succeeds with result true.
type fakeAPI struct {
	mu      sync.Mutex
	methods []string
	batches [][]tele.Update
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/bot" + testToken + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	method := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	f.methods = append(f.methods, method)
	var batch []tele.Update
	if method == "getUpdates" && len(f.batches) > 0 {
		batch, f.batches = f.batches[0], f.batches[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getUpdates":
		if batch == nil {
			time.Sleep(10 * time.Millisecond)
			batch = []tele.Update{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": batch})
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func (f *fakeAPI) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.methods {
		if m == method {
			n++
		}
	}
	return n
}

func newTestBot(t *testing.T, api http.Handler) *tele.Bot {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	bot, err := tele.NewBot(tele.Settings{URL: srv.URL, Token: testToken, Offline: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	return bot
}

func textUpdate(id int, chatID int64, text string) tele.Update {
	return tele.Update{ID: id, Message: &tele.Message{
		ID:     id,
		Chat:   &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
		Sender: &tele.User{ID: chatID},
		Text:   text,
	}}
}

// recorder collects texts seen by a handler.
type recorder struct {
	mu    sync.Mutex
	texts []string
	seen  chan string
}

func newRecorder() *recorder { return &recorder{seen: make(chan string, 16)} }

func (r *recorder) handle(c tele.Context) error {
	r.mu.Lock()
	r.texts = append(r.texts, c.Text())
	r.mu.Unlock()
	r.seen <- c.Text()
	return nil
}

func (r *recorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case s := <-r.seen:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
		return ""
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.texts)
}
