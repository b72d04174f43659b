package telegram

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/infohelper/euwork-bot/core/dedupe"
	"github.com/infohelper/euwork-bot/core/metrics"
	"github.com/infohelper/euwork-bot/core/worker"
)

func serve(t *testing.T, h http.Handler, method, path, body string, header map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	data, _ := io.ReadAll(rec.Body)
	return rec.Code, string(data)
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	rec := newRecorder()
	obs := outcomes{}
	runner := worker.New(nil)
	in := NewIngress(newTestBot(t, &fakeAPI{}), rec.handle, dedupe.New(10), runner, obs)
	h := NewHTTPHandler(HTTPOptions{Path: "/hook", Ingress: in})

	update := `{"update_id":10,"message":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"},"text":"25 Poland Uzbekistan"}}`
	cases := []struct {
		name, body string
	}{
		{"valid", update},
		{"duplicate", update},
		{"malformed", `{"update_id":`},
		{"empty", ``},
		{"no message", `{"update_id":11}`},
	}
	for _, tc := range cases {
		code, body := serve(t, h, http.MethodPost, "/hook", tc.body, nil)
		if code != http.StatusOK || body != "ok" {
			t.Fatalf("%s: %d %q", tc.name, code, body)
		}
	}
	if got := rec.wait(t); got != "25 Poland Uzbekistan" {
		t.Fatalf("text = %q", got)
	}
	want := outcomes{metrics.UpdateAdmitted: 1, metrics.UpdateDuplicate: 1, metrics.UpdateMalformed: 2, metrics.UpdateIgnored: 1}
	for k, v := range want {
		if obs[k] != v {
			t.Fatalf("%s = %d, want %d (%v)", k, obs[k], v, obs)
		}
	}

	code, body := serve(t, h, http.MethodGet, "/hook", "", nil)
	if code != http.StatusOK || body != "OK" {
		t.Fatalf("liveness: %d %q", code, body)
	}
}

func TestWebhookSecretToken(t *testing.T) {
	rec := newRecorder()
	obs := outcomes{}
	in := NewIngress(newTestBot(t, &fakeAPI{}), rec.handle, dedupe.New(10), worker.New(nil), obs)
	h := NewHTTPHandler(HTTPOptions{Path: "/", SecretToken: "s3cret-value", Ingress: in})

	update := `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"},"text":"hi"}}`
	code, _ := serve(t, h, http.MethodPost, "/", update, map[string]string{SecretHeader: "wrong"})
	if code != http.StatusOK || obs[metrics.UpdateForbidden] != 1 || obs[metrics.UpdateAdmitted] != 0 {
		t.Fatalf("mismatch: code=%d observed=%v", code, obs)
	}

	serve(t, h, http.MethodPost, "/", update, map[string]string{SecretHeader: "s3cret-value"})
	if got := rec.wait(t); got != "hi" {
		t.Fatalf("text = %q", got)
	}
}

func TestWebhookMetricsRoute(t *testing.T) {
	m := metrics.New()
	m.Update(metrics.UpdateAdmitted)
	h := NewHTTPHandler(HTTPOptions{Metrics: m.Handler()})

	code, body := serve(t, h, http.MethodGet, "/metrics", "", nil)
	if code != http.StatusOK || !strings.Contains(body, `euworkbot_updates_total{outcome="admitted"} 1`) {
		t.Fatalf("metrics: %d", code)
	}
	code, body = serve(t, h, http.MethodPost, "/", `{"update_id":1}`, nil)
	if code != http.StatusOK || body != "ok" {
		t.Fatalf("post without ingress: %d %q", code, body)
	}
}
