package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/turnero/internal/assistant"
	"github.com/nextlevelbuilder/turnero/internal/bots"
	"github.com/nextlevelbuilder/turnero/internal/crm"
	"github.com/nextlevelbuilder/turnero/internal/orchestrator"
	"github.com/nextlevelbuilder/turnero/internal/store"
	storebadger "github.com/nextlevelbuilder/turnero/internal/store/badger"
	"github.com/nextlevelbuilder/turnero/internal/tools"
)

// offlineGateway drives the orchestrator's deterministic fallback path so
// webhook tests exercise the full pipeline without an upstream.
type offlineGateway struct{}

func (offlineGateway) Available() bool                                { return false }
func (offlineGateway) CreateThread(context.Context) (string, error)   { return "", nil }
func (offlineGateway) ThreadExists(context.Context, string) bool      { return false }
func (offlineGateway) StartTurn(context.Context, string, string, string, string) (string, error) {
	return "", nil
}
func (offlineGateway) PollRun(context.Context, string, string) (*assistant.RunState, error) {
	return nil, nil
}
func (offlineGateway) SubmitToolOutputs(context.Context, string, string, []assistant.ToolOutput) (*assistant.RunState, error) {
	return nil, nil
}
func (offlineGateway) LatestMessage(context.Context, string) (string, error) { return "", nil }

func testServer(t *testing.T) (*Server, bots.Repository) {
	t.Helper()
	db, err := storebadger.Open(storebadger.Options{InMemory: true}, store.Config{})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	router := tools.NewRouter(tools.NewRegistry(), crm.NewClient("http://crm.invalid", time.Second), "")
	orch := orchestrator.New(offlineGateway{}, db.Stores(), router, orchestrator.Config{})
	registry := db.Bots()
	return NewServer(":0", orch, registry, "admin-tok"), registry
}

func seedBot(t *testing.T, repo bots.Repository, bot *bots.Bot) *bots.Bot {
	t.Helper()
	if err := repo.Put(context.Background(), bot); err != nil {
		t.Fatalf("seed bot: %v", err)
	}
	return bot
}

func postWebhook(t *testing.T, s *Server, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWebhookRepliesTwiML(t *testing.T) {
	s, repo := testServer(t)
	seedBot(t, repo, &bots.Bot{Name: "demo", PhoneNumber: "+56900"})

	rec := postWebhook(t, s, "/webhook/whatsapp", url.Values{
		"From": {"whatsapp:+56911"},
		"To":   {"whatsapp:+56900"},
		"Body": {"hola necesito una batería"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Response><Message>") {
		t.Errorf("not twiml: %q", body)
	}
	if !strings.Contains(body, "hola necesito una batería") {
		t.Errorf("fallback reply should echo the message: %q", body)
	}
}

func TestWebhookResolvesBotByID(t *testing.T) {
	s, repo := testServer(t)
	bot := seedBot(t, repo, &bots.Bot{Name: "demo", PhoneNumber: "+56900"})

	rec := postWebhook(t, s, "/webhook/whatsapp?bot_id="+bot.ID, url.Values{
		"From": {"whatsapp:+56911"},
		"Body": {"hola"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookUnknownBot(t *testing.T) {
	s, _ := testServer(t)

	rec := postWebhook(t, s, "/webhook/whatsapp", url.Values{
		"From": {"whatsapp:+56911"},
		"To":   {"whatsapp:+56999"},
		"Body": {"hola"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookEmptyBody(t *testing.T) {
	s, repo := testServer(t)
	seedBot(t, repo, &bots.Bot{Name: "demo", PhoneNumber: "+56900"})

	rec := postWebhook(t, s, "/webhook/whatsapp", url.Values{
		"From": {"whatsapp:+56911"},
		"To":   {"whatsapp:+56900"},
		"Body": {"   "},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookInactiveBot(t *testing.T) {
	s, repo := testServer(t)
	seedBot(t, repo, &bots.Bot{Name: "demo", PhoneNumber: "+56900", Status: "disabled"})

	rec := postWebhook(t, s, "/webhook/whatsapp", url.Values{
		"From": {"whatsapp:+56911"},
		"To":   {"whatsapp:+56900"},
		"Body": {"hola"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTwiMLEscapesMarkup(t *testing.T) {
	payload, err := twiML(`respuesta con <tags> & "comillas"`)
	if err != nil {
		t.Fatalf("twiml: %v", err)
	}
	out := string(payload)
	if strings.Contains(out, "<tags>") {
		t.Errorf("markup not escaped: %q", out)
	}
	if !strings.Contains(out, "&lt;tags&gt;") {
		t.Errorf("expected escaped tags: %q", out)
	}
}

func TestAdminAuthRequired(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/bots", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/bots", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestBotAdminCRUD(t *testing.T) {
	s, _ := testServer(t)
	do := func(method, target string, body interface{}) *httptest.ResponseRecorder {
		var reader *bytes.Reader
		if body != nil {
			raw, _ := json.Marshal(body)
			reader = bytes.NewReader(raw)
		} else {
			reader = bytes.NewReader(nil)
		}
		req := httptest.NewRequest(method, target, reader)
		req.Header.Set("Authorization", "Bearer admin-tok")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/v1/bots", map[string]string{"name": "demo", "phone_number": "+56900"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data bots.Bot `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	id := created.Data.ID
	if id == "" {
		t.Fatal("created bot has no id")
	}

	if rec := do(http.MethodGet, "/v1/bots/"+id, nil); rec.Code != http.StatusOK {
		t.Errorf("get: status = %d", rec.Code)
	}

	rec = do(http.MethodPut, "/v1/bots/"+id, map[string]string{"status": "disabled"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Data bots.Bot `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Data.Status != "disabled" || updated.Data.Name != "demo" {
		t.Errorf("partial update lost fields: %+v", updated.Data)
	}

	if rec := do(http.MethodDelete, "/v1/bots/"+id, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d", rec.Code)
	}
	if rec := do(http.MethodGet, "/v1/bots/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d", rec.Code)
	}

	if rec := do(http.MethodPost, "/v1/bots", map[string]string{"name": "x"}); rec.Code != http.StatusBadRequest {
		t.Errorf("create without phone: status = %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewWebhookRateLimiter()
	for i := 0; i < rateLimitMaxHits; i++ {
		if !rl.Allow("+56911") {
			t.Fatalf("request %d should pass", i)
		}
	}
	if rl.Allow("+56911") {
		t.Error("request over the limit should be rejected")
	}
	if !rl.Allow("+56922") {
		t.Error("other senders are unaffected")
	}
}
