package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"whatsapp-bulk-worker/internal/adapters/status/memory"
	"whatsapp-bulk-worker/internal/app"
	"whatsapp-bulk-worker/internal/middleware"
	"whatsapp-bulk-worker/internal/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	unconfigured bool

	mu    sync.Mutex
	calls []string
}

func (s *stubSender) Configured() bool { return !s.unconfigured }

func (s *stubSender) SendText(_ context.Context, to, text string) (ports.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, to+"|"+text)
	return ports.SendResult{ProviderID: "1"}, nil
}

func (s *stubSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type testServer struct {
	app    *fiber.App
	sender *stubSender

	mu     sync.Mutex
	delays []time.Duration
}

func (ts *testServer) sleep(d time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.delays = append(ts.delays, d)
}

func newTestServer(t *testing.T, mode app.Mode, secret string, sender *stubSender) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := &testServer{sender: sender}

	d := app.NewDispatcher(sender, app.DispatchConfig{BatchSize: 10}, log)
	svc := app.NewBulkService(d, memory.New(0, 0), nil, mode, log,
		app.WithDelaySleeper(ts.sleep))

	ts.app = fiber.New()
	NewHandler(svc, "greenspire-whatsapp-worker", log).Register(ts.app, middleware.RequireSecret(secret))
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestSendBulk_Validation(t *testing.T) {
	ts := newTestServer(t, app.ModeSync, "", &stubSender{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"phoneNumbers":`, errInvalidBody},
		{"missing phoneNumbers", `{"text":"hi"}`, errInvalidPhoneNumbers},
		{"null phoneNumbers", `{"phoneNumbers":null,"text":"hi"}`, errInvalidPhoneNumbers},
		{"phoneNumbers not an array", `{"phoneNumbers":"923001234567","text":"hi"}`, errInvalidPhoneNumbers},
		{"non-string element", `{"phoneNumbers":["1",2],"text":"hi"}`, errInvalidPhoneNumbers},
		{"null element", `{"phoneNumbers":["5550001",null],"text":"hi"}`, errInvalidPhoneNumbers},
		{"missing text", `{"phoneNumbers":["1"]}`, errInvalidText},
		{"blank text", `{"phoneNumbers":["1"],"text":"   "}`, errInvalidText},
		{"numeric text", `{"phoneNumbers":["1"],"text":5}`, errInvalidText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, http.MethodPost, "/send-bulk", tt.body, nil)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.want, body["error"])
		})
	}
	assert.Empty(t, ts.sender.sent())
}

func TestSendBulk_SyncReturnsCounts(t *testing.T) {
	ts := newTestServer(t, app.ModeSync, "", &stubSender{})

	status, body := ts.do(t, http.MethodPost, "/send-bulk",
		`{"phoneNumbers":["923001234567"," +923001234568 ","+"],"text":"  hello  ","groupId":"g-1"}`, nil)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "g-1", body["groupId"])
	assert.EqualValues(t, 2, body["totalAttempted"])
	assert.EqualValues(t, 2, body["sent"])
	assert.EqualValues(t, 0, body["failed"])
	assert.NotEmpty(t, body["dispatchId"])
	assert.ElementsMatch(t, []string{"+923001234567|hello", "+923001234568|hello"}, ts.sender.sent())
}

func TestSendBulk_EmptyListIsAccepted(t *testing.T) {
	ts := newTestServer(t, app.ModeSync, "", &stubSender{})

	status, body := ts.do(t, http.MethodPost, "/send-bulk", `{"phoneNumbers":[],"text":"hi"}`, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, body["groupId"])
	assert.EqualValues(t, 0, body["totalAttempted"])
}

func TestSendBulk_DelaySeconds(t *testing.T) {
	ts := newTestServer(t, app.ModeSync, "", &stubSender{})

	for _, delay := range []string{`1.5`, `999999`, `0`, `-4`, `"10"`, `null`} {
		status, _ := ts.do(t, http.MethodPost, "/send-bulk",
			`{"phoneNumbers":["1"],"text":"hi","delaySeconds":`+delay+`}`, nil)
		require.Equal(t, fiber.StatusOK, status, delay)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, app.MaxPreDispatchDelay}, ts.delays)
}

func TestSendBulk_ProviderNotConfigured(t *testing.T) {
	ts := newTestServer(t, app.ModeSync, "", &stubSender{unconfigured: true})

	status, body := ts.do(t, http.MethodPost, "/send-bulk", `{"phoneNumbers":["1"],"text":"hi"}`, nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "not configured")
}

func TestSendBulk_BackgroundAcceptsThenCompletes(t *testing.T) {
	ts := newTestServer(t, app.ModeBackground, "", &stubSender{})

	status, body := ts.do(t, http.MethodPost, "/send-bulk",
		`{"phoneNumbers":["1","2",""],"text":"hi","groupId":"g-2"}`, nil)
	require.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, true, body["accepted"])
	assert.EqualValues(t, 3, body["count"], "count is the raw list length")
	assert.Equal(t, "g-2", body["groupId"])
	assert.NotEmpty(t, body["message"])

	id, _ := body["dispatchId"].(string)
	require.NotEmpty(t, id)

	assert.Eventually(t, func() bool {
		status, body := ts.do(t, http.MethodGet, "/dispatches/"+id, "", nil)
		if status != fiber.StatusOK {
			return false
		}
		d, _ := body["dispatch"].(map[string]any)
		return d["status"] == "completed"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, ts.sender.sent(), 2)
}

func TestGetDispatch_Errors(t *testing.T) {
	ts := newTestServer(t, app.ModeSync, "", &stubSender{})

	status, _ := ts.do(t, http.MethodGet, "/dispatches/not-a-uuid", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := ts.do(t, http.MethodGet, "/dispatches/6f1c2a7e-0d4b-4f7a-9a61-2c1e5b8d3f00", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
}

func TestSendBulk_RequiresSecret(t *testing.T) {
	ts := newTestServer(t, app.ModeSync, "s3cret", &stubSender{})
	body := `{"phoneNumbers":["1"],"text":"hi"}`

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"no credentials", nil, fiber.StatusUnauthorized},
		{"wrong bearer", map[string]string{"Authorization": "Bearer nope"}, fiber.StatusUnauthorized},
		{"bearer", map[string]string{"Authorization": "Bearer s3cret"}, fiber.StatusOK},
		{"lowercase bearer", map[string]string{"Authorization": "bearer s3cret"}, fiber.StatusOK},
		{"raw authorization", map[string]string{"Authorization": "s3cret"}, fiber.StatusOK},
		{"worker secret header", map[string]string{"X-Worker-Secret": "s3cret"}, fiber.StatusOK},
		{"authorization wins over header", map[string]string{"Authorization": "Bearer nope", "X-Worker-Secret": "s3cret"}, fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := ts.do(t, http.MethodPost, "/send-bulk", body, tt.headers)
			assert.Equal(t, tt.want, status)
			if tt.want == fiber.StatusUnauthorized {
				assert.Equal(t, "Unauthorized", out["error"])
			}
		})
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, app.ModeSync, "s3cret", &stubSender{})

	status, body := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "greenspire-whatsapp-worker", body["service"])
}

func TestParseSendBulk_PhoneNumbers(t *testing.T) {
	req, _, msg := parseSendBulk([]byte(`{"phoneNumbers":["5550001",null],"text":"hi"}`))
	assert.Equal(t, errInvalidPhoneNumbers, msg)
	assert.Empty(t, req.PhoneNumbers)

	req, _, msg = parseSendBulk([]byte(`{"phoneNumbers":["5550001",""],"text":"hi"}`))
	assert.Empty(t, msg, "empty strings are strings; the normalizer drops them later")
	assert.Equal(t, []string{"5550001", ""}, req.PhoneNumbers)

	req, _, msg = parseSendBulk([]byte(`{"phoneNumbers":[],"text":"hi"}`))
	assert.Empty(t, msg)
	assert.NotNil(t, req.PhoneNumbers)
	assert.Empty(t, req.PhoneNumbers)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 50))
	assert.Equal(t, "abc...", preview("abcdef", 3))
}
