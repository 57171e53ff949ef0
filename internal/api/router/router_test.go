package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicvoice/frontdesk/internal/dialog"
	"github.com/clinicvoice/frontdesk/internal/http/handlers"
)

type stubPracticeLookup struct{}

func (stubPracticeLookup) LookupByNumber(context.Context, string) (string, error) {
	return "prac-1", nil
}

type stubDispatcher struct{}

func (stubDispatcher) Dispatch(context.Context, dialog.Invocation) dialog.Result {
	return dialog.Result{Result: "ok"}
}

func newTestRouter() http.Handler {
	return New(&Config{
		Health: handlers.NewHealthHandler("test"),
		VoiceTool: handlers.NewVoiceToolHandler(handlers.VoiceToolHandlerConfig{
			Practices:  stubPracticeLookup{},
			Dispatcher: stubDispatcher{},
		}),
	})
}

func TestRouterHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRouterVoiceToolCall(t *testing.T) {
	body := `{"call_id":"call-1","payload":{"tool_name":"identify_patient","tool_call_id":"tc-1"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice/tool-call", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tool_call_id":"tc-1"`)
}

func TestRouterUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterWebhookRateLimit(t *testing.T) {
	r := New(&Config{
		VoiceTool: handlers.NewVoiceToolHandler(handlers.VoiceToolHandlerConfig{
			Practices:  stubPracticeLookup{},
			Dispatcher: stubDispatcher{},
		}),
		WebhookRatePerSecond: 1,
		WebhookBurst:         1,
	})

	body := `{"call_id":"call-1","payload":{"tool_name":"identify_patient"}}`
	first := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodPost, "/webhooks/voice/tool-call", strings.NewReader(body))
	req1.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(first, req1)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/webhooks/voice/tool-call", strings.NewReader(body))
	req2.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(second, req2)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
