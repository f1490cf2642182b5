package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fabfab/symptom-agent/chat"
	"github.com/fabfab/symptom-agent/dialogue"
)

type fakeDialogue struct {
	err      error
	lastID   string
	lastText string
	resets   []string
}

func (f *fakeDialogue) Handle(_ context.Context, sessionID, text string) (dialogue.Reply, error) {
	f.lastID, f.lastText = sessionID, text
	if f.err != nil {
		return dialogue.Reply{}, f.err
	}
	if sessionID == "" {
		sessionID = "generated"
	}
	return dialogue.Reply{SessionID: sessionID, Response: "reply: " + text}, nil
}

func (f *fakeDialogue) Reset(sessionID string) {
	f.resets = append(f.resets, sessionID)
}

func newTestServer(t *testing.T, d Dialogue) *Server {
	t.Helper()
	return New(d, zaptest.NewLogger(t), Options{AllowedOrigins: []string{"http://localhost:3000"}})
}

func do(t *testing.T, s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeDialogue{})
	rec := do(t, s, http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"ok"}`, rec.Body.String())
}

func TestChatReturnsResponseAndSession(t *testing.T) {
	d := &fakeDialogue{}
	s := newTestServer(t, d)

	rec := do(t, s, http.MethodPost, "/chat", `{"text":"Help me","session_id":" abc "}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "reply: Help me", resp.Response)
	assert.Equal(t, "abc", resp.SessionID)
	assert.Equal(t, "Help me", d.lastText)
}

func TestChatWithoutSessionGetsOne(t *testing.T) {
	s := newTestServer(t, &fakeDialogue{})
	rec := do(t, s, http.MethodPost, "/chat", `{"text":"hi"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session_id":"generated"`)
}

func TestChatIgnoresUnknownFields(t *testing.T) {
	d := &fakeDialogue{}
	rec := do(t, newTestServer(t, d), http.MethodPost, "/chat", `{"text":"hi","session_id":"s","client":"web","ts":1}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", d.lastText)
	assert.Equal(t, "s", d.lastID)
}

func TestChatRejectsBadRequests(t *testing.T) {
	cases := map[string]string{
		"blank text":    `{"text":"   "}`,
		"missing text":  `{}`,
		"empty body":    ``,
		"trailing data": `{"text":"hi"}{"text":"again"}`,
		"not json":      `text=hi`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			d := &fakeDialogue{}
			rec := do(t, newTestServer(t, d), http.MethodPost, "/chat", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
			assert.Empty(t, d.lastText)
		})
	}
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: offline", chat.ErrGenerationUnavailable), http.StatusBadGateway},
		{fmt.Errorf("%w: db down", chat.ErrRetrievalUnavailable), http.StatusBadGateway},
		{dialogue.ErrEmptyMessage, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("%w: %w", chat.ErrGenerationUnavailable, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("%w: search: %w", chat.ErrRetrievalUnavailable, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := do(t, newTestServer(t, &fakeDialogue{err: tc.err}), http.MethodPost, "/chat", `{"text":"hi"}`, nil)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestResetEndpoint(t *testing.T) {
	d := &fakeDialogue{}
	s := newTestServer(t, d)

	rec := do(t, s, http.MethodPost, "/chat/reset", `{"session_id":"abc"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"abc"}, d.resets)
	assert.Contains(t, rec.Body.String(), "start over")

	rec = do(t, s, http.MethodPost, "/chat/reset", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	s := newTestServer(t, &fakeDialogue{})

	rec := do(t, s, http.MethodPost, "/chat", `{"text":"hi"}`, map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(t, s, http.MethodPost, "/chat", `{"text":"hi"}`, map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newTestServer(t, &fakeDialogue{}), http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
