package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptalchemy/alchemy/domain"
	"github.com/promptalchemy/alchemy/usecase"
)

type stubLlm struct {
	content string
	err     error
	chunks  []domain.StreamChunk
}

func (s *stubLlm) Complete(context.Context, domain.CompletionRequest) (string, error) {
	return s.content, s.err
}

func (s *stubLlm) Stream(ctx context.Context, _ domain.CompletionRequest) (<-chan domain.StreamChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		for _, chunk := range s.chunks {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type stubEnhancer struct {
	final string
	err   error
}

func (s *stubEnhancer) Enhance(context.Context, domain.Strategy, string) (domain.EnhancedPrompt, error) {
	if s.err != nil {
		return domain.EnhancedPrompt{}, s.err
	}
	return domain.EnhancedPrompt{FinalPrompt: s.final}, nil
}

func newTestHandler(llm domain.Llm, enh domain.PromptEnhancer) *Handler {
	svc := usecase.NewConversationService(enh, llm, nil, usecase.ConversationConfig{
		GenerateModel: "gemini-flash",
	})
	return NewHandler(svc, enh, llm, "gemini-flash")
}

func doJSON(t *testing.T, handler echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestConversationNonStreaming(t *testing.T) {
	h := newTestHandler(&stubLlm{content: "Here is a poem..."}, &stubEnhancer{final: "enhanced"})

	rec := doJSON(t, h.Conversation, `{"prompt_type":"enhance_prompt","latest_prompt":"Write a poem","stream":false}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"Here is a poem..."}`, rec.Body.String())
}

func TestConversationStreamingWritesIncrements(t *testing.T) {
	h := newTestHandler(&stubLlm{chunks: []domain.StreamChunk{
		{Content: "Hel"}, {Content: "lo"},
	}}, &stubEnhancer{final: "enhanced"})

	rec := doJSON(t, h.Conversation, `{"prompt_type":"enhance_prompt","latest_prompt":"hi","stream":true}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "Hello", rec.Body.String())
}

func TestConversationStreamingErrorMarkerAfterPartialOutput(t *testing.T) {
	h := newTestHandler(&stubLlm{chunks: []domain.StreamChunk{
		{Content: "partial"},
		{Err: domain.NewError(domain.KindConnectionFailure, "cut")},
	}}, &stubEnhancer{final: "enhanced"})

	rec := doJSON(t, h.Conversation, `{"latest_prompt":"hi","stream":true}`)

	assert.Equal(t, http.StatusOK, rec.Code, "headers were already sent")
	assert.Contains(t, rec.Body.String(), "partial")
	assert.Contains(t, rec.Body.String(), "[stream error: connection_failure]")
}

func TestConversationErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		llm    *stubLlm
		enh    *stubEnhancer
		status int
	}{
		{"rate limited", &stubLlm{err: domain.NewError(domain.KindRateLimited, "429")}, &stubEnhancer{final: "e"}, http.StatusTooManyRequests},
		{"unreachable", &stubLlm{err: domain.NewError(domain.KindConnectionFailure, "down")}, &stubEnhancer{final: "e"}, http.StatusServiceUnavailable},
		{"provider fault", &stubLlm{err: domain.NewError(domain.KindProviderError, "500")}, &stubEnhancer{final: "e"}, http.StatusInternalServerError},
		{"unknown strategy", &stubLlm{}, &stubEnhancer{err: domain.NewError(domain.KindUnknownStrategy, "nope")}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(tc.llm, tc.enh)
			rec := doJSON(t, h.Conversation, `{"latest_prompt":"hi","stream":false}`)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestConversationRejectsMalformedHistory(t *testing.T) {
	h := newTestHandler(&stubLlm{}, &stubEnhancer{})

	rec := doJSON(t, h.Conversation, `{"message":"x","history":[["only-user"]]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompletionReturnsPlainText(t *testing.T) {
	h := newTestHandler(&stubLlm{content: "plain answer"}, &stubEnhancer{})

	rec := doJSON(t, h.Completion, `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plain answer", rec.Body.String())
}

func TestGenerateRunsBothStages(t *testing.T) {
	h := newTestHandler(&stubLlm{content: "final answer"}, &stubEnhancer{final: "better prompt"})

	rec := doJSON(t, h.Generate, `{"prompt":"raw","prompt_type":"few_shot_prompt"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "final answer", rec.Body.String())
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(&stubLlm{}, &stubEnhancer{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.HealthCheck(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
