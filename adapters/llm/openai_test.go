package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptalchemy/alchemy/domain"
)

func testClient(url string) *OpenAIClient {
	return NewOpenAIClient(Config{
		BaseURL:     url,
		APIKey:      "test-key",
		MaxTokens:   256,
		Temperature: 0.5,
		Timeout:     2 * time.Second,
	})
}

func completionReq() domain.CompletionRequest {
	return domain.CompletionRequest{
		Model: "gemini-flash",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: "sys"},
			{Role: domain.RoleUser, Content: "hi"},
		},
	}
}

func TestCompleteSendsFixedParametersAndParsesContent(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"Generated response"}}]}`)
	}))
	defer srv.Close()

	content, err := testClient(srv.URL).Complete(context.Background(), completionReq())
	require.NoError(t, err)
	assert.Equal(t, "Generated response", content)

	assert.Equal(t, "gemini-flash", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 256, got.MaxTokens)
	assert.InDelta(t, 0.5, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Nil(t, got.ResponseFormat)
}

func TestCompleteSchemaConstraintTravelsAsResponseFormat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{}"}}]}`)
	}))
	defer srv.Close()

	req := completionReq()
	req.Schema = &domain.OutputSchema{
		Name:   "enhanced_prompt",
		Schema: map[string]any{"type": "object"},
	}
	_, err := testClient(srv.URL).Complete(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_schema", got.ResponseFormat.Type)
	assert.Equal(t, "enhanced_prompt", got.ResponseFormat.JSONSchema.Name)
}

func TestCompleteErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   domain.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, domain.KindRateLimited},
		{"provider fault", http.StatusInternalServerError, "boom", domain.KindProviderError},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad model"}}`, domain.KindProviderError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Complete(context.Background(), completionReq())
			require.Error(t, err)
			assert.Equal(t, tc.kind, domain.KindOf(err))
		})
	}
}

func TestCompleteUnreachableProviderIsConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listens anymore

	_, err := testClient(srv.URL).Complete(context.Background(), completionReq())
	require.Error(t, err)
	assert.Equal(t, domain.KindConnectionFailure, domain.KindOf(err))
}

func TestCompleteTimeoutIsConnectionFailure(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewOpenAIClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Complete(context.Background(), completionReq())
	require.Error(t, err)
	assert.Equal(t, domain.KindConnectionFailure, domain.KindOf(err))
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Complete(context.Background(), completionReq())
	require.Error(t, err)
	assert.Equal(t, domain.KindProviderError, domain.KindOf(err))
}

func sseBody(deltas ...string) string {
	var b string
	for _, d := range deltas {
		raw, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"delta": map[string]string{"content": d}}},
		})
		b += "data: " + string(raw) + "\n\n"
	}
	return b + "data: [DONE]\n\n"
}

func TestStreamRelaysDeltasInOrderAndSuppressesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.True(t, got.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody("Hel", "", "lo", "", " world"))
	}))
	defer srv.Close()

	stream, err := testClient(srv.URL).Stream(context.Background(), completionReq())
	require.NoError(t, err)

	var got []string
	for chunk := range stream {
		require.NoError(t, chunk.Err)
		got = append(got, chunk.Content)
	}
	assert.Equal(t, []string{"Hel", "lo", " world"}, got)
}

func TestStreamRateLimitSurfacesBeforeAnyChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Stream(context.Background(), completionReq())
	require.Error(t, err)
	assert.Equal(t, domain.KindRateLimited, domain.KindOf(err))
}

func TestStreamCancellationStopsReading(t *testing.T) {
	firstSent := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, sseBody("first")[:len(sseBody("first"))-len("data: [DONE]\n\n")])
		flusher.Flush()
		close(firstSent)
		// keep the stream open until the client disconnects
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := testClient(srv.URL).Stream(ctx, completionReq())
	require.NoError(t, err)

	chunk := <-stream
	assert.Equal(t, "first", chunk.Content)
	<-firstSent
	cancel()

	// channel closes without an error chunk once production stops
	for chunk := range stream {
		assert.NoError(t, chunk.Err)
	}
}
