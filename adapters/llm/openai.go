package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/promptalchemy/alchemy/domain"
	"github.com/promptalchemy/alchemy/utils/log"
)

// Config holds the settings of an OpenAI-compatible endpoint, typically
// a litellm proxy in front of the actual providers. Generation
// parameters are fixed here and never request-supplied.
type Config struct {
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64
	// Timeout bounds each round trip: the whole exchange for Complete,
	// time-to-first-header for Stream. Expiry reports ConnectionFailure.
	Timeout time.Duration
}

// OpenAIClient implements domain.Llm against a /chat/completions
// endpoint, in both plain and SSE-streamed modes. The underlying
// connection pool is shared across requests; each logical call is
// independent and carries no state between calls.
type OpenAIClient struct {
	cfg    Config
	client *http.Client
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIClient{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: cfg.Timeout},
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaSpec struct {
	Name   string `json:"name"`
	Schema any    `json:"schema"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *jsonSchemaSpec `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Stream         bool            `json:"stream"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *OpenAIClient) buildRequest(req domain.CompletionRequest, stream bool) chatRequest {
	msgs := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}
	out := chatRequest{
		Model:       req.Model,
		Messages:    msgs,
		Stream:      stream,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	if req.Schema != nil {
		out.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaSpec{Name: req.Schema.Name, Schema: req.Schema.Schema},
		}
	}
	return out
}

// do performs the POST and translates every transport or status failure
// into the invoker taxonomy. A non-nil response is ready for body reads.
func (c *OpenAIClient) do(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, domain.WrapError(domain.KindUnexpected, "encoding provider request", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.WrapError(domain.KindUnexpected, "building provider request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.KindConnectionFailure, "cannot reach provider", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := readErrorDetail(resp.Body)
		resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, domain.NewError(domain.KindRateLimited,
				fmt.Sprintf("provider rate limited (%d): %s", resp.StatusCode, detail))
		default:
			return nil, domain.NewError(domain.KindProviderError,
				fmt.Sprintf("provider returned %d: %s", resp.StatusCode, detail))
		}
	}
	return resp, nil
}

// Complete performs one blocking round trip, bounded by the configured
// timeout, and returns the full textual content.
func (c *OpenAIClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.do(ctx, c.buildRequest(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", domain.WrapError(domain.KindUnexpected, "decoding provider response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", domain.NewError(domain.KindProviderError, "provider response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream opens an SSE stream and relays each delta as soon as the
// provider emits it. Empty deltas are suppressed. Cancelling ctx closes
// the provider connection and stops production; a read failure
// mid-stream ends the channel with one final error chunk.
func (c *OpenAIClient) Stream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamChunk, error) {
	resp, err := c.do(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	out := make(chan domain.StreamChunk)
	done := make(chan struct{})

	// unblocks the scanner promptly when the consumer goes away
	go func() {
		select {
		case <-ctx.Done():
			resp.Body.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var ev streamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				log.WithCtx(ctx).Debug("Skipping unparseable stream event", zap.Error(err))
				continue
			}
			if len(ev.Choices) == 0 || ev.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case out <- domain.StreamChunk{Content: ev.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			chunk := domain.StreamChunk{
				Err: domain.WrapError(domain.KindConnectionFailure, "provider stream interrupted", err),
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// readErrorDetail pulls a short human-readable detail out of an error
// body, preferring the OpenAI {"error": {"message": ...}} shape.
func readErrorDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4*1024))
	if err != nil || len(raw) == 0 {
		return "no detail"
	}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
