package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/promptalchemy/alchemy/domain"
)

// GeminiClient implements domain.Llm straight against the Gemini API,
// for deployments that skip the OpenAI-compatible proxy. Credentials
// come from the genai SDK's own environment handling.
type GeminiClient struct {
	client *genai.Client
	cfg    Config
}

func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg}, nil
}

// toContents splits the chat sequence into Gemini contents plus the
// system instruction, which Gemini carries out of band.
func toContents(messages []domain.ChatMessage) ([]*genai.Content, string) {
	var system string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			system = m.Content
			continue
		}
		role := genai.RoleModel
		if m.Role == domain.RoleUser {
			role = genai.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return contents, system
}

func (g *GeminiClient) generateConfig(req domain.CompletionRequest, system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.cfg.MaxTokens),
		Temperature:     genai.Ptr(float32(g.cfg.Temperature)),
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if req.Schema != nil {
		// Gemini constrains via MIME type; the declared schema still
		// reaches the model through the strategy's system prompt.
		config.ResponseMIMEType = "application/json"
	}
	return config
}

func (g *GeminiClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	contents, system := toContents(req.Messages)
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, contents, g.generateConfig(req, system))
	if err != nil {
		return "", classifyGeminiErr(err)
	}
	return resp.Text(), nil
}

func (g *GeminiClient) Stream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamChunk, error) {
	contents, system := toContents(req.Messages)
	stream := g.client.Models.GenerateContentStream(ctx, req.Model, contents, g.generateConfig(req, system))

	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		for resp, err := range stream {
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- domain.StreamChunk{Err: classifyGeminiErr(err)}:
				case <-ctx.Done():
				}
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case out <- domain.StreamChunk{Content: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func classifyGeminiErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return domain.WrapError(domain.KindRateLimited, "gemini rate limited", err)
		}
		return domain.WrapError(domain.KindProviderError, "gemini call failed", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.KindConnectionFailure, "gemini call timed out", err)
	}
	return domain.WrapError(domain.KindConnectionFailure, "cannot reach gemini", err)
}
