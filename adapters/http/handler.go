package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/promptalchemy/alchemy/domain"
	"github.com/promptalchemy/alchemy/usecase"
	"github.com/promptalchemy/alchemy/utils/log"
)

// Handler exposes the gateway over HTTP. Streaming responses are
// flushed increment by increment; one delivery per chunk, no batching.
type Handler struct {
	conversations *usecase.ConversationService
	enhancer      domain.PromptEnhancer
	llm           domain.Llm
	generateModel string
}

func NewHandler(conversations *usecase.ConversationService, enhancer domain.PromptEnhancer, llm domain.Llm, generateModel string) *Handler {
	return &Handler{
		conversations: conversations,
		enhancer:      enhancer,
		llm:           llm,
		generateModel: generateModel,
	}
}

type completionIn struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type generateIn struct {
	Prompt     string          `json:"prompt"`
	PromptType domain.Strategy `json:"prompt_type"`
	Model      string          `json:"model"`
}

type conversationIn struct {
	PromptType   domain.Strategy `json:"prompt_type"`
	Message      string          `json:"message"`
	History      [][]string      `json:"history"`
	Stream       bool            `json:"stream"`
	LatestPrompt string          `json:"latest_prompt"`
}

type conversationOut struct {
	Response string `json:"response"`
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "prompt-gateway",
	})
}

// Completion handles a plain one-shot completion request.
func (h *Handler) Completion(c echo.Context) error {
	var in completionIn
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()

	log.WithCtx(ctx).Info("Completion request", zap.String("model", h.model(in.Model)))

	content, err := h.llm.Complete(ctx, domain.CompletionRequest{
		Model:    h.model(in.Model),
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: in.Prompt}},
	})
	if err != nil {
		return h.toHTTPError(ctx, err)
	}
	return c.String(http.StatusOK, content)
}

// CompletionStream handles a plain one-shot completion, streamed.
func (h *Handler) CompletionStream(c echo.Context) error {
	var in completionIn
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()

	stream, err := h.llm.Stream(ctx, domain.CompletionRequest{
		Model:    h.model(in.Model),
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: in.Prompt}},
	})
	if err != nil {
		return h.toHTTPError(ctx, err)
	}
	return h.relay(c, stream)
}

// Generate runs the two-stage pipeline without conversation state:
// enhance the prompt, then generate from the enhanced version.
func (h *Handler) Generate(c echo.Context) error {
	var in generateIn
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.PromptType == "" {
		in.PromptType = domain.StrategyEnhance
	}
	ctx := c.Request().Context()

	log.WithCtx(ctx).Info("Generate request",
		zap.String("prompt_type", string(in.PromptType)),
		zap.String("model", h.model(in.Model)))

	enhanced, err := h.enhancer.Enhance(ctx, in.PromptType, in.Prompt)
	if err != nil {
		return h.toHTTPError(ctx, err)
	}

	content, err := h.llm.Complete(ctx, domain.CompletionRequest{
		Model:    h.model(in.Model),
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: enhanced.FinalPrompt}},
	})
	if err != nil {
		return h.toHTTPError(ctx, err)
	}
	return c.String(http.StatusOK, content)
}

// Conversation is the orchestrator endpoint: enhancement on the first
// turn only, then generation, whole or streamed as requested.
func (h *Handler) Conversation(c echo.Context) error {
	var in conversationIn
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.PromptType == "" {
		in.PromptType = domain.StrategyEnhance
	}

	history, err := toHistory(in.History)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req := domain.ConversationRequest{
		Strategy:     in.PromptType,
		Message:      in.Message,
		History:      history,
		Stream:       in.Stream,
		LatestPrompt: in.LatestPrompt,
	}

	ctx := context.WithValue(c.Request().Context(), "strategy", string(in.PromptType))
	log.WithCtx(ctx).Info("Conversation request",
		zap.Int("turns", len(history)),
		zap.Bool("stream", in.Stream))

	if !in.Stream {
		content, err := h.conversations.Respond(ctx, req)
		if err != nil {
			return h.toHTTPError(ctx, err)
		}
		return c.JSON(http.StatusOK, conversationOut{Response: content})
	}

	stream, err := h.conversations.RespondStream(ctx, req)
	if err != nil {
		return h.toHTTPError(ctx, err)
	}
	return h.relay(c, stream)
}

// relay drains a chunk stream into the response, flushing every
// increment as soon as it arrives. A mid-stream failure ends the body
// with a visible error marker; content already flushed stands.
func (h *Handler) relay(c echo.Context, stream <-chan domain.StreamChunk) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	relayed := 0
	for chunk := range stream {
		if chunk.Err != nil {
			log.WithCtx(ctx).Error("Stream failed mid-flight",
				zap.Int("chunks_relayed", relayed), zap.Error(chunk.Err))
			fmt.Fprintf(resp, "\n[stream error: %s]", domain.KindOf(chunk.Err))
			resp.Flush()
			return nil
		}
		if _, err := resp.Write([]byte(chunk.Content)); err != nil {
			// consumer went away; context cancellation stops the producer
			return nil
		}
		resp.Flush()
		relayed++
	}

	log.WithCtx(ctx).Info("Stream completed", zap.Int("chunks_relayed", relayed))
	return nil
}

func (h *Handler) model(requested string) string {
	if requested != "" {
		return requested
	}
	return h.generateModel
}

// toHTTPError translates the pipeline taxonomy into the small external
// status set, logging the full cause and exposing only a short detail.
func (h *Handler) toHTTPError(ctx context.Context, err error) error {
	kind := domain.KindOf(err)
	log.WithCtx(ctx).Error("Request failed", zap.String("kind", string(kind)), zap.Error(err))

	var p *domain.PipelineError
	detail := err.Error()
	if errors.As(err, &p) {
		detail = p.Message
	}
	return echo.NewHTTPError(kind.HTTPStatus(), detail)
}

func toHistory(pairs [][]string) (domain.History, error) {
	history := make(domain.History, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("history entry %d must be a [user, assistant] pair", i)
		}
		history = append(history, domain.Turn{User: pair[0], Assistant: pair[1]})
	}
	return history, nil
}
