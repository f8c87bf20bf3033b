package usecase

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/promptalchemy/alchemy/domain"
	"github.com/promptalchemy/alchemy/utils/log"
)

// ConversationConfig fixes the generation stage's model and persona.
type ConversationConfig struct {
	// GenerateModel is typically larger than the enhancement model.
	GenerateModel string
	// DefaultSystemPrompt leads the generation message sequence; empty
	// omits the system message entirely.
	DefaultSystemPrompt string
}

// ConversationService is the pipeline orchestrator. Per request it
// decides whether to run the enhancement stage, then runs the generation
// stage and relays the result whole or as a live stream. It holds no
// per-conversation state; first-turn vs continued-turn is recomputed
// from the request's history alone.
type ConversationService struct {
	enhancer domain.PromptEnhancer
	llm      domain.Llm
	bus      domain.EventBus // optional
	cfg      ConversationConfig
}

func NewConversationService(enhancer domain.PromptEnhancer, llm domain.Llm, bus domain.EventBus, cfg ConversationConfig) *ConversationService {
	return &ConversationService{enhancer: enhancer, llm: llm, bus: bus, cfg: cfg}
}

// Respond handles one non-streaming turn and returns the complete text.
// Every failure surfaces as a *domain.PipelineError carrying the
// original kind.
func (s *ConversationService) Respond(ctx context.Context, req domain.ConversationRequest) (string, error) {
	start := time.Now()

	prompt, enhanced, err := s.resolvePrompt(ctx, req)
	if err != nil {
		err = domain.AsPipelineError("resolving prompt", err)
		s.publishUsage(ctx, req, enhanced, time.Since(start), err)
		return "", err
	}

	log.WithCtx(ctx).Info("Generating response",
		zap.String("model", s.cfg.GenerateModel),
		zap.Bool("enhanced", enhanced))

	content, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Model:    s.cfg.GenerateModel,
		Messages: s.buildMessages(prompt, req.History),
	})
	if err != nil {
		err = domain.AsPipelineError("generating response", err)
		s.publishUsage(ctx, req, enhanced, time.Since(start), err)
		return "", err
	}

	s.publishUsage(ctx, req, enhanced, time.Since(start), nil)
	return content, nil
}

// RespondStream handles one streaming turn. Chunks are relayed verbatim
// and incrementally as the provider emits them; nothing is buffered. If
// the upstream stream fails mid-flight the relay ends with one final
// error chunk; content already relayed stands. Cancelling ctx stops
// chunk production promptly.
func (s *ConversationService) RespondStream(ctx context.Context, req domain.ConversationRequest) (<-chan domain.StreamChunk, error) {
	start := time.Now()

	prompt, enhanced, err := s.resolvePrompt(ctx, req)
	if err != nil {
		err = domain.AsPipelineError("resolving prompt", err)
		s.publishUsage(ctx, req, enhanced, time.Since(start), err)
		return nil, err
	}

	log.WithCtx(ctx).Info("Generating streaming response",
		zap.String("model", s.cfg.GenerateModel),
		zap.Bool("enhanced", enhanced))

	upstream, err := s.llm.Stream(ctx, domain.CompletionRequest{
		Model:    s.cfg.GenerateModel,
		Messages: s.buildMessages(prompt, req.History),
	})
	if err != nil {
		err = domain.AsPipelineError("starting generation stream", err)
		s.publishUsage(ctx, req, enhanced, time.Since(start), err)
		return nil, err
	}

	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		for chunk := range upstream {
			if chunk.Err != nil {
				chunk.Err = domain.AsPipelineError("generation stream", chunk.Err)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				s.publishUsage(ctx, req, enhanced, time.Since(start), ctx.Err())
				return
			}
			if chunk.Err != nil {
				s.publishUsage(ctx, req, enhanced, time.Since(start), chunk.Err)
				return
			}
		}
		s.publishUsage(ctx, req, enhanced, time.Since(start), nil)
	}()
	return out, nil
}

// resolvePrompt picks this turn's prompt. The first turn formats and
// enhances LatestPrompt; later turns reuse the client-supplied message
// verbatim, saving one model round trip per turn.
func (s *ConversationService) resolvePrompt(ctx context.Context, req domain.ConversationRequest) (string, bool, error) {
	if len(req.History) > 0 {
		return req.Message, false, nil
	}
	enhanced, err := s.enhancer.Enhance(ctx, req.Strategy, req.LatestPrompt)
	if err != nil {
		return "", false, err
	}
	return enhanced.FinalPrompt, true, nil
}

// buildMessages assembles the generation call: optional system prompt
// first, history interleaved as user/assistant pairs oldest first, and
// the current prompt as the trailing user message.
func (s *ConversationService) buildMessages(prompt string, history domain.History) []domain.ChatMessage {
	msgs := make([]domain.ChatMessage, 0, len(history)*2+2)
	if s.cfg.DefaultSystemPrompt != "" {
		msgs = append(msgs, domain.ChatMessage{Role: domain.RoleSystem, Content: s.cfg.DefaultSystemPrompt})
	}
	for _, turn := range history {
		msgs = append(msgs,
			domain.ChatMessage{Role: domain.RoleUser, Content: turn.User},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: turn.Assistant},
		)
	}
	return append(msgs, domain.ChatMessage{Role: domain.RoleUser, Content: prompt})
}

func (s *ConversationService) publishUsage(ctx context.Context, req domain.ConversationRequest, enhanced bool, elapsed time.Duration, failure error) {
	if s.bus == nil {
		return
	}

	ev := domain.UsageEvent{
		Strategy:   req.Strategy,
		Model:      s.cfg.GenerateModel,
		Streamed:   req.Stream,
		Enhanced:   enhanced,
		DurationMS: elapsed.Milliseconds(),
	}
	if id, ok := ctx.Value("request_id").(string); ok {
		ev.RequestID = id
	}
	if failure != nil {
		ev.Error = string(domain.KindOf(failure))
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.bus.Publish(context.WithoutCancel(ctx), domain.TopicUsage, payload); err != nil {
		log.WithCtx(ctx).Debug("Dropping usage event", zap.Error(err))
	}
}
