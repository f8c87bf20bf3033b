package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/promptalchemy/alchemy/adapters/catalog"
	"github.com/promptalchemy/alchemy/adapters/events"
	"github.com/promptalchemy/alchemy/adapters/hasher"
	gatewayhttp "github.com/promptalchemy/alchemy/adapters/http"
	"github.com/promptalchemy/alchemy/adapters/llm"
	"github.com/promptalchemy/alchemy/adapters/websocket"
	"github.com/promptalchemy/alchemy/domain"
	"github.com/promptalchemy/alchemy/usecase"
	"github.com/promptalchemy/alchemy/utils/env"
	"github.com/promptalchemy/alchemy/utils/log"
)

func main() {
	gotenv.Load()

	strategies, err := catalog.New(env.Get("PROMPT_CONFIG_PATH", ""))
	if err != nil {
		stdlog.Fatalf("loading strategy catalog: %v", err)
	}

	llmClient, err := buildLlmClient()
	if err != nil {
		stdlog.Fatalf("building LLM client: %v", err)
	}

	enhancer := usecase.NewEnhancer(strategies, llmClient, hasher.New(), usecase.EnhancerConfig{
		Model:             env.Get("ENHANCE_MODEL", "gpt-4o-mini"),
		SchemaConstrained: env.GetBool("ENHANCE_SCHEMA_CONSTRAINED", true),
		CacheSize:         env.GetInt("ENHANCE_CACHE_SIZE", 1024),
	})

	bus := events.New()
	defer bus.Close()
	go drainUsage(bus)

	generateModel := env.Get("GENERATE_MODEL", "gemini-flash")
	conversations := usecase.NewConversationService(enhancer, llmClient, bus, usecase.ConversationConfig{
		GenerateModel:       generateModel,
		DefaultSystemPrompt: catalog.DefaultSystemPrompt,
	})

	handler := gatewayhttp.NewHandler(conversations, enhancer, llmClient, generateModel)
	wsServer := websocket.NewServer(conversations)

	e := echo.New()

	// Security middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20))) // 20 requests per minute

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"}, // In production, specify exact origins
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			"Content-Length",
		},
		MaxAge: 86400, // 24 hours
	}))

	// Request size limit
	e.Use(middleware.BodyLimit("1MB"))

	e.Use(requestID)

	e.GET("/ws", wsServer.Handler)

	api := e.Group("/api")
	api.GET("/v1/health", handler.HealthCheck)
	api.POST("/completion/generate", handler.Completion)
	api.POST("/completion/generate/stream", handler.CompletionStream)
	api.POST("/promptalchemy/generate", handler.Generate)
	api.POST("/conversation", handler.Conversation)

	stdlog.Println("Starting server on :8080")
	stdlog.Println("Available endpoints:")
	stdlog.Println("  GET  /api/v1/health                    - Health check")
	stdlog.Println("  POST /api/completion/generate          - Plain completion")
	stdlog.Println("  POST /api/completion/generate/stream   - Streaming completion")
	stdlog.Println("  POST /api/promptalchemy/generate       - Enhance then generate")
	stdlog.Println("  POST /api/conversation                 - Two-stage conversation")
	stdlog.Println("  GET  /ws                               - WebSocket conversation")
	stdlog.Fatal(e.Start(":8080"))
}

// buildLlmClient selects the provider adapter. The OpenAI-compatible
// client is the default because the upstream proxy speaks that dialect
// for every model it fronts.
func buildLlmClient() (domain.Llm, error) {
	cfg := llm.Config{
		BaseURL:     env.Get("LITELLM_PROXY_URL", "http://litellm:4000"),
		APIKey:      env.Get("LLM_API_KEY", ""),
		MaxTokens:   env.GetInt("LLM_MAX_TOKENS", 8192),
		Temperature: env.GetFloat("LLM_TEMPERATURE", 0.5),
		Timeout:     env.GetDuration("LLM_TIMEOUT", 60*time.Second),
	}

	if env.Get("LLM_PROVIDER", "openai") == "gemini" {
		return llm.NewGeminiClient(context.Background(), cfg)
	}
	return llm.NewOpenAIClient(cfg), nil
}

// requestID tags every request so pipeline logs and usage events can be
// correlated.
func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := uuid.NewString()
		ctx := context.WithValue(c.Request().Context(), "request_id", id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set("X-Request-Id", id)
		return next(c)
	}
}

// drainUsage logs every usage event the pipeline publishes. A fuller
// deployment would forward these to a metrics sink instead.
func drainUsage(bus domain.EventBus) {
	stream, err := bus.Subscribe(context.Background(), domain.TopicUsage)
	if err != nil {
		log.With(zap.Error(err)).Warn("usage events unavailable")
		return
	}
	for event := range stream {
		var usage domain.UsageEvent
		if err := json.Unmarshal(event.Payload, &usage); err != nil {
			log.With(zap.Error(err)).Warn("Dropping malformed usage event")
			continue
		}
		log.With(
			zap.String("request_id", usage.RequestID),
			zap.String("strategy", string(usage.Strategy)),
			zap.String("model", usage.Model),
			zap.Bool("streamed", usage.Streamed),
			zap.Bool("enhanced", usage.Enhanced),
			zap.Int64("duration_ms", usage.DurationMS),
			zap.String("error", usage.Error),
		).Info("Pipeline turn completed")
	}
}
