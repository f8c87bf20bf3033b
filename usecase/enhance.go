package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/promptalchemy/alchemy/domain"
	"github.com/promptalchemy/alchemy/utils/log"
)

// EnhancerConfig fixes the enhancement stage's model and decoding policy.
type EnhancerConfig struct {
	// Model is typically a smaller, cheaper model than the generation one.
	Model string
	// SchemaConstrained requests native structured output from the
	// provider; when false the decoder falls back to digging JSON out of
	// free text.
	SchemaConstrained bool
	// CacheSize bounds the in-memory memoization of enhancement results.
	// Zero disables caching.
	CacheSize int
}

// Enhancer is the enhancement stage: it turns a raw prompt into a
// polished final prompt through one schema-constrained model call.
type Enhancer struct {
	catalog domain.StrategyCatalog
	llm     domain.Llm
	hasher  domain.Hasher
	cfg     EnhancerConfig

	mu    sync.RWMutex
	cache map[string]domain.EnhancedPrompt
}

func NewEnhancer(catalog domain.StrategyCatalog, llm domain.Llm, hasher domain.Hasher, cfg EnhancerConfig) *Enhancer {
	e := &Enhancer{catalog: catalog, llm: llm, hasher: hasher, cfg: cfg}
	if cfg.CacheSize > 0 {
		e.cache = make(map[string]domain.EnhancedPrompt, cfg.CacheSize)
	}
	return e
}

// Enhance looks up the strategy, formats its template with rawPrompt,
// runs the enhancement model call and decodes the structured result.
// Failures are returned as-is; there is no fallback prompt.
func (e *Enhancer) Enhance(ctx context.Context, id domain.Strategy, rawPrompt string) (domain.EnhancedPrompt, error) {
	def, err := e.catalog.Lookup(id)
	if err != nil {
		return domain.EnhancedPrompt{}, err
	}

	formatted, err := def.Format(rawPrompt)
	if err != nil {
		return domain.EnhancedPrompt{}, err
	}

	key := e.cacheKey(id, rawPrompt)
	if cached, ok := e.cacheGet(key); ok {
		log.WithCtx(ctx).Debug("Enhancement cache hit", zap.String("strategy", string(id)))
		return cached, nil
	}

	req := domain.CompletionRequest{
		Model: e.cfg.Model,
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: def.SystemPrompt},
			{Role: domain.RoleUser, Content: formatted},
		},
	}
	if e.cfg.SchemaConstrained {
		req.Schema = def.OutputSchema
	}

	log.WithCtx(ctx).Info("Enhancing prompt",
		zap.String("strategy", string(id)),
		zap.String("model", e.cfg.Model))

	payload, err := e.llm.Complete(ctx, req)
	if err != nil {
		return domain.EnhancedPrompt{}, err
	}

	enhanced, err := DecodeEnhanced(id, payload, e.cfg.SchemaConstrained)
	if err != nil {
		return domain.EnhancedPrompt{}, err
	}

	e.cachePut(key, enhanced)
	return enhanced, nil
}

func (e *Enhancer) cacheKey(id domain.Strategy, rawPrompt string) string {
	if e.cache == nil || e.hasher == nil {
		return ""
	}
	return e.hasher.Hash([]byte(string(id) + "\x00" + rawPrompt))
}

func (e *Enhancer) cacheGet(key string) (domain.EnhancedPrompt, bool) {
	if key == "" {
		return domain.EnhancedPrompt{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.cache[key]
	return v, ok
}

func (e *Enhancer) cachePut(key string, v domain.EnhancedPrompt) {
	if key == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// bounded: stop inserting once full rather than evicting
	if len(e.cache) >= e.cfg.CacheSize {
		return
	}
	e.cache[key] = v
}
