package domain

import (
	"context"
	"fmt"
	"strings"
)

// Strategy names a prompt-enhancement style.
type Strategy string

const (
	StrategyEnhance         Strategy = "enhance_prompt"
	StrategyFewShot         Strategy = "few_shot_prompt"
	StrategyChainOfThought  Strategy = "chain_of_thought_prompt"
	StrategyStructureOutput Strategy = "structure_output_prompt"
)

// PromptSlot is the single substitution slot every prompt template carries.
const PromptSlot = "{prompt}"

// StrategyDefinition is the immutable configuration of one strategy,
// loaded once at process start and safe for concurrent reads.
type StrategyDefinition struct {
	ID             Strategy
	Description    string
	SystemPrompt   string
	PromptTemplate string
	OutputSchema   *OutputSchema
}

// Format substitutes the raw prompt into the strategy's template.
func (d StrategyDefinition) Format(rawPrompt string) (string, error) {
	if !strings.Contains(d.PromptTemplate, PromptSlot) {
		return "", NewError(KindTemplateError,
			fmt.Sprintf("template for %q is missing the %s slot", d.ID, PromptSlot))
	}
	return strings.Replace(d.PromptTemplate, PromptSlot, rawPrompt, 1), nil
}

// StrategyCatalog resolves strategy ids to their definitions.
type StrategyCatalog interface {
	// Lookup fails with KindUnknownStrategy for unregistered ids.
	Lookup(id Strategy) (StrategyDefinition, error)
	All() []StrategyDefinition
}

// EnhancedPrompt is the decoded structured output of an enhancement call.
// FinalPrompt is mandatory; Fields carries whatever auxiliary material the
// strategy produced (rationale, reasoning steps) and never drives control
// flow.
type EnhancedPrompt struct {
	FinalPrompt string
	Fields      map[string]any
}

// PromptEnhancer rewrites a raw prompt into a polished one.
type PromptEnhancer interface {
	Enhance(ctx context.Context, id Strategy, rawPrompt string) (EnhancedPrompt, error)
}
