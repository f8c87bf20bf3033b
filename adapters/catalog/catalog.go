package catalog

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/promptalchemy/alchemy/domain"
	"github.com/promptalchemy/alchemy/utils/log"
)

// Catalog is the static strategy registry. It is populated once by New
// and read-only afterwards, so lookups need no synchronization.
type Catalog struct {
	defs map[domain.Strategy]domain.StrategyDefinition
}

// overrideFile is the shape of the optional YAML config that replaces
// built-in prompt texts per strategy.
type overrideFile struct {
	Strategies map[string]struct {
		SystemPrompt   string `yaml:"system_prompt"`
		PromptTemplate string `yaml:"prompt_template"`
	} `yaml:"strategies"`
}

// New builds the catalog from the built-in definitions, applying the
// YAML override file at path when it is non-empty. Overriding an
// unregistered strategy is a configuration error.
func New(path string) (*Catalog, error) {
	defs := builtinDefinitions()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading prompt config %s: %w", path, err)
		}
		var overrides overrideFile
		if err := yaml.Unmarshal(raw, &overrides); err != nil {
			return nil, fmt.Errorf("parsing prompt config %s: %w", path, err)
		}
		for name, o := range overrides.Strategies {
			def, ok := defs[domain.Strategy(name)]
			if !ok {
				return nil, fmt.Errorf("prompt config %s overrides unknown strategy %q", path, name)
			}
			if o.SystemPrompt != "" {
				def.SystemPrompt = o.SystemPrompt
			}
			if o.PromptTemplate != "" {
				def.PromptTemplate = o.PromptTemplate
			}
			defs[def.ID] = def
			log.With(zap.String("strategy", name)).Info("Loaded prompt override")
		}
	}

	log.With(zap.Int("strategies", len(defs))).Info("Strategy catalog loaded")
	return &Catalog{defs: defs}, nil
}

// Lookup resolves a strategy id to its definition.
func (c *Catalog) Lookup(id domain.Strategy) (domain.StrategyDefinition, error) {
	def, ok := c.defs[id]
	if !ok {
		return domain.StrategyDefinition{}, domain.NewError(domain.KindUnknownStrategy,
			fmt.Sprintf("strategy %q is not registered", id))
	}
	return def, nil
}

// All returns every definition, ordered by id.
func (c *Catalog) All() []domain.StrategyDefinition {
	out := make([]domain.StrategyDefinition, 0, len(c.defs))
	for _, def := range c.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
