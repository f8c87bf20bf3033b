package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSubstitutesRawPromptVerbatim(t *testing.T) {
	def := StrategyDefinition{
		ID:             StrategyEnhance,
		PromptTemplate: "Please improve this prompt:\n```\n{prompt}\n```",
	}

	raw := `Write a story about {heroes} & "dragons"`
	got, err := def.Format(raw)
	require.NoError(t, err)

	assert.Contains(t, got, raw)
	// everything around the slot is untouched
	assert.Equal(t, strings.Replace(def.PromptTemplate, PromptSlot, raw, 1), got)
}

func TestFormatMissingSlotIsTemplateError(t *testing.T) {
	def := StrategyDefinition{ID: StrategyFewShot, PromptTemplate: "no slot here"}

	_, err := def.Format("anything")
	require.Error(t, err)
	assert.Equal(t, KindTemplateError, KindOf(err))
}

func TestFormatReplacesOnlyFirstSlot(t *testing.T) {
	def := StrategyDefinition{PromptTemplate: "{prompt} and literally {prompt}"}

	got, err := def.Format("X")
	require.NoError(t, err)
	assert.Equal(t, "X and literally {prompt}", got)
}
