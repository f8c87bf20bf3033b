package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/promptalchemy/alchemy/domain"
)

// fencedJSONRegex matches the markdown code blocks many models wrap
// their JSON in when no native schema constraint is in effect.
var fencedJSONRegex = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// DecodeEnhanced parses the raw payload of an enhancement call into the
// canonical EnhancedPrompt shape.
//
// With schemaConstrained the provider already guaranteed the declared
// object, so decoding is a straight projection. Otherwise the payload is
// a text blob expected to contain a JSON object somewhere, possibly
// fenced, and the first valid object is dug out before decoding. Either
// way a missing or empty final_prompt is a decoding failure.
func DecodeEnhanced(id domain.Strategy, payload string, schemaConstrained bool) (domain.EnhancedPrompt, error) {
	raw := strings.TrimSpace(payload)
	if !schemaConstrained {
		raw = extractJSON(raw)
		if raw == "" {
			return domain.EnhancedPrompt{}, domain.NewError(domain.KindMalformedOutput,
				fmt.Sprintf("no JSON object found in %s enhancement output", id))
		}
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return domain.EnhancedPrompt{}, domain.WrapError(domain.KindMalformedOutput,
			fmt.Sprintf("invalid JSON in %s enhancement output", id), err)
	}

	final, ok := fields["final_prompt"].(string)
	if !ok || final == "" {
		return domain.EnhancedPrompt{}, domain.NewError(domain.KindMalformedOutput,
			fmt.Sprintf("%s enhancement output is missing final_prompt", id))
	}

	delete(fields, "final_prompt")
	return domain.EnhancedPrompt{FinalPrompt: final, Fields: fields}, nil
}

// extractJSON returns the first valid JSON object embedded in s, or "".
// It tries fenced code blocks first, then raw brace matching that
// honors string context and escaped quotes.
func extractJSON(s string) string {
	if strings.Contains(s, "```") {
		if m := fencedJSONRegex.FindStringSubmatch(s); len(m) > 1 {
			candidate := strings.TrimSpace(m[1])
			if strings.HasPrefix(candidate, "{") && strings.HasSuffix(candidate, "}") && json.Valid([]byte(candidate)) {
				return candidate
			}
		}
	}

	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		level := 0
		inString := false
		escaped := false
		for j := i; j < len(s); j++ {
			if escaped {
				escaped = false
				continue
			}
			switch s[j] {
			case '\\':
				escaped = true
			case '"':
				inString = !inString
			case '{':
				if !inString {
					level++
				}
			case '}':
				if !inString {
					level--
					if level == 0 {
						candidate := s[i : j+1]
						if json.Valid([]byte(candidate)) {
							return candidate
						}
						j = len(s) // invalid, resume outer scan
					}
				}
			}
		}
	}
	return ""
}
