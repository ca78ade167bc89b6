package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// qualitativeSchema validates model output before it is decoded into Qualitative.
// Unknown keys are tolerated.
func qualitativeSchema() (*jsonschema.Resolved, error) {
	s, err := jsonschema.For[Qualitative](nil)
	if err != nil {
		return nil, fmt.Errorf("derive schema: %w", err)
	}
	s.AdditionalProperties = nil
	return s.Resolve(nil)
}

// ExtractJSON returns the JSON object in a model answer, which may be wrapped in a fenced block or prose.
func ExtractJSON(text string) (string, error) {
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			text = rest[:j]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// decodeQualitative validates raw against the schema and decodes it.
func decodeQualitative(schema *jsonschema.Resolved, raw string) (*Qualitative, error) {
	var instance map[string]any
	if err := json.Unmarshal([]byte(raw), &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	var q Qualitative
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return &q, nil
}
