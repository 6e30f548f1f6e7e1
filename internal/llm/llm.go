// Package llm is the generative-text collaborator used by classification, deep research and
// synthesis.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// Request is one generation call.
type Request struct {
	Prompt string
	// JSON requests strict structured output. Schema is optional and only used with JSON.
	JSON        bool
	Schema      *genai.Schema
	Temperature *float32
	// Grounded enables Google Search retrieval and source attribution. Grounded calls
	// cannot use structured output, so callers parse JSON leniently (see ExtractJSON).
	Grounded bool
}

// Source is one grounding attribution.
type Source struct {
	Title string
	URI   string
}

type Response struct {
	Text    string
	Sources []Source
	Queries []string
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Temperature is a helper for Request.Temperature.
func Temperature(t float32) *float32 { return &t }

// ErrNoJSON is returned by ExtractJSON when no JSON object can be found.
var ErrNoJSON = eris.New("llm: response contains no JSON object")

// ExtractJSON decodes the first JSON object in text into v. It accepts bare JSON, fenced
// ```json blocks and prose around a single object.
func ExtractJSON(text string, v any) error {
	s := strings.TrimSpace(text)
	if s == "" {
		return ErrNoJSON
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return eris.Wrap(err, "llm: parse json")
	}
	return nil
}
